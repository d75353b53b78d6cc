package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/coordinator"
	"github.com/arkeep-io/krra/internal/registry"
	"github.com/arkeep-io/krra/internal/router"
	"github.com/arkeep-io/krra/internal/version"
)

type handlers struct {
	coord  *coordinator.Coordinator
	tokens *TokenIssuer
	logger *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// --- auth ---------------------------------------------------------------

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !h.tokens.CheckPassphrase(req.Passphrase) {
		writeError(w, http.StatusUnauthorized, "invalid passphrase")
		return
	}
	token, err := h.tokens.IssueToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// --- agents ---------------------------------------------------------------

type agentView struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (h *handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.coord.Registry.All()
	out := make([]agentView, len(agents))
	for i, a := range agents {
		out[i] = agentView{
			AgentID: a.ID,
			Name:    a.Name,
			Type:    string(a.Kind),
			Version: a.Version.String(),
			Status:  string(a.Status),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

type createAgentRequest struct {
	AgentID       string            `json:"agentId"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Version       string            `json:"version"`
	Description   string            `json:"description"`
	ModuleLocator string            `json:"moduleLocator"`
	Metadata      map[string]string `json:"metadata"`
}

func (h *handlers) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"success": false})
		return
	}
	v, err := version.Parse(req.Version)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"success": false})
		return
	}
	h.coord.Registry.Register(registry.Agent{
		ID:            req.AgentID,
		Name:          req.Name,
		Kind:          registry.Kind(req.Type),
		Version:       v,
		Description:   req.Description,
		ModuleLocator: req.ModuleLocator,
		Metadata:      req.Metadata,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- nodes ---------------------------------------------------------------

type nodeView struct {
	NodeID   string `json:"nodeId"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Status   string `json:"status"`
}

func (h *handlers) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.coord.Membership.All()
	out := make([]nodeView, len(nodes))
	for i, n := range nodes {
		out[i] = nodeView{
			NodeID:   n.ID,
			Hostname: n.Hostname,
			Address:  n.Address,
			Port:     n.Port,
			Status:   string(n.Status),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": out})
}

// --- jobs ---------------------------------------------------------------

type jobView struct {
	JobID          string  `json:"jobId"`
	AgentID        string  `json:"agentId"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"createdAt"`
	StartedAt      *string `json:"startedAt,omitempty"`
	CompletedAt    *string `json:"completedAt,omitempty"`
	ExecutedByNode *string `json:"executedByNodeId,omitempty"`
	ErrorMessage   *string `json:"errorMessage,omitempty"`
}

func toJobView(j router.Job) jobView {
	v := jobView{
		JobID:     j.ID,
		AgentID:   j.AgentID,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.CompletedAt = &s
	}
	if j.ExecutedByNode != "" {
		v.ExecutedByNode = &j.ExecutedByNode
	}
	if j.ErrorMessage != "" {
		v.ErrorMessage = &j.ErrorMessage
	}
	return v
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.coord.Router.All()
	out := make([]jobView, len(jobs))
	for i, j := range jobs {
		out[i] = toJobView(j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

type submitJobRequest struct {
	AgentID  string            `json:"agentId"`
	Input    string            `json:"input"` // raw bytes, not base64 — matches CLI's file-read path
	Metadata map[string]string `json:"metadata"`
}

func (h *handlers) submitJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	var req submitJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	jobID, failure := h.coord.Submit(router.Job{
		AgentID:  req.AgentID,
		Input:    []byte(req.Input),
		Metadata: req.Metadata,
	})
	if failure != "" {
		writeError(w, http.StatusBadRequest, string(failure))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID})
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	ok := h.coord.CancelJob(jobID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// --- proofs ---------------------------------------------------------------

type proofView struct {
	ProofID    string `json:"proofId"`
	AgentID    string `json:"agentId"`
	Timestamp  int64  `json:"timestamp"`
	InputHash  string `json:"inputHash"`
	OutputHash string `json:"outputHash"`
	ProofHash  string `json:"proofHash"`
}

func (h *handlers) listProofs(w http.ResponseWriter, r *http.Request) {
	proofs := h.coord.Proofs.All()
	out := make([]proofView, len(proofs))
	for i, p := range proofs {
		out[i] = proofView{
			ProofID:    p.ID,
			AgentID:    p.AgentID,
			Timestamp:  p.Timestamp,
			InputHash:  p.InputHash,
			OutputHash: p.OutputHash,
			ProofHash:  p.ProofHash,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"proofs": out})
}

// --- audit ---------------------------------------------------------------

type auditView struct {
	ID         uint   `json:"id"`
	OccurredAt string `json:"occurredAt"`
	Kind       string `json:"kind"`
	SubjectID  string `json:"subjectId"`
	Detail     string `json:"detail"`
}

func (h *handlers) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.coord.ListAudit(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]auditView, len(events))
	for i, e := range events {
		out[i] = auditView{
			ID:         e.ID,
			OccurredAt: e.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Kind:       e.Kind,
			SubjectID:  e.SubjectID,
			Detail:     e.Detail,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
