package wire

import "encoding/json"

// Payload encodings are JSON — the framing layer above is agnostic to this
// choice, but a concrete wire protocol needs one. These structs are the
// bodies carried by each MsgType.

// HeartbeatPayload accompanies MsgHeartbeat.
type HeartbeatPayload struct {
	NodeID string `json:"nodeId"`
}

// AgentRegisterPayload accompanies MsgAgentRegister and MsgAgentUpdate.
type AgentRegisterPayload struct {
	AgentID       string            `json:"agentId"`
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	Version       string            `json:"version"`
	Description   string            `json:"description"`
	ModuleLocator string            `json:"moduleLocator"`
	Metadata      map[string]string `json:"metadata"`
}

// JobSubmitPayload accompanies MsgJobSubmit.
type JobSubmitPayload struct {
	AgentID  string            `json:"agentId"`
	Input    []byte            `json:"input"`
	Metadata map[string]string `json:"metadata"`
}

// JobResultPayload accompanies MsgJobResult.
type JobResultPayload struct {
	JobID        string `json:"jobId"`
	Success      bool   `json:"success"`
	Output       []byte `json:"output,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	ProofID      string `json:"proofId,omitempty"`
}

// NodeInfoPayload accompanies MsgNodeInfo.
type NodeInfoPayload struct {
	NodeID       string            `json:"nodeId"`
	Hostname     string            `json:"hostname"`
	Address      string            `json:"address"`
	Port         int               `json:"port"`
	Capabilities map[string]string `json:"capabilities"`
}

// ErrorPayload accompanies MsgError.
type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
