// Package proof implements content-addressed attestations that bind a
// (agentId, timestamp, input, output) tuple by SHA-256, and validates
// candidate input/output pairs against a previously registered proof.
package proof

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"sync"

	"github.com/arkeep-io/krra/internal/audit"
)

// Result enumerates the possible outcomes of Validate. The non-Valid
// outcomes are checked in the order listed below — Validate short-circuits
// at the first one that applies and returns Valid only if none does.
type Result string

const (
	Valid              Result = "Valid"
	ProofNotFound      Result = "ProofNotFound"
	InputMismatch      Result = "InputMismatch"
	OutputMismatch     Result = "OutputMismatch"
	ProofHashMismatch  Result = "ProofHashMismatch"
)

// Proof is a single attestation: the hashes of the input and output bytes
// it was computed against, and the combined hash binding them to an agent
// and a timestamp.
type Proof struct {
	ID         string
	AgentID    string
	Timestamp  int64
	InputHash  string
	OutputHash string
	ProofHash  string
}

// HashBytes returns the base64-standard (padded) encoding of SHA-256(b).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ComputeProofHash recomputes proofHash = base64(SHA256(agentId ||
// decimal(timestamp) || inputHash || outputHash)), concatenating the four
// arguments as raw UTF-8 bytes with no separators.
func ComputeProofHash(agentID string, timestamp int64, inputHash, outputHash string) string {
	var buf []byte
	buf = append(buf, agentID...)
	buf = append(buf, strconv.FormatInt(timestamp, 10)...)
	buf = append(buf, inputHash...)
	buf = append(buf, outputHash...)
	sum := sha256.Sum256(buf)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Validator is the concurrent proofId -> Proof table.
type Validator struct {
	mu     sync.RWMutex
	proofs map[string]Proof

	audit audit.Recorder
}

// New returns an empty Validator.
func New(rec audit.Recorder) *Validator {
	return &Validator{
		proofs: make(map[string]Proof),
		audit:  rec,
	}
}

// Register stores proof under its id. A duplicate id silently overwrites,
// on the assumption that a node re-announcing a proof after a reconnect is
// routine rather than a conflict worth failing the caller over.
func (v *Validator) Register(p Proof) {
	v.mu.Lock()
	v.proofs[p.ID] = p
	v.mu.Unlock()
	v.audit.Record("proof.registered", p.ID, p.AgentID)
}

// Get returns the proof record for id, or ok=false if absent.
func (v *Validator) Get(proofID string) (Proof, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.proofs[proofID]
	return p, ok
}

// All returns a point-in-time snapshot of every registered proof.
func (v *Validator) All() []Proof {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Proof, 0, len(v.proofs))
	for _, p := range v.proofs {
		out = append(out, p)
	}
	return out
}

// Validate checks candidate input/output bytes against the proof stored
// under proofID, short-circuiting in the order: missing proof, input
// mismatch, output mismatch, then the recomputed combined hash. Runs in
// O(len(input)+len(output)).
func (v *Validator) Validate(proofID string, input, output []byte) Result {
	p, ok := v.Get(proofID)
	result := func() Result {
		if !ok {
			return ProofNotFound
		}
		if HashBytes(input) != p.InputHash {
			return InputMismatch
		}
		if HashBytes(output) != p.OutputHash {
			return OutputMismatch
		}
		if ComputeProofHash(p.AgentID, p.Timestamp, p.InputHash, p.OutputHash) != p.ProofHash {
			return ProofHashMismatch
		}
		return Valid
	}()

	v.audit.Record("proof.validated", proofID, string(result))
	return result
}
