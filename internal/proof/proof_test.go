package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arkeep-io/krra/internal/audit"
)

func registerValidProof(v *Validator, proofID string, input, output []byte) Proof {
	inputHash := HashBytes(input)
	outputHash := HashBytes(output)
	p := Proof{
		ID:         proofID,
		AgentID:    "agent-1",
		Timestamp:  1700000000,
		InputHash:  inputHash,
		OutputHash: outputHash,
	}
	p.ProofHash = ComputeProofHash(p.AgentID, p.Timestamp, p.InputHash, p.OutputHash)
	v.Register(p)
	return p
}

func TestValidateReturnsValidForMatchingProof(t *testing.T) {
	v := New(audit.NopRecorder{})
	input, output := []byte("in"), []byte("out")
	registerValidProof(v, "proof-1", input, output)

	assert.Equal(t, Valid, v.Validate("proof-1", input, output))
}

func TestValidateReturnsProofNotFound(t *testing.T) {
	v := New(audit.NopRecorder{})
	assert.Equal(t, ProofNotFound, v.Validate("missing", []byte("in"), []byte("out")))
}

func TestValidateShortCircuitsOnInputMismatch(t *testing.T) {
	v := New(audit.NopRecorder{})
	registerValidProof(v, "proof-1", []byte("in"), []byte("out"))

	assert.Equal(t, InputMismatch, v.Validate("proof-1", []byte("wrong-input"), []byte("out")))
}

func TestValidateShortCircuitsOnOutputMismatch(t *testing.T) {
	v := New(audit.NopRecorder{})
	registerValidProof(v, "proof-1", []byte("in"), []byte("out"))

	assert.Equal(t, OutputMismatch, v.Validate("proof-1", []byte("in"), []byte("wrong-output")))
}

func TestValidateDetectsTamperedProofHash(t *testing.T) {
	v := New(audit.NopRecorder{})
	input, output := []byte("in"), []byte("out")
	p := registerValidProof(v, "proof-1", input, output)

	p.ProofHash = "tampered"
	v.Register(p)

	assert.Equal(t, ProofHashMismatch, v.Validate("proof-1", input, output))
}

func TestRegisterOverwritesExistingProofID(t *testing.T) {
	v := New(audit.NopRecorder{})
	registerValidProof(v, "proof-1", []byte("in-a"), []byte("out-a"))
	registerValidProof(v, "proof-1", []byte("in-b"), []byte("out-b"))

	got, ok := v.Get("proof-1")
	assert.True(t, ok)
	assert.Equal(t, HashBytes([]byte("in-b")), got.InputHash)
}

func TestComputeProofHashIsDeterministic(t *testing.T) {
	h1 := ComputeProofHash("agent-1", 1700000000, "in-hash", "out-hash")
	h2 := ComputeProofHash("agent-1", 1700000000, "in-hash", "out-hash")
	assert.Equal(t, h1, h2)

	h3 := ComputeProofHash("agent-2", 1700000000, "in-hash", "out-hash")
	assert.NotEqual(t, h1, h3)
}
