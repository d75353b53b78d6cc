// Package audit records an append-only history of control-plane
// transitions for operator visibility. It is purely observational: nothing
// in the core reads the audit log back to make a decision, and a failure to
// record an event never fails the operation that triggered it.
package audit

import "time"

// Event is a single recorded control-plane transition.
type Event struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	OccurredAt time.Time `gorm:"not null;index"`
	Kind       string    `gorm:"not null;index"` // e.g. "agent.registered", "job.routed"
	SubjectID  string    `gorm:"not null;index"`
	Detail     string    `gorm:"type:text"`
}

// Recorder is the narrow capability every control-plane component depends
// on to log its own transitions. A no-op implementation is provided by
// NopRecorder for components under test that don't care about auditing.
type Recorder interface {
	Record(kind, subjectID, detail string)
}

// NopRecorder discards every event. Useful in unit tests that exercise a
// single component in isolation.
type NopRecorder struct{}

func (NopRecorder) Record(kind, subjectID, detail string) {}
