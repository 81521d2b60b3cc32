package pipeline

import "fmt"

// Phases of a run, used in PhaseError and as the phase metric label.
const (
	PhaseStage     = "stage"
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
	PhaseCommit    = "commit"
	PhaseAudit     = "audit"
)

// PhaseError is a batch-level failure. Entity is empty for failures that are
// not tied to one table, such as a snapshot commit.
type PhaseError struct {
	Entity string
	Phase  string
	Err    error
}

func (e *PhaseError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Entity, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(entity, phase string, err error) error {
	return &PhaseError{Entity: entity, Phase: phase, Err: err}
}
