package executor

import (
	"fmt"
	"image"
	"time"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/playbook"
)

// StepState is the lifecycle of a single step
type StepState string

const (
	StepPending   StepState = "PENDING"
	StepRunning   StepState = "RUNNING"
	StepSucceeded StepState = "SUCCEEDED"
	StepFailed    StepState = "FAILED"
)

// RunState is the lifecycle of a playbook run
type RunState string

const (
	RunRunning   RunState = "RUNNING"
	RunCompleted RunState = "COMPLETED"
	RunAborted   RunState = "ABORTED"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	StepID     string            `json:"step_id"`
	Type       playbook.StepType `json:"type"`
	State      StepState         `json:"state"`
	Selector   string            `json:"selector,omitempty"` // candidate that matched
	Healed     bool              `json:"healed,omitempty"`
	Screenshot string            `json:"screenshot,omitempty"`
	Error      string            `json:"error,omitempty"`
	Duration   time.Duration     `json:"duration"`

	Err error `json:"-"`
}

// OK reports whether the step succeeded
func (r StepResult) OK() bool {
	return r.State == StepSucceeded
}

// Report summarizes a playbook run
type Report struct {
	PlaybookID string       `json:"playbook_id"`
	State      RunState     `json:"state"`
	Steps      []StepResult `json:"steps"`
	FailedStep string       `json:"failed_step,omitempty"`
	Frames     []Frame      `json:"-"`
}

// OK reports whether every step succeeded
func (r *Report) OK() bool {
	return r.State == RunCompleted
}

// Err returns the error of the step that aborted the run, if any.
func (r *Report) Err() error {
	for _, s := range r.Steps {
		if s.State == StepFailed {
			return s.Err
		}
	}
	if r.State == RunAborted {
		return fmt.Errorf("playbook %s aborted", r.PlaybookID)
	}
	return nil
}

// StepError wraps the cause of a failed step. The cause is preserved for
// errors.Is/As, so a resolution failure still matches selector.ErrNotResolved.
type StepError struct {
	StepID string
	Type   playbook.StepType
	Cause  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.StepID, e.Type, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// Frame is one recorded step: the page after the step ran, and where the
// step's element was.
type Frame struct {
	StepID  string
	Message string
	Image   image.Image
	Box     browser.Box // zero when the step has no element
	OK      bool
}
