package automation

import (
	"errors"
	"fmt"

	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
)

// Run-aborting failures. Each maps to its own terminal status.
var (
	ErrLogin         = errors.New("login failed")
	ErrProjectSelect = errors.New("project selection failed")
	ErrTransferInit  = errors.New("transfer initiation failed")
	ErrAuthTimeout   = errors.New("certificate authentication timed out")
)

// BatchConfirmError reports a failed bulk confirmation. It is attached to the
// result as a warning; records that already succeeded stay successful.
type BatchConfirmError struct {
	Kind  records.Kind
	Cause error
}

func (e *BatchConfirmError) Error() string {
	return fmt.Sprintf("%s batch confirm failed: %v", e.Kind, e.Cause)
}

func (e *BatchConfirmError) Unwrap() error {
	return e.Cause
}

// statusOf maps a run-aborting error to the run's terminal status.
func statusOf(err error) report.Status {
	switch {
	case errors.Is(err, ErrLogin):
		return report.StatusLoginFailed
	case errors.Is(err, ErrProjectSelect):
		return report.StatusProjectSelectFailed
	case errors.Is(err, ErrTransferInit):
		return report.StatusTransferInitFailed
	case errors.Is(err, ErrAuthTimeout):
		return report.StatusAuthFailed
	default:
		return report.StatusError
	}
}
