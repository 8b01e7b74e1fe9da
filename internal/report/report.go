// Package report aggregates per-record outcomes into a run result.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal (or current) state of a run.
type Status string

const (
	StatusStarted             Status = "STARTED"
	StatusLoginFailed         Status = "LOGIN_FAILED"
	StatusProjectSelectFailed Status = "PROJECT_SELECT_FAILED"
	StatusNoRecords           Status = "NO_RECORDS"
	StatusNoSelection         Status = "NO_SELECTION"
	StatusTransferInitFailed  Status = "TRANSFER_INIT_FAILED"
	StatusAuthFailed          Status = "AUTH_FAILED"
	StatusCompleted           Status = "COMPLETED"
	StatusError               Status = "ERROR"
)

// OK reports whether the status counts as a successful run. NO_RECORDS is
// success-shaped: there was nothing to do.
func (s Status) OK() bool {
	return s == StatusCompleted || s == StatusNoRecords
}

// Outcome of one processed record
type Outcome string

const (
	Success Outcome = "SUCCESS"
	Failure Outcome = "FAILURE"
)

// Item is the logged outcome of one record.
type Item struct {
	Key        string  `json:"key,omitempty"`
	Label      string  `json:"label"`
	Outcome    Outcome `json:"outcome"`
	Message    string  `json:"message,omitempty"`
	Screenshot string  `json:"screenshot,omitempty"`
}

// Result is the structured outcome of one automation run.
type Result struct {
	Kind        string    `json:"kind"`
	ExecutionID string    `json:"execution_id"`
	Status      Status    `json:"status"`
	Processed   int       `json:"processed"`
	Success     int       `json:"success"`
	Failure     int       `json:"failure"`
	Selected    int       `json:"selected,omitempty"`
	Transferred int       `json:"transferred,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	Trail       []string  `json:"trail"`
	Items       []Item    `json:"items,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Aggregator accumulates a Result. Counters only grow, and once Finish is
// called the result is frozen. It is not safe for concurrent use.
type Aggregator struct {
	res    Result
	done   bool
	logger *slog.Logger
	now    func() time.Time
}

// New starts a result for kind with a fresh execution id. The returned
// aggregator's Logger carries that id on every record.
func New(kind string, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &Aggregator{now: time.Now}
	a.res = Result{
		Kind:        kind,
		ExecutionID: uuid.NewString(),
		Status:      StatusStarted,
		StartedAt:   a.now(),
		Trail:       []string{},
	}
	a.logger = logger.With("kind", kind, "execution_id", a.res.ExecutionID)
	return a
}

// ExecutionID returns the run's id
func (a *Aggregator) ExecutionID() string {
	return a.res.ExecutionID
}

// Logger returns the run-scoped logger
func (a *Aggregator) Logger() *slog.Logger {
	return a.logger
}

// Enter records a state transition
func (a *Aggregator) Enter(state string) {
	if a.done {
		return
	}
	a.res.Trail = append(a.res.Trail, state)
	a.logger.Debug("state", "state", state)
}

// Record counts one processed record.
func (a *Aggregator) Record(item Item) {
	if a.done {
		return
	}
	a.res.Processed++
	if item.Outcome == Success {
		a.res.Success++
		a.logger.Info("item succeeded", "item", item.Label, "key", item.Key, "message", item.Message)
	} else {
		item.Outcome = Failure
		a.res.Failure++
		a.logger.Error("item failed", "item", item.Label, "key", item.Key, "message", item.Message)
	}
	a.res.Items = append(a.res.Items, item)
}

// Warn attaches an advisory message
func (a *Aggregator) Warn(msg string) {
	if a.done {
		return
	}
	a.res.Warnings = append(a.res.Warnings, msg)
	a.logger.Warn(msg)
}

// SetSelected records how many transfer rows were ticked.
func (a *Aggregator) SetSelected(n int) {
	if !a.done && n > a.res.Selected {
		a.res.Selected = n
	}
}

// SetTransferred records how many result rows the portal reported.
func (a *Aggregator) SetTransferred(n int) {
	if !a.done && n > a.res.Transferred {
		a.res.Transferred = n
	}
}

// Finish freezes the result with a terminal status. Later calls return the
// frozen result unchanged.
func (a *Aggregator) Finish(status Status, err error) Result {
	if a.done {
		return a.Result()
	}
	a.done = true
	a.res.Status = status
	a.res.FinishedAt = a.now()
	if err != nil {
		a.res.Error = err.Error()
	}

	attrs := []any{
		"status", status,
		"processed", a.res.Processed,
		"success", a.res.Success,
		"failure", a.res.Failure,
		"elapsed", a.res.FinishedAt.Sub(a.res.StartedAt).Round(time.Millisecond),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if status.OK() {
		a.logger.Info("run finished", attrs...)
	} else {
		a.logger.Warn("run finished", attrs...)
	}
	return a.Result()
}

// Result returns a copy of the current result.
func (a *Aggregator) Result() Result {
	r := a.res
	r.Trail = slices.Clone(a.res.Trail)
	r.Items = slices.Clone(a.res.Items)
	r.Warnings = slices.Clone(a.res.Warnings)
	return r
}

// Save writes r as <dir>/<kind>-<execution_id>.json.
func Save(dir string, r Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", r.Kind, r.ExecutionID))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}
