// Package executor runs playbook steps against a live page.
//
// A run is fail-fast: the first failed step aborts the playbook, because
// later steps depend on the DOM state produced by earlier ones.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"strconv"
	"time"

	"github.com/v0xg/playbot/internal/artifact"
	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/playbook"
	"github.com/v0xg/playbot/internal/selector"
)

// Options configures execution behavior
type Options struct {
	SettleDelay  time.Duration // pause after state-changing actions
	StepTimeout  time.Duration // default when a step has no timeout
	PollInterval time.Duration // resolver retry interval
	Record       bool          // capture a frame after every step
	Variables    map[string]string
}

const defaultWait = time.Second

func (o *Options) applyDefaults() {
	if o.StepTimeout <= 0 {
		o.StepTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
}

// Executor drives one page. It is not safe for concurrent use; a session
// runs one step at a time.
type Executor struct {
	page     browser.Page
	resolver *selector.Resolver
	shots    *artifact.Store
	logger   *slog.Logger
	opts     Options
}

// New creates an executor. shots may be nil to disable failure screenshots.
func New(page browser.Page, resolver *selector.Resolver, shots *artifact.Store, logger *slog.Logger, opts Options) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if resolver == nil {
		resolver = selector.NewResolver(logger)
	}
	opts.applyDefaults()
	return &Executor{page: page, resolver: resolver, shots: shots, logger: logger, opts: opts}
}

// Run executes the playbook's steps in order and stops at the first failure.
// If the playbook has a start URL it is loaded first, as step "start_url".
func (e *Executor) Run(ctx context.Context, pb *playbook.Playbook) *Report {
	report := &Report{PlaybookID: pb.ID, State: RunRunning}
	logger := e.logger.With("playbook", pb.ID)
	logger.Info("playbook started", "steps", len(pb.Steps))

	steps := pb.Steps
	if pb.StartURL != "" {
		start := playbook.Step{ID: "start_url", Type: playbook.Navigate, Message: "Open " + pb.StartURL, URL: pb.StartURL}
		steps = append([]playbook.Step{start}, steps...)
	}

	for _, step := range steps {
		res := e.step(ctx, step, report)
		report.Steps = append(report.Steps, res)
		if !res.OK() {
			report.State = RunAborted
			report.FailedStep = step.ID
			logger.Error("playbook aborted", "step", step.ID, "error", res.Err)
			return report
		}
	}

	report.State = RunCompleted
	logger.Info("playbook completed", "steps", len(report.Steps))
	return report
}

// Step executes a single step outside of a playbook run.
func (e *Executor) Step(ctx context.Context, step playbook.Step) StepResult {
	return e.step(ctx, step, nil)
}

func (e *Executor) step(ctx context.Context, step playbook.Step, report *Report) (res StepResult) {
	started := time.Now()
	res = StepResult{StepID: step.ID, Type: step.Type, State: StepPending}
	logger := e.logger.With("step", step.ID, "type", step.Type)

	var box browser.Box
	defer func() {
		if r := recover(); r != nil {
			res.State = StepFailed
			res.Err = &StepError{StepID: step.ID, Type: step.Type, Cause: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(started)

		if res.State == StepFailed {
			res.Error = res.Err.Error()
			logger.Error("step failed", "message", step.Message, "error", res.Err)
			// Taken even after an interrupt, but never allowed to hang teardown.
			shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if path, err := e.shots.Save(shotCtx, e.page, artifact.Name("failed", step.ID)); err != nil {
				logger.Warn("failure screenshot not saved", "error", err)
			} else if path != "" {
				res.Screenshot = path
			}
		} else {
			logger.Debug("step succeeded", "selector", res.Selector, "elapsed", res.Duration)
		}

		if report != nil && e.opts.Record {
			if frame, err := e.capture(ctx, step, box, res.OK()); err == nil {
				report.Frames = append(report.Frames, frame)
			} else {
				logger.Debug("frame not captured", "error", err)
			}
		}
	}()

	res.State = StepRunning
	logger.Info(step.Message)

	step.Value = playbook.Interpolate(step.Value, e.opts.Variables)
	step.URL = playbook.Interpolate(step.URL, e.opts.Variables)

	var err error
	box, err = e.perform(ctx, step, &res)
	if err != nil {
		res.State = StepFailed
		res.Err = &StepError{StepID: step.ID, Type: step.Type, Cause: err}
		return res
	}
	res.State = StepSucceeded
	return res
}

// perform runs the step's action and returns the bounding box of the element
// it touched, if any.
func (e *Executor) perform(ctx context.Context, step playbook.Step, res *StepResult) (browser.Box, error) {
	timeout := step.TimeoutOr(e.opts.StepTimeout)

	switch step.Type {
	case playbook.Navigate:
		return browser.Box{}, e.navigate(ctx, step.Target(), timeout)

	case playbook.Wait:
		if step.Selector == nil {
			return browser.Box{}, sleep(ctx, waitDuration(step))
		}
		found, err := e.Resolve(ctx, *step.Selector, selector.Read, timeout)
		if err != nil {
			return browser.Box{}, err
		}
		res.Selector, res.Healed = found.Selector, found.Healed()
		return elementBox(ctx, found.Element), nil

	case playbook.Screenshot:
		name := step.Value
		if name == "" {
			name = step.ID
		}
		path, err := e.shots.Save(ctx, e.page, name)
		if err != nil {
			e.logger.Warn("screenshot not saved", "step", step.ID, "error", err)
		}
		res.Screenshot = path
		return browser.Box{}, nil
	}

	if step.Selector == nil {
		return browser.Box{}, fmt.Errorf("%s step has no selector", step.Type)
	}
	found, err := e.Resolve(ctx, *step.Selector, selector.Interact, timeout)
	if err != nil {
		return browser.Box{}, err
	}
	res.Selector, res.Healed = found.Selector, found.Healed()
	box := elementBox(ctx, found.Element)

	el := found.Element
	switch step.Type {
	case playbook.Click:
		err = el.Click(ctx)
	case playbook.Fill:
		err = el.Fill(ctx, step.Value)
	case playbook.Select:
		err = el.SelectOption(ctx, step.Value)
	case playbook.Check:
		err = el.SetChecked(ctx, true)
	case playbook.Uncheck:
		err = el.SetChecked(ctx, false)
	case playbook.Hover:
		err = el.Hover(ctx)
	default:
		err = fmt.Errorf("unknown step type: %s", step.Type)
	}
	if err != nil {
		return box, fmt.Errorf("%s %s: %w", step.Type, found.Selector, err)
	}

	switch step.Type {
	case playbook.Click, playbook.Select, playbook.Check, playbook.Uncheck:
		// Portal rendering lags behind the event that triggered it.
		if err := sleep(ctx, e.opts.SettleDelay); err != nil {
			return box, err
		}
	}
	return box, nil
}

// Resolve retries selector resolution until it succeeds or timeout elapses.
// Errors other than a failed resolution are returned immediately.
func (e *Executor) Resolve(ctx context.Context, spec selector.Spec, mode selector.Mode, timeout time.Duration) (selector.Resolution, error) {
	deadline := time.Now().Add(timeout)
	for {
		found, err := e.resolver.Resolve(ctx, e.page, spec, mode)
		if err == nil || !errors.Is(err, selector.ErrNotResolved) {
			return found, err
		}
		if time.Until(deadline) < e.opts.PollInterval {
			return found, err
		}
		if serr := sleep(ctx, e.opts.PollInterval); serr != nil {
			return found, serr
		}
	}
}

func (e *Executor) navigate(ctx context.Context, url string, timeout time.Duration) error {
	if url == "" {
		return errors.New("navigate step has no url")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.page.Goto(ctx, url); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	if err := e.page.WaitForLoadState(ctx); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	return nil
}

// Settle waits for the page to finish loading, bounded by the step timeout.
func (e *Executor) Settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()
	return e.page.WaitForLoadState(ctx)
}

// Pause sleeps for the settle delay.
func (e *Executor) Pause(ctx context.Context) error {
	return sleep(ctx, e.opts.SettleDelay)
}

func (e *Executor) capture(ctx context.Context, step playbook.Step, box browser.Box, ok bool) (Frame, error) {
	data, err := e.page.Screenshot(ctx)
	if err != nil {
		return Frame{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return Frame{StepID: step.ID, Message: step.Message, Image: img, Box: box, OK: ok}, nil
}

func elementBox(ctx context.Context, el browser.Element) browser.Box {
	box, err := el.Box(ctx)
	if err != nil {
		return browser.Box{}
	}
	return box
}

// waitDuration is the pause of a wait step without a selector: its timeout,
// else a millisecond count in value, else one second.
func waitDuration(step playbook.Step) time.Duration {
	if step.Timeout > 0 {
		return step.TimeoutOr(defaultWait)
	}
	if ms, err := strconv.Atoi(step.Value); err == nil && ms >= 0 {
		return time.Duration(min(ms, playbook.MaxTimeout)) * time.Millisecond
	}
	return defaultWait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
