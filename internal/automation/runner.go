// Package automation drives the subsidy portal's three batch workflows:
// subsidy-card expense registration, tax-invoice registration and bulk
// transfer.
//
// Every run walks the same state machine:
//
//	START → LOGIN → SELECT_PROJECT → FETCH_RECORDS → PROCESS_RECORD* → BATCH_CONFIRM → END
//
// Transfers add AWAIT_EXTERNAL_AUTH and VERIFY after the batch step, since the
// certificate prompt can only be completed by a person.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/v0xg/playbot/internal/artifact"
	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/budget"
	"github.com/v0xg/playbot/internal/config"
	"github.com/v0xg/playbot/internal/executor"
	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
	"github.com/v0xg/playbot/internal/selector"
)

// Run states, in trail order.
const (
	StateStart             = "START"
	StateLogin             = "LOGIN"
	StateSelectProject     = "SELECT_PROJECT"
	StateFetchRecords      = "FETCH_RECORDS"
	StateProcessRecord     = "PROCESS_RECORD"
	StateBatchConfirm      = "BATCH_CONFIRM"
	StateAwaitExternalAuth = "AWAIT_EXTERNAL_AUTH"
	StateVerify            = "VERIFY"
	StateEnd               = "END"
)

// Automation describes one runnable kind
type Automation struct {
	Kind        records.Kind
	Name        string
	Description string
}

// Automations lists every kind in "run all" order.
var Automations = []Automation{
	{Kind: records.Card, Name: "카드사용내역 집행등록", Description: "Registers unused subsidy-card charges as expenses and requests execution."},
	{Kind: records.Tax, Name: "전자세금계산서 집행등록", Description: "Registers pending electronic tax invoices as expenses and requests execution."},
	{Kind: records.Transfer, Name: "집행이체", Description: "Selects pending transfers and starts a bulk transfer; certificate authentication is done by the operator."},
}

// Lookup returns the automation for kind
func Lookup(kind records.Kind) (Automation, bool) {
	for _, a := range Automations {
		if a.Kind == kind {
			return a, true
		}
	}
	return Automation{}, false
}

// LaunchFunc opens the browser session for one run.
type LaunchFunc func(ctx context.Context) (browser.Session, error)

// Launcher launches the driver configured in cfg.
func Launcher(cfg *config.Config) LaunchFunc {
	return func(ctx context.Context) (browser.Session, error) {
		return browser.Launch(ctx, browser.Options{
			Driver:     cfg.Browser.Driver,
			Headless:   cfg.Browser.Headless,
			SlowMo:     cfg.Browser.SlowMo,
			Width:      cfg.Browser.Width,
			Height:     cfg.Browser.Height,
			Locale:     cfg.Browser.Locale,
			Timeout:    cfg.Portal.Timeout,
			ProfileDir: cfg.Browser.ProfileDir,
		})
	}
}

// Options tunes a Runner
type Options struct {
	// AutoAuth skips the certificate wait. Only test portals complete
	// authentication on their own.
	AutoAuth     bool
	PollInterval time.Duration // selector retry interval
	AuthPoll     time.Duration // certificate dialog probe interval
}

// Runner executes automations. Each run gets its own browser session,
// which is closed on every exit path.
type Runner struct {
	cfg    *config.Config
	launch LaunchFunc
	logger *slog.Logger
	opts   Options
}

// NewRunner creates a runner. launch may be nil to use the configured driver.
func NewRunner(cfg *config.Config, launch LaunchFunc, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if launch == nil {
		launch = Launcher(cfg)
	}
	if opts.AuthPoll <= 0 {
		opts.AuthPoll = 500 * time.Millisecond
	}
	return &Runner{cfg: cfg, launch: launch, logger: logger, opts: opts}
}

// Run executes one automation and always returns a finished result. The
// result is also written to the configured results directory.
func (r *Runner) Run(ctx context.Context, kind records.Kind) report.Result {
	agg := report.New(string(kind), r.logger)
	res := r.run(ctx, kind, agg)

	if dir := r.cfg.Output.ResultsDir; dir != "" {
		if path, err := report.Save(dir, res); err != nil {
			agg.Logger().Warn("result not saved", "error", err)
		} else {
			agg.Logger().Info("result saved", "path", path)
		}
	}
	return res
}

// RunAll runs every automation in order, each with its own session. It stops
// starting new runs once ctx is done.
func (r *Runner) RunAll(ctx context.Context) []report.Result {
	var out []report.Result
	for _, a := range Automations {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.Run(ctx, a.Kind))
	}
	return out
}

func (r *Runner) run(ctx context.Context, kind records.Kind, agg *report.Aggregator) (res report.Result) {
	logger := agg.Logger()
	defer func() {
		if v := recover(); v != nil {
			logger.Error("automation panicked", "panic", v, "stack", string(debug.Stack()))
			res = agg.Finish(report.StatusError, fmt.Errorf("panic: %v", v))
		}
	}()

	agg.Enter(StateStart)
	a, ok := Lookup(kind)
	if !ok {
		return agg.Finish(report.StatusError, fmt.Errorf("unknown automation: %s", kind))
	}
	logger.Info("automation started", "name", a.Name)

	sess, err := r.launch(ctx)
	if err != nil {
		return agg.Finish(report.StatusError, fmt.Errorf("launch browser: %w", err))
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("browser close failed", "error", err)
		}
	}()

	p := r.newPortal(sess.Page(), agg)
	status, err := p.run(ctx, kind)
	if err != nil {
		status = statusOf(err)
		if ctx.Err() != nil {
			status = report.StatusError
		}
	}
	return agg.Finish(status, err)
}

func (r *Runner) newPortal(page browser.Page, agg *report.Aggregator) *portal {
	logger := agg.Logger()
	resolver := selector.NewResolver(logger)
	shots := artifact.NewStore(r.cfg.Output.ScreenshotsDir)
	exec := executor.New(page, resolver, shots, logger, executor.Options{
		SettleDelay:  r.cfg.Automation.SettleDelay,
		StepTimeout:  r.cfg.Automation.StepTimeout,
		PollInterval: r.opts.PollInterval,
		Variables:    r.cfg.Variables(),
	})
	return &portal{
		cfg:       r.cfg,
		opts:      r.opts,
		page:      page,
		exec:      exec,
		resolver:  resolver,
		extractor: records.NewExtractor(logger),
		mapper:    budget.NewMapper(r.cfg.BudgetMapping.Rules, r.cfg.BudgetMapping.Default),
		shots:     shots,
		agg:       agg,
		logger:    logger,
	}
}

func (p *portal) run(ctx context.Context, kind records.Kind) (report.Status, error) {
	p.agg.Enter(StateLogin)
	if err := p.login(ctx); err != nil {
		return "", err
	}
	p.agg.Enter(StateSelectProject)
	if err := p.selectProject(ctx); err != nil {
		return "", err
	}

	switch kind {
	case records.Card:
		return p.runBatch(ctx, cardFlow{})
	case records.Tax:
		return p.runBatch(ctx, taxFlow{})
	default:
		return p.runTransfer(ctx)
	}
}
