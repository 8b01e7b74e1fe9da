package browser

import (
	"context"
	"fmt"
	"time"
)

// Querier finds elements matching a selector. Both pages and elements are
// queriers, so lookups can be scoped to a table row.
type Querier interface {
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Element is a handle to a live DOM node. Handles go stale as soon as the
// portal re-renders, so callers should not keep them across steps.
type Element interface {
	Querier
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error) // outer HTML
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	SelectOption(ctx context.Context, label string) error
	SetChecked(ctx context.Context, checked bool) error
	Hover(ctx context.Context) error
	Box(ctx context.Context) (Box, error)
}

// Page is the single tab an automation drives.
type Page interface {
	Querier
	Goto(ctx context.Context, url string) error
	WaitForLoadState(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Session owns a browser process and its page. Close is safe to call more than once.
type Session interface {
	Page() Page
	Close() error
}

// Box is an element's bounding rectangle in viewport pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Options configures browser launch
type Options struct {
	Driver     string // rod (default) or playwright
	Headless   bool
	SlowMo     time.Duration
	Width      int
	Height     int
	Locale     string
	Timeout    time.Duration // default timeout for driver operations
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
}

// Launch starts a browser session with the configured driver
func Launch(ctx context.Context, opts Options) (Session, error) {
	if opts.Width == 0 {
		opts.Width = 1920
	}
	if opts.Height == 0 {
		opts.Height = 1080
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	switch opts.Driver {
	case "", "rod":
		return launchRod(ctx, opts)
	case "playwright":
		return launchPlaywright(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown browser driver: %s (supported: rod, playwright)", opts.Driver)
	}
}

// closeTimeout bounds session teardown.
const closeTimeout = 10 * time.Second

// shutdown runs closeFn with a fresh context, so teardown still works after
// the run's context was cancelled. kill is called when closeFn fails.
func shutdown(closeFn func(ctx context.Context) error, kill func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := closeFn(ctx)
	if err != nil && kill != nil {
		kill()
	}
	return err
}

// remaining is the time left before ctx's deadline, or def when ctx has
// none or def is sooner. It never returns less than a millisecond.
func remaining(ctx context.Context, def time.Duration) time.Duration {
	d := def
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); d <= 0 || left < d {
			d = left
		}
	}
	return max(d, time.Millisecond)
}

// await runs fn and returns its error, or ctx's error as soon as ctx is
// done. An abandoned fn keeps running until the driver gives up on it.
func await(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
