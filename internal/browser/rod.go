package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodSession wraps the Rod browser and page for one automation run
type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rodPage
	once     sync.Once

	keepProfile bool // the user data dir belongs to the operator
}

func launchRod(ctx context.Context, opts Options) (*rodSession, error) {
	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)

	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	if opts.Locale != "" {
		l = l.Set("lang", opts.Locale)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	s := &rodSession{browser: b, launcher: l, keepProfile: opts.ProfileDir != ""}
	if err := b.Connect(); err != nil {
		s.kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = &rodPage{page: page, timeout: opts.Timeout}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	return s, nil
}

// Page returns the session page
func (s *rodSession) Page() Page {
	return s.page
}

// Close cleans up browser resources. The browser is bound to the run
// context, so teardown rebinds it to one an interrupt cannot cancel.
func (s *rodSession) Close() error {
	var err error
	s.once.Do(func() {
		err = shutdown(func(ctx context.Context) error {
			if s.page != nil && s.page.page != nil {
				_ = s.page.page.Context(ctx).Close()
			}
			return s.browser.Context(ctx).Close()
		}, s.kill)
		if err == nil {
			s.cleanup()
		}
	})
	return err
}

// kill stops the Chromium process when the protocol close did not.
func (s *rodSession) kill() {
	s.launcher.Kill()
	s.cleanup()
}

// cleanup removes the launcher's temporary profile once Chromium has exited.
func (s *rodSession) cleanup() {
	if s.keepProfile {
		return
	}
	done := make(chan struct{})
	go func() {
		s.launcher.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeTimeout):
	}
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) bound(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.timeout)
}

func (p *rodPage) Goto(ctx context.Context, url string) error {
	if err := p.bound(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitForLoadState waits for the load event, then for the network to go idle.
// The idle wait is capped so persistent connections (polling, websockets) can't hang it.
func (p *rodPage) WaitForLoadState(ctx context.Context) error {
	page := p.page.Context(ctx)
	if err := page.Timeout(p.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return ctx.Err()
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	quality := 90
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatPng,
		Quality: &quality,
	})
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	return queryRod(ctx, selector, func(css string) (rod.Elements, error) {
		return p.page.Context(ctx).Elements(css)
	})
}

// queryRod runs each alternative of a selector list and applies the
// :has-text() filter that CDP selectors don't understand.
func queryRod(ctx context.Context, selector string, find func(css string) (rod.Elements, error)) ([]Element, error) {
	if !HasTextFilter(selector) {
		els, err := find(selector)
		if err != nil {
			return nil, err
		}
		return wrapRod(els), nil
	}

	var out []Element
	for _, part := range SplitList(selector) {
		ts := parseTextSelector(part)
		els, err := find(ts.CSS)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			if ts.Text != "" {
				text, err := el.Context(ctx).Text()
				if err != nil || !strings.Contains(text, ts.Text) {
					continue
				}
			}
			out = append(out, &rodElement{el: el})
		}
	}
	return out, nil
}

func wrapRod(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	return queryRod(ctx, selector, func(css string) (rod.Elements, error) {
		return e.el.Context(ctx).Elements(css)
	})
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) HTML(ctx context.Context) (string, error) {
	return e.el.Context(ctx).HTML()
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (e *rodElement) SelectOption(ctx context.Context, label string) error {
	return e.el.Context(ctx).Select([]string{label}, true, rod.SelectorTypeText)
}

func (e *rodElement) SetChecked(ctx context.Context, checked bool) error {
	el := e.el.Context(ctx)
	prop, err := el.Property("checked")
	if err != nil {
		return err
	}
	if prop.Bool() == checked {
		return nil
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *rodElement) Box(ctx context.Context) (Box, error) {
	shape, err := e.el.Context(ctx).Shape()
	if err != nil {
		return Box{}, err
	}
	if len(shape.Quads) == 0 {
		return Box{}, fmt.Errorf("element has no shape")
	}

	quad := shape.Quads[0]
	minX, minY := quad[0], quad[1]
	maxX, maxY := quad[0], quad[1]
	for i := 0; i+1 < len(quad); i += 2 {
		minX, maxX = min(minX, quad[i]), max(maxX, quad[i])
		minY, maxY = min(minY, quad[i+1]), max(maxY, quad[i+1])
	}
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, nil
}
