package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// playwrightSession drives Chromium through playwright-go. The portal's
// authoring syntax (:has-text) is native to Playwright, so selectors pass
// through unchanged.
type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *playwrightPage
	once    sync.Once
}

func launchPlaywright(ctx context.Context, opts Options) (*playwrightSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	}
	if opts.Locale != "" {
		contextOpts.Locale = playwright.String(opts.Locale)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    &playwrightPage{page: page, timeout: opts.Timeout},
	}, nil
}

func (s *playwrightSession) Page() Page {
	return s.page
}

func (s *playwrightSession) Close() error {
	var errs []error
	s.once.Do(func() {
		if s.page != nil {
			errs = append(errs, s.page.page.Close())
		}
		if s.context != nil {
			errs = append(errs, s.context.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		if s.pw != nil {
			errs = append(errs, s.pw.Stop())
		}
	})
	return errors.Join(errs...)
}

// playwrightPage bounds every blocking call by the context deadline (or the
// driver timeout when there is none) and returns as soon as ctx is done.
type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

// millis converts the time left on ctx into a playwright timeout option.
func millis(ctx context.Context, def time.Duration) *float64 {
	return playwright.Float(float64(remaining(ctx, def).Milliseconds()))
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	err := await(ctx, func() error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   millis(ctx, p.timeout),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) WaitForLoadState(ctx context.Context) error {
	return await(ctx, func() error {
		return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: millis(ctx, p.timeout),
		})
	})
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := await(ctx, func() error {
		var err error
		data, err = p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: millis(ctx, p.timeout)})
		return err
	})
	return data, err
}

func (p *playwrightPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *playwrightPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrapPlaywright(handles, p.timeout), nil
}

func wrapPlaywright(handles []playwright.ElementHandle, timeout time.Duration) []Element {
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &playwrightElement{h: h, timeout: timeout})
	}
	return out
}

type playwrightElement struct {
	h       playwright.ElementHandle
	timeout time.Duration
}

func (e *playwrightElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.h.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrapPlaywright(handles, e.timeout), nil
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.h.InnerText()
}

func (e *playwrightElement) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.h.Evaluate("el => el.outerHTML")
	if err != nil {
		return "", err
	}
	html, _ := v.(string)
	return html, nil
}

func (e *playwrightElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.h.IsVisible()
}

func (e *playwrightElement) Click(ctx context.Context) error {
	return await(ctx, func() error {
		return e.h.Click(playwright.ElementHandleClickOptions{Timeout: millis(ctx, e.timeout)})
	})
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	return await(ctx, func() error {
		return e.h.Fill(value, playwright.ElementHandleFillOptions{Timeout: millis(ctx, e.timeout)})
	})
}

func (e *playwrightElement) SelectOption(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := e.h.SelectOption(playwright.SelectOptionValues{Labels: &[]string{label}})
	return err
}

func (e *playwrightElement) SetChecked(ctx context.Context, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.h.SetChecked(checked)
}

func (e *playwrightElement) Hover(ctx context.Context) error {
	return await(ctx, func() error {
		return e.h.Hover(playwright.ElementHandleHoverOptions{Timeout: millis(ctx, e.timeout)})
	})
}

func (e *playwrightElement) Box(ctx context.Context) (Box, error) {
	if err := ctx.Err(); err != nil {
		return Box{}, err
	}
	rect, err := e.h.BoundingBox()
	if err != nil {
		return Box{}, err
	}
	if rect == nil {
		return Box{}, fmt.Errorf("element is not rendered")
	}
	return Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}
