// Package browsertest provides an in-memory page for exercising code that
// drives a browser.Page without launching Chromium.
//
// Selectors are matched literally: an element registered under
// `button:has-text("저장")` is returned only for that exact selector string.
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/v0xg/playbot/internal/browser"
)

// Page is a fake browser.Page backed by a selector-keyed element registry.
type Page struct {
	mu      sync.Mutex
	dom     map[string][]*Element
	invalid map[string]bool

	Source  string // returned by HTML
	URL     string
	Visited []string
	Loads   int
	Shots   int
	Queries []string

	GotoErr  error
	ShotErr  error
	OnGoto   func(url string)
	OnLoad   func()
	LoadWait func(ctx context.Context) error
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		dom:     make(map[string][]*Element),
		invalid: make(map[string]bool),
	}
}

// Add appends elements under selector.
func (p *Page) Add(selector string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dom[selector] = append(p.dom[selector], els...)
	return p
}

// Set replaces the elements under selector.
func (p *Page) Set(selector string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dom[selector] = els
	return p
}

// Remove drops every element under selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dom, selector)
}

// Invalid makes QueryAll fail for selector, as a driver does for a syntax error.
func (p *Page) Invalid(selector string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid[selector] = true
	return p
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries = append(p.Queries, selector)
	if p.invalid[selector] {
		return nil, fmt.Errorf("invalid selector: %s", selector)
	}
	return wrap(p.dom[selector]), nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.mu.Lock()
	p.URL = url
	p.Visited = append(p.Visited, url)
	p.mu.Unlock()
	if p.OnGoto != nil {
		p.OnGoto(url)
	}
	return nil
}

func (p *Page) WaitForLoadState(ctx context.Context) error {
	if p.LoadWait != nil {
		if err := p.LoadWait(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Loads++
	p.mu.Unlock()
	if p.OnLoad != nil {
		p.OnLoad()
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ShotErr != nil {
		return nil, p.ShotErr
	}
	p.mu.Lock()
	p.Shots++
	p.mu.Unlock()
	return PNG(4, 4), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.Source, ctx.Err()
}

// Session is a fake browser.Session around a Page.
type Session struct {
	P        *Page
	Closes   int
	CloseErr error
}

var _ browser.Session = (*Session)(nil)

// NewSession wraps page, creating one when nil.
func NewSession(page *Page) *Session {
	if page == nil {
		page = NewPage()
	}
	return &Session{P: page}
}

func (s *Session) Page() browser.Page { return s.P }

func (s *Session) Close() error {
	s.Closes++
	return s.CloseErr
}

// Element is a fake DOM node.
type Element struct {
	TextValue string
	OuterHTML string
	Hidden    bool
	Rect      browser.Box
	Children  map[string][]*Element

	Value    string
	Selected string
	Checked  bool
	Clicks   int
	Hovers   int

	ClickErr error
	OnClick  func()
	OnFill   func(value string)
}

var _ browser.Element = (*Element)(nil)

// Text returns a visible element with the given text.
func Text(s string) *Element {
	return &Element{TextValue: s, Rect: browser.Box{X: 10, Y: 10, Width: 100, Height: 20}}
}

// Hidden returns an element that is attached but not visible.
func Hidden(s string) *Element {
	el := Text(s)
	el.Hidden = true
	return el
}

// Row returns an element whose outer HTML is the given markup, for record extraction.
func Row(html string) *Element {
	el := Text("")
	el.OuterHTML = html
	return el
}

// With registers children under selector and returns the element.
func (e *Element) With(selector string, children ...*Element) *Element {
	if e.Children == nil {
		e.Children = make(map[string][]*Element)
	}
	e.Children[selector] = append(e.Children[selector], children...)
	return e
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wrap(e.Children[selector]), nil
}

func (e *Element) Text(ctx context.Context) (string, error)  { return e.TextValue, ctx.Err() }
func (e *Element) HTML(ctx context.Context) (string, error)  { return e.OuterHTML, ctx.Err() }
func (e *Element) Visible(ctx context.Context) (bool, error) { return !e.Hidden, ctx.Err() }

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Value = value
	if e.OnFill != nil {
		e.OnFill(value)
	}
	return nil
}

func (e *Element) SelectOption(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Selected = label
	return nil
}

func (e *Element) SetChecked(ctx context.Context, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Checked = checked
	return nil
}

func (e *Element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Hovers++
	return nil
}

func (e *Element) Box(ctx context.Context) (browser.Box, error) {
	return e.Rect, ctx.Err()
}

func wrap(els []*Element) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}

// PNG encodes a solid w x h image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
