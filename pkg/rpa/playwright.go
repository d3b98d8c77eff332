package rpa

import (
	"fmt"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

// The single production implementation of the engine/page/element interfaces,
// backed by playwright-go driving Chromium through a persistent context. The
// on-disk profile keeps cookies across restarts so an operator login survives
// process restarts.

type playwrightEngine struct {
	pw *playwright.Playwright
}

func newPlaywrightEngine() (engine, error) {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return nil, fmt.Errorf("install browser runtime: %w", err)
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &playwrightEngine{pw: pw}, nil
}

func (e *playwrightEngine) Launch(profileDir string, headless bool) (browserContext, error) {
	ctx, err := e.pw.Chromium.LaunchPersistentContext(profileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(headless),
			// The remote front end degrades some flows when it detects
			// automation.
			Args: []string{"--disable-blink-features=AutomationControlled"},
		})
	if err != nil {
		return nil, err
	}
	return &playwrightContext{ctx: ctx}, nil
}

func (e *playwrightEngine) Stop() error {
	return e.pw.Stop()
}

type playwrightContext struct {
	ctx playwright.BrowserContext
}

func (c *playwrightContext) Pages() []page {
	raw := c.ctx.Pages()
	pages := make([]page, len(raw))
	for i, p := range raw {
		pages[i] = &playwrightPage{pg: p}
	}
	return pages
}

func (c *playwrightContext) NewPage() (page, error) {
	pg, err := c.ctx.NewPage()
	if err != nil {
		return nil, err
	}
	return &playwrightPage{pg: pg}, nil
}

func (c *playwrightContext) Close() error {
	return c.ctx.Close()
}

type playwrightPage struct {
	pg playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.pg.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (p *playwrightPage) URL() string    { return p.pg.URL() }
func (p *playwrightPage) IsClosed() bool { return p.pg.IsClosed() }

func (p *playwrightPage) PressKey(key string) error {
	return p.pg.Keyboard().Press(key)
}

// Find maps a locating strategy onto the corresponding playwright locator,
// then waits for the first match to become visible within the timeout.
func (p *playwrightPage) Find(s Strategy, timeout time.Duration) (element, bool) {
	loc := p.locate(s).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, false
	}
	return &playwrightElement{loc: loc}, true
}

func (p *playwrightPage) locate(s Strategy) playwright.Locator {
	switch s.Kind {
	case ByPlaceholder:
		return p.pg.GetByPlaceholder(s.Pattern)
	case ByLabel:
		return p.pg.GetByLabel(s.Pattern)
	case ByRole:
		opts := playwright.PageGetByRoleOptions{}
		if s.Name != "" {
			opts.Name = regexp.MustCompile("(?i)" + s.Name)
		}
		return p.pg.GetByRole(playwright.AriaRole(s.Pattern), opts)
	case ByText:
		return p.pg.GetByText(s.Pattern)
	default:
		return p.pg.Locator(s.Pattern)
	}
}

func (p *playwrightPage) All(selector string) []element {
	locs, err := p.pg.Locator(selector).All()
	if err != nil {
		return nil
	}
	elements := make([]element, len(locs))
	for i, l := range locs {
		elements[i] = &playwrightElement{loc: l}
	}
	return elements
}

func (p *playwrightPage) OnResponse(fn func(netResponse)) (remove func()) {
	handler := func(r playwright.Response) {
		fn(&playwrightResponse{r: r})
	}
	p.pg.On("response", handler)
	return func() { p.pg.RemoveListener("response", handler) }
}

func (p *playwrightPage) OnRequest(fn func(netRequest)) (remove func()) {
	handler := func(r playwright.Request) {
		fn(&playwrightRequest{r: r})
	}
	p.pg.On("request", handler)
	return func() { p.pg.RemoveListener("request", handler) }
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Click(timeout time.Duration) error {
	return e.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (e *playwrightElement) Fill(value string) error {
	return e.loc.Fill(value)
}

func (e *playwrightElement) TypeSlowly(value string, delay time.Duration) error {
	return e.loc.PressSequentially(value, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	})
}

func (e *playwrightElement) Press(key string) error {
	return e.loc.Press(key)
}

func (e *playwrightElement) Clear() error {
	return e.loc.Clear()
}

func (e *playwrightElement) Text() string {
	text, err := e.loc.TextContent()
	if err != nil {
		return ""
	}
	return text
}

func (e *playwrightElement) Attr(name string) string {
	attr, err := e.loc.GetAttribute(name)
	if err != nil {
		return ""
	}
	return attr
}

func (e *playwrightElement) InputValue() string {
	v, err := e.loc.InputValue()
	if err != nil {
		return ""
	}
	return v
}

func (e *playwrightElement) Visible(timeout time.Duration) bool {
	err := e.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil
}

func (e *playwrightElement) ScrollIntoView() {
	_ = e.loc.ScrollIntoViewIfNeeded()
}

func (e *playwrightElement) Find(selector string, timeout time.Duration) (element, bool) {
	loc := e.loc.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, false
	}
	return &playwrightElement{loc: loc}, true
}

func (e *playwrightElement) All(selector string) []element {
	locs, err := e.loc.Locator(selector).All()
	if err != nil {
		return nil
	}
	elements := make([]element, len(locs))
	for i, l := range locs {
		elements[i] = &playwrightElement{loc: l}
	}
	return elements
}

type playwrightResponse struct {
	r playwright.Response
}

func (r *playwrightResponse) URL() string { return r.r.URL() }
func (r *playwrightResponse) Status() int { return r.r.Status() }
func (r *playwrightResponse) Body() ([]byte, error) {
	return r.r.Body()
}

type playwrightRequest struct {
	r playwright.Request
}

func (r *playwrightRequest) URL() string { return r.r.URL() }
func (r *playwrightRequest) PostData() string {
	data, err := r.r.PostData()
	if err != nil {
		return ""
	}
	return data
}
