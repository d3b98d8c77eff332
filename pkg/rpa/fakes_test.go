package rpa

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// Instrumented in-memory implementations of the engine/page/element
// interfaces. They let the tests drive full interaction sequences,
// intercepted responses included, without a browser.

type fakeEngine struct {
	ctx       *fakeContext
	launchErr error

	launches int
	stops    int
}

func (e *fakeEngine) Launch(profileDir string, headless bool) (browserContext, error) {
	e.launches++
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	return e.ctx, nil
}

func (e *fakeEngine) Stop() error {
	e.stops++
	return nil
}

type fakeContext struct {
	pages      []page
	newPageErr error
	newPages   int
	closes     int
}

func (c *fakeContext) Pages() []page { return c.pages }

func (c *fakeContext) NewPage() (page, error) {
	c.newPages++
	if c.newPageErr != nil {
		return nil, c.newPageErr
	}
	pg := newFakePage("")
	c.pages = append(c.pages, pg)
	return pg, nil
}

func (c *fakeContext) Close() error {
	c.closes++
	return nil
}

type fakePage struct {
	mu       sync.Mutex
	url      string
	closed   bool
	gotoErr  error
	gotoLog  []string
	keysSent []string

	// elements maps Strategy.String() to the element Find returns.
	elements map[string]*fakeElement
	// allElements maps a CSS selector to the elements All returns; allHook,
	// when set, takes precedence.
	allElements map[string][]element
	allHook     func(selector string) ([]element, bool)

	// findDelay plus the active gauge detect overlapping operations.
	findDelay  time.Duration
	active     int32
	overlapped atomic.Bool

	nextHandler  int
	respHandlers map[int]func(netResponse)
	reqHandlers  map[int]func(netRequest)
}

func newFakePage(url string) *fakePage {
	return &fakePage{
		url:          url,
		elements:     map[string]*fakeElement{},
		allElements:  map[string][]element{},
		respHandlers: map[int]func(netResponse){},
		reqHandlers:  map[int]func(netRequest){},
	}
}

func (p *fakePage) set(s Strategy, el *fakeElement) { p.elements[s.String()] = el }

func (p *fakePage) setURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *fakePage) Goto(url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotoLog = append(p.gotoLog, url)
	if p.gotoErr != nil {
		return p.gotoErr
	}
	p.url = url
	return nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) IsClosed() bool { return p.closed }

func (p *fakePage) PressKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keysSent = append(p.keysSent, key)
	return nil
}

func (p *fakePage) Find(s Strategy, timeout time.Duration) (element, bool) {
	if atomic.AddInt32(&p.active, 1) > 1 {
		p.overlapped.Store(true)
	}
	if p.findDelay > 0 {
		time.Sleep(p.findDelay)
	}
	atomic.AddInt32(&p.active, -1)

	p.mu.Lock()
	el, ok := p.elements[s.String()]
	p.mu.Unlock()
	if !ok || !el.visible {
		return nil, false
	}
	return el, true
}

func (p *fakePage) All(selector string) []element {
	if p.allHook != nil {
		if els, ok := p.allHook(selector); ok {
			return els
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allElements[selector]
}

func (p *fakePage) OnResponse(fn func(netResponse)) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextHandler
	p.nextHandler++
	p.respHandlers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.respHandlers, id)
	}
}

func (p *fakePage) OnRequest(fn func(netRequest)) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextHandler
	p.nextHandler++
	p.reqHandlers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.reqHandlers, id)
	}
}

func (p *fakePage) emitResponse(r netResponse) {
	p.mu.Lock()
	handlers := make([]func(netResponse), 0, len(p.respHandlers))
	for _, fn := range p.respHandlers {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(r)
	}
}

func (p *fakePage) emitRequest(r netRequest) {
	p.mu.Lock()
	handlers := make([]func(netRequest), 0, len(p.reqHandlers))
	for _, fn := range p.reqHandlers {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(r)
	}
}

type fakeElement struct {
	text    string
	attrs   map[string]string
	value   string
	visible bool

	clickErr error
	clicks   int
	fills    []string
	typed    []string
	pressed  []string
	clears   int
	scrolls  int

	children map[string]*fakeElement
	childAll map[string][]element

	onClick func()
	onFill  func(value string)
	onType  func(value string)
	onPress func(key string)
}

func visibleElement() *fakeElement {
	return &fakeElement{visible: true, attrs: map[string]string{}, children: map[string]*fakeElement{}, childAll: map[string][]element{}}
}

func (e *fakeElement) Click(timeout time.Duration) error {
	e.clicks++
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Fill(value string) error {
	e.fills = append(e.fills, value)
	e.value = value
	if e.onFill != nil {
		e.onFill(value)
	}
	return nil
}

func (e *fakeElement) TypeSlowly(value string, delay time.Duration) error {
	e.typed = append(e.typed, value)
	e.value = value
	if e.onType != nil {
		e.onType(value)
	}
	return nil
}

func (e *fakeElement) Press(key string) error {
	e.pressed = append(e.pressed, key)
	if e.onPress != nil {
		e.onPress(key)
	}
	return nil
}

func (e *fakeElement) Clear() error {
	e.clears++
	e.value = ""
	return nil
}

func (e *fakeElement) Text() string { return e.text }

func (e *fakeElement) Attr(name string) string { return e.attrs[name] }

func (e *fakeElement) InputValue() string { return e.value }

func (e *fakeElement) Visible(timeout time.Duration) bool { return e.visible }

func (e *fakeElement) ScrollIntoView() { e.scrolls++ }

func (e *fakeElement) Find(selector string, timeout time.Duration) (element, bool) {
	el, ok := e.children[selector]
	if !ok || !el.visible {
		return nil, false
	}
	return el, true
}

func (e *fakeElement) All(selector string) []element { return e.childAll[selector] }

type fakeResponse struct {
	url    string
	status int
	body   []byte
}

func (r fakeResponse) URL() string           { return r.url }
func (r fakeResponse) Status() int           { return r.status }
func (r fakeResponse) Body() ([]byte, error) { return r.body, nil }

type fakeRequest struct {
	url      string
	postData string
}

func (r fakeRequest) URL() string      { return r.url }
func (r fakeRequest) PostData() string { return r.postData }

const (
	testBaseURL   = "https://lib.example.kz"
	testWorkspace = testBaseURL + "/issuance"
	testLogin     = testBaseURL + "/login"
)

// newTestDriver wires a driver to the fake engine with sleeping disabled.
func newTestDriver(t *testing.T, pg *fakePage) (*Driver, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{ctx: &fakeContext{pages: []page{pg}}}
	d := New(Config{
		BaseURL:       testBaseURL,
		LoginPath:     "/login",
		WorkspacePath: "/issuance",
		UserEmail:     "desk@example.kz",
		Password:      "secret",
		ProfileDir:    t.TempDir(),
	}, nil, zap.NewNop())
	d.newEngine = func() (engine, error) { return eng, nil }
	d.sleep = func(time.Duration) {}
	return d, eng
}

// workspacePage returns a page already on the issuance workspace with the
// reader search input present.
func workspacePage() (*fakePage, *fakeElement) {
	pg := newFakePage(testWorkspace)
	search := visibleElement()
	pg.set(DefaultSelectors().ReaderSearch[0], search)
	return pg, search
}
