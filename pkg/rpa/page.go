package rpa

import "time"

// The Driver talks to the browser through these narrow interfaces instead of
// the playwright API directly, so the full interaction sequences can be
// exercised against instrumented fakes. One adapter (playwright.go) maps them
// onto a real page.

// engine is the browser engine lifecycle: launched once, stopped on teardown.
type engine interface {
	// Launch opens a persistent context backed by the profile directory.
	Launch(profileDir string, headless bool) (browserContext, error)
	Stop() error
}

// browserContext is one persistent browser context.
type browserContext interface {
	Pages() []page
	NewPage() (page, error)
	Close() error
}

// page is the single active page all components borrow for the duration of
// one locked operation.
type page interface {
	Goto(url string, timeout time.Duration) error
	URL() string
	IsClosed() bool
	// PressKey sends a key at page level (keyboard focus target).
	PressKey(key string) error
	// Find resolves one strategy to its first match and reports whether
	// that match became visible within the timeout. Visibility implies
	// timing-correctness after animations and async rendering.
	Find(s Strategy, timeout time.Duration) (element, bool)
	// All returns every current match of a CSS selector, visible or not.
	All(selector string) []element
	// OnResponse and OnRequest install temporary network observers and
	// return their removal functions.
	OnResponse(fn func(netResponse)) (remove func())
	OnRequest(fn func(netRequest)) (remove func())
}

// element is a handle to a located control.
type element interface {
	Click(timeout time.Duration) error
	Fill(value string) error
	// TypeSlowly enters text character by character. The workspace
	// autocomplete triggers on character input, not on value changes.
	TypeSlowly(value string, delay time.Duration) error
	Press(key string) error
	Clear() error
	Text() string
	Attr(name string) string
	InputValue() string
	Visible(timeout time.Duration) bool
	ScrollIntoView()
	Find(selector string, timeout time.Duration) (element, bool)
	All(selector string) []element
}

// netResponse is an intercepted network response.
type netResponse interface {
	URL() string
	Status() int
	Body() ([]byte, error)
}

// netRequest is an intercepted network request.
type netRequest interface {
	URL() string
	PostData() string
}
