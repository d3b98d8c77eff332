package rpa

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// sessionState is the explicit lifecycle state of the browser session,
// guarded by the operation mutex.
type sessionState int

const (
	stateOffline sessionState = iota
	stateReady
	stateLoggingIn
)

// Config is the slice of application settings the driver needs.
type Config struct {
	BaseURL       string
	LoginPath     string
	WorkspacePath string
	UserEmail     string
	Password      string
	ProfileDir    string
}

func (c Config) loginURL() string     { return c.BaseURL + c.LoginPath }
func (c Config) workspaceURL() string { return c.BaseURL + c.WorkspacePath }

// Driver owns the single persistent browser session and serializes every
// UI-driving operation behind one mutex. It is the only component that
// creates or destroys browser resources; everything else borrows the current
// page for the duration of one locked operation.
type Driver struct {
	cfg       Config
	log       *zap.Logger
	selectors *SelectorSet

	mu      sync.Mutex
	state   sessionState
	engine  engine
	browser browserContext
	page    page

	// ready mirrors state!=stateOffline for lock-free idempotence checks.
	ready atomic.Bool

	// newEngine and sleep are replaced in tests.
	newEngine func() (engine, error)
	sleep     func(time.Duration)
}

// New creates a driver. A nil selector set uses the defaults; a nil logger
// uses a no-op logger.
func New(cfg Config, selectors *SelectorSet, log *zap.Logger) *Driver {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		log:       log,
		selectors: selectors,
		newEngine: newPlaywrightEngine,
		sleep:     time.Sleep,
	}
}

// Start launches the persistent browser session. It is idempotent: a second
// call returns immediately. On any failure mid-launch all partially created
// resources are rolled back and the driver stays retryable.
func (d *Driver) Start(headless bool) error {
	if d.ready.Load() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(headless)
}

func (d *Driver) startLocked(headless bool) error {
	if d.state != stateOffline {
		return nil
	}

	d.log.Info("initializing browser session",
		zap.String("profile_dir", d.cfg.ProfileDir), zap.Bool("headless", headless))

	eng, err := d.newEngine()
	if err != nil {
		return fmt.Errorf("%w: start engine: %v", ErrNotInitialized, err)
	}

	browser, err := eng.Launch(d.cfg.ProfileDir, headless)
	if err != nil {
		_ = eng.Stop()
		return fmt.Errorf("%w: launch persistent context: %v", ErrNotInitialized, err)
	}

	var pg page
	if pages := browser.Pages(); len(pages) > 0 {
		pg = pages[0]
	} else {
		pg, err = browser.NewPage()
		if err != nil {
			_ = browser.Close()
			_ = eng.Stop()
			return fmt.Errorf("%w: create page: %v", ErrNotInitialized, err)
		}
	}

	d.engine = eng
	d.browser = browser
	d.page = pg
	d.state = stateReady
	d.ready.Store(true)
	d.log.Info("browser session initialized")
	return nil
}

// Stop closes the browser context and engine. Safe to call when never
// started or already stopped.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
	if d.engine != nil {
		_ = d.engine.Stop()
		d.engine = nil
	}
	d.page = nil
	d.state = stateOffline
	d.ready.Store(false)
	d.log.Info("browser session closed")
	return nil
}

// ensurePageLocked guarantees a live page, initializing the session with
// default (non-headless) settings if needed and recreating the page from the
// existing context when the handle was closed. The caller must hold the
// mutex.
func (d *Driver) ensurePageLocked() error {
	if d.state == stateOffline {
		d.log.Warn("session not initialized, initializing now")
		if err := d.startLocked(false); err != nil {
			return err
		}
	}
	if d.page == nil || d.page.IsClosed() {
		if d.browser == nil {
			return fmt.Errorf("%w: browser context lost", ErrNotInitialized)
		}
		pg, err := d.browser.NewPage()
		if err != nil {
			return fmt.Errorf("%w: recreate page: %v", ErrNotInitialized, err)
		}
		d.page = pg
	}
	return nil
}

// ensureWorkspaceLocked navigates to the issuance workspace and makes sure
// the session is logged in, running auto-login at most once per attempt.
// Verified by the reader search input becoming visible.
func (d *Driver) ensureWorkspaceLocked() error {
	if err := d.ensurePageLocked(); err != nil {
		return err
	}

	// Two cycles: load workspace -> maybe login -> load workspace again.
	for attempt := 0; attempt < 2; attempt++ {
		if d.onLoginBoundary() {
			d.log.Warn("login page detected while opening workspace")
			if err := d.autoLoginLocked(); err != nil {
				return err
			}
		}

		if !strings.Contains(d.page.URL(), d.cfg.workspaceURL()) {
			if err := d.page.Goto(d.cfg.workspaceURL(), navTimeout); err != nil {
				d.log.Warn("workspace navigation failed", zap.Error(err))
			}
		}

		if _, ok := d.page.Find(d.selectors.ReaderSearch[0], markerWaitTimeout); ok {
			return nil
		}
		d.log.Warn("workspace marker not found, session may have expired")
	}

	return fmt.Errorf("could not open the issuance workspace: %w", ErrAuthRequired)
}

func (d *Driver) onLoginBoundary() bool {
	return strings.Contains(d.page.URL(), d.cfg.LoginPath)
}

// Health is a best-effort, non-destructive probe. It never returns an error;
// any failure downgrades to OK=false with a message.
func (d *Driver) Health() HealthStatus {
	if !d.ready.Load() {
		if err := d.Start(false); err != nil {
			return HealthStatus{OK: false, Message: fmt.Sprintf("initialization failed: %v", err)}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateOffline || d.page == nil || d.page.IsClosed() {
		return HealthStatus{OK: false, Message: "session not initialized or page closed"}
	}

	st := HealthStatus{OK: true, PageOpen: true, URL: d.page.URL(), Message: "session is healthy"}
	if err := d.ensureWorkspaceLocked(); err == nil {
		if _, ok := d.page.Find(d.selectors.ReaderSearch[0], quickProbeTimeout); ok {
			st.LoggedIn = true
		}
	}
	return st
}
