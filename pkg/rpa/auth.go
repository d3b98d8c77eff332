package rpa

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// autoLoginLocked performs automated credential submission when the session
// sits on the login boundary. It is a no-op anywhere else. The caller must
// hold the mutex.
//
// The remote login form's selectors are not stable, so every control is
// resolved through an ordered fallback chain; the first genuinely visible
// candidate wins.
func (d *Driver) autoLoginLocked() error {
	if err := d.ensurePageLocked(); err != nil {
		return err
	}
	if !d.onLoginBoundary() {
		return nil
	}

	if d.state == stateLoggingIn {
		// Another login attempt is in flight; wait for the URL to leave
		// the boundary instead of racing it.
		d.log.Info("login already in progress, waiting")
		deadline := int(loginBusyTimeout / loginBusyInterval)
		for i := 0; i < deadline; i++ {
			d.sleep(loginBusyInterval)
			if !d.onLoginBoundary() {
				return nil
			}
		}
		return fmt.Errorf("%w: a login attempt is still in progress", ErrAuthTimeout)
	}

	if d.cfg.UserEmail == "" || d.cfg.Password == "" {
		return fmt.Errorf("%w: session expired and no credentials are configured; "+
			"set ELIBRA_USER_EMAIL / ELIBRA_PASSWORD or use the manual-login endpoint", ErrAuthRequired)
	}

	d.state = stateLoggingIn
	defer func() { d.state = stateReady }()

	d.log.Info("attempting automatic login")

	if !strings.Contains(d.page.URL(), d.cfg.loginURL()) {
		if err := d.page.Goto(d.cfg.loginURL(), navTimeout); err != nil {
			return fmt.Errorf("navigate to login page: %w", err)
		}
	}

	email, ok := findVisible(d.page, d.selectors.EmailField)
	if !ok {
		return notFound("email/username field", d.selectors.EmailField)
	}
	if err := email.Fill(d.cfg.UserEmail); err != nil {
		return fmt.Errorf("fill email field: %w", err)
	}

	password, ok := findVisible(d.page, d.selectors.PasswordField)
	if !ok {
		return notFound("password field", d.selectors.PasswordField)
	}
	if err := password.Fill(d.cfg.Password); err != nil {
		return fmt.Errorf("fill password field: %w", err)
	}

	clicked := false
	if button, ok := findVisible(d.page, d.selectors.LoginButton); ok {
		if err := button.Click(strategyProbeTimeout * 2); err == nil {
			clicked = true
		}
	}
	if !clicked {
		// No submit control found; Enter in the password field submits
		// most login forms.
		if err := password.Press("Enter"); err != nil {
			return notFound("login submit control", d.selectors.LoginButton)
		}
		d.log.Info("pressed Enter in password field as login fallback")
	}

	deadline := int(loginWaitTimeout / loginWaitInterval)
	for i := 0; i < deadline; i++ {
		d.sleep(loginWaitInterval)
		if !d.onLoginBoundary() {
			d.log.Info("automatic login succeeded", zap.String("url", d.page.URL()))
			// The remote system often redirects to the root after login;
			// go straight to the issuance workspace.
			if err := d.page.Goto(d.cfg.workspaceURL(), navTimeout); err != nil {
				d.log.Warn("post-login workspace navigation failed", zap.Error(err))
			}
			return nil
		}
	}
	return fmt.Errorf("%w: still on the login page after submitting credentials", ErrAuthTimeout)
}

// ManualLogin opens the workspace in the (headed) browser so a human can log
// in, and reports the page URL.
func (d *Driver) ManualLogin() ManualLoginStatus {
	if err := d.Start(false); err != nil {
		return ManualLoginStatus{OK: false, Message: fmt.Sprintf("failed to open browser: %v", err)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensurePageLocked(); err != nil {
		return ManualLoginStatus{OK: false, Message: fmt.Sprintf("failed to open browser: %v", err)}
	}
	if err := d.page.Goto(d.cfg.workspaceURL(), navTimeout); err != nil {
		return ManualLoginStatus{OK: false, Message: fmt.Sprintf("failed to open workspace: %v", err)}
	}
	return ManualLoginStatus{
		OK:      true,
		Message: "Browser opened. Log in in the opened tab, then retry the operation.",
		URL:     d.page.URL(),
	}
}
