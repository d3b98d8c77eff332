package rpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loginPage returns a page sitting on the login form with the credential
// fields present.
func loginPage() (pg *fakePage, email, password, button *fakeElement) {
	pg = newFakePage(testLogin)
	defaults := DefaultSelectors()
	email = visibleElement()
	password = visibleElement()
	button = visibleElement()
	pg.set(defaults.EmailField[0], email)
	pg.set(defaults.PasswordField[0], password)
	pg.set(defaults.LoginButton[0], button)
	return pg, email, password, button
}

func TestAutoLogin(t *testing.T) {
	t.Run("submits credentials and lands on the workspace", func(t *testing.T) {
		pg, email, password, button := loginPage()
		button.onClick = func() { pg.setURL(testBaseURL + "/home") }
		d, _ := newTestDriver(t, pg)
		require.NoError(t, d.Start(true))

		d.mu.Lock()
		err := d.autoLoginLocked()
		d.mu.Unlock()

		require.NoError(t, err)
		assert.Equal(t, []string{"desk@example.kz"}, email.fills)
		assert.Equal(t, []string{"secret"}, password.fills)
		assert.Equal(t, 1, button.clicks)
		assert.Contains(t, pg.gotoLog, testWorkspace, "must navigate to the workspace after login")
	})

	t.Run("falls back to Enter when no submit control exists", func(t *testing.T) {
		pg, _, password, _ := loginPage()
		pg.set(DefaultSelectors().LoginButton[0], &fakeElement{visible: false})
		password.onPress = func(key string) {
			if key == "Enter" {
				pg.setURL(testBaseURL + "/home")
			}
		}
		d, _ := newTestDriver(t, pg)
		require.NoError(t, d.Start(true))

		d.mu.Lock()
		err := d.autoLoginLocked()
		d.mu.Unlock()

		require.NoError(t, err)
		assert.Contains(t, password.pressed, "Enter")
	})

	t.Run("requires manual login when no credentials are configured", func(t *testing.T) {
		pg, _, _, _ := loginPage()
		d, _ := newTestDriver(t, pg)
		d.cfg.UserEmail = ""
		d.cfg.Password = ""
		require.NoError(t, d.Start(true))

		d.mu.Lock()
		err := d.autoLoginLocked()
		d.mu.Unlock()

		assert.ErrorIs(t, err, ErrAuthRequired)
	})

	t.Run("times out when the page never leaves the login form", func(t *testing.T) {
		pg, _, _, button := loginPage()
		button.onClick = func() {} // credentials rejected silently
		d, _ := newTestDriver(t, pg)
		require.NoError(t, d.Start(true))

		d.mu.Lock()
		err := d.autoLoginLocked()
		d.mu.Unlock()

		assert.ErrorIs(t, err, ErrAuthTimeout)
	})

	t.Run("is a no-op away from the login boundary", func(t *testing.T) {
		pg, _ := workspacePage()
		d, _ := newTestDriver(t, pg)
		require.NoError(t, d.Start(true))

		d.mu.Lock()
		err := d.autoLoginLocked()
		d.mu.Unlock()

		require.NoError(t, err)
		assert.Empty(t, pg.gotoLog)
	})
}

func TestManualLogin(t *testing.T) {
	pg, _ := workspacePage()
	pg.setURL(testBaseURL + "/home")
	d, _ := newTestDriver(t, pg)

	st := d.ManualLogin()
	require.True(t, st.OK)
	assert.Contains(t, pg.gotoLog, testWorkspace)
	assert.NotEmpty(t, st.URL)
}
