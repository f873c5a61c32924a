// Package login holds the browser suite for signing in and out.
package login

import (
	"testing"

	"github.com/kuitang/orangehrm-e2e/internal/pages"
	"github.com/kuitang/orangehrm-e2e/tests/browser"
)

const (
	invalidUsername = "InvalidUser"
	invalidPassword = "wrongpass123"
)

func TestMain(m *testing.M) {
	browser.Main(m)
}

// open loads the login page; every case starts there.
func open(t *testing.T, s *browser.Session) *pages.LoginPage {
	t.Helper()
	login := s.Login()
	browser.Must(t, "open login page", login.Open(s.Env.BaseURL))
	return login
}

// TC_LOGIN_001
func TestLogin_ValidCredentials(t *testing.T) {
	env := browser.Setup(t)
	cfg := env.Config
	env.Each(t, func(t *testing.T, s *browser.Session) {
		login := open(t, s)

		browser.Must(t, "login page loaded", login.VerifyLoaded())
		browser.Must(t, "enter username", login.EnterUsername(cfg.Username))
		browser.Must(t, "enter password", login.EnterPassword(cfg.Password))
		browser.Must(t, "submit", login.Submit())
		browser.Must(t, "reach dashboard", login.WaitForDashboard())
		browser.Must(t, "dashboard loaded", login.VerifyDashboard())

		if _, err := login.Screenshot("TC_LOGIN_001-success"); err != nil {
			t.Logf("screenshot: %v", err)
		}
	})
}

// TC_LOGIN_002
func TestLogin_InvalidCredentials(t *testing.T) {
	env := browser.Setup(t)
	env.Each(t, func(t *testing.T, s *browser.Session) {
		login := open(t, s)

		browser.Must(t, "login page loaded", login.VerifyLoaded())
		browser.Must(t, "enter username", login.EnterUsername(invalidUsername))
		browser.Must(t, "enter password", login.EnterPassword(invalidPassword))
		browser.Must(t, "submit", login.Submit())
		browser.Must(t, "error banner", login.VerifyError(pages.InvalidCredentialsMessage))
		browser.Must(t, "form usable after error", login.VerifyFormReadyAfterError())

		if _, err := login.Screenshot("TC_LOGIN_002-error"); err != nil {
			t.Logf("screenshot: %v", err)
		}
	})
}

// TC_LOGIN_005
func TestLogin_EmptyFieldsValidation(t *testing.T) {
	env := browser.Setup(t)
	env.Each(t, func(t *testing.T, s *browser.Session) {
		login := open(t, s)

		browser.Must(t, "login page loaded", login.VerifyLoaded())
		browser.Must(t, "clear fields", login.ClearFields())
		browser.Must(t, "submit", login.Submit())
		browser.Must(t, "required messages", login.VerifyRequiredMessages())
		browser.Must(t, "field-level errors", login.VerifyFieldLevelErrors())
	})
}

// TC_LOGIN_009
func TestLogin_PasswordFieldSecurity(t *testing.T) {
	env := browser.Setup(t)
	cfg := env.Config
	env.Each(t, func(t *testing.T, s *browser.Session) {
		login := open(t, s)

		browser.Must(t, "login page loaded", login.VerifyLoaded())
		browser.Must(t, "focus password", login.Password.Click())
		browser.Must(t, "type password", login.TypePassword(cfg.Password))
		browser.Must(t, "password masked", login.VerifyPasswordMasked())
		browser.Must(t, "cleared on reload", login.ReloadAndVerifyPasswordCleared())
	})
}

// TC_LOGIN_008
func TestLogin_SessionAndLogout(t *testing.T) {
	env := browser.Setup(t)
	cfg := env.Config
	env.Each(t, func(t *testing.T, s *browser.Session) {
		login := open(t, s)
		dashboard := s.Dashboard()

		browser.Must(t, "login", login.LoginValid(cfg.Username, cfg.Password))
		browser.Must(t, "tour modules", dashboard.TourModules())
		browser.Must(t, "open user menu", dashboard.OpenUserMenu())
		browser.Must(t, "click logout", dashboard.ClickLogout())
		browser.Must(t, "logged out", dashboard.VerifyLoggedOut())
		browser.Must(t, "back button", dashboard.VerifyBackDoesNotRestore())
	})
}
