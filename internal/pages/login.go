package pages

import (
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/errs"
)

// RequiredMessage is the client-side validation text for an empty field.
const RequiredMessage = "Required"

// InvalidCredentialsMessage is the banner shown after a rejected login.
const InvalidCredentialsMessage = "Invalid credentials"

var loginURLPattern = regexp.MustCompile(`auth/login`)

// LoginPage drives the sign-in form. A login attempt ends on the dashboard,
// with an error banner, or with field validation messages.
type LoginPage struct {
	*Base

	Username       playwright.Locator
	Password       playwright.Locator
	SubmitButton   playwright.Locator
	ErrorBanner    playwright.Locator
	RequiredErrors playwright.Locator
	DashboardTitle playwright.Locator
	UserDropdown   playwright.Locator
	SidePanel      playwright.Locator
}

// NewLoginPage wraps page.
func NewLoginPage(page playwright.Page, opts ...Option) *LoginPage {
	return newLoginPage(NewBase(page, opts...))
}

func newLoginPage(b *Base) *LoginPage {
	return &LoginPage{
		Base:           b,
		Username:       b.page.Locator(selUsername),
		Password:       b.page.Locator(selPassword),
		SubmitButton:   b.page.Locator(selSubmit),
		ErrorBanner:    b.page.Locator(selErrorBanner),
		RequiredErrors: b.page.Locator(selRequired),
		DashboardTitle: b.page.Locator(selDashboardTitle),
		UserDropdown:   b.page.Locator(selUserDropdown),
		SidePanel:      b.page.Locator(selSidePanel),
	}
}

// Open loads the login page from baseURL and waits for the username field.
func (p *LoginPage) Open(baseURL string) error {
	if err := p.LogEnvironment(); err != nil {
		return err
	}
	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	p.log.Info("Navigating to OrangeHRM login page", zap.String("device", string(info.Class)))

	if err := p.Goto(LoginURL(baseURL), p.AdjustedTimeout(30*time.Second)); err != nil {
		return err
	}

	fieldTimeout := p.AdjustedTimeout(10 * time.Second)
	if info.IsMobile {
		fieldTimeout = p.AdjustedTimeout(15 * time.Second)
	}
	if err := p.Username.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(fieldTimeout),
	}); err != nil {
		return errs.Wrap(errs.Assertion, "login form visible", err)
	}
	if info.IsMobile {
		if err := p.ScrollToTop(); err != nil {
			return err
		}
	}
	p.log.Info("Login page loaded successfully")
	return nil
}

// VerifyLoaded asserts the username field is visible.
func (p *LoginPage) VerifyLoaded() error {
	if err := p.visible(p.Username, "username field", 10*time.Second); err != nil {
		return err
	}
	p.log.Info("Login page loaded with username field visible")
	return nil
}

// EnterUsername fills the username field.
func (p *LoginPage) EnterUsername(username string) error {
	if err := p.Fill(selUsername, username, 0); err != nil {
		return err
	}
	p.log.Info("Entered username", zap.String("username", username))
	return nil
}

// EnterPassword fills the password field and asserts the input is masked.
func (p *LoginPage) EnterPassword(password string) error {
	if err := p.Fill(selPassword, password, 0); err != nil {
		return err
	}
	if err := p.VerifyPasswordMasked(); err != nil {
		return err
	}
	p.log.Info("Entered password and verified masking")
	return nil
}

// Submit asserts the login button is enabled and clicks it.
func (p *LoginPage) Submit() error {
	if err := checked(p.expect(0).Locator(p.SubmitButton).ToBeEnabled(), "login button enabled"); err != nil {
		return err
	}
	if err := p.Click(selSubmit, 0); err != nil {
		return err
	}
	p.log.Info("Clicked login button")
	return nil
}

// Login enters both credentials and submits the form.
func (p *LoginPage) Login(username, password string) error {
	if err := p.EnterUsername(username); err != nil {
		return err
	}
	if err := p.EnterPassword(password); err != nil {
		return err
	}
	return p.Submit()
}

// ClearFields empties both credential fields.
func (p *LoginPage) ClearFields() error {
	if err := p.Username.Clear(); err != nil {
		return errs.Wrap(errs.Interaction, "clear username", err)
	}
	if err := p.Password.Clear(); err != nil {
		return errs.Wrap(errs.Interaction, "clear password", err)
	}
	p.log.Info("Cleared username and password fields")
	return nil
}

// WaitForDashboard waits up to 10s for the dashboard URL.
func (p *LoginPage) WaitForDashboard() error {
	if err := p.page.WaitForURL(dashboardGlob, playwright.PageWaitForURLOptions{
		Timeout: ms(10 * time.Second),
	}); err != nil {
		return errs.Wrap(errs.Assertion, "dashboard url", err)
	}
	p.log.Info("Successfully navigated to dashboard")
	return nil
}

// dashboardHeadingTimeout bounds how long the dashboard heading may take to
// appear after sign-in.
const dashboardHeadingTimeout = 10 * time.Second

// VerifyDashboard asserts the dashboard heading and user menu are shown.
// The side panel must be visible on desktop and tablet; on mobile it only
// has to exist, since it may be collapsed.
func (p *LoginPage) VerifyDashboard() error {
	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	if err := p.visible(p.DashboardTitle, "dashboard heading", dashboardHeadingTimeout); err != nil {
		return err
	}
	if err := p.visible(p.UserDropdown, "user dropdown", 5*time.Second); err != nil {
		return err
	}
	if info.IsMobile {
		n, err := p.SidePanel.Count()
		if err != nil {
			return errs.Wrap(errs.Interaction, "count side panels", err)
		}
		if n == 0 {
			return errs.New(errs.Assertion, "side panel missing from the DOM")
		}
		p.log.Info("Mobile dashboard elements verified successfully - sidebar exists in DOM")
		return nil
	}
	if err := p.visible(p.SidePanel, "side panel", 5*time.Second); err != nil {
		return err
	}
	p.log.Info("Desktop dashboard elements verified successfully")
	return nil
}

// VerifyError asserts the error banner appears within 5s and contains text.
func (p *LoginPage) VerifyError(text string) error {
	if err := p.visible(p.ErrorBanner, "error banner", 5*time.Second); err != nil {
		return err
	}
	if err := checked(p.expect(0).Locator(p.ErrorBanner).ToContainText(text), "error banner text"); err != nil {
		return err
	}
	p.log.Info("Error message displayed for invalid credentials")
	return nil
}

// VerifyFormReadyAfterError asserts the user is still on the login page
// with both fields usable.
func (p *LoginPage) VerifyFormReadyAfterError() error {
	if err := checked(p.expect(0).Page(p.page).ToHaveURL(loginURLPattern), "still on login page"); err != nil {
		return err
	}
	for _, field := range []struct {
		name string
		loc  playwright.Locator
	}{{"username", p.Username}, {"password", p.Password}} {
		if err := p.visible(field.loc, field.name+" field", 0); err != nil {
			return err
		}
		if err := checked(p.expect(0).Locator(field.loc).ToBeEnabled(), field.name+" field enabled"); err != nil {
			return err
		}
	}
	p.log.Info("Form is ready for immediate retry")
	return nil
}

// VerifyRequiredMessages asserts exactly two "Required" messages are shown.
func (p *LoginPage) VerifyRequiredMessages() error {
	if err := checked(p.expect(0).Locator(p.RequiredErrors).ToHaveCount(2), "two required messages"); err != nil {
		return err
	}
	messages, err := p.RequiredErrors.AllTextContents()
	if err != nil {
		return errs.Wrap(errs.Interaction, "read validation messages", err)
	}
	if err := requireAll(messages, RequiredMessage); err != nil {
		return err
	}
	p.log.Info("Client-side validation triggered with Required messages")
	return nil
}

// requireAll fails unless every message equals want.
func requireAll(messages []string, want string) error {
	for _, m := range messages {
		if m != want {
			return errs.New(errs.Assertion, "validation message "+quoteSelectorText(m)+" != "+quoteSelectorText(want))
		}
	}
	return nil
}

// VerifyFieldLevelErrors asserts the user stayed on the login page and the
// first field error is visible.
func (p *LoginPage) VerifyFieldLevelErrors() error {
	if err := checked(p.expect(0).Page(p.page).ToHaveURL(loginURLPattern), "still on login page"); err != nil {
		return err
	}
	if err := p.visible(p.RequiredErrors.First(), "field error", 0); err != nil {
		return err
	}
	p.log.Info("Field-level error messages displayed, user remains on login page")
	return nil
}

// VerifyPasswordMasked asserts the password input has type=password.
func (p *LoginPage) VerifyPasswordMasked() error {
	return checked(p.expect(0).Locator(p.Password).ToHaveAttribute("type", "password"), "password masked")
}

// TypePassword types password into the field with a per-key delay and
// asserts it stays masked.
func (p *LoginPage) TypePassword(password string) error {
	if err := p.Password.PressSequentially(password, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(100),
	}); err != nil {
		return errs.Wrap(errs.Interaction, "type password", err)
	}
	if err := p.VerifyPasswordMasked(); err != nil {
		return err
	}
	p.log.Info("Password typed slowly for security verification")
	return nil
}

// ReloadAndVerifyPasswordCleared reloads the page and asserts the password
// field comes back empty.
func (p *LoginPage) ReloadAndVerifyPasswordCleared() error {
	if _, err := p.page.Reload(); err != nil {
		return errs.Wrap(errs.Interaction, "reload", err)
	}
	if err := p.visible(p.Password, "password field", 0); err != nil {
		return err
	}
	if err := checked(p.expect(0).Locator(p.Password).ToHaveValue(""), "password cleared"); err != nil {
		return err
	}
	p.log.Info("Password field cleared on page refresh as expected")
	return nil
}

// LoginValid logs in and verifies the dashboard.
func (p *LoginPage) LoginValid(username, password string) error {
	if err := p.Login(username, password); err != nil {
		return err
	}
	if err := p.WaitForDashboard(); err != nil {
		return err
	}
	return p.VerifyDashboard()
}

// LoginInvalid logs in with rejected credentials and verifies the error
// state.
func (p *LoginPage) LoginInvalid(username, password string) error {
	if err := p.Login(username, password); err != nil {
		return err
	}
	if err := p.VerifyError(InvalidCredentialsMessage); err != nil {
		return err
	}
	return p.VerifyFormReadyAfterError()
}

// SubmitEmpty submits the form with both fields empty and verifies the
// validation messages.
func (p *LoginPage) SubmitEmpty() error {
	if err := p.ClearFields(); err != nil {
		return err
	}
	if err := p.Submit(); err != nil {
		return err
	}
	if err := p.VerifyRequiredMessages(); err != nil {
		return err
	}
	return p.VerifyFieldLevelErrors()
}
