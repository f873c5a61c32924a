package pages

import (
	"strings"

	"github.com/kuitang/orangehrm-e2e/internal/urlutil"
)

// Application paths, relative to the base URL.
const (
	LoginPath     = "/web/index.php/auth/login"
	DashboardPath = "/web/index.php/dashboard/index"
)

// URL globs used with WaitForURL.
const (
	dashboardGlob    = "**/dashboard/index"
	anyDashboardGlob = "**/dashboard/**"
	loginGlob        = "**/auth/login"
)

// Selectors shared by the page objects.
const (
	selUsername       = `input[name="username"]`
	selPassword       = `input[name="password"]`
	selSubmit         = `button[type="submit"]`
	selErrorBanner    = `.oxd-alert-content--error`
	selRequired       = `.oxd-input-field-error-message`
	selDashboardTitle = `h6:has-text("Dashboard")`
	selUserDropdown   = `.oxd-userdropdown`
	selUserMenuTab    = `.oxd-userdropdown-tab`
	selLogout         = `a:has-text("Logout")`
	selSidePanel      = `.oxd-sidepanel`
	selSearch         = `[placeholder="Search"]`
	selPanelSearch    = `.oxd-sidepanel [placeholder="Search"]`
	selMenuItem       = `.oxd-main-menu-item`
	selMenuLabel      = `.oxd-text--span`
	selBrandBanner    = `.oxd-brand-banner`
	selHamburger      = `.oxd-topbar-header-hamburger, [class*="hamburger"], [class*="menu-toggle"]`
)

// menuItemSelector returns the selector of the sidebar entry labelled label.
func menuItemSelector(label string) string {
	return selMenuItem + `:has-text(` + quoteSelectorText(label) + `)`
}

// quoteSelectorText quotes s for use inside a :has-text() pseudo-class.
func quoteSelectorText(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}

// LoginURL returns the login page for base. A base that already points at
// the login page is returned unchanged.
func LoginURL(base string) string {
	if strings.Contains(urlutil.PathOf(base), "/auth/login") {
		return base
	}
	return urlutil.BuildAbsolute(base, LoginPath)
}
