package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/errs"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
	"github.com/kuitang/orangehrm-e2e/internal/urlutil"
)

// DefaultTour is the module sequence visited by TourModules.
var DefaultTour = []string{"Admin", "PIM", "Dashboard"}

// DashboardPage drives the authenticated shell: sidebar navigation and the
// user menu.
type DashboardPage struct {
	*Base

	catalog      *menu.Catalog
	UserMenuTab  playwright.Locator
	UserDropdown playwright.Locator
	LogoutLink   playwright.Locator
}

// NewDashboardPage wraps page. A nil catalog selects menu.Default().
func NewDashboardPage(page playwright.Page, catalog *menu.Catalog, opts ...Option) *DashboardPage {
	return newDashboardPage(NewBase(page, opts...), catalog)
}

func newDashboardPage(b *Base, catalog *menu.Catalog) *DashboardPage {
	if catalog == nil {
		catalog = menu.Default()
	}
	return &DashboardPage{
		Base:         b,
		catalog:      catalog,
		UserMenuTab:  b.page.Locator(selUserMenuTab),
		UserDropdown: b.page.Locator(selUserDropdown),
		LogoutLink:   b.page.Locator(selLogout),
	}
}

// NavigateTo opens the module labelled label from the sidebar and asserts
// the browser lands on that module's canonical URL.
func (p *DashboardPage) NavigateTo(label string) error {
	item, ok := p.catalog.Lookup(label)
	if !ok {
		return errs.New(errs.InvalidArgument, "unknown module "+quoteSelectorText(label))
	}
	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	if err := p.openMenuItem(item, info.IsMobile); err != nil {
		return err
	}
	if err := p.verifyModuleURL(item); err != nil {
		return err
	}
	p.log.Info("Navigated to module", zap.String("module", item.Label), zap.String("device", string(info.Class)))
	return nil
}

// openMenuItem clicks the sidebar entry for item. On mobile the side panel
// is revealed first and a failed click falls back to a scripted click on
// the module link, then to loading the module route directly.
func (b *Base) openMenuItem(item menu.Item, mobile bool) error {
	sel := menuItemSelector(item.Label)
	loc := b.page.Locator(sel)
	if !mobile {
		if err := loc.Click(playwright.LocatorClickOptions{Timeout: ms(b.timeouts.Action)}); err != nil {
			return errs.Wrap(errs.Interaction, "click "+sel, err)
		}
		return nil
	}

	if err := b.revealSidePanel(); err != nil {
		return err
	}
	clickErr := loc.Click(playwright.LocatorClickOptions{Timeout: ms(10 * time.Second)})
	if clickErr == nil {
		return nil
	}
	b.log.Warn("Mobile click failed, using JavaScript approach", zap.String("module", item.Label), zap.Error(clickErr))
	found, err := b.page.Evaluate(`(fragment) => {
		const link = document.querySelector('a[href*="' + fragment + '"]');
		if (link) link.click();
		return !!link;
	}`, linkFragment(item.Route))
	if err != nil {
		return errs.Wrap(errs.Interaction, "scripted click "+item.Label, err)
	}
	if ok, _ := found.(bool); ok {
		return nil
	}
	origin, err := urlutil.Origin(b.page.URL())
	if err != nil {
		return errs.Wrap(errs.Interaction, "no link for module "+item.Label, err)
	}
	return b.MobileNavigate(urlutil.BuildAbsolute(origin, item.Route))
}

// verifyModuleURL asserts the page URL matches the item's canonical pattern.
// The failure names the label, the pattern and the URL actually reached.
func (b *Base) verifyModuleURL(item menu.Item) error {
	if err := b.expect(8 * time.Second).Page(b.page).ToHaveURL(item.Regexp()); err != nil {
		return errs.Wrap(errs.Assertion, fmt.Sprintf("module %q: url %q does not match %s", item.Label, b.page.URL(), item.Pattern), err)
	}
	return nil
}

// revealSidePanel opens the hamburger menu when the side panel is hidden.
func (b *Base) revealSidePanel() error {
	panel := b.page.Locator(selSidePanel)
	if visible, _ := panel.IsVisible(); visible {
		return nil
	}
	hamburger := b.page.Locator(selHamburger).First()
	if visible, _ := hamburger.IsVisible(); visible {
		if err := hamburger.Click(playwright.LocatorClickOptions{Timeout: ms(b.timeouts.Action)}); err != nil {
			return errs.Wrap(errs.Interaction, "open hamburger menu", err)
		}
		b.pause(500 * time.Millisecond)
	}
	if visible, _ := panel.IsVisible(); !visible {
		b.log.Info("Mobile layout detected - sidebar may be collapsed but search functionality still available")
	}
	return nil
}

// linkFragment reduces a module route to "/<module>/<screen>" so it matches
// the sidebar link regardless of trailing path parameters.
func linkFragment(route string) string {
	rest := strings.TrimPrefix(route, "/web/index.php")
	var parts []string
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, seg)
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		return route
	}
	return "/" + strings.Join(parts, "/")
}

// OpenUserMenu opens the user dropdown in the top bar.
func (p *DashboardPage) OpenUserMenu() error {
	if err := p.UserMenuTab.Click(playwright.LocatorClickOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "open user menu", err)
	}
	if err := p.visible(p.UserDropdown, "user dropdown", 0); err != nil {
		return err
	}
	p.log.Info("User dropdown opened and displays user information")
	return nil
}

// ClickLogout clicks the Logout entry of the open user menu.
func (p *DashboardPage) ClickLogout() error {
	if err := p.visible(p.LogoutLink, "logout option", 0); err != nil {
		return err
	}
	if err := p.LogoutLink.Click(playwright.LocatorClickOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "click logout", err)
	}
	p.log.Info("Logout option clicked")
	return nil
}

// VerifyLoggedOut asserts the browser is back on a usable login form.
func (p *DashboardPage) VerifyLoggedOut() error {
	if err := p.page.WaitForURL(loginGlob, playwright.PageWaitForURLOptions{
		Timeout: ms(10 * time.Second),
	}); err != nil {
		return errs.Wrap(errs.Assertion, "login url after logout", err)
	}
	for _, sel := range []string{selUsername, selPassword, selSubmit} {
		if err := p.visible(p.page.Locator(sel), sel, 0); err != nil {
			return err
		}
	}
	p.log.Info("Session completely terminated and redirected to login page")
	return nil
}

// VerifyBackDoesNotRestore goes back in history and asserts the login form
// is still what the user sees and no dashboard content came back.
func (p *DashboardPage) VerifyBackDoesNotRestore() error {
	if _, err := p.page.GoBack(); err != nil {
		return errs.Wrap(errs.Interaction, "go back", err)
	}
	if err := p.visible(p.page.Locator(selUsername), "username field after back", 5*time.Second); err != nil {
		return err
	}
	for _, sel := range []string{selDashboardTitle, selSidePanel} {
		if err := p.hidden(p.page.Locator(sel), sel+" after back", 0); err != nil {
			return err
		}
	}
	p.log.Info("Browser back button does not access protected content after logout")
	return nil
}

// Logout signs out through the user menu and verifies the session is gone.
func (p *DashboardPage) Logout() error {
	for _, step := range []func() error{
		p.OpenUserMenu,
		p.ClickLogout,
		p.VerifyLoggedOut,
		p.VerifyBackDoesNotRestore,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// TourModules navigates through labels in order, DefaultTour when empty.
func (p *DashboardPage) TourModules(labels ...string) error {
	if len(labels) == 0 {
		labels = DefaultTour
	}
	for _, label := range labels {
		if err := p.NavigateTo(label); err != nil {
			return err
		}
	}
	p.log.Info("Session persists across module navigation", zap.Strings("modules", labels))
	return nil
}
