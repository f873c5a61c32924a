package pages

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/errs"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
)

// filterSettle is how long the sidebar filter is given to apply after input.
const filterSettle = 500 * time.Millisecond

// filterApplied holds once every sidebar label contains the term, ignoring
// case. The sidebar drops entries that do not match.
const filterApplied = `(term) => {
	const needle = term.toLowerCase();
	return Array.from(document.querySelectorAll('.oxd-main-menu-item .oxd-text--span'))
		.every((el) => el.textContent.toLowerCase().includes(needle));
}`

// Inputs that must be treated as plain text by the sidebar filter.
var (
	NoMatchInputs   = []string{"!@#$%", "12345"}
	InjectionInputs = []string{"<script>alert(1)</script>", "Admin&lt;&gt;", "{{7*7}}"}
)

// SearchPage drives the sidebar search filter. It reaches the dashboard
// through an embedded LoginPage.
type SearchPage struct {
	*Base

	Login        *LoginPage
	catalog      *menu.Catalog
	SearchField  playwright.Locator
	SidePanel    playwright.Locator
	MenuItems    playwright.Locator
	VisibleItems playwright.Locator

	dialogs    atomic.Int64
	pageErrors atomic.Int64
}

// NewSearchPage wraps page. A nil catalog selects menu.Default(). Dialogs
// opened by the page are dismissed and counted, as are uncaught page errors.
func NewSearchPage(page playwright.Page, catalog *menu.Catalog, opts ...Option) *SearchPage {
	if catalog == nil {
		catalog = menu.Default()
	}
	b := NewBase(page, opts...)
	items := page.Locator(selMenuItem)
	p := &SearchPage{
		Base:         b,
		Login:        newLoginPage(b),
		catalog:      catalog,
		SearchField:  page.Locator(selSearch),
		SidePanel:    page.Locator(selSidePanel),
		MenuItems:    items,
		VisibleItems: items.Filter(playwright.LocatorFilterOptions{Has: page.Locator(selMenuLabel)}),
	}
	page.OnDialog(func(d playwright.Dialog) {
		p.dialogs.Add(1)
		p.log.Warn("Unexpected dialog", zap.String("type", d.Type()), zap.String("message", d.Message()))
		_ = d.Dismiss()
	})
	page.OnPageError(func(err error) {
		p.pageErrors.Add(1)
		p.log.Warn("Uncaught page error", zap.Error(err))
	})
	return p
}

// Catalog returns the module catalog the page verifies against.
func (p *SearchPage) Catalog() *menu.Catalog { return p.catalog }

// LoginToDashboard signs in from baseURL and makes sure the side panel is
// reachable. On mobile the hamburger menu is opened when the panel is
// collapsed.
func (p *SearchPage) LoginToDashboard(baseURL, username, password string) error {
	if err := p.Goto(LoginURL(baseURL), 30*time.Second); err != nil {
		return err
	}
	if err := p.Login.Login(username, password); err != nil {
		return err
	}
	if err := p.page.WaitForURL(dashboardGlob, playwright.PageWaitForURLOptions{Timeout: ms(10 * time.Second)}); err != nil {
		p.log.Warn("Dashboard index not reached, accepting any dashboard url", zap.Error(err))
		if err := p.page.WaitForURL(anyDashboardGlob, playwright.PageWaitForURLOptions{Timeout: ms(10 * time.Second)}); err != nil {
			return errs.Wrap(errs.Assertion, "dashboard url", err)
		}
	}
	if err := p.visible(p.Login.DashboardTitle, "dashboard heading", 10*time.Second); err != nil {
		return err
	}

	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	if info.IsMobile {
		if err := p.revealSidePanel(); err != nil {
			return err
		}
	} else if err := p.visible(p.SidePanel, "side panel", 0); err != nil {
		return err
	}
	p.log.Info("Successfully logged in and navigated to dashboard")
	return nil
}

// FocusSearch clicks the search field. On mobile the page is scrolled to
// the top first, the field inside the revealed side panel is preferred and a
// blocked click falls back to focusing the field.
func (p *SearchPage) FocusSearch() error {
	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	if info.IsMobile {
		if err := p.ScrollToTop(); err != nil {
			return err
		}
	}
	sel, err := p.ResponsiveSelector(selPanelSearch, selSearch)
	if err != nil {
		return err
	}
	field := p.page.Locator(sel)
	if info.IsMobile {
		if err := p.visible(field, "search field", p.AdjustedTimeout(10*time.Second)); err != nil {
			return err
		}
		if err := p.Click(sel, 0); err != nil {
			p.log.Warn("Mobile click blocked, using direct focus approach", zap.Error(err))
			if err := field.Focus(); err != nil {
				return errs.Wrap(errs.Interaction, "focus search field", err)
			}
		}
	} else {
		if err := p.visible(field, "search field", 0); err != nil {
			return err
		}
		if err := field.Click(playwright.LocatorClickOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
			return errs.Wrap(errs.Interaction, "click search field", err)
		}
	}
	p.log.Info("Search field clicked and focused", zap.String("device", string(info.Class)))
	return nil
}

// EnterTerm fills the search field and waits for the sidebar to show only
// matching entries. A filter that never settles is left to the assertions
// that follow.
func (p *SearchPage) EnterTerm(term string) error {
	if err := p.SearchField.Fill(term, playwright.LocatorFillOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "enter search term", err)
	}
	if err := p.WaitFor("sidebar filter", filterApplied, term, 0); err != nil {
		p.log.Warn("Sidebar filter did not settle", zap.String("term", term), zap.Error(err))
	}
	p.log.Info("Entered search term", zap.String("term", term))
	return nil
}

// Clear empties the search field.
func (p *SearchPage) Clear() error {
	if err := p.SearchField.Clear(playwright.LocatorClearOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "clear search field", err)
	}
	p.pause(filterSettle)
	p.log.Info("Search field cleared")
	return nil
}

// SelectAllAndDelete selects the field's text and deletes it from the
// keyboard.
func (p *SearchPage) SelectAllAndDelete() error {
	if err := p.SearchField.SelectText(); err != nil {
		return errs.Wrap(errs.Interaction, "select search text", err)
	}
	if err := p.page.Keyboard().Press("Delete"); err != nil {
		return errs.Wrap(errs.Interaction, "press Delete", err)
	}
	p.pause(filterSettle)
	p.log.Info("Selected all text and deleted")
	return nil
}

// VisibleCount returns the number of labelled sidebar items.
func (p *SearchPage) VisibleCount() (int, error) {
	n, err := p.VisibleItems.Count()
	if err != nil {
		return 0, errs.Wrap(errs.Interaction, "count menu items", err)
	}
	p.log.Info("Visible menu items count", zap.Int("count", n))
	return n, nil
}

func (p *SearchPage) item(label string) playwright.Locator {
	return p.page.Locator(menuItemSelector(label))
}

// VerifyVisible asserts the item labelled label is shown.
func (p *SearchPage) VerifyVisible(label string) error {
	if err := p.visible(p.item(label), "menu item "+label, 0); err != nil {
		return err
	}
	p.log.Info("Verified menu item is visible", zap.String("item", label))
	return nil
}

// VerifyHidden asserts the item labelled label is not shown.
func (p *SearchPage) VerifyHidden(label string) error {
	if err := checked(p.expect(0).Locator(p.item(label)).ToBeHidden(), "menu item "+label+" hidden"); err != nil {
		return err
	}
	p.log.Info("Verified menu item is not visible", zap.String("item", label))
	return nil
}

// VerifyAllVisible asserts every label is shown.
func (p *SearchPage) VerifyAllVisible(labels ...string) error {
	for _, label := range labels {
		if err := p.VerifyVisible(label); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAllHidden asserts no label is shown.
func (p *SearchPage) VerifyAllHidden(labels ...string) error {
	for _, label := range labels {
		if err := p.VerifyHidden(label); err != nil {
			return err
		}
	}
	return nil
}

// VerifyNoResults asserts the filter left no item visible.
func (p *SearchPage) VerifyNoResults() error {
	if err := checked(p.expect(0).Locator(p.VisibleItems).ToHaveCount(0), "no menu items"); err != nil {
		return err
	}
	p.log.Info("Verified no results state - no menu items visible")
	return nil
}

// verifyAtMostOne asserts the filter left at most one item visible.
func (p *SearchPage) verifyAtMostOne() error {
	n, err := p.VisibleCount()
	if err != nil {
		return err
	}
	if n > 1 {
		return errs.New(errs.Assertion, fmt.Sprintf("expected at most 1 menu item, found %d", n))
	}
	return nil
}

// VerifyExactMatch enters term and asserts label is the only item shown.
func (p *SearchPage) VerifyExactMatch(term, label string) error {
	if err := p.EnterTerm(term); err != nil {
		return err
	}
	if err := p.VerifyVisible(label); err != nil {
		return err
	}
	if err := p.verifyAtMostOne(); err != nil {
		return err
	}
	p.log.Info("Verified exact match filtering", zap.String("term", term), zap.String("item", label))
	return nil
}

// VerifyPartial enters a partial term and asserts every label is shown.
func (p *SearchPage) VerifyPartial(term string, labels ...string) error {
	if err := p.EnterTerm(term); err != nil {
		return err
	}
	if err := p.VerifyAllVisible(labels...); err != nil {
		return err
	}
	p.log.Info("Verified partial matching", zap.String("term", term))
	return nil
}

// VerifyCaseInsensitive enters term and asserts label is shown along with
// exactly the other catalog entries term matches.
func (p *SearchPage) VerifyCaseInsensitive(term, label string) error {
	if err := p.EnterTerm(term); err != nil {
		return err
	}
	if err := p.VerifyVisible(label); err != nil {
		return err
	}
	if err := p.VerifyMatchesCatalog(term); err != nil {
		return err
	}
	p.log.Info("Verified case-insensitive search", zap.String("term", term), zap.String("item", label))
	return nil
}

// VerifySpecialInput enters term and asserts it matched nothing, opened no
// dialog and raised no uncaught page error.
func (p *SearchPage) VerifySpecialInput(term string) error {
	dialogs, pageErrors := p.dialogs.Load(), p.pageErrors.Load()
	if err := p.EnterTerm(term); err != nil {
		return err
	}
	if err := p.VerifyNoResults(); err != nil {
		return err
	}
	if n := p.dialogs.Load() - dialogs; n > 0 {
		return errs.New(errs.Assertion, fmt.Sprintf("input %q opened %d dialog(s)", term, n))
	}
	if n := p.pageErrors.Load() - pageErrors; n > 0 {
		return errs.New(errs.Assertion, fmt.Sprintf("input %q raised %d page error(s)", term, n))
	}
	p.log.Info("Verified special characters handled without errors", zap.String("term", term))
	return nil
}

// VerifyMatchesCatalog asserts the visible labels are exactly the catalog
// labels containing term, ignoring case.
func (p *SearchPage) VerifyMatchesCatalog(term string) error {
	want := p.catalog.Matching(term)
	if err := checked(p.expect(0).Locator(p.VisibleItems).ToHaveCount(len(want)), fmt.Sprintf("%d menu items for %q", len(want), term)); err != nil {
		return err
	}
	texts, err := p.VisibleItems.Locator(selMenuLabel).AllTextContents()
	if err != nil {
		return errs.Wrap(errs.Interaction, "read menu labels", err)
	}
	if diff := labelDiff(want, texts); diff != "" {
		return errs.New(errs.Assertion, fmt.Sprintf("filter %q: %s", term, diff))
	}
	return nil
}

// labelDiff compares two label sets, ignoring order and surrounding
// whitespace, and describes the difference. It returns "" when they match.
func labelDiff(want, got []string) string {
	norm := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, strings.TrimSpace(s))
		}
		sort.Strings(out)
		return out
	}
	w, g := norm(want), norm(got)
	if strings.Join(w, "\x00") == strings.Join(g, "\x00") && len(w) == len(g) {
		return ""
	}
	return fmt.Sprintf("want %v, got %v", w, g)
}

// RapidType fills each step in quick succession, as a fast typist would.
func (p *SearchPage) RapidType(steps ...string) error {
	for i, step := range steps {
		if err := p.SearchField.Fill(step, playwright.LocatorFillOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
			return errs.Wrap(errs.Interaction, "rapid input "+step, err)
		}
		if i == len(steps)-1 {
			p.pause(100 * time.Millisecond)
		} else {
			p.pause(50 * time.Millisecond)
		}
	}
	p.log.Info("Performed rapid input sequence", zap.Strings("steps", steps))
	return nil
}

// Prefixes returns the successive prefixes of word: "Adm" yields A, Ad, Adm.
func Prefixes(word string) []string {
	runes := []rune(word)
	out := make([]string, 0, len(runes))
	for i := 1; i <= len(runes); i++ {
		out = append(out, string(runes[:i]))
	}
	return out
}

// VerifyFocused asserts the search field has focus.
func (p *SearchPage) VerifyFocused() error {
	if err := checked(p.expect(0).Locator(p.SearchField).ToBeFocused(), "search field focused"); err != nil {
		return err
	}
	p.log.Info("Verified search field is focused")
	return nil
}

// VerifyValue asserts the search field holds want.
func (p *SearchPage) VerifyValue(want string) error {
	if err := checked(p.expect(0).Locator(p.SearchField).ToHaveValue(want), fmt.Sprintf("search value %q", want)); err != nil {
		return err
	}
	p.log.Info("Verified search field value", zap.String("value", want))
	return nil
}

// Value returns the current search field value.
func (p *SearchPage) Value() (string, error) {
	v, err := p.SearchField.InputValue(playwright.LocatorInputValueOptions{Timeout: ms(p.timeouts.Action)})
	if err != nil {
		return "", errs.Wrap(errs.Interaction, "read search value", err)
	}
	p.log.Info("Current search field value", zap.String("value", v))
	return v, nil
}

// maxTabs bounds the Tab presses TabToSearch spends looking for the field.
const maxTabs = 4

// TabToSearch clicks the brand banner and tabs forward until the search
// field has focus. Two presses reach it from the banner; engines that skip
// buttons on Tab get there sooner.
func (p *SearchPage) TabToSearch() error {
	if err := p.page.Locator(selBrandBanner).Click(playwright.LocatorClickOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "click brand banner", err)
	}
	for tabs := 1; tabs <= maxTabs; tabs++ {
		if err := p.PressKey("Tab"); err != nil {
			return err
		}
		focused, err := p.page.Evaluate(`(sel) => document.activeElement === document.querySelector(sel)`, selSearch)
		if err != nil {
			return errs.Wrap(errs.Interaction, "read focused element", err)
		}
		if ok, _ := focused.(bool); ok {
			p.log.Info("Navigated to search field using keyboard", zap.Int("tabs", tabs))
			return nil
		}
	}
	return errs.New(errs.Assertion, fmt.Sprintf("search field not reached after %d Tab presses", maxTabs))
}

// TypeWithKeyboard types text into the focused element.
func (p *SearchPage) TypeWithKeyboard(text string) error {
	if err := p.page.Keyboard().Type(text); err != nil {
		return errs.Wrap(errs.Interaction, "type "+text, err)
	}
	p.pause(filterSettle)
	p.log.Info("Typed using keyboard", zap.String("text", text))
	return nil
}

// PressKey presses key on the focused element.
func (p *SearchPage) PressKey(key string) error {
	if err := p.page.Keyboard().Press(key); err != nil {
		return errs.Wrap(errs.Interaction, "press "+key, err)
	}
	if key == "Escape" {
		p.pause(300 * time.Millisecond)
	}
	p.log.Info("Pressed key", zap.String("key", key))
	return nil
}

// OpenItem clicks the filtered item labelled label and asserts the browser
// reaches that module's canonical URL.
func (p *SearchPage) OpenItem(label string) error {
	item, ok := p.catalog.Lookup(label)
	if !ok {
		return errs.New(errs.InvalidArgument, "unknown module "+quoteSelectorText(label))
	}
	info, err := p.PlatformInfo()
	if err != nil {
		return err
	}
	if info.IsMobile {
		if err := p.ScrollIntoView(menuItemSelector(item.Label)); err != nil {
			p.log.Warn("Could not scroll to menu item", zap.String("item", item.Label), zap.Error(err))
		}
	}
	if err := p.openMenuItem(item, info.IsMobile); err != nil {
		return err
	}
	if err := p.verifyModuleURL(item); err != nil {
		return err
	}
	p.log.Info("Clicked menu item and verified navigation", zap.String("item", item.Label), zap.String("device", string(info.Class)))
	return nil
}

// ExactMatchFlow focuses the field, filters by term, asserts label is the
// only result and opens it.
func (p *SearchPage) ExactMatchFlow(term, label string) error {
	if err := p.FocusSearch(); err != nil {
		return err
	}
	if err := p.VerifyExactMatch(term, label); err != nil {
		return err
	}
	return p.OpenItem(label)
}

// PartialMatchFlow filters by "Info" and "Rec" and checks substring matches
// and the modules they exclude.
func (p *SearchPage) PartialMatchFlow() error {
	if err := p.VerifyPartial("Info", "My Info"); err != nil {
		return err
	}
	if err := p.VerifyAllHidden("Admin", "Leave", "Time", "Dashboard"); err != nil {
		return err
	}
	if err := p.Clear(); err != nil {
		return err
	}
	return p.VerifyPartial("Rec", "Recruitment")
}

// CaseInsensitiveFlow checks lower, upper and mixed case terms.
func (p *SearchPage) CaseInsensitiveFlow() error {
	cases := []struct{ term, label string }{
		{"dashboard", "Dashboard"},
		{"ADMIN", "Admin"},
		{"TiMe", "Time"},
	}
	for i, c := range cases {
		if i > 0 {
			if err := p.Clear(); err != nil {
				return err
			}
		}
		if err := p.VerifyCaseInsensitive(c.term, c.label); err != nil {
			return err
		}
	}
	return nil
}

// NoResultsFlow checks a term with no match, then punctuation and digits.
func (p *SearchPage) NoResultsFlow() error {
	if err := p.EnterTerm("xyz123"); err != nil {
		return err
	}
	if err := p.VerifyNoResults(); err != nil {
		return err
	}
	return p.specialInputs(NoMatchInputs)
}

// SecurityFlow checks that script, entity and template payloads are
// treated as plain text.
func (p *SearchPage) SecurityFlow() error {
	first := InjectionInputs[0]
	if err := p.VerifySpecialInput(first); err != nil {
		return err
	}
	if err := p.VerifyNoResults(); err != nil {
		return err
	}
	return p.specialInputs(InjectionInputs[1:])
}

func (p *SearchPage) specialInputs(inputs []string) error {
	for _, in := range inputs {
		if err := p.Clear(); err != nil {
			return err
		}
		if err := p.VerifySpecialInput(in); err != nil {
			return err
		}
	}
	return nil
}

// ClearAndResetFlow filters by "Admin", deletes the term from the keyboard
// and asserts the full menu comes back.
func (p *SearchPage) ClearAndResetFlow() error {
	if err := p.EnterTerm("Admin"); err != nil {
		return err
	}
	if err := p.VerifyVisible("Admin"); err != nil {
		return err
	}
	if err := p.SelectAllAndDelete(); err != nil {
		return err
	}
	if err := p.VerifyAllVisible("Admin", "PIM", "Leave", "Dashboard", "Time"); err != nil {
		return err
	}
	return p.VerifyMatchesCatalog("")
}

// RapidInputFlow types "Admin" then "Leave" one prefix at a time and
// asserts the filter settles on the final term each time.
func (p *SearchPage) RapidInputFlow() error {
	if err := p.SearchField.Click(playwright.LocatorClickOptions{Timeout: ms(p.timeouts.Action)}); err != nil {
		return errs.Wrap(errs.Interaction, "click search field", err)
	}
	if err := p.RapidType(Prefixes("Admin")...); err != nil {
		return err
	}
	if err := p.VerifyVisible("Admin"); err != nil {
		return err
	}
	if err := p.verifyAtMostOne(); err != nil {
		return err
	}
	if err := p.SearchField.Clear(); err != nil {
		return errs.Wrap(errs.Interaction, "clear search field", err)
	}
	if err := p.RapidType(Prefixes("Leave")...); err != nil {
		return err
	}
	if err := p.VerifyVisible("Leave"); err != nil {
		return err
	}
	return p.verifyAtMostOne()
}

// MultiWordFlow checks "My Info" by full phrase and by each word.
func (p *SearchPage) MultiWordFlow() error {
	for i, term := range []string{"My Info", "My", "Info"} {
		if i > 0 {
			if err := p.Clear(); err != nil {
				return err
			}
		}
		if err := p.EnterTerm(term); err != nil {
			return err
		}
		if err := p.VerifyVisible("My Info"); err != nil {
			return err
		}
	}
	return nil
}

// KeyboardFlow tabs to the field, types "Time" from the keyboard and
// presses Enter, Escape and Tab without getting trapped.
func (p *SearchPage) KeyboardFlow() error {
	if err := p.TabToSearch(); err != nil {
		return err
	}
	if err := p.VerifyFocused(); err != nil {
		return err
	}
	if err := p.TypeWithKeyboard("Time"); err != nil {
		return err
	}
	if err := p.VerifyVisible("Time"); err != nil {
		return err
	}
	for _, key := range []string{"Enter", "Escape", "Tab"} {
		if err := p.PressKey(key); err != nil {
			return err
		}
	}
	return checked(p.expect(0).Locator(p.SearchField).Not().ToBeFocused(), "focus leaves the search field on Tab")
}

// PersistenceFlow filters by "PIM", opens it, then returns to the
// dashboard. The search term is cleared by navigation: the field must be
// empty on both pages.
func (p *SearchPage) PersistenceFlow() error {
	if err := p.EnterTerm("PIM"); err != nil {
		return err
	}
	if err := p.VerifyVisible("PIM"); err != nil {
		return err
	}
	if err := p.OpenItem("PIM"); err != nil {
		return err
	}
	if err := p.VerifyValue(""); err != nil {
		return err
	}
	if err := p.OpenItem("Dashboard"); err != nil {
		return err
	}
	if err := p.page.WaitForURL(anyDashboardGlob, playwright.PageWaitForURLOptions{Timeout: ms(10 * time.Second)}); err != nil {
		return errs.Wrap(errs.Assertion, "dashboard url", err)
	}
	if err := p.VerifyValue(""); err != nil {
		return err
	}
	p.log.Info("Search persistence verified: term cleared by navigation")
	return nil
}
