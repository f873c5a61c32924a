package pages

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/kuitang/orangehrm-e2e/internal/artifacts"
	"github.com/kuitang/orangehrm-e2e/internal/errs"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
	"github.com/kuitang/orangehrm-e2e/internal/platform"
)

func newTestBase(page *fakePage, opts ...Option) *Base {
	return NewBase(page, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func TestBrowserName(t *testing.T) {
	for name, want := range map[string]platform.Engine{
		"chromium": platform.Chromium,
		"firefox":  platform.Firefox,
		"webkit":   platform.WebKit,
		"":         platform.Chromium,
	} {
		b := newTestBase(newFakePage(name, 1280))
		assert.Equal(t, want, b.BrowserName(), "browser %q", name)
	}
}

func TestAdjustedTimeout(t *testing.T) {
	base := 10 * time.Second
	assert.Equal(t, 10*time.Second, newTestBase(newFakePage("chromium", 1280)).AdjustedTimeout(base))
	assert.Equal(t, 11*time.Second, newTestBase(newFakePage("firefox", 1280)).AdjustedTimeout(base))
	assert.Equal(t, 12*time.Second, newTestBase(newFakePage("webkit", 1280)).AdjustedTimeout(base))
}

func testPlatformInfo_FollowsViewportWidth(t *rapid.T) {
	width := rapid.IntRange(1, 4000).Draw(t, "width")
	b := newTestBase(newFakePage("chromium", width))

	info, err := b.PlatformInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Class != platform.ClassifyWidth(width) {
		t.Fatalf("width %d classified as %s", width, info.Class)
	}
	if info.UserAgent != "Mozilla/5.0 (fake)" {
		t.Fatalf("user agent %q", info.UserAgent)
	}
}

func TestPlatformInfo_FollowsViewportWidth(t *testing.T) {
	rapid.Check(t, testPlatformInfo_FollowsViewportWidth)
}

func TestPlatformInfo_UnknownViewportIsDesktop(t *testing.T) {
	info, err := newTestBase(newFakePage("webkit", 0)).PlatformInfo()
	require.NoError(t, err)
	assert.True(t, info.IsDesktop)
	assert.Nil(t, info.Viewport)
}

func TestClick_PrimarySucceeds(t *testing.T) {
	page := newFakePage("webkit", 1280)
	require.NoError(t, newTestBase(page).Click(selSubmit, time.Second))
	assert.Equal(t, "click", page.log.String())
}

func TestClick_FallbackFollowsCapabilityTable(t *testing.T) {
	cases := map[string]string{
		"chromium": "click,click:force",
		"firefox":  "click,click:force",
		"webkit":   "click,focus,press:Enter",
	}
	for engine, want := range cases {
		t.Run(engine, func(t *testing.T) {
			page := newFakePage(engine, 1280)
			page.locators[selSubmit] = &fakeLocator{log: page.log, clickErrs: []error{errors.New("intercepted")}}

			require.NoError(t, newTestBase(page).Click(selSubmit, time.Second))
			assert.Equal(t, want, page.log.String())
		})
	}
}

func TestClick_FallbackErrorPropagates(t *testing.T) {
	page := newFakePage("chromium", 1280)
	page.locators[selSubmit] = &fakeLocator{log: page.log, clickErrs: []error{
		errors.New("intercepted"),
		errors.New("detached from DOM"),
	}}

	err := newTestBase(page).Click(selSubmit, time.Second)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Interaction))
	assert.Contains(t, err.Error(), "detached from DOM")
	assert.NotContains(t, err.Error(), "intercepted")
}

func TestClick_WebKitFocusFailure(t *testing.T) {
	page := newFakePage("webkit", 1280)
	page.locators[selSubmit] = &fakeLocator{
		log:       page.log,
		clickErrs: []error{errors.New("intercepted")},
		focusErr:  errors.New("not focusable"),
	}

	err := newTestBase(page).Click(selSubmit, time.Second)
	assert.True(t, errs.Is(err, errs.Interaction))
	assert.Equal(t, "click,focus", page.log.String(), "Enter is not pressed when focus fails")
}

func TestFill_FallbackClearsAndTypes(t *testing.T) {
	page := newFakePage("firefox", 1280)
	page.locators[selUsername] = &fakeLocator{log: page.log, fillErr: errors.New("not editable")}

	require.NoError(t, newTestBase(page).Fill(selUsername, "Admin", time.Second))
	assert.Equal(t, "fill:Admin,clear,type:Admin@50", page.log.String())
}

func TestRunWithFallback(t *testing.T) {
	log := zap.NewNop()
	ok := func() error { return nil }
	fail := func() error { return errors.New("boom") }
	fallbackRan := false
	track := func() error { fallbackRan = true; return nil }

	require.NoError(t, runWithFallback(log, "op", ok, fail))
	require.NoError(t, runWithFallback(log, "op", fail, track))
	assert.True(t, fallbackRan)

	err := runWithFallback(log, "click x", fail, fail)
	assert.True(t, errs.Is(err, errs.Interaction))
	assert.Equal(t, "click x", errs.MessageOf(err))
}

func TestScreenshot_SavesNamedFile(t *testing.T) {
	dir := t.TempDir()
	store := artifacts.NewStore(dir)
	page := newFakePage("webkit", 390)

	local, err := newTestBase(page, WithScreenshots(store)).Screenshot("TC_LOGIN_001-success")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TC_LOGIN_001-success-webkit-mobile-\d+\.png$`), filepath.Base(local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, page.png, data)
}

func TestScreenshot_RequiresStore(t *testing.T) {
	_, err := newTestBase(newFakePage("chromium", 1280)).Screenshot("x")
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestWithTimeouts_KeepsDefaultsForZeroFields(t *testing.T) {
	b := newTestBase(newFakePage("chromium", 1280), WithTimeouts(Timeouts{Action: 20 * time.Second}))
	got := b.Timeouts()
	assert.Equal(t, 20*time.Second, got.Action)
	assert.Equal(t, DefaultTimeouts().Navigation, got.Navigation)
	assert.Equal(t, DefaultTimeouts().Expect, got.Expect)
}

func TestFill_ForceFallback(t *testing.T) {
	page := newFakePage("chromium", 1280)
	loc := &fakeLocator{log: page.log}
	caps := platform.Capabilities{Engine: platform.Chromium, Fill: platform.FillForce}

	require.NoError(t, fillFallback(loc, caps, "Admin", time.Second)())
	assert.Equal(t, "fill:force:Admin", page.log.String())
}

func TestWaitFor_StretchesTimeoutOnMobile(t *testing.T) {
	mobile := newFakePage("chromium", 390)
	require.NoError(t, newTestBase(mobile, WithTimeouts(Timeouts{Expect: 4 * time.Second})).WaitFor("filter", "() => true", "Admin", 0))
	assert.Equal(t, "waitfn:Admin@6000", mobile.log.String())

	desktop := newFakePage("chromium", 1280)
	require.NoError(t, newTestBase(desktop).WaitFor("filter", "() => true", "Admin", 2*time.Second))
	assert.Equal(t, "waitfn:Admin@2000", desktop.log.String())
}

func TestMobileNavigate(t *testing.T) {
	desktop := newFakePage("chromium", 1280)
	require.NoError(t, newTestBase(desktop).MobileNavigate("http://hrm.test/x"))
	assert.Empty(t, desktop.log.String(), "desktop pages are left alone")

	mobile := newFakePage("webkit", 390)
	require.NoError(t, newTestBase(mobile).MobileNavigate("http://hrm.test/x"))
	assert.Equal(t, "href:http://hrm.test/x,load", mobile.log.String())
}

func TestResponsiveSelector(t *testing.T) {
	cases := []struct {
		width        int
		panelVisible bool
		want         string
	}{
		{390, true, selPanelSearch},
		{390, false, selSearch},
		{1280, true, selSearch},
	}
	for _, tc := range cases {
		page := newFakePage("chromium", tc.width)
		page.locators[selPanelSearch] = &fakeLocator{log: page.log, visible: tc.panelVisible}

		got, err := newTestBase(page).ResponsiveSelector(selPanelSearch, selSearch)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "width %d, panel visible %v", tc.width, tc.panelVisible)
	}
}

func TestOpenMenuItem_MobileFallbacks(t *testing.T) {
	item, ok := menu.Default().Lookup("PIM")
	require.True(t, ok)

	newPage := func(linkFound bool) *fakePage {
		page := newFakePage("webkit", 390)
		page.url = "http://hrm.test/web/index.php/dashboard/index"
		page.linkFound = linkFound
		page.locators[selSidePanel] = &fakeLocator{log: page.log, visible: true}
		page.locators[menuItemSelector(item.Label)] = &fakeLocator{log: page.log, clickErrs: []error{errors.New("intercepted")}}
		return page
	}

	scripted := newPage(true)
	require.NoError(t, newTestBase(scripted).openMenuItem(item, true))
	assert.Equal(t, "click,link:/pim/viewEmployeeList", scripted.log.String())

	direct := newPage(false)
	require.NoError(t, newTestBase(direct).openMenuItem(item, true))
	assert.Equal(t, "click,link:/pim/viewEmployeeList,href:http://hrm.test/web/index.php/pim/viewEmployeeList,load", direct.log.String())
}

func TestDashboardHeadingTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, dashboardHeadingTimeout)
}
