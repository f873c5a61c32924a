package pages

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// The fakes embed the playwright interfaces so they satisfy them; only the
// methods the page objects call in unit tests are implemented.

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *callLog) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.calls, ",")
}

type fakeBrowserType struct {
	playwright.BrowserType
	name string
}

func (f fakeBrowserType) Name() string { return f.name }

type fakeBrowser struct {
	playwright.Browser
	bt fakeBrowserType
}

func (f fakeBrowser) BrowserType() playwright.BrowserType { return f.bt }

type fakeContext struct {
	playwright.BrowserContext
	browser playwright.Browser
}

func (f fakeContext) Browser() playwright.Browser { return f.browser }

type fakeKeyboard struct {
	playwright.Keyboard
	log  *callLog
	page *fakePage
}

func (f fakeKeyboard) Press(key string, _ ...playwright.KeyboardPressOptions) error {
	f.log.add("press:%s", key)
	if key == "Tab" && f.page != nil {
		f.page.tabs++
	}
	return nil
}

// pwLocator names the embedded interface so its field does not collide with
// the Locator method it promotes.
type pwLocator = playwright.Locator

type fakeLocator struct {
	pwLocator
	log *callLog

	// clickErrs are returned by successive Click calls; later calls succeed.
	clickErrs []error
	fillErr   error
	focusErr  error
	clicks    int
	visible   bool
}

func (f *fakeLocator) Click(options ...playwright.LocatorClickOptions) error {
	force := false
	if len(options) > 0 && options[0].Force != nil {
		force = *options[0].Force
	}
	if force {
		f.log.add("click:force")
	} else {
		f.log.add("click")
	}
	f.clicks++
	if f.clicks <= len(f.clickErrs) {
		return f.clickErrs[f.clicks-1]
	}
	return nil
}

func (f *fakeLocator) Focus(...playwright.LocatorFocusOptions) error {
	f.log.add("focus")
	return f.focusErr
}

func (f *fakeLocator) Fill(value string, options ...playwright.LocatorFillOptions) error {
	if len(options) > 0 && options[0].Force != nil && *options[0].Force {
		f.log.add("fill:force:%s", value)
		return nil
	}
	f.log.add("fill:%s", value)
	return f.fillErr
}

func (f *fakeLocator) IsVisible(...playwright.LocatorIsVisibleOptions) (bool, error) {
	return f.visible, nil
}

func (f *fakeLocator) First() playwright.Locator { return f }

func (f *fakeLocator) Filter(...playwright.LocatorFilterOptions) playwright.Locator { return f }

func (f *fakeLocator) Clear(...playwright.LocatorClearOptions) error {
	f.log.add("clear")
	return nil
}

func (f *fakeLocator) PressSequentially(text string, options ...playwright.LocatorPressSequentiallyOptions) error {
	delay := 0.0
	if len(options) > 0 && options[0].Delay != nil {
		delay = *options[0].Delay
	}
	f.log.add("type:%s@%.0f", text, delay)
	return nil
}

type fakePage struct {
	playwright.Page
	log       *callLog
	viewport  *playwright.Size
	userAgent string
	ctx       playwright.BrowserContext
	locators  map[string]*fakeLocator
	png       []byte
	url       string
	// linkFound is what the scripted sidebar link click reports.
	linkFound bool
	// focusAfterTabs is the Tab press on which the search field gains focus.
	focusAfterTabs int
	tabs           int
}

func newFakePage(engine string, width int) *fakePage {
	log := &callLog{}
	var ctx playwright.BrowserContext
	if engine != "" {
		ctx = fakeContext{browser: fakeBrowser{bt: fakeBrowserType{name: engine}}}
	} else {
		ctx = fakeContext{}
	}
	p := &fakePage{
		log:       log,
		userAgent: "Mozilla/5.0 (fake)",
		ctx:       ctx,
		locators:  map[string]*fakeLocator{},
		png:       []byte("\x89PNG"),
	}
	if width > 0 {
		p.viewport = &playwright.Size{Width: width, Height: 800}
	}
	return p
}

func (f *fakePage) Context() playwright.BrowserContext { return f.ctx }

func (f *fakePage) ViewportSize() *playwright.Size { return f.viewport }

func (f *fakePage) Evaluate(expression string, args ...interface{}) (interface{}, error) {
	switch {
	case strings.Contains(expression, "navigator.userAgent"):
		return f.userAgent, nil
	case strings.Contains(expression, "window.location.href"):
		f.log.add("href:%v", args[0])
		return nil, nil
	case strings.Contains(expression, "a[href*="):
		f.log.add("link:%v", args[0])
		return f.linkFound, nil
	case strings.Contains(expression, "document.activeElement"):
		return f.focusAfterTabs > 0 && f.tabs >= f.focusAfterTabs, nil
	}
	return nil, errors.New("unexpected expression " + expression)
}

func (f *fakePage) URL() string { return f.url }

func (f *fakePage) WaitForFunction(expression string, arg interface{}, options ...playwright.PageWaitForFunctionOptions) (playwright.JSHandle, error) {
	timeout := 0.0
	if len(options) > 0 && options[0].Timeout != nil {
		timeout = *options[0].Timeout
	}
	f.log.add("waitfn:%v@%.0f", arg, timeout)
	return nil, nil
}

func (f *fakePage) WaitForLoadState(...playwright.PageWaitForLoadStateOptions) error {
	f.log.add("load")
	return nil
}

func (f *fakePage) OnDialog(func(playwright.Dialog)) {}

func (f *fakePage) OnPageError(func(error)) {}

func (f *fakePage) Locator(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	loc, ok := f.locators[selector]
	if !ok {
		loc = &fakeLocator{log: f.log}
		f.locators[selector] = loc
	}
	return loc
}

func (f *fakePage) Keyboard() playwright.Keyboard { return fakeKeyboard{log: f.log, page: f} }

func (f *fakePage) WaitForTimeout(float64) {}

func (f *fakePage) Screenshot(...playwright.PageScreenshotOptions) ([]byte, error) {
	return f.png, nil
}
