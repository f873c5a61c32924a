// Package pages implements page objects for the OrangeHRM web client. Every
// page object wraps one playwright.Page and reports failures as coded
// errors: errs.Interaction when the browser could not perform an action and
// errs.Assertion when the page was not in the expected state.
package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/artifacts"
	"github.com/kuitang/orangehrm-e2e/internal/errs"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/platform"
)

// Timeouts bounds the three kinds of waits a page object performs.
type Timeouts struct {
	Action     time.Duration
	Navigation time.Duration
	Expect     time.Duration
}

// DefaultTimeouts matches the local (non-CI) configuration.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Action:     10 * time.Second,
		Navigation: 30 * time.Second,
		Expect:     5 * time.Second,
	}
}

// Option configures a Base.
type Option func(*Base)

// WithTimeouts overrides the default timeouts. Zero fields keep their default.
func WithTimeouts(t Timeouts) Option {
	return func(b *Base) {
		if t.Action > 0 {
			b.timeouts.Action = t.Action
		}
		if t.Navigation > 0 {
			b.timeouts.Navigation = t.Navigation
		}
		if t.Expect > 0 {
			b.timeouts.Expect = t.Expect
		}
	}
}

// WithScreenshots stores screenshots in s. Without it Screenshot fails.
func WithScreenshots(s *artifacts.Store) Option {
	return func(b *Base) { b.shots = s }
}

// WithLogger replaces the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Base) { b.log = l }
}

// WithContext sets the context used for artifact uploads.
func WithContext(ctx context.Context) Option {
	return func(b *Base) { b.ctx = ctx }
}

// Base holds the cross-browser and cross-device helpers shared by every
// page object.
type Base struct {
	page     playwright.Page
	timeouts Timeouts
	shots    *artifacts.Store
	log      *zap.Logger
	ctx      context.Context
}

// NewBase wraps page.
func NewBase(page playwright.Page, opts ...Option) *Base {
	b := &Base{
		page:     page,
		timeouts: DefaultTimeouts(),
		log:      obs.Pkg("pages"),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Page returns the wrapped page.
func (b *Base) Page() playwright.Page { return b.page }

// Timeouts returns the effective timeouts.
func (b *Base) Timeouts() Timeouts { return b.timeouts }

// BrowserName reports the engine driving the page. Pages without an owning
// browser are reported as Chromium.
func (b *Base) BrowserName() platform.Engine {
	bctx := b.page.Context()
	if bctx == nil {
		return platform.Chromium
	}
	browser := bctx.Browser()
	if browser == nil {
		return platform.Chromium
	}
	return platform.ParseEngine(browser.BrowserType().Name())
}

// PlatformInfo classifies the current viewport and reads the user agent.
// It is recomputed on every call.
func (b *Base) PlatformInfo() (platform.Info, error) {
	ua, err := b.page.Evaluate(`() => navigator.userAgent`)
	if err != nil {
		return platform.Info{}, errs.Wrap(errs.Interaction, "read user agent", err)
	}
	userAgent, _ := ua.(string)

	var vp *platform.Viewport
	if size := b.page.ViewportSize(); size != nil {
		vp = &platform.Viewport{Width: size.Width, Height: size.Height}
	}
	return platform.Describe(vp, userAgent), nil
}

// Capabilities returns the fallback table row for the page's engine.
func (b *Base) Capabilities() platform.Capabilities {
	return platform.For(b.BrowserName())
}

// AdjustedTimeout scales base by the engine's timeout factor.
func (b *Base) AdjustedTimeout(base time.Duration) time.Duration {
	return b.Capabilities().Adjust(base)
}

// Click clicks selector. If the click fails, the engine's fallback is
// attempted once and its error, if any, is returned.
func (b *Base) Click(selector string, timeout time.Duration) error {
	return b.clickLocator(b.page.Locator(selector), selector, timeout)
}

func (b *Base) clickLocator(loc playwright.Locator, desc string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.timeouts.Action
	}
	caps := b.Capabilities()
	primary := func() error {
		return loc.Click(playwright.LocatorClickOptions{Timeout: ms(timeout)})
	}
	var fallback func() error
	switch caps.Click {
	case platform.ClickFocusEnter:
		fallback = func() error {
			if err := loc.Focus(playwright.LocatorFocusOptions{Timeout: ms(timeout)}); err != nil {
				return err
			}
			return b.page.Keyboard().Press("Enter")
		}
	default:
		fallback = func() error {
			return loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true), Timeout: ms(timeout)})
		}
	}
	return runWithFallback(b.log.With(zap.String("browser", string(caps.Engine)), zap.Stringer("fallback", caps.Click)), "click "+desc, primary, fallback)
}

// Fill replaces the value of selector. If filling fails the field is
// cleared and value is typed one key at a time.
func (b *Base) Fill(selector, value string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.timeouts.Action
	}
	caps := b.Capabilities()
	loc := b.page.Locator(selector)
	primary := func() error {
		return loc.Fill(value, playwright.LocatorFillOptions{Timeout: ms(timeout)})
	}
	return runWithFallback(b.log.With(zap.String("browser", string(caps.Engine)), zap.Stringer("fallback", caps.Fill)),
		"fill "+selector, primary, fillFallback(loc, caps, value, timeout))
}

// fillFallback returns the recovery step the capability row prescribes for
// a failed fill.
func fillFallback(loc playwright.Locator, caps platform.Capabilities, value string, timeout time.Duration) func() error {
	switch caps.Fill {
	case platform.FillForce:
		return func() error {
			return loc.Fill(value, playwright.LocatorFillOptions{Force: playwright.Bool(true), Timeout: ms(timeout)})
		}
	default:
		return func() error {
			if err := loc.Clear(playwright.LocatorClearOptions{Timeout: ms(timeout)}); err != nil {
				return err
			}
			return loc.PressSequentially(value, playwright.LocatorPressSequentiallyOptions{
				Delay:   playwright.Float(float64(caps.TypeDelay.Milliseconds())),
				Timeout: ms(timeout),
			})
		}
	}
}

// runWithFallback runs primary and, when it fails, fallback. The fallback's
// error is the one reported.
func runWithFallback(log *zap.Logger, op string, primary, fallback func() error) error {
	err := primary()
	if err == nil {
		return nil
	}
	log.Warn(op+" failed, trying alternative approach", zap.Error(err))
	if ferr := fallback(); ferr != nil {
		return errs.Wrap(errs.Interaction, op, ferr)
	}
	return nil
}

// WaitFor waits until the JavaScript predicate, called with arg, returns a
// truthy value. The timeout is stretched on mobile viewports.
func (b *Base) WaitFor(what, predicate string, arg any, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.timeouts.Expect
	}
	info, err := b.PlatformInfo()
	if err != nil {
		return err
	}
	if _, err := b.page.WaitForFunction(predicate, arg, playwright.PageWaitForFunctionOptions{
		Timeout: ms(info.WaitTimeout(timeout)),
	}); err != nil {
		return errs.Wrap(errs.Assertion, "wait for "+what, err)
	}
	return nil
}

// ResponsiveSelector returns mobileSelector when the page is on a mobile
// viewport and that element is visible, otherwise desktopSelector.
func (b *Base) ResponsiveSelector(mobileSelector, desktopSelector string) (string, error) {
	info, err := b.PlatformInfo()
	if err != nil {
		return "", err
	}
	if info.IsMobile {
		if visible, _ := b.page.Locator(mobileSelector).IsVisible(); visible {
			return mobileSelector, nil
		}
	}
	return desktopSelector, nil
}

// Screenshot captures the full page as <name>-<browser>-<device>-<ms>.png
// and returns the local path.
func (b *Base) Screenshot(name string) (string, error) {
	if b.shots == nil {
		return "", errs.New(errs.FailedPrecondition, "no screenshot store configured")
	}
	info, err := b.PlatformInfo()
	if err != nil {
		return "", err
	}
	png, err := b.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return "", errs.Wrap(errs.Interaction, "capture screenshot", err)
	}
	local, err := b.shots.SaveScreenshot(b.ctx, name, b.BrowserName(), info.Class, png)
	if local != "" {
		b.log.Info("Screenshot taken: " + local)
	}
	return local, err
}

// ScrollIntoView scrolls selector into view and lets the page settle.
func (b *Base) ScrollIntoView(selector string) error {
	if err := b.page.Locator(selector).ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: ms(b.timeouts.Action),
	}); err != nil {
		return errs.Wrap(errs.Interaction, "scroll to "+selector, err)
	}
	b.pause(500 * time.Millisecond)
	return nil
}

// MobileNavigate sets location.href on mobile viewports, where overlapping
// elements can swallow clicks. On other viewports it does nothing.
func (b *Base) MobileNavigate(url string) error {
	info, err := b.PlatformInfo()
	if err != nil {
		return err
	}
	if !info.IsMobile {
		return nil
	}
	b.log.Info("Using JavaScript navigation on mobile", zap.String("url", url))
	if _, err := b.page.Evaluate(`(target) => { window.location.href = target; }`, url); err != nil {
		return errs.Wrap(errs.Interaction, "navigate to "+url, err)
	}
	if err := b.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		return errs.Wrap(errs.Interaction, "wait for "+url, err)
	}
	return nil
}

// LogEnvironment logs browser, device class, viewport and user agent.
func (b *Base) LogEnvironment() error {
	info, err := b.PlatformInfo()
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("browser", string(b.BrowserName())),
		zap.String("device", string(info.Class)),
		zap.String("user_agent", info.UserAgent),
	}
	if info.Viewport != nil {
		fields = append(fields, zap.String("viewport", fmt.Sprintf("%dx%d", info.Viewport.Width, info.Viewport.Height)))
	}
	b.log.Info("Test environment", fields...)
	return nil
}

// ScrollToTop scrolls the window to the origin.
func (b *Base) ScrollToTop() error {
	if _, err := b.page.Evaluate(`() => window.scrollTo(0, 0)`); err != nil {
		return errs.Wrap(errs.Interaction, "scroll to top", err)
	}
	b.pause(300 * time.Millisecond)
	return nil
}

// Goto loads url and waits for DOMContentLoaded.
func (b *Base) Goto(url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.timeouts.Navigation
	}
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeout),
	}); err != nil {
		return errs.Wrap(errs.Interaction, "goto "+url, err)
	}
	return nil
}

// expect returns assertions that retry for timeout, or the configured
// expect timeout when timeout is zero.
func (b *Base) expect(timeout time.Duration) playwright.PlaywrightAssertions {
	if timeout <= 0 {
		timeout = b.timeouts.Expect
	}
	return playwright.NewPlaywrightAssertions(float64(timeout.Milliseconds()))
}

// visible asserts loc becomes visible within timeout.
func (b *Base) visible(loc playwright.Locator, what string, timeout time.Duration) error {
	return checked(b.expect(timeout).Locator(loc).ToBeVisible(), what+" visible")
}

// hidden asserts loc is hidden or absent within timeout.
func (b *Base) hidden(loc playwright.Locator, what string, timeout time.Duration) error {
	return checked(b.expect(timeout).Locator(loc).ToBeHidden(), what+" hidden")
}

func (b *Base) pause(d time.Duration) {
	b.page.WaitForTimeout(float64(d.Milliseconds()))
}

// checked converts a failed playwright assertion into an Assertion error.
func checked(err error, what string) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.Assertion, what, err)
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
