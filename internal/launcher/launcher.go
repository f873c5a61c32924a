package launcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/platform"
)

// Settings apply to every browser and context the launcher creates.
type Settings struct {
	Headless          bool
	SlowMo            time.Duration
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	// VideoDir enables video recording into this directory.
	VideoDir string
}

// Launcher starts the playwright driver once and keeps one browser process
// per engine and channel.
type Launcher struct {
	settings Settings
	pw       *playwright.Playwright

	mu       sync.Mutex
	browsers map[string]playwright.Browser
}

// Start runs the playwright driver.
func Start(s Settings) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &Launcher{
		settings: s,
		pw:       pw,
		browsers: make(map[string]playwright.Browser),
	}, nil
}

// Browser returns the running browser for p, launching it on first use.
func (l *Launcher) Browser(p Project) (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.browsers[p.Key()]; ok && b.IsConnected() {
		return b, nil
	}

	bt, err := l.browserType(p.Engine)
	if err != nil {
		return nil, err
	}
	b, err := bt.Launch(LaunchOptions(p, l.settings))
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", p.Key(), err)
	}
	obs.Pkg("launcher").Debug("browser launched",
		zap.String("project", p.Name),
		zap.String("browser", p.Key()),
		zap.String("version", b.Version()),
	)
	l.browsers[p.Key()] = b
	return b, nil
}

func (l *Launcher) browserType(e platform.Engine) (playwright.BrowserType, error) {
	switch e {
	case platform.Chromium:
		return l.pw.Chromium, nil
	case platform.Firefox:
		return l.pw.Firefox, nil
	case platform.WebKit:
		return l.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", e)
	}
}

// NewContext opens an isolated browser context configured for p, with the
// launcher's default timeouts applied.
func (l *Launcher) NewContext(p Project) (playwright.BrowserContext, error) {
	b, err := l.Browser(p)
	if err != nil {
		return nil, err
	}
	opts, err := ContextOptions(p, l.pw.Devices, l.settings)
	if err != nil {
		return nil, err
	}
	ctx, err := b.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context for %s: %w", p.Name, err)
	}
	if l.settings.ActionTimeout > 0 {
		ctx.SetDefaultTimeout(ms(l.settings.ActionTimeout))
	}
	if l.settings.NavigationTimeout > 0 {
		ctx.SetDefaultNavigationTimeout(ms(l.settings.NavigationTimeout))
	}
	return ctx, nil
}

// Close stops every browser and the driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for key, b := range l.browsers {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		delete(l.browsers, key)
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		l.pw = nil
	}
	return errors.Join(errs...)
}

// LaunchOptions builds browser launch options for p.
func LaunchOptions(p Project, s Settings) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.Headless),
	}
	if p.Channel != "" {
		opts.Channel = playwright.String(p.Channel)
	}
	if len(p.Args) > 0 {
		opts.Args = append([]string(nil), p.Args...)
	}
	if s.SlowMo > 0 {
		opts.SlowMo = playwright.Float(ms(s.SlowMo))
	}
	return opts
}

// ContextOptions builds context options for p. Device descriptors come from
// devices; a project naming an unknown device is an error.
func ContextOptions(p Project, devices map[string]*playwright.DeviceDescriptor, s Settings) (playwright.BrowserNewContextOptions, error) {
	var opts playwright.BrowserNewContextOptions
	if p.Device != "" {
		d, ok := devices[p.Device]
		if !ok || d == nil {
			return opts, fmt.Errorf("project %s: unknown device %q", p.Name, p.Device)
		}
		opts.UserAgent = playwright.String(d.UserAgent)
		opts.Viewport = d.Viewport
		opts.Screen = d.Screen
		opts.DeviceScaleFactor = playwright.Float(d.DeviceScaleFactor)
		opts.IsMobile = playwright.Bool(d.IsMobile)
		opts.HasTouch = playwright.Bool(d.HasTouch)
	} else if p.Viewport.Width > 0 {
		opts.Viewport = &playwright.Size{Width: p.Viewport.Width, Height: p.Viewport.Height}
	}
	if s.VideoDir != "" {
		opts.RecordVideo = &playwright.RecordVideo{Dir: s.VideoDir}
	}
	return opts, nil
}

// Install downloads the playwright driver and the browsers for projects.
func Install(projects []Project) error {
	engines := Engines(projects)
	if err := playwright.Install(&playwright.RunOptions{Browsers: engines}); err != nil {
		return fmt.Errorf("install playwright browsers %v: %w", engines, err)
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
