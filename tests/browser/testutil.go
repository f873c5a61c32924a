// Package browser provides the shared fixture of the browser suites. Suite
// packages call Main from TestMain, Setup at the top of each test and Each
// to run a case once per selected project.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/artifacts"
	"github.com/kuitang/orangehrm-e2e/internal/auth"
	"github.com/kuitang/orangehrm-e2e/internal/config"
	"github.com/kuitang/orangehrm-e2e/internal/launcher"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/pages"
	"github.com/kuitang/orangehrm-e2e/internal/ratelimit"
	"github.com/kuitang/orangehrm-e2e/internal/runner"
	"github.com/kuitang/orangehrm-e2e/internal/web"
)

// errUnavailable marks setup failures that skip the suites instead of
// failing them: no playwright driver or browsers on this machine.
var errUnavailable = errors.New("playwright not available")

// Env is shared by every test of a suite binary.
type Env struct {
	Config   *config.Config
	BaseURL  string
	Catalog  *menu.Catalog
	Projects []launcher.Project
	// App is the stand-in application when the suite runs against it.
	App *web.Server

	launcher *launcher.Launcher
	shots    *artifacts.Store
	output   *artifacts.Store
	attempt  int
	videoDir string
	log      *zap.Logger

	stub *httptest.Server
}

var (
	fixtureMu sync.Mutex
	shared    *Env
	setupErr  error
)

// Main runs the suite and tears the shared fixture down.
func Main(m *testing.M) {
	code := m.Run()
	teardown()
	obs.Sync()
	os.Exit(code)
}

// Setup returns the shared fixture, creating it on first use. The test is
// skipped in -short mode and when browsers cannot be started.
func Setup(t *testing.T) *Env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	if shared == nil && setupErr == nil {
		shared, setupErr = create()
	}
	if setupErr != nil {
		if errors.Is(setupErr, errUnavailable) {
			t.Skip(setupErr)
		}
		t.Fatalf("browser fixture: %v", setupErr)
	}
	return shared
}

func create() (*Env, error) {
	root := repositoryRoot()
	cfg, err := config.Load(config.Options{
		Dir:            root,
		DefaultBaseURL: config.StubBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.OutputDir = underRoot(root, cfg.OutputDir)
	cfg.ScreenshotDir = underRoot(root, cfg.ScreenshotDir)
	cfg.LogDir = underRoot(root, cfg.LogDir)

	logCfg := obs.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Dir = cfg.LogDir
	logCfg.Color = !cfg.CI
	if err := obs.Init(logCfg); err != nil {
		return nil, err
	}
	log := obs.Pkg("fixture")
	cfg.LogSummary(log)

	catalog := menu.Default()
	if cfg.MenuFile != "" {
		if catalog, err = menu.Load(underRoot(root, cfg.MenuFile)); err != nil {
			return nil, err
		}
	}
	projects, err := launcher.Select(cfg.Projects)
	if err != nil {
		return nil, err
	}

	env := &Env{
		Config:   cfg,
		BaseURL:  cfg.BaseURL,
		Catalog:  catalog,
		Projects: projects,
		attempt:  retryAttempt(),
		log:      log,
	}

	ctx := context.Background()
	runID := os.Getenv(runner.RunIDEnv)
	if runID == "" {
		runID = uuid.NewString()
	}
	if env.shots, err = artifacts.NewFromConfig(ctx, cfg.Artifacts, cfg.ScreenshotDir, artifacts.WithRunID(runID)); err != nil {
		return nil, err
	}
	if env.output, err = artifacts.NewFromConfig(ctx, cfg.Artifacts, cfg.OutputDir, artifacts.WithRunID(runID)); err != nil {
		return nil, err
	}

	if cfg.UsesStub() {
		if err := env.startStub(); err != nil {
			return nil, err
		}
	}

	env.videoDir = filepath.Join(cfg.OutputDir, ".videos")
	env.launcher, err = launcher.Start(launcher.Settings{
		Headless:          cfg.Headless,
		ActionTimeout:     cfg.ActionTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		VideoDir:          env.videoDir,
	})
	if err != nil {
		env.close()
		return nil, fmt.Errorf("%w: %v", errUnavailable, err)
	}

	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	log.Info("browser fixture ready",
		zap.String("base_url", env.BaseURL),
		zap.Strings("projects", names),
		zap.Int("attempt", env.attempt),
	)
	return env, nil
}

// startStub serves the stand-in application on a loopback port and makes
// sure the configured account can sign in.
func (env *Env) startStub() error {
	app, err := web.New(web.Options{
		Catalog: env.Catalog,
		Hasher:  auth.FakeInsecureHasher{},
		RateLimit: ratelimit.Config{
			RPS:             1000,
			Burst:           1000,
			CleanupInterval: time.Hour,
		},
	})
	if err != nil {
		return err
	}
	cfg := env.Config
	if cfg.Username != web.DefaultUsername || cfg.Password != web.DefaultPassword {
		if _, err := app.Users().Register(context.Background(), cfg.Username, web.DefaultDisplayName, cfg.Password); err != nil {
			app.Close()
			return fmt.Errorf("register %s: %w", cfg.Username, err)
		}
	}
	env.App = app
	env.stub = httptest.NewServer(app)
	env.BaseURL = env.stub.URL
	return nil
}

func teardown() {
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	if shared != nil {
		shared.close()
		shared = nil
	}
	setupErr = nil
}

func (env *Env) close() {
	if env.launcher != nil {
		if err := env.launcher.Close(); err != nil {
			env.log.Warn("close launcher", zap.Error(err))
		}
	}
	if env.stub != nil {
		env.stub.Close()
	}
	if env.App != nil {
		env.App.Close()
	}
	if env.videoDir != "" {
		_ = os.RemoveAll(env.videoDir)
	}
}

// Each runs fn once per selected project, each run in its own subtest with
// a fresh context and page. Runs are sequential.
func (env *Env) Each(t *testing.T, fn func(t *testing.T, s *Session)) {
	t.Helper()
	for _, p := range env.Projects {
		t.Run(p.Name, func(t *testing.T) {
			fn(t, env.NewSession(t, p))
		})
	}
}

// Session is one test's browser context and page.
type Session struct {
	Env     *Env
	Project launcher.Project
	Context playwright.BrowserContext
	Page    playwright.Page
	// Ctx expires after TEST_TIMEOUT, at which point the browser context is
	// closed and pending page calls fail.
	Ctx context.Context

	log      *zap.Logger
	tracing  bool
	timedOut bool
}

// NewSession opens a context and page for p. Failure artifacts are saved
// when t ends: a full-page screenshot and the video always, and the trace
// on the first retry.
func (env *Env) NewSession(t *testing.T, p launcher.Project) *Session {
	t.Helper()

	bctx, err := env.launcher.NewContext(p)
	if err != nil {
		if env.Config.CI {
			t.Fatalf("start %s: %v", p.Name, err)
		}
		t.Skipf("could not start %s: %v", p.Name, err)
	}

	timeout := env.Config.TestTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	s := &Session{
		Env:     env,
		Project: p,
		Context: bctx,
		Ctx:     ctx,
		log:     obs.Pkg("pages").With(zap.String("project", p.Name), zap.String("test", t.Name())),
	}

	stop, watched := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(watched)
		watchDeadline(ctx, stop, func() {
			s.timedOut = true
			s.log.Error("Test timed out, closing browser context", zap.Duration("timeout", timeout))
			if err := bctx.Close(); err != nil {
				s.log.Warn("close timed out context", zap.Error(err))
			}
		})
	}()
	t.Cleanup(func() {
		close(stop)
		<-watched
		if s.timedOut {
			t.Errorf("test exceeded %s of %s", config.KeyTestTimeout, timeout)
		}
		s.finish(t)
		cancel()
	})

	if env.attempt == 1 {
		if err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
			Sources:     playwright.Bool(true),
		}); err != nil {
			t.Logf("tracing not started: %v", err)
		} else {
			s.tracing = true
		}
	}

	if s.Page, err = bctx.NewPage(); err != nil {
		t.Fatalf("new page for %s: %v", p.Name, err)
	}
	return s
}

// watchDeadline calls expire when ctx reaches its deadline before stop is
// closed, and returns once either happens.
func watchDeadline(ctx context.Context, stop <-chan struct{}, expire func()) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			expire()
		}
	case <-stop:
	}
}

// Options returns the page-object options for this session.
func (s *Session) Options() []pages.Option {
	cfg := s.Env.Config
	return []pages.Option{
		pages.WithTimeouts(pages.Timeouts{
			Action:     cfg.ActionTimeout,
			Navigation: cfg.NavigationTimeout,
			Expect:     cfg.ExpectTimeout,
		}),
		pages.WithScreenshots(s.Env.shots),
		pages.WithLogger(s.log),
		pages.WithContext(s.Ctx),
	}
}

// Login returns a login page object for the session page.
func (s *Session) Login() *pages.LoginPage {
	return pages.NewLoginPage(s.Page, s.Options()...)
}

// Dashboard returns a dashboard page object for the session page.
func (s *Session) Dashboard() *pages.DashboardPage {
	return pages.NewDashboardPage(s.Page, s.Env.Catalog, s.Options()...)
}

// Search returns a search page object for the session page.
func (s *Session) Search() *pages.SearchPage {
	return pages.NewSearchPage(s.Page, s.Env.Catalog, s.Options()...)
}

// Must fails the test when a page-object step returns an error.
func Must(t *testing.T, step string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", step, err)
	}
}

func (s *Session) finish(t *testing.T) {
	if s.Page == nil {
		_ = s.Context.Close()
		return
	}
	failed := t.Failed()
	dir := artifacts.Sanitize(t.Name())
	ctx := context.Background()

	if failed {
		png, err := s.Page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
		if err == nil {
			local, err := s.Env.output.Save(ctx, filepath.Join(dir, "test-failed.png"), png)
			s.report(t, "screenshot", local, err)
		} else {
			t.Logf("failure screenshot: %v", err)
		}
	}

	if s.tracing {
		if failed {
			local := filepath.Join(s.Env.output.Dir, dir, "trace.zip")
			err := s.Context.Tracing().Stop(local)
			if err == nil {
				err = s.Env.output.Publish(ctx, local)
			}
			s.report(t, "trace", local, err)
		} else if err := s.Context.Tracing().Stop(); err != nil {
			t.Logf("stop tracing: %v", err)
		}
	}

	video := s.Page.Video()
	if err := s.Context.Close(); err != nil {
		t.Logf("close context: %v", err)
	}
	if video == nil {
		return
	}
	if failed {
		local := filepath.Join(s.Env.output.Dir, dir, "video.webm")
		err := video.SaveAs(local)
		if err == nil {
			err = s.Env.output.Publish(ctx, local)
		}
		s.report(t, "video", local, err)
	}
	if err := video.Delete(); err != nil {
		t.Logf("delete video: %v", err)
	}
}

func (s *Session) report(t *testing.T, kind, local string, err error) {
	if err != nil {
		t.Logf("save %s: %v", kind, err)
		return
	}
	t.Logf("%s: %s", kind, local)
}

// retryAttempt is 0 on the first run and n on the n-th retry.
func retryAttempt() int {
	n, err := strconv.Atoi(os.Getenv(runner.RetryAttemptEnv))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func repositoryRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("Failed to resolve repository root for test utilities")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}
