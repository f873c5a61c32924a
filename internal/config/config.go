// Package config loads suite configuration from an optional .env.<ENV> file
// and the process environment, applies CI-aware defaults and validates the
// result.
//
// Environment variables always win over the env file. Values for the child
// test processes are passed back through Environ so that CLI overrides reach
// every suite package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/logutil"
	"github.com/kuitang/orangehrm-e2e/internal/ratelimit"
	"github.com/kuitang/orangehrm-e2e/internal/urlutil"
)

const (
	DefaultEnv      = "dev"
	DefaultBaseURL  = "https://opensource-demo.orangehrmlive.com"
	DefaultUsername = "Admin"
	DefaultPassword = "admin123"

	// StubBaseURL selects the in-process stand-in app.
	StubBaseURL = "stub"
)

// Keys understood by Load.
const (
	KeyEnv               = "ENV"
	KeyBaseURL           = "ORANGEHRM_BASE_URL"
	KeyBaseURLAlt        = "BASE_URL"
	KeyUsername          = "ORANGEHRM_USERNAME"
	KeyPassword          = "ORANGEHRM_PASSWORD"
	KeyCI                = "CI"
	KeySemaphore         = "SEMAPHORE"
	KeyWorkers           = "WORKERS"
	KeyHeadless          = "HEADLESS"
	KeyRetries           = "RETRIES"
	KeyMaxFailures       = "MAX_FAILURES"
	KeyActionTimeout     = "ACTION_TIMEOUT"
	KeyNavigationTimeout = "NAVIGATION_TIMEOUT"
	KeyExpectTimeout     = "EXPECT_TIMEOUT"
	KeyTestTimeout       = "TEST_TIMEOUT"
	KeyOutputDir         = "OUTPUT_DIR"
	KeyReportDir         = "REPORT_DIR"
	KeyScreenshotDir     = "SCREENSHOT_DIR"
	KeyLogDir            = "LOG_DIR"
	KeyLogLevel          = "LOG_LEVEL"
	KeyProjects          = "PROJECTS"
	KeyMenuFile          = "MENU_FILE"
	KeyArtifactBucket    = "ARTIFACT_BUCKET"
	KeyArtifactEndpoint  = "ARTIFACT_ENDPOINT"
	KeyArtifactRegion    = "ARTIFACT_REGION"
	KeyAccessKeyID       = "AWS_ACCESS_KEY_ID"
	KeySecretAccessKey   = "AWS_SECRET_ACCESS_KEY"
	KeyLoginRPS          = "LOGIN_RATE_LIMIT_RPS"
	KeyLoginBurst        = "LOGIN_RATE_LIMIT_BURST"
)

// Config holds the resolved suite configuration.
type Config struct {
	Env     string
	EnvFile string // empty when no env file was read

	// Target application
	BaseURL  string
	Username string
	Password string

	// Runner
	CI          bool
	Semaphore   bool
	Workers     int
	Headless    bool
	Retries     int
	MaxFailures int
	Projects    []string

	// Timeouts
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	ExpectTimeout     time.Duration
	TestTimeout       time.Duration

	// Output locations
	OutputDir     string
	ReportDir     string
	ScreenshotDir string
	LogDir        string
	LogLevel      string

	MenuFile  string
	Artifacts ArtifactConfig

	// Stand-in app login throttling
	LoginRateLimit ratelimit.Config
}

// ArtifactConfig points at an optional S3 bucket that receives screenshots.
type ArtifactConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether uploads are configured.
func (a ArtifactConfig) Enabled() bool {
	return a.Bucket != ""
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// MissingEnvFileError is returned when RequireEnvFile is set and the
// selected file does not exist.
type MissingEnvFileError struct {
	Env  string
	Path string
}

func (e *MissingEnvFileError) Error() string {
	return fmt.Sprintf("environment file %s not found for ENV=%s", e.Path, e.Env)
}

// Options controls how Load locates the env file.
type Options struct {
	// Env overrides the ENV variable.
	Env string
	// Dir is searched for .env.<ENV>; defaults to the working directory.
	Dir string
	// RequireEnvFile turns a missing env file into an error.
	RequireEnvFile bool
	// DefaultBaseURL applies when neither base URL key is set. Empty means
	// the public OrangeHRM demo.
	DefaultBaseURL string
}

// Load resolves configuration. It does not call Validate.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	env := strings.TrimSpace(opts.Env)
	if env == "" {
		env = strings.TrimSpace(os.Getenv(KeyEnv))
	}
	if env == "" {
		env = DefaultEnv
	}

	cfg := &Config{Env: env}

	path := filepath.Join(opts.Dir, ".env."+env)
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		notFound := errors.As(err, &pathErr) || errors.As(err, new(viper.ConfigFileNotFoundError))
		switch {
		case notFound && opts.RequireEnvFile:
			return nil, &MissingEnvFileError{Env: env, Path: path}
		case !notFound:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else {
		cfg.EnvFile = path
	}

	cfg.CI = v.GetBool(KeyCI)
	SetDefaults(v, cfg.CI)

	cfg.BaseURL = strings.TrimSpace(v.GetString(KeyBaseURL))
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(v.GetString(KeyBaseURLAlt))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = opts.DefaultBaseURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Username = v.GetString(KeyUsername)
	cfg.Password = v.GetString(KeyPassword)

	cfg.Semaphore = strings.TrimSpace(v.GetString(KeySemaphore)) != ""
	cfg.Workers = v.GetInt(KeyWorkers)
	cfg.Headless = !strings.EqualFold(strings.TrimSpace(v.GetString(KeyHeadless)), "false")
	cfg.Retries = v.GetInt(KeyRetries)
	cfg.MaxFailures = v.GetInt(KeyMaxFailures)
	cfg.Projects = splitList(v.GetString(KeyProjects))

	cfg.ActionTimeout = v.GetDuration(KeyActionTimeout)
	cfg.NavigationTimeout = v.GetDuration(KeyNavigationTimeout)
	cfg.ExpectTimeout = v.GetDuration(KeyExpectTimeout)
	cfg.TestTimeout = v.GetDuration(KeyTestTimeout)

	cfg.OutputDir = v.GetString(KeyOutputDir)
	cfg.ReportDir = v.GetString(KeyReportDir)
	cfg.ScreenshotDir = v.GetString(KeyScreenshotDir)
	cfg.LogDir = v.GetString(KeyLogDir)
	cfg.LogLevel = strings.ToLower(v.GetString(KeyLogLevel))
	cfg.MenuFile = strings.TrimSpace(v.GetString(KeyMenuFile))

	cfg.Artifacts = ArtifactConfig{
		Bucket:          strings.TrimSpace(v.GetString(KeyArtifactBucket)),
		Endpoint:        strings.TrimSpace(v.GetString(KeyArtifactEndpoint)),
		Region:          v.GetString(KeyArtifactRegion),
		AccessKeyID:     strings.TrimSpace(v.GetString(KeyAccessKeyID)),
		SecretAccessKey: strings.TrimSpace(v.GetString(KeySecretAccessKey)),
	}

	cfg.LoginRateLimit = ratelimit.Config{
		RPS:             v.GetFloat64(KeyLoginRPS),
		Burst:           v.GetInt(KeyLoginBurst),
		CleanupInterval: 10 * time.Minute,
	}

	return cfg, nil
}

// SetDefaults registers defaults; several depend on whether the run is on CI.
func SetDefaults(v *viper.Viper, ci bool) {
	v.SetDefault(KeyUsername, DefaultUsername)
	v.SetDefault(KeyPassword, DefaultPassword)
	v.SetDefault(KeyWorkers, pick(ci, 1, 4))
	v.SetDefault(KeyHeadless, "true")
	v.SetDefault(KeyRetries, pick(ci, 2, 0))
	v.SetDefault(KeyMaxFailures, 0)
	v.SetDefault(KeyActionTimeout, pick(ci, 20*time.Second, 15*time.Second))
	v.SetDefault(KeyNavigationTimeout, pick(ci, 45*time.Second, 30*time.Second))
	v.SetDefault(KeyExpectTimeout, 30*time.Second)
	v.SetDefault(KeyTestTimeout, 240*time.Second)
	v.SetDefault(KeyOutputDir, "test-results")
	v.SetDefault(KeyReportDir, "playwright-report")
	v.SetDefault(KeyScreenshotDir, filepath.Join("ui", "screenshots"))
	v.SetDefault(KeyLogDir, "logs")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyArtifactRegion, "auto")
	v.SetDefault(KeyLoginRPS, 5.0)
	v.SetDefault(KeyLoginBurst, 20)
}

// Validate checks the resolved configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !c.UsesStub() {
		if _, err := urlutil.Origin(c.BaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an http(s) URL or %q: %v", KeyBaseURL, StubBaseURL, err))
		}
	}
	if strings.TrimSpace(c.Username) == "" {
		errs = append(errs, KeyUsername+" is required")
	}
	if c.Password == "" {
		errs = append(errs, KeyPassword+" is required")
	}
	if c.Workers < 1 {
		errs = append(errs, KeyWorkers+" must be at least 1")
	}
	if c.Retries < 0 {
		errs = append(errs, KeyRetries+" must not be negative")
	}
	if c.MaxFailures < 0 {
		errs = append(errs, KeyMaxFailures+" must not be negative")
	}
	for key, d := range map[string]time.Duration{
		KeyActionTimeout:     c.ActionTimeout,
		KeyNavigationTimeout: c.NavigationTimeout,
		KeyExpectTimeout:     c.ExpectTimeout,
		KeyTestTimeout:       c.TestTimeout,
	} {
		if d <= 0 {
			errs = append(errs, key+" must be positive")
		}
	}
	if c.Artifacts.Enabled() {
		if c.Artifacts.Endpoint != "" {
			if _, err := urlutil.Origin(c.Artifacts.Endpoint); err != nil {
				errs = append(errs, fmt.Sprintf("%s is invalid: %v", KeyArtifactEndpoint, err))
			}
		}
		if (c.Artifacts.AccessKeyID == "") != (c.Artifacts.SecretAccessKey == "") {
			errs = append(errs, KeyAccessKeyID+" and "+KeySecretAccessKey+" must be set together")
		}
	}
	if c.LoginRateLimit.RPS <= 0 {
		errs = append(errs, KeyLoginRPS+" must be positive")
	}
	if c.LoginRateLimit.Burst <= 0 {
		errs = append(errs, KeyLoginBurst+" must be positive")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UsesStub reports whether suites should start the in-process stand-in app.
func (c *Config) UsesStub() bool {
	base := strings.TrimSpace(c.BaseURL)
	return base == "" || strings.EqualFold(base, StubBaseURL)
}

// Environ renders the configuration as KEY=VALUE pairs for child processes.
func (c *Config) Environ() []string {
	env := []string{
		KeyEnv + "=" + c.Env,
		KeyBaseURL + "=" + c.BaseURL,
		KeyUsername + "=" + c.Username,
		KeyPassword + "=" + c.Password,
		fmt.Sprintf("%s=%d", KeyWorkers, c.Workers),
		fmt.Sprintf("%s=%t", KeyHeadless, c.Headless),
		fmt.Sprintf("%s=%d", KeyRetries, c.Retries),
		fmt.Sprintf("%s=%d", KeyMaxFailures, c.MaxFailures),
		KeyActionTimeout + "=" + c.ActionTimeout.String(),
		KeyNavigationTimeout + "=" + c.NavigationTimeout.String(),
		KeyExpectTimeout + "=" + c.ExpectTimeout.String(),
		KeyTestTimeout + "=" + c.TestTimeout.String(),
		KeyOutputDir + "=" + c.OutputDir,
		KeyReportDir + "=" + c.ReportDir,
		KeyScreenshotDir + "=" + c.ScreenshotDir,
		KeyLogDir + "=" + c.LogDir,
		KeyLogLevel + "=" + c.LogLevel,
		KeyProjects + "=" + strings.Join(c.Projects, ","),
		KeyMenuFile + "=" + c.MenuFile,
	}
	if c.CI {
		env = append(env, KeyCI+"=true")
	}
	if c.Artifacts.Enabled() {
		env = append(env,
			KeyArtifactBucket+"="+c.Artifacts.Bucket,
			KeyArtifactEndpoint+"="+c.Artifacts.Endpoint,
			KeyArtifactRegion+"="+c.Artifacts.Region,
		)
	}
	return env
}

// LogSummary writes the effective configuration with secrets masked.
func (c *Config) LogSummary(l *zap.Logger) {
	target := c.BaseURL
	if c.UsesStub() {
		target = "in-process stand-in app"
	}
	fields := logutil.Fields(map[string]string{
		"env":      c.Env,
		"env_file": c.EnvFile,
		"target":   logutil.RedactURL(target),
		"username": c.Username,
		"password": c.Password,
		"projects": strings.Join(c.Projects, ","),
		"bucket":   c.Artifacts.Bucket,
	})
	fields = append(fields,
		zap.Bool("ci", c.CI),
		zap.Int("workers", c.Workers),
		zap.Int("retries", c.Retries),
		zap.Bool("headless", c.Headless),
		zap.Duration("action_timeout", c.ActionTimeout),
		zap.Duration("navigation_timeout", c.NavigationTimeout),
	)
	l.Info("configuration loaded", fields...)
}

func pick[T any](cond bool, yes, no T) T {
	if cond {
		return yes
	}
	return no
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
