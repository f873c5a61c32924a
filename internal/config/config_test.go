package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/orangehrm-e2e/internal/ratelimit"
)

var allKeys = []string{
	KeyEnv, KeyBaseURL, KeyBaseURLAlt, KeyUsername, KeyPassword, KeyCI, KeySemaphore,
	KeyWorkers, KeyHeadless, KeyRetries, KeyMaxFailures, KeyActionTimeout,
	KeyNavigationTimeout, KeyExpectTimeout, KeyTestTimeout, KeyOutputDir, KeyReportDir,
	KeyScreenshotDir, KeyLogDir, KeyLogLevel, KeyProjects, KeyMenuFile, KeyArtifactBucket,
	KeyArtifactEndpoint, KeyArtifactRegion, KeyAccessKeyID, KeySecretAccessKey,
	KeyLoginRPS, KeyLoginBurst,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func writeEnvFile(t *testing.T, dir, env, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env."+env), []byte(body), 0o600))
}

func validTestConfig() Config {
	return Config{
		Env:               "dev",
		BaseURL:           DefaultBaseURL,
		Username:          DefaultUsername,
		Password:          DefaultPassword,
		Workers:           4,
		ActionTimeout:     15 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ExpectTimeout:     30 * time.Second,
		TestTimeout:       240 * time.Second,
		LoginRateLimit:    ratelimit.Config{RPS: 5, Burst: 20, CleanupInterval: time.Minute},
	}
}

func TestLoad_LocalDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Empty(t, cfg.EnvFile)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "Admin", cfg.Username)
	assert.Equal(t, "admin123", cfg.Password)
	assert.False(t, cfg.CI)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 0, cfg.Retries)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 15*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 30*time.Second, cfg.ExpectTimeout)
	assert.Equal(t, 240*time.Second, cfg.TestTimeout)
	assert.Equal(t, "test-results", cfg.OutputDir)
	assert.Equal(t, "playwright-report", cfg.ReportDir)
	assert.Equal(t, filepath.Join("ui", "screenshots"), cfg.ScreenshotDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Artifacts.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_CIDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyCI, "true")

	cfg, err := Load(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.True(t, cfg.CI)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 20*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 45*time.Second, cfg.NavigationTimeout)
}

func TestLoad_EnvFileThenEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, "staging", strings.Join([]string{
		"ORANGEHRM_BASE_URL=https://staging.hr.example.test",
		"ORANGEHRM_USERNAME=qa-admin",
		"WORKERS=2",
		"HEADLESS=false",
		`PROJECTS="Chrome Desktop, iPhone 12"`,
		"ACTION_TIMEOUT=5s",
		"",
	}, "\n"))
	t.Setenv(KeyWorkers, "3")

	cfg, err := Load(Options{Env: "staging", Dir: dir, RequireEnvFile: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".env.staging"), cfg.EnvFile)
	assert.Equal(t, "https://staging.hr.example.test", cfg.BaseURL)
	assert.Equal(t, "qa-admin", cfg.Username)
	assert.Equal(t, 3, cfg.Workers, "environment wins over the env file")
	assert.False(t, cfg.Headless)
	assert.Equal(t, []string{"Chrome Desktop", "iPhone 12"}, cfg.Projects)
	assert.Equal(t, 5*time.Second, cfg.ActionTimeout)
}

func TestLoad_EnvSelectedFromEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, "qa", "BASE_URL=http://127.0.0.1:9090\n")
	t.Setenv(KeyEnv, "qa")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Env)
	assert.Equal(t, "http://127.0.0.1:9090", cfg.BaseURL, "BASE_URL is accepted as an alias")
}

func TestLoad_RequiredEnvFileMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{Env: "prod", Dir: t.TempDir(), RequireEnvFile: true})
	var missing *MissingEnvFileError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "prod", missing.Env)
	assert.Contains(t, err.Error(), ".env.prod")
}

func TestLoad_DefaultBaseURLOption(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Dir: t.TempDir(), DefaultBaseURL: StubBaseURL})
	require.NoError(t, err)
	assert.True(t, cfg.UsesStub())
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validTestConfig()
	cfg.BaseURL = "ftp://hr.example.test"
	cfg.Username = " "
	cfg.Password = ""
	cfg.Workers = 0
	cfg.Retries = -1
	cfg.ActionTimeout = 0
	cfg.Artifacts = ArtifactConfig{Bucket: "runs", AccessKeyID: "AKIA"}
	cfg.LoginRateLimit.RPS = 0

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	for _, token := range []string{
		KeyBaseURL, KeyUsername, KeyPassword, KeyWorkers, KeyRetries,
		KeyActionTimeout, KeySecretAccessKey, KeyLoginRPS,
	} {
		assert.Contains(t, err.Error(), token)
	}
}

func testValidate_RejectsNonPositiveTimeouts(t *rapid.T) {
	cfg := validTestConfig()
	bad := -time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "bad"))
	key := rapid.SampledFrom([]string{KeyActionTimeout, KeyNavigationTimeout, KeyExpectTimeout, KeyTestTimeout}).Draw(t, "key")
	switch key {
	case KeyActionTimeout:
		cfg.ActionTimeout = bad
	case KeyNavigationTimeout:
		cfg.NavigationTimeout = bad
	case KeyExpectTimeout:
		cfg.ExpectTimeout = bad
	case KeyTestTimeout:
		cfg.TestTimeout = bad
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), key) {
		t.Fatalf("expected validation error mentioning %s, got %v", key, err)
	}
}

func TestValidate_RejectsNonPositiveTimeouts(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsNonPositiveTimeouts)
}

func TestUsesStub(t *testing.T) {
	t.Parallel()
	for base, want := range map[string]bool{
		"":                              true,
		"stub":                          true,
		"STUB":                          true,
		DefaultBaseURL:                  false,
		"http://127.0.0.1:8080":         false,
		"https://hr.example.test/base/": false,
	} {
		cfg := Config{BaseURL: base}
		if got := cfg.UsesStub(); got != want {
			t.Fatalf("UsesStub(%q) = %v, want %v", base, got, want)
		}
	}
}

func TestEnviron_RoundTripsThroughLoad(t *testing.T) {
	clearEnv(t)
	want := validTestConfig()
	want.Env = "roundtrip"
	want.BaseURL = "http://127.0.0.1:18080"
	want.Workers = 2
	want.Retries = 1
	want.Headless = false
	want.Projects = []string{"Firefox Desktop", "Pixel 5"}
	want.OutputDir = "out"
	want.ReportDir = "report"
	want.ScreenshotDir = "shots"
	want.LogDir = "logdir"
	want.LogLevel = "debug"

	for _, kv := range want.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		t.Setenv(key, value)
	}

	got, err := Load(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, want.Env, got.Env)
	assert.Equal(t, want.BaseURL, got.BaseURL)
	assert.Equal(t, want.Workers, got.Workers)
	assert.Equal(t, want.Retries, got.Retries)
	assert.Equal(t, want.Headless, got.Headless)
	assert.Equal(t, want.Projects, got.Projects)
	assert.Equal(t, want.ActionTimeout, got.ActionTimeout)
	assert.Equal(t, want.OutputDir, got.OutputDir)
	assert.Equal(t, want.LogLevel, got.LogLevel)
}
