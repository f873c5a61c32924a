package obs

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resetGlobalLogger() {
	once = sync.Once{}
	logger.Store(nil)
}

func TestInit_WritesConsoleAndFiles(t *testing.T) {
	resetGlobalLogger()
	t.Cleanup(resetGlobalLogger)

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	require.NoError(t, Init(Config{Level: "debug", Dir: dir, Console: &console}))

	Pkg("login").Debug("probing viewport")
	L().Info("navigated to login page", zap.String("browser", "chromium"))
	L().Error("error banner missing")
	Sync()

	out := console.String()
	assert.Contains(t, out, "DEBUG: probing viewport")
	assert.Contains(t, out, "INFO: navigated to login page")
	assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\] INFO:`, out)

	combined, err := os.ReadFile(filepath.Join(dir, CombinedLogName))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "navigated to login page")
	assert.Contains(t, string(combined), "error banner missing")
	assert.NotContains(t, string(combined), "probing viewport", "combined.log starts at info")

	errorsOnly, err := os.ReadFile(filepath.Join(dir, ErrorLogName))
	require.NoError(t, err)
	assert.Contains(t, string(errorsOnly), "error banner missing")
	assert.NotContains(t, string(errorsOnly), "navigated to login page")
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	resetGlobalLogger()
	t.Cleanup(resetGlobalLogger)

	var first, second bytes.Buffer
	require.NoError(t, Init(Config{Level: "info", Console: &first}))
	require.NoError(t, Init(Config{Level: "info", Console: &second}))

	L().Info("hello")
	Sync()
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	resetGlobalLogger()
	t.Cleanup(resetGlobalLogger)

	var console bytes.Buffer
	require.NoError(t, Init(Config{Level: "chatty", Console: &console}))
	L().Debug("hidden")
	L().Info("shown")
	Sync()

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestColorizedLevels(t *testing.T) {
	assert.Equal(t, "WARN", levelLabel(zap.WarnLevel, false))
	colored := levelLabel(zap.ErrorLevel, true)
	assert.True(t, strings.HasPrefix(colored, "\x1b[31m"))
	assert.True(t, strings.HasSuffix(colored, "\x1b[0m"))
}

func TestL_FallbackBeforeInit(t *testing.T) {
	resetGlobalLogger()
	t.Cleanup(resetGlobalLogger)
	require.NotNil(t, L())
	require.NotNil(t, Pkg("config"))
}

func TestAccessLog_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	t.Cleanup(restore)

	var seen string
	h := AccessLog("web", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/web/index.php/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-fixed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-fixed", seen)
	assert.Equal(t, "req-fixed", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "http_access")
	assert.Contains(t, buf.String(), `"status": 418`)
}

func TestAccessLog_GeneratesRequestID(t *testing.T) {
	h := AccessLog("web", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-Id"), "req-"))
}
