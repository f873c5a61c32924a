package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/orangehrm-e2e/internal/config"
	"github.com/kuitang/orangehrm-e2e/internal/platform"
	"github.com/kuitang/orangehrm-e2e/internal/s3client"
)

func TestScreenshotName_Format(t *testing.T) {
	at := time.UnixMilli(1718000000123)
	got := ScreenshotName("login-page", platform.WebKit, platform.Mobile, at)
	assert.Equal(t, "login-page-webkit-mobile-1718000000123.png", got)
}

func TestScreenshotName_IsSinglePathSegment(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9._-]+-(chromium|firefox|webkit)-(desktop|tablet|mobile)-\d+\.png$`)
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.String().Draw(rt, "base")
		engine := rapid.SampledFrom([]platform.Engine{platform.Chromium, platform.Firefox, platform.WebKit}).Draw(rt, "engine")
		class := rapid.SampledFrom([]platform.DeviceClass{platform.Desktop, platform.Tablet, platform.Mobile}).Draw(rt, "class")
		name := ScreenshotName(base, engine, class, time.UnixMilli(rapid.Int64Range(0, 1<<40).Draw(rt, "ms")))
		if !pattern.MatchString(name) {
			rt.Fatalf("unexpected name %q", name)
		}
	})
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "TestLogin_TC_LOGIN_001_Chrome_Desktop", Sanitize("TestLogin/TC_LOGIN_001/Chrome Desktop"))
	assert.Equal(t, "artifact", Sanitize("///"))
}

func TestStore_SaveWritesAndUploads(t *testing.T) {
	client := s3client.TestClient(t, "artifacts")
	dir := t.TempDir()
	store := NewStore(dir, WithUploader(client), WithRunID("run-1"))

	local, err := store.Save(context.Background(), "shot.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot.png"), local)

	onDisk, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), onDisk)

	uploaded, err := client.GetObject(context.Background(), "runs/run-1/shot.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), uploaded)
}

func TestStore_PublishUsesRelativeKey(t *testing.T) {
	client := s3client.TestClient(t, "artifacts")
	dir := t.TempDir()
	store := NewStore(dir, WithUploader(client), WithRunID("run-2"))

	trace := filepath.Join(dir, "TestLogin", "trace.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(trace), 0o755))
	require.NoError(t, os.WriteFile(trace, []byte("zip"), 0o644))
	require.NoError(t, store.Publish(context.Background(), trace))

	keys, err := client.ListKeys(context.Background(), "runs/run-2/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/run-2/TestLogin/trace.zip"}, keys)
}

type failingUploader struct{}

func (failingUploader) PutObject(context.Context, string, []byte, string) error {
	return errors.New("bucket unreachable")
}

func TestStore_UploadFailureKeepsLocalFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, WithUploader(failingUploader{}))

	local, err := store.Save(context.Background(), "shot.png", []byte("png"))
	require.Error(t, err)
	assert.FileExists(t, local)
}

func TestStore_WithoutUploader(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(func() time.Time { return time.UnixMilli(42) }))
	assert.NotEmpty(t, store.RunID)
	assert.Equal(t, filepath.Join(store.Dir, "home-firefox-tablet-42.png"), store.ScreenshotPath("home", platform.Firefox, platform.Tablet))
	require.NoError(t, store.Publish(context.Background(), "/does/not/matter"))
}

func TestNewFromConfig_NoBucket(t *testing.T) {
	store, err := NewFromConfig(context.Background(), config.ArtifactConfig{}, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, store.uploader)
}

func TestStore_SaveScreenshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, WithClock(func() time.Time { return time.UnixMilli(7) }))

	local, err := store.SaveScreenshot(context.Background(), "dashboard loaded", platform.Chromium, platform.Desktop, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dashboard_loaded-chromium-desktop-7.png"), local)
	assert.FileExists(t, local)
}
