// Package artifacts names and stores screenshots, traces and videos produced
// by a suite run, optionally mirroring them to an S3 bucket.
package artifacts

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/config"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/platform"
	"github.com/kuitang/orangehrm-e2e/internal/s3client"
)

// Uploader receives artifact bytes. *s3client.Client implements it.
type Uploader interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
}

// Store writes artifacts under Dir and uploads them under runs/<RunID>/.
type Store struct {
	Dir      string
	RunID    string
	uploader Uploader
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithUploader mirrors every saved artifact to u.
func WithUploader(u Uploader) Option {
	return func(s *Store) { s.uploader = u }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(s *Store) { s.RunID = id }
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{Dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}
	return s
}

// NewFromConfig builds a store for dir, adding an S3 uploader when a bucket
// is configured.
func NewFromConfig(ctx context.Context, cfg config.ArtifactConfig, dir string, opts ...Option) (*Store, error) {
	if cfg.Enabled() {
		client, err := s3client.New(ctx, s3client.Config{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			BucketName:      cfg.Bucket,
			UsePathStyle:    cfg.Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("artifact uploader: %w", err)
		}
		opts = append([]Option{WithUploader(client)}, opts...)
	}
	return NewStore(dir, opts...), nil
}

// ScreenshotName builds "<base>-<engine>-<device>-<unix ms>.png".
func ScreenshotName(base string, engine platform.Engine, class platform.DeviceClass, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d.png", Sanitize(base), engine, class, at.UnixMilli())
}

// ScreenshotPath returns a fresh screenshot path inside the store.
func (s *Store) ScreenshotPath(base string, engine platform.Engine, class platform.DeviceClass) string {
	return filepath.Join(s.Dir, ScreenshotName(base, engine, class, s.now()))
}

// SaveScreenshot stores a PNG under a fresh ScreenshotName and returns its
// local path.
func (s *Store) SaveScreenshot(ctx context.Context, base string, engine platform.Engine, class platform.DeviceClass, png []byte) (string, error) {
	return s.Save(ctx, ScreenshotName(base, engine, class, s.now()), png)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Sanitize turns a test or artifact name into a single path segment.
func Sanitize(name string) string {
	clean := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if clean == "" {
		return "artifact"
	}
	return clean
}

// Save writes data to Dir/name and uploads it. An upload failure is logged
// and returned; the local file is kept.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	local := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return local, s.upload(ctx, filepath.ToSlash(name), data)
}

// Publish uploads a file that was already written under Dir, such as a
// trace archive or a recorded video.
func (s *Store) Publish(ctx context.Context, local string) error {
	if s.uploader == nil {
		return nil
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	rel, err := filepath.Rel(s.Dir, local)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(local)
	}
	return s.upload(ctx, filepath.ToSlash(rel), data)
}

// Key returns the object key used for name.
func (s *Store) Key(name string) string {
	return path.Join("runs", s.RunID, name)
}

func (s *Store) upload(ctx context.Context, name string, data []byte) error {
	if s.uploader == nil {
		return nil
	}
	key := s.Key(name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.uploader.PutObject(ctx, key, data, contentType); err != nil {
		obs.Pkg("artifacts").Warn("artifact upload failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("upload %s: %w", key, err)
	}
	obs.Pkg("artifacts").Debug("artifact uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}
