package obs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	CombinedLogName = "combined.log"
	ErrorLogName    = "error.log"
)

// Config controls the process-wide logger.
type Config struct {
	// Level applies to the console core. The combined file always records
	// info and above; the error file records error and above.
	Level   string
	Dir     string
	Service string
	Color   bool
	// Console defaults to stdout.
	Console io.Writer
}

// DefaultConfig reads LOG_LEVEL and LOG_DIR from the environment.
func DefaultConfig() Config {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	dir := strings.TrimSpace(os.Getenv("LOG_DIR"))
	if dir == "" {
		dir = "logs"
	}
	return Config{
		Level:   level,
		Dir:     dir,
		Service: "hrmtest",
		Color:   true,
	}
}

var (
	logger   atomic.Pointer[zap.Logger]
	once     sync.Once
	fallback = sync.OnceValue(func() *zap.Logger {
		return zap.New(consoleCore(zapcore.Lock(os.Stderr), zap.InfoLevel, false))
	})
)

// Init configures the global logger. Only the first call has any effect, so
// every entry point (CLI, TestMain, stand-in server) may call it.
func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		l, err := build(cfg)
		if err != nil {
			initErr = err
			return
		}
		logger.Store(l)
		zap.ReplaceGlobals(l)
	})
	return initErr
}

func build(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{consoleCore(zapcore.AddSync(console), level, cfg.Color)}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cores = append(cores,
			fileCore(filepath.Join(cfg.Dir, CombinedLogName), zap.InfoLevel),
			fileCore(filepath.Join(cfg.Dir, ErrorLogName), zap.ErrorLevel),
		)
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	if cfg.Service != "" {
		l = l.Named(cfg.Service)
	}
	return l, nil
}

// consoleCore renders "[15:04:05] INFO: message" followed by any fields.
func consoleCore(w zapcore.WriteSyncer, level zapcore.LevelEnabler, color bool) zapcore.Core {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString("[" + t.Format("15:04:05") + "]")
	}
	enc.EncodeLevel = func(l zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(levelLabel(l, color) + ":")
	}
	enc.NameKey = ""
	enc.CallerKey = ""
	enc.StacktraceKey = ""
	enc.ConsoleSeparator = " "
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, level)
}

func fileCore(path string, min zapcore.Level) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    20,
		MaxBackups: 3,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, zap.NewAtomicLevelAt(min))
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel: "\x1b[36m",
	zapcore.InfoLevel:  "\x1b[32m",
	zapcore.WarnLevel:  "\x1b[33m",
	zapcore.ErrorLevel: "\x1b[31m",
}

func levelLabel(l zapcore.Level, color bool) string {
	label := l.CapitalString()
	if c, ok := levelColors[l]; ok && color {
		return c + label + "\x1b[0m"
	}
	return label
}

// L returns the global logger, or a plain stderr logger before Init.
func L() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return fallback()
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *zap.Logger {
	return L().With(zap.String("pkg", pkg))
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() {
	l := logger.Load()
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil {
		msg := err.Error()
		if !strings.Contains(msg, "/dev/stdout") &&
			!strings.Contains(msg, "invalid argument") &&
			!strings.Contains(msg, "inappropriate ioctl") {
			fmt.Fprintln(os.Stderr, "obs: sync:", err)
		}
	}
}

// SetOutputForTests routes all logging to w at debug level without colors.
func SetOutputForTests(w io.Writer) func() {
	prev := logger.Load()
	logger.Store(zap.New(consoleCore(zapcore.AddSync(w), zap.DebugLevel, false)))
	return func() {
		logger.Store(prev)
	}
}
