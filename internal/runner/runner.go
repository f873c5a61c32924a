// Package runner drives the browser suites through `go test -json`: it
// selects packages, re-runs failed tests, stops early once the failure
// threshold is reached and writes the reports.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/logutil"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/report"
)

// DefaultPackages are the suite packages run when none are named.
var DefaultPackages = []string{"./tests/browser/..."}

// RetryAttemptEnv is set in the environment of retried test binaries to the
// attempt number (1 for the first retry).
const RetryAttemptEnv = "HRM_RETRY_ATTEMPT"

// RunIDEnv is shared by every test binary of a run so their uploaded
// artifacts land under one prefix.
const RunIDEnv = "HRM_RUN_ID"

// Report file names inside Options.ReportDir.
const (
	EventsFile  = "results.json"
	SummaryFile = "summary.json"
	HTMLFile    = "index.html"
	JUnitFile   = "report.xml"
)

// Executor runs the go command. Stdout carries the test2json stream.
type Executor interface {
	// List expands package patterns into import paths.
	List(ctx context.Context, patterns []string) ([]string, error)
	// Test runs `go <args>` with env appended to the process environment.
	// A non-zero exit caused by failing tests is not an error.
	Test(ctx context.Context, args []string, env []string, stdout io.Writer) error
}

// Options configures a run.
type Options struct {
	Packages    []string
	Workers     int
	Timeout     time.Duration
	Grep        string
	Retries     int
	MaxFailures int
	// Env is passed to every test binary, typically config.Environ().
	Env []string
	// ReportDir receives the event stream and reports; empty disables them.
	ReportDir string
	// JUnit selects report.xml instead of index.html.
	JUnit bool
	// Console receives the final list; nil discards it.
	Console io.Writer
	// Title heads the HTML report.
	Title string
}

// Result is the outcome of a run.
type Result struct {
	Summary report.Summary
	// Stopped is set when the failure threshold cut the run short.
	Stopped bool
}

// ExitCode is 0 iff nothing failed after retries.
func (r Result) ExitCode() int {
	if r.Summary.OK() {
		return 0
	}
	return 1
}

// Runner runs suites with an Executor.
type Runner struct {
	exec Executor
	log  *zap.Logger
}

// New creates a runner.
func New(exec Executor) *Runner {
	return &Runner{exec: exec, log: obs.Pkg("runner")}
}

// BuildArgs returns the `go test` arguments for pkgs with an optional -run
// filter.
func BuildArgs(opts Options, pkgs []string, run string) []string {
	args := []string{"test", "-json", "-count=1"}
	if opts.Workers > 0 {
		args = append(args, "-p", strconv.Itoa(opts.Workers))
	}
	if opts.Timeout > 0 {
		args = append(args, "-timeout", opts.Timeout.String())
	}
	if run != "" {
		args = append(args, "-run", run)
	}
	return append(args, pkgs...)
}

// RetryPattern matches exactly the named top-level tests.
func RetryPattern(names []string) string {
	quoted := make([]string, len(names))
	for n, name := range names {
		quoted[n] = regexp.QuoteMeta(name)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

// Run executes the suites and writes reports. The error is non-nil only when
// the run itself could not be carried out; test failures are reported
// through Result.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	patterns := opts.Packages
	if len(patterns) == 0 {
		patterns = DefaultPackages
	}
	opts.Env = withRunID(opts.Env)
	r.log.Debug("Starting suites",
		zap.Strings("packages", patterns),
		zap.Strings("env", logutil.RedactEnv(opts.Env)))

	events, closeEvents, err := openEvents(opts.ReportDir)
	if err != nil {
		return Result{}, err
	}
	defer closeEvents()

	collector := report.NewCollector()
	sink := &eventSink{collector: collector, raw: events, log: r.log}

	var res Result
	if opts.MaxFailures > 0 {
		res.Stopped, err = r.runSequential(ctx, opts, patterns, collector, sink)
	} else {
		err = r.exec.Test(ctx, BuildArgs(opts, patterns, opts.Grep), opts.Env, sink)
	}
	sink.flush()
	if err != nil {
		return Result{}, err
	}

	for attempt := 1; attempt <= opts.Retries && !res.Stopped; attempt++ {
		failed := collector.FailedTests()
		if len(failed) == 0 {
			break
		}
		env := append(append([]string(nil), opts.Env...), fmt.Sprintf("%s=%d", RetryAttemptEnv, attempt))
		for _, pkg := range sortedKeys(failed) {
			r.log.Info("Retrying failed tests",
				zap.Int("attempt", attempt),
				zap.String("package", pkg),
				zap.Strings("tests", failed[pkg]))
			if err := r.exec.Test(ctx, BuildArgs(opts, []string{pkg}, RetryPattern(failed[pkg])), env, sink); err != nil {
				return Result{}, err
			}
			sink.flush()
		}
	}

	res.Summary = collector.Summary()
	if opts.Console != nil {
		report.PrintList(opts.Console, res.Summary)
	}
	if err := writeReports(opts, res.Summary); err != nil {
		return res, err
	}
	r.log.Info("Run finished",
		zap.Int("passed", res.Summary.Passed),
		zap.Int("failed", res.Summary.FailureCount()),
		zap.Int("flaky", res.Summary.Flaky),
		zap.Int("skipped", res.Summary.Skipped),
		zap.Bool("stopped", res.Stopped))
	return res, nil
}

// runSequential runs one package at a time so that no further package
// starts once MaxFailures failures have accumulated.
func (r *Runner) runSequential(ctx context.Context, opts Options, patterns []string, c *report.Collector, sink *eventSink) (bool, error) {
	pkgs, err := r.exec.List(ctx, patterns)
	if err != nil {
		return false, fmt.Errorf("list packages: %w", err)
	}
	for n, pkg := range pkgs {
		if err := r.exec.Test(ctx, BuildArgs(opts, []string{pkg}, opts.Grep), opts.Env, sink); err != nil {
			return false, err
		}
		sink.flush()
		if failures := c.Summary().FailureCount(); failures >= opts.MaxFailures {
			if n < len(pkgs)-1 {
				r.log.Warn("Failure threshold reached, skipping remaining packages",
					zap.Int("failures", failures),
					zap.Int("max_failures", opts.MaxFailures),
					zap.Strings("skipped", pkgs[n+1:]))
				return true, nil
			}
		}
	}
	return false, nil
}

// eventSink splits the executor's stdout into lines, feeds them to the
// collector and copies them to the raw event file.
type eventSink struct {
	mu        sync.Mutex
	collector *report.Collector
	raw       io.Writer
	log       *zap.Logger
	partial   []byte
}

func (s *eventSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw != nil {
		if _, err := s.raw.Write(p); err != nil {
			return 0, err
		}
	}
	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.line(s.partial[:i])
		s.partial = s.partial[i+1:]
	}
	return len(p), nil
}

// flush handles a final line without a trailing newline.
func (s *eventSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partial) > 0 {
		s.line(s.partial)
		s.partial = nil
	}
}

func (s *eventSink) line(b []byte) {
	e, ok := report.ParseEvent(b)
	if !ok {
		if text := logutil.TruncateForLog(string(b), 200); text != "" {
			s.log.Debug("Non-event output", zap.String("line", text))
		}
		return
	}
	s.collector.Add(e)
	if e.Test != "" && (e.Action == report.ActionPass || e.Action == report.ActionFail) {
		s.log.Debug("Test finished", zap.String("test", e.Test), zap.String("result", e.Action), zap.Float64("elapsed_s", e.Elapsed))
	}
}

func openEvents(dir string) (io.Writer, func(), error) {
	if dir == "" {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, EventsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("create event log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeReports(opts Options, s report.Summary) error {
	if opts.ReportDir == "" {
		return nil
	}
	title := opts.Title
	if title == "" {
		title = "OrangeHRM UI tests"
	}
	write := func(name string, fn func(io.Writer) error) error {
		f, err := os.Create(filepath.Join(opts.ReportDir, name))
		if err != nil {
			return err
		}
		return errors.Join(fn(f), f.Close())
	}

	if err := write(SummaryFile, func(w io.Writer) error { return report.WriteJSON(w, s) }); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if opts.JUnit {
		if err := write(JUnitFile, func(w io.Writer) error { return report.WriteJUnit(w, s) }); err != nil {
			return fmt.Errorf("write junit report: %w", err)
		}
		return nil
	}
	if err := write(HTMLFile, func(w io.Writer) error { return report.WriteHTML(w, title, s) }); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}

func withRunID(env []string) []string {
	for _, kv := range env {
		if strings.HasPrefix(kv, RunIDEnv+"=") {
			return env
		}
	}
	return append(append([]string(nil), env...), RunIDEnv+"="+uuid.NewString())
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
