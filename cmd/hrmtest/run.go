package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/config"
	"github.com/kuitang/orangehrm-e2e/internal/launcher"
	"github.com/kuitang/orangehrm-e2e/internal/runner"
)

// defaultRunTimeout bounds each go test invocation. Per-test limits come
// from TEST_TIMEOUT inside the suites.
const defaultRunTimeout = 60 * time.Minute

// testsFailedError carries the exit code of a run whose tests failed. The
// failures are already on the console, so nothing else is printed.
type testsFailedError struct {
	code     int
	failures int
}

func (e *testsFailedError) Error() string {
	return fmt.Sprintf("%d test(s) failed", e.failures)
}

type runFlags struct {
	projects    []string
	workers     int
	headless    bool
	retries     int
	maxFailures int
	grep        string
	timeout     time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [packages]",
		Short: "Run the browser suites",
		Long: `Run the browser suites with go test, retrying failed tests and writing
the HTML or JUnit report. Packages default to ./tests/browser/...`,
		Annotations: map[string]string{requireEnvFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&f.projects, "project", nil, `project to run; repeatable, "all" selects every project`)
	flags.IntVar(&f.workers, "workers", 0, "packages tested in parallel (default $WORKERS)")
	flags.BoolVar(&f.headless, "headless", true, "run browsers headless (default $HEADLESS)")
	flags.IntVar(&f.retries, "retries", 0, "re-runs of failed tests (default $RETRIES)")
	flags.IntVar(&f.maxFailures, "max-failures", 0, "stop after this many failures (default $MAX_FAILURES)")
	flags.StringVar(&f.grep, "grep", "", "only run tests matching this regexp")
	flags.DurationVar(&f.timeout, "timeout", defaultRunTimeout, "limit for each go test invocation")
	return cmd
}

// applyRunFlags overrides configuration with the flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, f runFlags) {
	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.Projects = f.projects
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("headless") {
		cfg.Headless = f.headless
	}
	if flags.Changed("retries") {
		cfg.Retries = f.retries
	}
	if flags.Changed("max-failures") {
		cfg.MaxFailures = f.maxFailures
	}
}

func (a *app) run(cmd *cobra.Command, f runFlags, packages []string) error {
	cfg := a.cfg
	applyRunFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}
	projects, err := launcher.Select(cfg.Projects)
	if err != nil {
		return err
	}
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	cfg.Projects = names

	if cfg.ReportDir != "" {
		if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	a.log.Info("starting run",
		zap.Strings("projects", names),
		zap.Strings("packages", packages),
		zap.String("grep", f.grep),
	)

	r := runner.New(a.newExecutor(cmd.ErrOrStderr()))
	res, err := r.Run(cmd.Context(), runner.Options{
		Packages:    packages,
		Workers:     cfg.Workers,
		Timeout:     f.timeout,
		Grep:        f.grep,
		Retries:     cfg.Retries,
		MaxFailures: cfg.MaxFailures,
		Env:         cfg.Environ(),
		ReportDir:   cfg.ReportDir,
		JUnit:       cfg.Semaphore,
		Console:     cmd.OutOrStdout(),
		Title:       "OrangeHRM UI tests (" + cfg.Env + ")",
	})
	if err != nil {
		return err
	}
	if code := res.ExitCode(); code != 0 {
		return &testsFailedError{code: code, failures: res.Summary.FailureCount()}
	}
	return nil
}
