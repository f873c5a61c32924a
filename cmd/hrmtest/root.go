package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/config"
	"github.com/kuitang/orangehrm-e2e/internal/launcher"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/runner"
)

// requireEnvFile marks commands that refuse to start without .env.<ENV>.
const requireEnvFile = "require-env-file"

// app is shared by every subcommand.
type app struct {
	env    string
	envDir string
	cfg    *config.Config
	log    *zap.Logger

	newExecutor func(stderr io.Writer) runner.Executor
	install     func(projects []launcher.Project) error
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{
		newExecutor: func(stderr io.Writer) runner.Executor {
			return runner.GoExecutor{Stderr: stderr}
		},
		install: launcher.Install,
		log:     zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "hrmtest",
		Short:         "Cross-browser UI tests for OrangeHRM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.env, "env", "", "environment name; reads .env.<env> (default $ENV or dev)")

	root.AddCommand(
		newRunCmd(a),
		newInstallCmd(a),
		newStubCmd(a),
		newProjectsCmd(),
	)
	return root, a
}

// load resolves configuration and starts logging for cmd.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{
		Env:            a.env,
		Dir:            a.envDir,
		RequireEnvFile: cmd.Annotations[requireEnvFile] == "true",
	})
	if err != nil {
		return err
	}

	logCfg := obs.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Dir = cfg.LogDir
	logCfg.Console = cmd.ErrOrStderr()
	if err := obs.Init(logCfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	a.cfg = cfg
	a.log = obs.Pkg("cli")
	cfg.LogSummary(a.log)
	return nil
}

func loadCatalog(path string) (*menu.Catalog, error) {
	if path == "" {
		return menu.Default(), nil
	}
	return menu.Load(path)
}
