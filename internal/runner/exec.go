package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// GoExecutor runs the real go command.
type GoExecutor struct {
	// GoBin defaults to "go".
	GoBin string
	// Dir is the module root; empty means the working directory.
	Dir string
	// Stderr receives the go command's own diagnostics.
	Stderr io.Writer
}

func (g GoExecutor) bin() string {
	if g.GoBin == "" {
		return "go"
	}
	return g.GoBin
}

// List implements Executor.
func (g GoExecutor) List(ctx context.Context, patterns []string) ([]string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, g.bin(), append([]string{"list"}, patterns...)...)
	cmd.Dir = g.Dir
	cmd.Stdout = &out
	cmd.Stderr = g.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list: %w", err)
	}

	var pkgs []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			pkgs = append(pkgs, line)
		}
	}
	return pkgs, sc.Err()
}

// Test implements Executor.
func (g GoExecutor) Test(ctx context.Context, args []string, env []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = g.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		// go test exits non-zero when tests fail; the event stream says which.
		return nil
	}
	if err != nil {
		return fmt.Errorf("go %s: %w", args[0], err)
	}
	return nil
}
