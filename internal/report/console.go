package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Console colors.
var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	skipColor  = color.New(color.FgYellow)
	grayColor  = color.New(color.Faint)
	valueColor = color.New(color.FgCyan)
)

// PrintList writes one line per test followed by the totals, in the style
// of a list reporter.
func PrintList(w io.Writer, s Summary) {
	for _, t := range s.Tests {
		mark, c := statusMark(t)
		_, _ = c.Fprintf(w, "  %s ", mark)
		_, _ = fmt.Fprintf(w, "%s ", t.Name)
		_, _ = grayColor.Fprintf(w, "(%s)", round(t.Elapsed))
		if t.Flaky {
			_, _ = skipColor.Fprintf(w, " flaky after %d attempts", t.Attempts)
		}
		_, _ = fmt.Fprintln(w)
	}
	for _, p := range s.PackageFailures {
		_, _ = failColor.Fprintf(w, "  ✘ %s", p.Name)
		_, _ = grayColor.Fprintln(w, " (package failed outside any test)")
	}

	for i, t := range s.Failures() {
		_, _ = fmt.Fprintln(w)
		_, _ = failColor.Fprintf(w, "  %d) %s\n", i+1, t.Name)
		for _, line := range t.Output {
			_, _ = fmt.Fprintf(w, "     %s", strings.TrimLeft(line, " "))
			if !strings.HasSuffix(line, "\n") {
				_, _ = fmt.Fprintln(w)
			}
		}
	}

	_, _ = fmt.Fprintln(w)
	if s.Passed > 0 {
		_, _ = passColor.Fprintf(w, "  %d passed", s.Passed)
		_, _ = grayColor.Fprintf(w, " (%s)\n", round(s.Elapsed))
	}
	if n := s.FailureCount(); n > 0 {
		_, _ = failColor.Fprintf(w, "  %d failed\n", n)
	}
	if s.Flaky > 0 {
		_, _ = skipColor.Fprintf(w, "  %d flaky\n", s.Flaky)
	}
	if s.Skipped > 0 {
		_, _ = skipColor.Fprintf(w, "  %d skipped\n", s.Skipped)
	}
	if len(s.Tests) == 0 && len(s.PackageFailures) == 0 {
		_, _ = valueColor.Fprintln(w, "  no tests ran")
	}
}

func statusMark(t TestResult) (string, *color.Color) {
	switch {
	case t.Failed():
		return "✘", failColor
	case t.Status == StatusSkip:
		return "-", skipColor
	default:
		return "✓", passColor
	}
}

func round(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(100 * time.Millisecond)
}
