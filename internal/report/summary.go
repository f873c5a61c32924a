package report

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Status is the outcome of a test or package.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
	// StatusIncomplete marks a test that started but never reported a
	// result, usually because its binary timed out or panicked.
	StatusIncomplete Status = "incomplete"
)

// maxOutputLines caps the output kept per test.
const maxOutputLines = 200

// TestResult is the final outcome of one test across all attempts.
type TestResult struct {
	Package  string        `json:"package"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Elapsed  time.Duration `json:"elapsed"`
	Attempts int           `json:"attempts"`
	// Flaky is set when the test failed on an earlier attempt and passed on
	// a later one.
	Flaky  bool     `json:"flaky,omitempty"`
	Output []string `json:"output,omitempty"`

	failedBefore bool
}

// Failed reports whether the final outcome counts as a failure.
func (t TestResult) Failed() bool {
	return t.Status == StatusFail || t.Status == StatusIncomplete
}

// TopLevel returns the name of the top-level test, without subtests.
func (t TestResult) TopLevel() string {
	name, _, _ := strings.Cut(t.Name, "/")
	return name
}

// PackageResult is the outcome of one package binary.
type PackageResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Elapsed time.Duration `json:"elapsed"`
	Output  []string      `json:"output,omitempty"`
}

type testKey struct {
	pkg, test string
}

// Collector accumulates events, possibly from several attempts, and is safe
// for concurrent use.
type Collector struct {
	mu       sync.Mutex
	tests    map[testKey]*TestResult
	order    []testKey
	packages map[string]*PackageResult
	pkgOrder []string
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		tests:    make(map[testKey]*TestResult),
		packages: make(map[string]*PackageResult),
	}
}

// Add records one event.
func (c *Collector) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Action {
	case ActionBuildOutput:
		p := c.pkg(buildPackage(e.ImportPath))
		p.Output = appendCapped(p.Output, e.Output)
		return
	case ActionBuildFail:
		c.pkg(buildPackage(e.ImportPath)).Status = StatusFail
		return
	}
	if e.Package == "" {
		return
	}

	if e.Test == "" {
		p := c.pkg(e.Package)
		switch e.Action {
		case ActionOutput:
			p.Output = appendCapped(p.Output, e.Output)
		case ActionPass, ActionFail, ActionSkip:
			// A later attempt only re-runs failed tests; its package result
			// replaces the earlier one.
			p.Status = Status(e.Action)
			p.Elapsed = seconds(e.Elapsed)
		}
		return
	}

	k := testKey{e.Package, e.Test}
	t, ok := c.tests[k]
	if !ok {
		t = &TestResult{Package: e.Package, Name: e.Test, Status: StatusIncomplete}
		c.tests[k] = t
		c.order = append(c.order, k)
	}
	switch e.Action {
	case ActionRun:
		if t.Status == StatusFail {
			t.failedBefore = true
		}
		t.Attempts++
		t.Status = StatusIncomplete
		t.Output = nil
	case ActionOutput:
		t.Output = appendCapped(t.Output, e.Output)
	case ActionPass, ActionFail, ActionSkip:
		t.Status = Status(e.Action)
		t.Elapsed = seconds(e.Elapsed)
		t.Flaky = t.failedBefore && t.Status == StatusPass
	}
}

// buildPackage maps a build ImportPath such as "x [x.test]" to the package
// name its test events carry.
func buildPackage(importPath string) string {
	name, _, _ := strings.Cut(importPath, " [")
	return name
}

func (c *Collector) pkg(name string) *PackageResult {
	p, ok := c.packages[name]
	if !ok {
		p = &PackageResult{Name: name}
		c.packages[name] = p
		c.pkgOrder = append(c.pkgOrder, name)
	}
	return p
}

// Summary is the aggregated outcome of a run. Counts cover leaf tests only:
// a test with subtests is represented by its subtests.
type Summary struct {
	Tests           []TestResult    `json:"tests"`
	PackageFailures []PackageResult `json:"package_failures,omitempty"`
	Passed          int             `json:"passed"`
	Failed          int             `json:"failed"`
	Skipped         int             `json:"skipped"`
	Flaky           int             `json:"flaky"`
	Elapsed         time.Duration   `json:"elapsed"`
}

// OK reports whether nothing failed.
func (s Summary) OK() bool {
	return s.Failed == 0 && len(s.PackageFailures) == 0
}

// FailureCount counts failed tests plus packages that failed outside any
// test.
func (s Summary) FailureCount() int {
	return s.Failed + len(s.PackageFailures)
}

// Failures returns the failed tests in run order.
func (s Summary) Failures() []TestResult {
	var out []TestResult
	for _, t := range s.Tests {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Summary computes the current summary.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents := make(map[testKey]bool)
	for _, k := range c.order {
		for name := k.test; ; {
			i := strings.LastIndexByte(name, '/')
			if i < 0 {
				break
			}
			name = name[:i]
			parents[testKey{k.pkg, name}] = true
		}
	}

	var s Summary
	failedPkgs := make(map[string]bool)
	for _, k := range c.order {
		if parents[k] {
			continue
		}
		t := *c.tests[k]
		t.Output = append([]string(nil), t.Output...)
		s.Tests = append(s.Tests, t)
		switch {
		case t.Failed():
			s.Failed++
			failedPkgs[t.Package] = true
		case t.Status == StatusSkip:
			s.Skipped++
		default:
			s.Passed++
		}
		if t.Flaky {
			s.Flaky++
		}
	}
	for _, name := range c.pkgOrder {
		p := *c.packages[name]
		s.Elapsed += p.Elapsed
		if p.Status == StatusFail && !failedPkgs[name] {
			p.Output = append([]string(nil), p.Output...)
			s.PackageFailures = append(s.PackageFailures, p)
		}
	}
	return s
}

// FailedTests returns, per package, the sorted top-level names of tests
// whose latest attempt failed. These are the tests a retry re-runs.
func (c *Collector) FailedTests() map[string][]string {
	s := c.Summary()
	seen := make(map[string]map[string]bool)
	for _, t := range s.Failures() {
		if seen[t.Package] == nil {
			seen[t.Package] = make(map[string]bool)
		}
		seen[t.Package][t.TopLevel()] = true
	}
	out := make(map[string][]string, len(seen))
	for pkg, names := range seen {
		for name := range names {
			out[pkg] = append(out[pkg], name)
		}
		sort.Strings(out[pkg])
	}
	return out
}

func appendCapped(lines []string, line string) []string {
	if line == "" {
		return lines
	}
	lines = append(lines, line)
	if len(lines) > maxOutputLines {
		lines = lines[len(lines)-maxOutputLines:]
	}
	return lines
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
