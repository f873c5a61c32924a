// Package report turns the `go test -json` event stream of the browser
// suites into a Summary and writes it for people (console list, HTML) and
// for CI (JUnit XML, JSON).
package report

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
)

// test2json actions.
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionOutput      = "output"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// Event is one line of `go test -json` output.
type Event struct {
	Time       time.Time
	Action     string
	Package    string
	ImportPath string
	Test       string
	Elapsed    float64
	Output     string
}

// ParseEvent decodes one line. Lines that are not test2json events (plain
// text printed by the go command, blank lines) report false.
func ParseEvent(line []byte) (Event, bool) {
	if !gjson.ValidBytes(line) {
		return Event{}, false
	}
	res := gjson.ParseBytes(line)
	action := res.Get("Action")
	if !res.IsObject() || action.Type != gjson.String {
		return Event{}, false
	}

	e := Event{
		Action:     action.String(),
		Package:    res.Get("Package").String(),
		ImportPath: res.Get("ImportPath").String(),
		Test:       res.Get("Test").String(),
		Elapsed:    res.Get("Elapsed").Float(),
		Output:     res.Get("Output").String(),
	}
	if ts := res.Get("Time"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			e.Time = t
		}
	}
	return e, true
}

// maxLineBytes bounds a single event line; test output with huge lines is
// truncated by the go command well below this.
const maxLineBytes = 4 << 20

// ReadEvents calls fn for every event in r, skipping non-event lines.
func ReadEvents(r io.Reader, fn func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	for sc.Scan() {
		if e, ok := ParseEvent(sc.Bytes()); ok {
			fn(e)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read test events: %w", err)
	}
	return nil
}
