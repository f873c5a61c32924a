package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// Markdown renders s as a markdown document: totals, failures with their
// output, then every test.
func Markdown(title string, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("| Passed | Failed | Flaky | Skipped | Duration |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %s |\n\n", s.Passed, s.FailureCount(), s.Flaky, s.Skipped, round(s.Elapsed))

	if failures := s.Failures(); len(failures) > 0 || len(s.PackageFailures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, t := range failures {
			fmt.Fprintf(&b, "### %s\n\n`%s` · %s · %d attempt(s)\n\n", t.Name, t.Package, t.Status, t.Attempts)
			writeFence(&b, t.Output)
		}
		for _, p := range s.PackageFailures {
			fmt.Fprintf(&b, "### %s\n\npackage failed outside any test\n\n", p.Name)
			writeFence(&b, p.Output)
		}
	}

	if len(s.Tests) > 0 {
		b.WriteString("## Tests\n\n| Status | Test | Package | Duration |\n|---|---|---|---|\n")
		for _, t := range s.Tests {
			status := string(t.Status)
			if t.Flaky {
				status += " (flaky)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", status, escapeCell(t.Name), escapeCell(t.Package), round(t.Elapsed))
		}
	}
	return b.String()
}

func writeFence(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		return
	}
	body := strings.Join(lines, "")
	// The fence must be longer than any backtick run in the output.
	fence := "```"
	for strings.Contains(body, fence) {
		fence += "`"
	}
	fmt.Fprintf(b, "%s\n%s", fence, body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "%s\n\n", fence)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 1100px; color: #1f2a37; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #e5e7eb; padding: .35rem .6rem; text-align: left; }
pre { background: #f6f8fa; padding: .75rem; overflow-x: auto; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// WriteHTML renders the markdown summary to a standalone, sanitized HTML
// page.
func WriteHTML(w io.Writer, title string, s Summary) error {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(Markdown(title, s)))
	out := markdown.Render(doc, html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags}))

	body := bluemonday.UGCPolicy().SanitizeBytes(out)
	return pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body)})
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnit writes s as JUnit XML, one testsuite per package. Packages
// that failed outside any test appear as a single failed case.
func WriteJUnit(w io.Writer, s Summary) error {
	root := junitSuites{
		Failures: s.FailureCount(),
		Skipped:  s.Skipped,
		Time:     secs(s.Elapsed),
	}
	index := make(map[string]int)
	elapsed := make(map[string]time.Duration)
	suite := func(pkg string) *junitSuite {
		n, ok := index[pkg]
		if !ok {
			n = len(root.Suites)
			index[pkg] = n
			root.Suites = append(root.Suites, junitSuite{Name: pkg})
		}
		return &root.Suites[n]
	}

	for _, t := range s.Tests {
		c := junitCase{Name: t.Name, ClassName: t.Package, Time: secs(t.Elapsed)}
		su := suite(t.Package)
		elapsed[t.Package] += t.Elapsed
		switch {
		case t.Failed():
			c.Failure = &junitMessage{Message: string(t.Status), Body: strings.Join(t.Output, "")}
			su.Failures++
		case t.Status == StatusSkip:
			c.Skipped = &junitMessage{Message: "skipped", Body: strings.Join(t.Output, "")}
			su.Skipped++
		}
		su.Tests++
		su.Cases = append(su.Cases, c)
	}
	for _, p := range s.PackageFailures {
		su := suite(p.Name)
		su.Tests++
		su.Failures++
		elapsed[p.Name] += p.Elapsed
		su.Cases = append(su.Cases, junitCase{
			Name:      "[package]",
			ClassName: p.Name,
			Time:      secs(p.Elapsed),
			Failure:   &junitMessage{Message: "package failed", Body: strings.Join(p.Output, "")},
		})
	}
	for n := range root.Suites {
		su := &root.Suites[n]
		su.Time = secs(elapsed[su.Name])
		root.Tests += su.Tests
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func secs(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
