// Package launcher defines the browser × device project matrix and owns the
// playwright browser processes that serve it.
package launcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kuitang/orangehrm-e2e/internal/platform"
)

// Project is one browser and device combination every test runs against.
type Project struct {
	Name   string
	Engine platform.Engine
	// Device names a playwright device descriptor. When set it supplies
	// viewport, user agent, touch and scale factor.
	Device string
	// Channel selects a branded build such as "msedge".
	Channel  string
	Viewport platform.Viewport
	Args     []string
}

// Key identifies the browser process a project needs.
func (p Project) Key() string {
	if p.Channel == "" {
		return string(p.Engine)
	}
	return string(p.Engine) + ":" + p.Channel
}

var desktop = platform.Viewport{Width: 1920, Height: 1080}

// All is the full matrix, in report order.
var All = []Project{
	{Name: "Chrome Desktop", Engine: platform.Chromium, Viewport: desktop, Args: []string{"--disable-web-security", "--disable-features=VizDisplayCompositor"}},
	{Name: "Firefox Desktop", Engine: platform.Firefox, Viewport: desktop},
	{Name: "Safari Desktop", Engine: platform.WebKit, Viewport: desktop},
	{Name: "Pixel 5", Engine: platform.Chromium, Device: "Pixel 5"},
	{Name: "iPhone 12", Engine: platform.WebKit, Device: "iPhone 12"},
	{Name: "iPad Pro", Engine: platform.WebKit, Device: "iPad Pro 11"},
	{Name: "Microsoft Edge", Engine: platform.Chromium, Channel: "msedge", Viewport: desktop},
	{Name: "OrangeHRM-UI-Tests", Engine: platform.Chromium, Viewport: platform.Viewport{Width: 1280, Height: 720}},
}

// Default runs when no project is selected.
var Default = []string{"Chrome Desktop"}

// Lookup finds a project by name, ignoring case.
func Lookup(name string) (Project, bool) {
	for _, p := range All {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Project{}, false
}

// Select resolves names to projects in the order given. "all" selects the
// whole matrix; an empty list selects Default.
func Select(names []string) ([]Project, error) {
	if len(names) == 0 {
		names = Default
	}
	var out []Project
	seen := make(map[string]bool)
	var unknown []string
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			return append([]Project(nil), All...), nil
		}
		p, ok := Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown project(s) %s; known: %s", strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}

// Names lists every project name.
func Names() []string {
	names := make([]string, len(All))
	for i, p := range All {
		names[i] = p.Name
	}
	return names
}

// Engines returns the distinct engines needed by projects, for installation.
func Engines(projects []Project) []string {
	seen := make(map[platform.Engine]bool)
	var out []string
	for _, p := range projects {
		if !seen[p.Engine] {
			seen[p.Engine] = true
			out = append(out, string(p.Engine))
		}
	}
	return out
}
