// Package menu holds the sidebar module catalog: display labels, the route
// each module opens and the URL pattern that identifies it.
package menu

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/orangehrm-e2e/internal/urlutil"
)

//go:embed default.yaml
var defaultYAML []byte

// Item is one sidebar module.
type Item struct {
	Label   string `yaml:"label"`
	Route   string `yaml:"route"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// MatchesURL reports whether raw is this module's canonical URL.
func (i Item) MatchesURL(raw string) bool {
	if i.re == nil {
		return false
	}
	return i.re.MatchString(urlutil.PathOf(raw))
}

// Regexp returns the compiled canonical pattern.
func (i Item) Regexp() *regexp.Regexp {
	return i.re
}

// Catalog is an ordered, validated set of items.
type Catalog struct {
	items []Item
	index map[string]int
}

type document struct {
	Items []Item `yaml:"items"`
}

// Default returns the built-in twelve-module OrangeHRM catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("menu: embedded catalog invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("menu catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog. Labels must be unique
// (case-insensitive); a missing pattern defaults to the quoted route path.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("no items")
	}

	c := &Catalog{
		items: make([]Item, 0, len(doc.Items)),
		index: make(map[string]int, len(doc.Items)),
	}
	for n, item := range doc.Items {
		item.Label = strings.TrimSpace(item.Label)
		item.Route = strings.TrimSpace(item.Route)
		if item.Label == "" {
			return nil, fmt.Errorf("item %d: label is required", n)
		}
		if !strings.HasPrefix(item.Route, "/") {
			return nil, fmt.Errorf("item %q: route must start with /", item.Label)
		}
		key := strings.ToLower(item.Label)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("item %q: duplicate label", item.Label)
		}
		if strings.TrimSpace(item.Pattern) == "" {
			item.Pattern = regexp.QuoteMeta(item.Route) + "$"
		}
		re, err := regexp.Compile(item.Pattern)
		if err != nil {
			return nil, fmt.Errorf("item %q: pattern: %w", item.Label, err)
		}
		if !re.MatchString(item.Route) {
			return nil, fmt.Errorf("item %q: pattern %q does not match route %q", item.Label, item.Pattern, item.Route)
		}
		item.re = re
		c.index[key] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// Items returns a copy of the catalog in display order.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Labels returns the display labels in order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.items))
	for n, item := range c.items {
		labels[n] = item.Label
	}
	return labels
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Lookup finds an item by label, ignoring case.
func (c *Catalog) Lookup(label string) (Item, bool) {
	n, ok := c.index[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return Item{}, false
	}
	return c.items[n], true
}

// Matching returns the labels whose text contains term, ignoring case, in
// display order. An empty term matches everything; surrounding whitespace in
// term is significant, as it is for the sidebar filter.
func (c *Catalog) Matching(term string) []string {
	needle := strings.ToLower(term)
	var out []string
	for _, item := range c.items {
		if strings.Contains(strings.ToLower(item.Label), needle) {
			out = append(out, item.Label)
		}
	}
	return out
}
