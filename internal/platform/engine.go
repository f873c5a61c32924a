package platform

import (
	"strings"
	"time"
)

// Engine names a browser engine as reported by playwright.
type Engine string

const (
	Chromium Engine = "chromium"
	Firefox  Engine = "firefox"
	WebKit   Engine = "webkit"
)

// ParseEngine normalizes a browser type name. Unknown names map to Chromium.
func ParseEngine(name string) Engine {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "firefox":
		return Firefox
	case "webkit":
		return WebKit
	default:
		return Chromium
	}
}

// ClickFallback is the strategy used after a timed click fails.
type ClickFallback int

const (
	// ClickForce repeats the click skipping actionability checks.
	ClickForce ClickFallback = iota
	// ClickFocusEnter focuses the element and presses Enter.
	ClickFocusEnter
)

func (c ClickFallback) String() string {
	if c == ClickFocusEnter {
		return "focus+enter"
	}
	return "force"
}

// FillFallback is the strategy used after a fill fails.
type FillFallback int

const (
	// FillClearAndType clears the field and types one key at a time.
	FillClearAndType FillFallback = iota
	// FillForce repeats the fill skipping actionability checks.
	FillForce
)

func (f FillFallback) String() string {
	if f == FillForce {
		return "force"
	}
	return "clear+type"
}

// Capabilities is one row of the engine table.
type Capabilities struct {
	Engine        Engine
	TimeoutFactor float64
	Click         ClickFallback
	Fill          FillFallback
	TypeDelay     time.Duration
}

var capabilities = map[Engine]Capabilities{
	Chromium: {Engine: Chromium, TimeoutFactor: 1.0, Click: ClickForce, Fill: FillClearAndType, TypeDelay: 50 * time.Millisecond},
	Firefox:  {Engine: Firefox, TimeoutFactor: 1.1, Click: ClickForce, Fill: FillClearAndType, TypeDelay: 50 * time.Millisecond},
	WebKit:   {Engine: WebKit, TimeoutFactor: 1.2, Click: ClickFocusEnter, Fill: FillClearAndType, TypeDelay: 50 * time.Millisecond},
}

// For returns the capability row for e, defaulting to Chromium's.
func For(e Engine) Capabilities {
	if c, ok := capabilities[e]; ok {
		return c
	}
	c := capabilities[Chromium]
	c.Engine = e
	return c
}

// Adjust scales base by the engine's timeout factor.
func (c Capabilities) Adjust(base time.Duration) time.Duration {
	if c.TimeoutFactor <= 0 {
		return base
	}
	return time.Duration(float64(base) * c.TimeoutFactor)
}
