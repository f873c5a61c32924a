// Package platform classifies browser viewports into device classes and
// describes how each browser engine recovers from failed interactions.
package platform

import "time"

// DeviceClass is the coarse form factor derived from viewport width.
type DeviceClass string

const (
	Desktop DeviceClass = "desktop"
	Tablet  DeviceClass = "tablet"
	Mobile  DeviceClass = "mobile"
)

const (
	TabletMinWidth  = 768
	DesktopMinWidth = 1024

	// MobileWaitFactor stretches predicate waits on mobile viewports.
	MobileWaitFactor = 1.5
)

// Viewport is a page's CSS viewport size.
type Viewport struct {
	Width  int
	Height int
}

// ClassifyWidth maps a viewport width to a device class.
func ClassifyWidth(width int) DeviceClass {
	switch {
	case width < TabletMinWidth:
		return Mobile
	case width < DesktopMinWidth:
		return Tablet
	default:
		return Desktop
	}
}

// Info describes the platform a page is rendered on. Exactly one of the
// Is* flags is set.
type Info struct {
	Class     DeviceClass
	IsMobile  bool
	IsTablet  bool
	IsDesktop bool
	UserAgent string
	Viewport  *Viewport
}

// Describe builds an Info. A nil viewport is treated as desktop.
func Describe(vp *Viewport, userAgent string) Info {
	class := Desktop
	if vp != nil {
		class = ClassifyWidth(vp.Width)
	}
	return Info{
		Class:     class,
		IsMobile:  class == Mobile,
		IsTablet:  class == Tablet,
		IsDesktop: class == Desktop,
		UserAgent: userAgent,
		Viewport:  vp,
	}
}

// WaitTimeout scales base for predicate waits on this platform.
func (i Info) WaitTimeout(base time.Duration) time.Duration {
	if i.IsMobile {
		return time.Duration(float64(base) * MobileWaitFactor)
	}
	return base
}
