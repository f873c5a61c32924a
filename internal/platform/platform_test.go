package platform

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestClassifyWidth_Boundaries(t *testing.T) {
	cases := map[int]DeviceClass{
		0:    Mobile,
		393:  Mobile,
		767:  Mobile,
		768:  Tablet,
		1023: Tablet,
		1024: Desktop,
		1920: Desktop,
	}
	for width, want := range cases {
		if got := ClassifyWidth(width); got != want {
			t.Fatalf("ClassifyWidth(%d) = %s, want %s", width, got, want)
		}
	}
}

func TestDescribe_ExactlyOneClass(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		width := rapid.IntRange(1, 4000).Draw(rt, "width")
		height := rapid.IntRange(1, 3000).Draw(rt, "height")
		info := Describe(&Viewport{Width: width, Height: height}, "Mozilla/5.0")

		set := 0
		for _, flag := range []bool{info.IsMobile, info.IsTablet, info.IsDesktop} {
			if flag {
				set++
			}
		}
		if set != 1 {
			rt.Fatalf("width=%d set %d class flags", width, set)
		}
		if info.IsMobile != (width < TabletMinWidth) {
			rt.Fatalf("width=%d mobile=%v", width, info.IsMobile)
		}
		if info.IsDesktop != (width >= DesktopMinWidth) {
			rt.Fatalf("width=%d desktop=%v", width, info.IsDesktop)
		}
	})
}

func TestDescribe_NilViewportIsDesktop(t *testing.T) {
	info := Describe(nil, "ua")
	if !info.IsDesktop || info.Class != Desktop || info.UserAgent != "ua" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestWaitTimeout(t *testing.T) {
	mobile := Describe(&Viewport{Width: 393, Height: 851}, "")
	if got := mobile.WaitTimeout(10 * time.Second); got != 15*time.Second {
		t.Fatalf("mobile wait = %s", got)
	}
	tablet := Describe(&Viewport{Width: 1024 - 1, Height: 1366}, "")
	if got := tablet.WaitTimeout(10 * time.Second); got != 10*time.Second {
		t.Fatalf("tablet wait = %s", got)
	}
}

func TestCapabilities_Table(t *testing.T) {
	cases := []struct {
		engine Engine
		want   time.Duration
		click  ClickFallback
	}{
		{Chromium, 10 * time.Second, ClickForce},
		{Firefox, 11 * time.Second, ClickForce},
		{WebKit, 12 * time.Second, ClickFocusEnter},
		{Engine("servo"), 10 * time.Second, ClickForce},
	}
	for _, tc := range cases {
		caps := For(tc.engine)
		if got := caps.Adjust(10 * time.Second); got != tc.want {
			t.Fatalf("%s: Adjust = %s, want %s", tc.engine, got, tc.want)
		}
		if caps.Click != tc.click {
			t.Fatalf("%s: click fallback = %s, want %s", tc.engine, caps.Click, tc.click)
		}
		if caps.Fill != FillClearAndType {
			t.Fatalf("%s: fill fallback = %s", tc.engine, caps.Fill)
		}
		if caps.TypeDelay != 50*time.Millisecond {
			t.Fatalf("%s: type delay = %s", tc.engine, caps.TypeDelay)
		}
	}
}

func TestFillFallback_String(t *testing.T) {
	if FillClearAndType.String() != "clear+type" || FillForce.String() != "force" {
		t.Fatal("FillFallback names wrong")
	}
}

func TestParseEngine(t *testing.T) {
	if ParseEngine(" WebKit ") != WebKit || ParseEngine("firefox") != Firefox || ParseEngine("msedge") != Chromium {
		t.Fatal("ParseEngine mapping wrong")
	}
}
