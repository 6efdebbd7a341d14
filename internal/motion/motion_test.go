package motion

import (
	"math"
	"strings"
	"testing"

	"github.com/reelhaus/listingreel/internal/models"
)

func TestWideShotIsIdentity(t *testing.T) {
	for _, p := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.99, 1} {
		tr := At(models.AngleWideShot, p)
		if tr.Scale != 1.0 || tr.OffsetX != 0 || tr.OffsetY != 0 {
			t.Errorf("wide-shot at p=%.2f: got %+v, want identity", p, tr)
		}
	}
}

func TestPushInStrictlyIncreasing(t *testing.T) {
	prev := At(models.AnglePushIn, 0)
	if prev.Scale != 1.0 {
		t.Fatalf("push-in should start at scale 1.0, got %f", prev.Scale)
	}

	for p := 0.01; p <= 1.0; p += 0.01 {
		cur := At(models.AnglePushIn, p)
		if cur.Scale <= prev.Scale {
			t.Fatalf("push-in scale not strictly increasing at p=%.2f: %f -> %f", p, prev.Scale, cur.Scale)
		}
		if cur.Scale > MaxZoom+1e-9 {
			t.Fatalf("push-in scale %f exceeds bound %f at p=%.2f", cur.Scale, MaxZoom, p)
		}
		prev = cur
	}

	end := At(models.AnglePushIn, 1)
	if math.Abs(end.Scale-MaxZoom) > 1e-9 {
		t.Errorf("push-in should end at %f, got %f", MaxZoom, end.Scale)
	}
}

func TestPushOutReversesPushIn(t *testing.T) {
	start := At(models.AnglePushOut, 0)
	if math.Abs(start.Scale-MaxZoom) > 1e-9 {
		t.Errorf("push-out should start zoomed at %f, got %f", MaxZoom, start.Scale)
	}
	end := At(models.AnglePushOut, 1)
	if math.Abs(end.Scale-1.0) > 1e-9 {
		t.Errorf("push-out should end at 1.0, got %f", end.Scale)
	}
}

func TestEasing(t *testing.T) {
	// ease-out: 1-(1-p)^3
	if got := EaseOut(0.5); math.Abs(got-0.875) > 1e-9 {
		t.Errorf("EaseOut(0.5) = %f, want 0.875", got)
	}
	// ease-in: p^3
	if got := EaseIn(0.5); math.Abs(got-0.125) > 1e-9 {
		t.Errorf("EaseIn(0.5) = %f, want 0.125", got)
	}
	if EaseOut(0) != 0 || EaseOut(1) != 1 || EaseIn(0) != 0 || EaseIn(1) != 1 {
		t.Error("easing endpoints must be fixed at 0 and 1")
	}
	// Out-of-range progress clamps instead of extrapolating
	if EaseOut(1.5) != 1 || EaseIn(-0.5) != 0 {
		t.Error("easing should clamp progress to [0,1]")
	}
}

func TestOrbitOffsets(t *testing.T) {
	left := At(models.AngleOrbitLeft, 1)
	right := At(models.AngleOrbitRight, 1)

	if left.OffsetX >= 0 {
		t.Errorf("orbit-left final offset should be negative, got %f", left.OffsetX)
	}
	if right.OffsetX <= 0 {
		t.Errorf("orbit-right final offset should be positive, got %f", right.OffsetX)
	}
	if math.Abs(left.OffsetX+right.OffsetX) > 1e-9 {
		t.Errorf("orbits should mirror: left=%f right=%f", left.OffsetX, right.OffsetX)
	}
}

func TestResolveAuto(t *testing.T) {
	// Explicit angles pass through untouched
	if got := Resolve(models.AngleWideShot, 3); got != models.AngleWideShot {
		t.Errorf("explicit angle changed: %s", got)
	}

	// Auto cycles and never repeats for adjacent clips
	seen := map[models.CameraAngle]bool{}
	var prev models.CameraAngle
	for i := 0; i < 8; i++ {
		a := Resolve(models.AngleAuto, i)
		if a == models.AngleAuto {
			t.Fatal("auto must resolve to a concrete angle")
		}
		if a == prev {
			t.Errorf("adjacent clips %d and %d share angle %s", i-1, i, a)
		}
		seen[a] = true
		prev = a
	}
	if len(seen) < 4 {
		t.Errorf("auto rotation should use at least 4 distinct angles, got %d", len(seen))
	}
}

func TestCanvasSize(t *testing.T) {
	if w, h := CanvasSize(models.OrientationPortrait); w != 1080 || h != 1920 {
		t.Errorf("portrait canvas = %dx%d", w, h)
	}
	if w, h := CanvasSize(models.OrientationLandscape); w != 1920 || h != 1080 {
		t.Errorf("landscape canvas = %dx%d", w, h)
	}
}

func TestBuildFilterShape(t *testing.T) {
	f := BuildFilter(models.AnglePushIn, models.OrientationPortrait, 3.5)

	for _, part := range []string{"zoompan", "gblur", "overlay", "s=1080x1920"} {
		if !strings.Contains(f, part) {
			t.Errorf("filter missing %q: %s", part, f)
		}
	}

	// Wide shot has a constant zoom expression
	wide := BuildFilter(models.AngleWideShot, models.OrientationPortrait, 3.5)
	if !strings.Contains(wide, "z='1.0'") {
		t.Errorf("wide-shot filter should pin zoom at 1.0: %s", wide)
	}
}
