// Package motion holds the camera-movement math for locally rendered clips:
// the per-frame transform for a given angle and elapsed progress, and the
// ffmpeg filter expressions that realize the same movement in a zoompan pass.
package motion

import (
	"fmt"
	"math"

	"github.com/reelhaus/listingreel/internal/models"
)

const (
	// MaxZoom is the scale reached at the end of a push-in (a 6% zoom).
	MaxZoom = 1.06

	// OrbitOffsetFraction is the total lateral drift of an orbit, as a
	// fraction of frame width.
	OrbitOffsetFraction = 0.04

	// FPS is the render frame rate for local clips.
	FPS = 30
)

// Transform is the camera state for one frame: a uniform scale and a lateral
// offset expressed as a fraction of the frame width.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// EaseOut decelerates toward the end. Used for forward motions so the camera
// settles rather than stops dead.
func EaseOut(p float64) float64 {
	p = clamp01(p)
	return 1 - math.Pow(1-p, 3)
}

// EaseIn accelerates from rest. Used for reverse motions (pull-backs) so the
// clip opens calm and gathers speed.
func EaseIn(p float64) float64 {
	p = clamp01(p)
	return p * p * p
}

// At computes the camera transform for angle a at wall-clock progress
// p in [0,1]. Progress comes from elapsed time, not frame count, so the
// movement stays correct under variable frame pacing.
func At(a models.CameraAngle, p float64) Transform {
	p = clamp01(p)

	switch a {
	case models.AngleWideShot:
		return Transform{Scale: 1.0}

	case models.AnglePushIn:
		e := EaseOut(p)
		return Transform{Scale: 1.0 + (MaxZoom-1.0)*e}

	case models.AnglePushOut:
		e := EaseIn(p)
		return Transform{Scale: MaxZoom - (MaxZoom-1.0)*e}

	case models.AngleOrbitLeft:
		e := EaseOut(p)
		return Transform{
			Scale:   1.0 + (MaxZoom-1.0)*0.5*e,
			OffsetX: -OrbitOffsetFraction * e,
		}

	case models.AngleOrbitRight:
		e := EaseOut(p)
		return Transform{
			Scale:   1.0 + (MaxZoom-1.0)*0.5*e,
			OffsetX: OrbitOffsetFraction * e,
		}

	default:
		// Unresolved auto behaves as a push-in
		return At(models.AnglePushIn, p)
	}
}

// autoRotation is the angle sequence auto assignment cycles through. Varied
// enough that adjacent clips in a slideshow never repeat a movement.
var autoRotation = []models.CameraAngle{
	models.AnglePushIn,
	models.AngleOrbitLeft,
	models.AnglePushOut,
	models.AngleOrbitRight,
}

// Resolve maps an auto angle to a concrete movement by clip index, and passes
// every other angle through unchanged.
func Resolve(a models.CameraAngle, clipIndex int) models.CameraAngle {
	if a != models.AngleAuto && a != "" {
		return a
	}
	if clipIndex < 0 {
		clipIndex = 0
	}
	return autoRotation[clipIndex%len(autoRotation)]
}

// CanvasSize returns the output pixel dimensions for an orientation.
func CanvasSize(o models.Orientation) (w, h int) {
	if o == models.OrientationLandscape {
		return 1920, 1080
	}
	return 1080, 1920
}

// BuildFilter constructs the ffmpeg video filter chain realizing angle a over
// durationSec seconds at the canvas size for orientation o.
//
// Pipeline: a contain-fit of the sharp image over a blurred, darkened
// cover-fit of the same image (so landscape photos fill a portrait canvas
// without bare letterbox bars), then a zoompan pass whose zoom and pan
// expressions encode the eased movement.
func BuildFilter(a models.CameraAngle, o models.Orientation, durationSec float64) string {
	w, h := CanvasSize(o)
	frames := int(durationSec * FPS)
	if frames < FPS {
		frames = FPS
	}

	// Eased progress in zoompan expression form. on/d is raw progress;
	// ease-out is 1-(1-p)^3, ease-in is p^3.
	pExpr := fmt.Sprintf("(on/%d)", frames)
	easeOut := fmt.Sprintf("(1-pow(1-%s,3))", pExpr)
	easeIn := fmt.Sprintf("pow(%s,3)", pExpr)

	centerX := "iw/2-(iw/zoom/2)"
	centerY := "ih/2-(ih/zoom/2)"

	var zExpr, xExpr, yExpr string
	switch a {
	case models.AngleWideShot:
		zExpr = "1.0"
		xExpr = centerX
		yExpr = centerY

	case models.AnglePushIn:
		zExpr = fmt.Sprintf("1.0+%.2f*%s", MaxZoom-1.0, easeOut)
		xExpr = centerX
		yExpr = centerY

	case models.AnglePushOut:
		zExpr = fmt.Sprintf("%.2f-%.2f*%s", MaxZoom, MaxZoom-1.0, easeIn)
		xExpr = centerX
		yExpr = centerY

	case models.AngleOrbitLeft:
		zExpr = fmt.Sprintf("1.0+%.2f*%s", (MaxZoom-1.0)*0.5, easeOut)
		xExpr = fmt.Sprintf("%s-iw*%.3f*%s", centerX, OrbitOffsetFraction, easeOut)
		yExpr = centerY

	case models.AngleOrbitRight:
		zExpr = fmt.Sprintf("1.0+%.2f*%s", (MaxZoom-1.0)*0.5, easeOut)
		xExpr = fmt.Sprintf("%s+iw*%.3f*%s", centerX, OrbitOffsetFraction, easeOut)
		yExpr = centerY

	default:
		zExpr = fmt.Sprintf("1.0+%.2f*%s", MaxZoom-1.0, easeOut)
		xExpr = centerX
		yExpr = centerY
	}

	// Background: cover-fit, blurred and darkened. Foreground: contain-fit so
	// the whole photographed scene stays visible. Both scaled to 2x canvas
	// before zoompan for pan/zoom headroom without resolution loss.
	bg := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,gblur=sigma=24,eq=brightness=-0.15[bg]",
		2*w, 2*h, 2*w, 2*h,
	)
	fg := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease[fg]",
		2*w, 2*h,
	)
	overlay := "[bg][fg]overlay=(W-w)/2:(H-h)/2[composed]"
	zoompan := fmt.Sprintf(
		"[composed]zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d[out]",
		zExpr, xExpr, yExpr, frames, w, h, FPS,
	)

	return bg + ";" + fg + ";" + overlay + ";" + zoompan
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
