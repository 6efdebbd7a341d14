package services

import (
	"context"
	"fmt"

	"github.com/reelhaus/listingreel/internal/models"
)

// ---------------------------------------------------------------------------
// ClipGenerator — common interface for image-to-video providers
// Luma, Runway, and Veo implement this interface so the worker can dispatch
// and poll clips without knowing which vendor is configured.
// ---------------------------------------------------------------------------

// ClipRequest describes one clip to generate from a listing photo.
type ClipRequest struct {
	ImageURL    string
	Angle       models.CameraAngle
	DurationSec float64
	Orientation models.Orientation
	// Address feeds the vendor text prompt only; it never affects routing.
	Address string
}

// ClipStatusResult is a vendor status response normalized into the shared
// clip vocabulary. ClipURL is set only when Status is completed; Error only
// when failed.
type ClipStatusResult struct {
	Status  models.ClipStatus
	ClipURL string
	Error   string
}

// ClipGenerator is the submit-then-poll contract every video vendor
// implements. SubmitClip returns the vendor's job identifier; ClipStatus is
// polled with that identifier until the result is terminal.
type ClipGenerator interface {
	Name() string
	SubmitClip(ctx context.Context, req ClipRequest) (string, error)
	ClipStatus(ctx context.Context, vendorJobID string) (*ClipStatusResult, error)
}

// cameraPromptFragments translates an angle into motion direction for the
// vendor prompt. Auto is resolved before dispatch, so it never reaches here.
var cameraPromptFragments = map[models.CameraAngle]string{
	models.AngleWideShot:   "A locked-off wide shot with no camera movement.",
	models.AnglePushIn:     "A slow, smooth push-in toward the center of the scene.",
	models.AnglePushOut:    "A slow pull-back revealing the full scene.",
	models.AngleOrbitLeft:  "A gentle orbit drifting to the left around the scene.",
	models.AngleOrbitRight: "A gentle orbit drifting to the right around the scene.",
}

// buildClipPrompt composes the vendor text prompt for one clip. The property
// address gives the model context; the angle fragment drives the movement.
func buildClipPrompt(req ClipRequest) string {
	motion := cameraPromptFragments[req.Angle]
	if motion == "" {
		motion = cameraPromptFragments[models.AnglePushIn]
	}

	prompt := fmt.Sprintf(
		"Cinematic real-estate footage of a property at %s. %s "+
			"Keep the architecture, furniture, and lighting exactly as photographed. "+
			"Photorealistic, stable, no people, no text, no warping.",
		req.Address, motion,
	)
	if req.Address == "" {
		prompt = fmt.Sprintf(
			"Cinematic real-estate footage. %s "+
				"Keep the architecture, furniture, and lighting exactly as photographed. "+
				"Photorealistic, stable, no people, no text, no warping.",
			motion,
		)
	}
	return prompt
}

// aspectRatio maps orientation to the "w:h" string vendors expect.
func aspectRatio(o models.Orientation) string {
	if o == models.OrientationLandscape {
		return "16:9"
	}
	return "9:16"
}
