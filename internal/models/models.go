package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Enums

// VideoJobStatus is the lifecycle state of one end-to-end generation attempt.
// stitching is a non-terminal sub-phase: all clips resolved, waiting on the
// render vendor. completed and failed are terminal — a job is finalized
// exactly once.
type VideoJobStatus string

const (
	VideoJobStatusProcessing VideoJobStatus = "processing"
	VideoJobStatusStitching  VideoJobStatus = "stitching"
	VideoJobStatusCompleted  VideoJobStatus = "completed"
	VideoJobStatusFailed     VideoJobStatus = "failed"
)

// IsTerminal reports whether no further transitions can occur.
func (s VideoJobStatus) IsTerminal() bool {
	return s == VideoJobStatusCompleted || s == VideoJobStatusFailed
}

// ClipStatus tracks one clip's vendor job during the polling session.
// These descriptors are ephemeral — held in worker memory, never persisted.
type ClipStatus string

const (
	ClipStatusQueued     ClipStatus = "queued"
	ClipStatusProcessing ClipStatus = "processing"
	ClipStatusCompleted  ClipStatus = "completed"
	ClipStatusFailed     ClipStatus = "failed"
)

// PipelineFlow selects how clips are produced from the source photos.
type PipelineFlow string

const (
	// FlowMotion renders clips locally with deterministic camera-motion
	// effects — zero dependency on any AI vendor.
	FlowMotion PipelineFlow = "motion"
	// FlowAI submits each photo to an image-to-video vendor.
	FlowAI PipelineFlow = "ai"
)

// Orientation of the output video.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Clip duration bounds and defaults (seconds). Each photo becomes one clip
// of 3-5 seconds; adjacent clips overlap by 0.5s in the crossfade.
const (
	MinClipDurationSec     = 3.0
	MaxClipDurationSec     = 5.0
	DefaultClipDurationSec = 3.5
	CrossfadeSec           = 0.5
)

// Image count bounds per flow. The motion flow tolerates shorter slideshows;
// the AI flow needs enough clips to justify per-image vendor spend.
const (
	MotionFlowMinImages = 3
	AIFlowMinImages     = 5
	MaxImages           = 10
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// VideoJob is the persisted record for one generation attempt. It is written
// by a single active poller; terminal writes go through a guarded update so a
// late duplicate write (second tab, retried poll) is a no-op.
type VideoJob struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
	ListingID    *uuid.UUID     `json:"listing_id,omitempty"`
	Flow         PipelineFlow   `json:"flow"`
	Status       VideoJobStatus `json:"status"`
	Progress     int            `json:"progress"` // 0-100, monotonically non-decreasing
	VideoURL     *string        `json:"video_url,omitempty"`
	ErrorCode    *string        `json:"error_code,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Version      int            `json:"version"` // optimistic guard for terminal writes
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Listing is a property payload — either scraped from a listing URL or
// submitted directly. It is passed through unmodified to script generation
// and overlay rendering.
type Listing struct {
	ID        uuid.UUID `json:"id"`
	SourceURL *string   `json:"source_url,omitempty"`
	Property  JSONB     `json:"property"`
	CreatedAt time.Time `json:"created_at"`
}

// CameraAngle selects the simulated camera movement for one clip.
type CameraAngle string

const (
	AngleAuto       CameraAngle = "auto"
	AngleWideShot   CameraAngle = "wide-shot"
	AnglePushIn     CameraAngle = "push-in"
	AnglePushOut    CameraAngle = "push-out"
	AngleOrbitLeft  CameraAngle = "orbit-left"
	AngleOrbitRight CameraAngle = "orbit-right"
)

// AllCameraAngles is the set of valid angle values, auto included.
var AllCameraAngles = []CameraAngle{
	AngleAuto, AngleWideShot, AnglePushIn, AnglePushOut, AngleOrbitLeft, AngleOrbitRight,
}

// ValidCameraAngle reports whether a is a known angle.
func ValidCameraAngle(a CameraAngle) bool {
	for _, v := range AllCameraAngles {
		if a == v {
			return true
		}
	}
	return false
}

// ImageSpec pairs a source photo with the camera movement and duration that
// drive both the local motion render and the AI-vendor prompt.
type ImageSpec struct {
	URL         string      `json:"url"`
	CameraAngle CameraAngle `json:"camera_angle"`
	DurationSec float64     `json:"duration_sec"` // 3-5s; 0 means default 3.5s
}

// AgentBranding is overlaid on the final video.
type AgentBranding struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email,omitempty"`
	Agency     *string `json:"agency,omitempty"`
	LogoURL    *string `json:"logo_url,omitempty"`
	BrandColor *string `json:"brand_color,omitempty"`
}

// PropertyDetails is the customization payload passed through to script
// generation and overlay rendering. No invariants beyond required-field
// presence, enforced at the API boundary.
type PropertyDetails struct {
	Address    string        `json:"address"`
	Price      string        `json:"price"`
	Bedrooms   int           `json:"bedrooms"`
	Bathrooms  int           `json:"bathrooms"`
	Features   []string      `json:"features,omitempty"`
	Agent      AgentBranding `json:"agent"`
	Voice      string        `json:"voice,omitempty"`       // friendly voice name, resolved against the voice table
	MusicTrack string        `json:"music_track,omitempty"` // track id from the music table
	Style      string        `json:"style,omitempty"`       // stitch layout/style selector
}

// ClipGeneration is the in-memory descriptor tracking one clip's vendor job
// id and status across the polling session.
type ClipGeneration struct {
	Index     int
	ImageURL  string
	VendorJob string
	Status    ClipStatus
	ClipURL   string
	Err       error
}

// SlideshowDurationSec returns the total slideshow length for n clips of
// duration d seconds each, with adjacent clips overlapping by the 0.5s
// crossfade: n*d - (n-1)*0.5. Zero clips is zero seconds.
func SlideshowDurationSec(n int, d float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n)*d - float64(n-1)*CrossfadeSec
}

// ValidateImageCount checks n against the bounds for the given flow and
// returns a deterministic message stating how many more or fewer photos are
// needed. A nil return means the count is acceptable.
func ValidateImageCount(flow PipelineFlow, n int) error {
	min := MotionFlowMinImages
	if flow == FlowAI {
		min = AIFlowMinImages
	}
	if n < min {
		return fmt.Errorf("not enough photos: add at least %d more (minimum %d)", min-n, min)
	}
	if n > MaxImages {
		return fmt.Errorf("too many photos: remove %d (maximum %d)", n-MaxImages, MaxImages)
	}
	return nil
}

// GenerationProgress maps completed clips to job progress during the clip
// generation phase. The 80 ceiling reserves headroom for the stitch phase.
func GenerationProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(completed) / float64(total) * 80))
}

// StitchingProgress is the fixed progress reported while the render vendor
// composes the final video.
const StitchingProgress = 90

// DTOs for API requests and responses

type CreateVideoRequest struct {
	Images      []ImageSpec     `json:"images"`
	Property    PropertyDetails `json:"property"`
	Flow        PipelineFlow    `json:"flow,omitempty"`        // default: motion
	Orientation Orientation     `json:"orientation,omitempty"` // default: portrait
	ListingID   *uuid.UUID      `json:"listing_id,omitempty"`
}

type CreateVideoResponse struct {
	JobID  uuid.UUID      `json:"job_id"`
	Status VideoJobStatus `json:"status"`
}

type ListVideosResponse struct {
	Jobs   []VideoJob `json:"jobs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type UploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type ScrapeListingRequest struct {
	URL string `json:"url"`
}

type ScrapeListingResponse struct {
	ListingID uuid.UUID       `json:"listing_id"`
	Property  PropertyDetails `json:"property"`
	Photos    []string        `json:"photos,omitempty"`
}

type CheckoutRequest struct {
	PlanID     string `json:"plan_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}
