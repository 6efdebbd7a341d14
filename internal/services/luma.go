package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/pkg/httputil"
)

// ---------------------------------------------------------------------------
// Luma Dream Machine Service
// Image-to-video generation via the Luma REST API. Follows the deferred
// request pattern: submit generation → poll by generation id → collect URL.
// ---------------------------------------------------------------------------

const (
	lumaDefaultBaseURL = "https://api.lumalabs.ai/dream-machine/v1"
	lumaModel          = "ray-2"
)

// LumaService generates clips via Luma Dream Machine.
type LumaService struct {
	apiKey  string
	baseURL string
	client  *httputil.RetryClient
}

var _ ClipGenerator = (*LumaService)(nil)

func NewLumaService(apiKey string) *LumaService {
	return &LumaService{
		apiKey:  apiKey,
		baseURL: lumaDefaultBaseURL,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 30 * time.Second},
			httputil.DispatchRetryConfig(),
		),
	}
}

// NewLumaServiceWithBaseURL points the client at a non-default API host.
func NewLumaServiceWithBaseURL(apiKey, baseURL string) *LumaService {
	s := NewLumaService(apiKey)
	s.baseURL = baseURL
	return s
}

func (s *LumaService) Name() string { return "luma" }

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// lumaGenerationRequest is the body for POST /generations
type lumaGenerationRequest struct {
	Prompt      string         `json:"prompt"`
	Model       string         `json:"model"`
	Keyframes   *lumaKeyframes `json:"keyframes,omitempty"`
	AspectRatio string         `json:"aspect_ratio,omitempty"`
	Duration    string         `json:"duration,omitempty"`
}

type lumaKeyframes struct {
	Frame0 lumaKeyframe `json:"frame0"`
}

type lumaKeyframe struct {
	Type string `json:"type"` // "image"
	URL  string `json:"url"`
}

// lumaGeneration is both the submit response and the poll response for
// GET /generations/{id}.
type lumaGeneration struct {
	ID            string      `json:"id"`
	State         string      `json:"state"` // pending, processing, completed, failed
	FailureReason string      `json:"failure_reason,omitempty"`
	Assets        *lumaAssets `json:"assets,omitempty"`
}

type lumaAssets struct {
	Video string `json:"video"`
}

// SubmitClip submits one image-to-video generation and returns Luma's
// generation id.
func (s *LumaService) SubmitClip(ctx context.Context, clipReq ClipRequest) (string, error) {
	reqBody := lumaGenerationRequest{
		Prompt: buildClipPrompt(clipReq),
		Model:  lumaModel,
		Keyframes: &lumaKeyframes{
			Frame0: lumaKeyframe{Type: "image", URL: clipReq.ImageURL},
		},
		AspectRatio: aspectRatio(clipReq.Orientation),
		Duration:    fmt.Sprintf("%ds", int(clipReq.DurationSec+0.5)),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Luma request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/generations", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	log.Printf("[Luma] Submitting generation (angle=%s, duration=%.1fs)", clipReq.Angle, clipReq.DurationSec)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Luma request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("Luma returned status %d: %s", resp.StatusCode, string(body))
	}

	var gen lumaGeneration
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", fmt.Errorf("failed to parse Luma response: %w (body: %s)", err, string(body))
	}

	if gen.ID == "" {
		return "", fmt.Errorf("no generation id in Luma response: %s", string(body))
	}

	log.Printf("[Luma] Generation submitted, id=%s", gen.ID)
	return gen.ID, nil
}

// ClipStatus fetches the current state of a generation and maps Luma's
// vocabulary into the shared clip vocabulary.
func (s *LumaService) ClipStatus(ctx context.Context, vendorJobID string) (*ClipStatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/generations/"+vendorJobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Luma status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Luma returned status %d: %s", resp.StatusCode, string(body))
	}

	var gen lumaGeneration
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, fmt.Errorf("failed to parse Luma status: %w (body: %s)", err, string(body))
	}

	result := &ClipStatusResult{Status: MapLumaState(gen.State)}
	switch result.Status {
	case models.ClipStatusCompleted:
		if gen.Assets == nil || gen.Assets.Video == "" {
			return nil, fmt.Errorf("Luma generation %s completed without a video asset", vendorJobID)
		}
		result.ClipURL = gen.Assets.Video
	case models.ClipStatusFailed:
		result.Error = gen.FailureReason
		if result.Error == "" {
			result.Error = "generation failed"
		}
	}

	return result, nil
}

// MapLumaState maps Luma's state strings into the shared clip vocabulary:
// pending/processing (and Luma's queued/dreaming synonyms) stay processing,
// completed and failed are terminal. Unknown states keep polling.
func MapLumaState(state string) models.ClipStatus {
	switch state {
	case "completed":
		return models.ClipStatusCompleted
	case "failed":
		return models.ClipStatusFailed
	case "queued", "pending":
		return models.ClipStatusProcessing
	default:
		return models.ClipStatusProcessing
	}
}
