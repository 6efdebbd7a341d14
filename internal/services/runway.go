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
// Runway Gen4 Service
// Image-to-video generation via the Runway task API. Same deferred pattern
// as Luma: submit a task → poll GET /tasks/{id} until terminal.
// ---------------------------------------------------------------------------

const (
	runwayDefaultBaseURL = "https://api.dev.runwayml.com"
	runwayModel          = "gen4_turbo"
	runwayAPIVersion     = "2024-11-06"
)

// RunwayService generates clips via Runway Gen4 Turbo.
type RunwayService struct {
	apiKey  string
	baseURL string
	client  *httputil.RetryClient
}

var _ ClipGenerator = (*RunwayService)(nil)

func NewRunwayService(apiKey string) *RunwayService {
	return &RunwayService{
		apiKey:  apiKey,
		baseURL: runwayDefaultBaseURL,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 30 * time.Second},
			httputil.DispatchRetryConfig(),
		),
	}
}

// NewRunwayServiceWithBaseURL points the client at a non-default API host.
func NewRunwayServiceWithBaseURL(apiKey, baseURL string) *RunwayService {
	s := NewRunwayService(apiKey)
	s.baseURL = baseURL
	return s
}

func (s *RunwayService) Name() string { return "runway" }

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// runwayTaskRequest is the body for POST /v1/image_to_video
type runwayTaskRequest struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Model       string `json:"model"`
	Ratio       string `json:"ratio,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

type runwayTaskResponse struct {
	ID string `json:"id"`
}

// runwayTask is the poll response from GET /v1/tasks/{id}.
// Status values: PENDING, THROTTLED, RUNNING, SUCCEEDED, FAILED.
type runwayTask struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output,omitempty"`
	Failure string   `json:"failure,omitempty"`
}

// runwayRatio maps orientation to Runway's pixel-ratio strings.
func runwayRatio(o models.Orientation) string {
	if o == models.OrientationLandscape {
		return "1280:720"
	}
	return "720:1280"
}

// SubmitClip submits one image-to-video task and returns Runway's task id.
func (s *RunwayService) SubmitClip(ctx context.Context, clipReq ClipRequest) (string, error) {
	reqBody := runwayTaskRequest{
		PromptImage: clipReq.ImageURL,
		PromptText:  buildClipPrompt(clipReq),
		Model:       runwayModel,
		Ratio:       runwayRatio(clipReq.Orientation),
		Duration:    int(clipReq.DurationSec + 0.5),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Runway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/image_to_video", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	log.Printf("[Runway] Submitting task (angle=%s, duration=%.1fs)", clipReq.Angle, clipReq.DurationSec)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Runway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("Runway returned status %d: %s", resp.StatusCode, string(body))
	}

	var task runwayTaskResponse
	if err := json.Unmarshal(body, &task); err != nil {
		return "", fmt.Errorf("failed to parse Runway response: %w (body: %s)", err, string(body))
	}

	if task.ID == "" {
		return "", fmt.Errorf("no task id in Runway response: %s", string(body))
	}

	log.Printf("[Runway] Task submitted, id=%s", task.ID)
	return task.ID, nil
}

// ClipStatus fetches the current task status and maps Runway's vocabulary
// into the shared clip vocabulary.
func (s *RunwayService) ClipStatus(ctx context.Context, vendorJobID string) (*ClipStatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/v1/tasks/"+vendorJobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Runway status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Runway returned status %d: %s", resp.StatusCode, string(body))
	}

	var task runwayTask
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("failed to parse Runway task: %w (body: %s)", err, string(body))
	}

	result := &ClipStatusResult{Status: MapRunwayStatus(task.Status)}
	switch result.Status {
	case models.ClipStatusCompleted:
		if len(task.Output) == 0 || task.Output[0] == "" {
			return nil, fmt.Errorf("Runway task %s succeeded without output", vendorJobID)
		}
		result.ClipURL = task.Output[0]
	case models.ClipStatusFailed:
		result.Error = task.Failure
		if result.Error == "" {
			result.Error = "generation failed"
		}
	}

	return result, nil
}

// MapRunwayStatus maps Runway's task statuses into the shared clip
// vocabulary. THROTTLED means queued on the vendor side, so it stays
// processing; unknown states keep polling.
func MapRunwayStatus(status string) models.ClipStatus {
	switch status {
	case "SUCCEEDED":
		return models.ClipStatusCompleted
	case "FAILED":
		return models.ClipStatusFailed
	case "PENDING", "THROTTLED", "RUNNING":
		return models.ClipStatusProcessing
	default:
		return models.ClipStatusProcessing
	}
}
