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
// Shotstack Render Service
// Stitches the finished clips into the final video: concatenation with
// crossfades, voiceover and music tracks, property and agent overlays.
// Asynchronous: submit an edit → poll GET /render/{id} until terminal.
// ---------------------------------------------------------------------------

const shotstackHost = "https://api.shotstack.io"

// ShotstackService submits and polls composition renders.
type ShotstackService struct {
	apiKey  string
	baseURL string
	client  *httputil.RetryClient
}

// NewShotstackService creates a render client for the given environment
// ("stage" for the sandbox, "v1" for production).
func NewShotstackService(apiKey, env string) *ShotstackService {
	if env != "v1" {
		env = "stage"
	}
	return &ShotstackService{
		apiKey:  apiKey,
		baseURL: shotstackHost + "/" + env,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 30 * time.Second},
			httputil.DefaultRetryConfig(),
		),
	}
}

// NewShotstackServiceWithBaseURL points the client at a non-default host.
func NewShotstackServiceWithBaseURL(apiKey, baseURL string) *ShotstackService {
	return &ShotstackService{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 30 * time.Second},
			httputil.DefaultRetryConfig(),
		),
	}
}

// ---------------------------------------------------------------------------
// Stitch request
// ---------------------------------------------------------------------------

// StitchClip is one ordered segment of the final video.
type StitchClip struct {
	URL         string
	DurationSec float64
}

// StitchRequest describes the whole composition: ordered clips, audio
// tracks, and the overlay data rendered on top.
type StitchRequest struct {
	Clips        []StitchClip
	VoiceoverURL string
	MusicURL     string
	Property     models.PropertyDetails
	Orientation  models.Orientation
	Style        string // layout selector; "" means the default layout
}

// StitchStatusResult is a render status normalized into the job vocabulary.
type StitchStatusResult struct {
	Status   models.VideoJobStatus
	VideoURL string
	Error    string
}

// ---------------------------------------------------------------------------
// Shotstack edit payload types
// ---------------------------------------------------------------------------

type shotstackEdit struct {
	Timeline shotstackTimeline `json:"timeline"`
	Output   shotstackOutput   `json:"output"`
}

type shotstackTimeline struct {
	Background string               `json:"background,omitempty"`
	Soundtrack *shotstackSoundtrack `json:"soundtrack,omitempty"`
	Tracks     []shotstackTrack     `json:"tracks"`
}

type shotstackSoundtrack struct {
	Src    string  `json:"src"`
	Effect string  `json:"effect,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

type shotstackTrack struct {
	Clips []shotstackClip `json:"clips"`
}

type shotstackClip struct {
	Asset      shotstackAsset       `json:"asset"`
	Start      float64              `json:"start"`
	Length     float64              `json:"length"`
	Transition *shotstackTransition `json:"transition,omitempty"`
	Position   string               `json:"position,omitempty"`
	Offset     *shotstackOffset     `json:"offset,omitempty"`
}

type shotstackAsset struct {
	Type       string  `json:"type"` // video, audio, html
	Src        string  `json:"src,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	HTML       string  `json:"html,omitempty"`
	CSS        string  `json:"css,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Background string  `json:"background,omitempty"`
}

type shotstackTransition struct {
	In  string `json:"in,omitempty"`
	Out string `json:"out,omitempty"`
}

type shotstackOffset struct {
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

type shotstackOutput struct {
	Format      string `json:"format"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// shotstackRenderResponse wraps both the submit and poll responses.
type shotstackRenderResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		URL    string `json:"url"`
		Error  string `json:"error"`
	} `json:"response"`
}

// ---------------------------------------------------------------------------
// Edit construction
// ---------------------------------------------------------------------------

// buildEdit assembles the Shotstack timeline. Clips run back to back with a
// 0.5s crossfade, so each clip starts at the previous start plus its
// duration minus the overlap.
func buildEdit(req StitchRequest) shotstackEdit {
	videoClips := make([]shotstackClip, 0, len(req.Clips))
	start := 0.0
	for i, c := range req.Clips {
		clip := shotstackClip{
			Asset:  shotstackAsset{Type: "video", Src: c.URL, Volume: 0},
			Start:  round2(start),
			Length: c.DurationSec,
		}
		if i > 0 {
			clip.Transition = &shotstackTransition{In: "fade"}
		}
		videoClips = append(videoClips, clip)
		start += c.DurationSec - models.CrossfadeSec
	}

	totalSec := 0.0
	if n := len(req.Clips); n > 0 {
		totalSec = round2(start + models.CrossfadeSec)
	}

	tracks := []shotstackTrack{}

	// Overlay track sits above the video track. Property card for the first
	// seconds, agent card over the final seconds.
	overlays := buildOverlayClips(req, totalSec)
	if len(overlays) > 0 {
		tracks = append(tracks, shotstackTrack{Clips: overlays})
	}

	tracks = append(tracks, shotstackTrack{Clips: videoClips})

	if req.VoiceoverURL != "" {
		tracks = append(tracks, shotstackTrack{
			Clips: []shotstackClip{{
				Asset:  shotstackAsset{Type: "audio", Src: req.VoiceoverURL, Volume: 1.0},
				Start:  0,
				Length: totalSec,
			}},
		})
	}

	timeline := shotstackTimeline{
		Background: "#000000",
		Tracks:     tracks,
	}

	if req.MusicURL != "" {
		timeline.Soundtrack = &shotstackSoundtrack{
			Src:    req.MusicURL,
			Effect: "fadeOut",
			Volume: 0.15, // keep the voiceover dominant
		}
	}

	return shotstackEdit{
		Timeline: timeline,
		Output: shotstackOutput{
			Format:      "mp4",
			Resolution:  "hd",
			AspectRatio: aspectRatio(req.Orientation),
		},
	}
}

// buildOverlayClips renders the property and agent cards as HTML assets.
func buildOverlayClips(req StitchRequest, totalSec float64) []shotstackClip {
	if totalSec <= 0 {
		return nil
	}

	p := req.Property
	accent := "#ffffff"
	if p.Agent.BrandColor != nil && *p.Agent.BrandColor != "" {
		accent = *p.Agent.BrandColor
	}

	var clips []shotstackClip

	if p.Address != "" || p.Price != "" {
		propertyHTML := fmt.Sprintf(
			`<div class="card"><p class="address">%s</p><p class="detail">%s &middot; %d bed &middot; %d bath</p></div>`,
			p.Address, p.Price, p.Bedrooms, p.Bathrooms,
		)
		propertyCSS := fmt.Sprintf(
			`.card { font-family: "Montserrat", sans-serif; color: %s; text-align: left; } .address { font-size: 34px; font-weight: 700; } .detail { font-size: 24px; }`,
			accent,
		)
		propLen := 4.0
		if propLen > totalSec {
			propLen = totalSec
		}
		clips = append(clips, shotstackClip{
			Asset: shotstackAsset{
				Type:   "html",
				HTML:   propertyHTML,
				CSS:    propertyCSS,
				Width:  900,
				Height: 260,
			},
			Start:      0,
			Length:     propLen,
			Position:   "bottomLeft",
			Offset:     &shotstackOffset{X: 0.05, Y: 0.08},
			Transition: &shotstackTransition{In: "fade", Out: "fade"},
		})
	}

	if p.Agent.Name != "" {
		agentHTML := fmt.Sprintf(
			`<div class="card"><p class="name">%s</p><p class="contact">%s</p></div>`,
			p.Agent.Name, p.Agent.Phone,
		)
		if p.Agent.Agency != nil && *p.Agent.Agency != "" {
			agentHTML = fmt.Sprintf(
				`<div class="card"><p class="name">%s</p><p class="contact">%s &middot; %s</p></div>`,
				p.Agent.Name, *p.Agent.Agency, p.Agent.Phone,
			)
		}
		agentCSS := fmt.Sprintf(
			`.card { font-family: "Montserrat", sans-serif; color: %s; text-align: center; } .name { font-size: 30px; font-weight: 700; } .contact { font-size: 22px; }`,
			accent,
		)
		agentLen := 4.0
		agentStart := totalSec - agentLen
		if agentStart < 0 {
			agentStart = 0
			agentLen = totalSec
		}
		clips = append(clips, shotstackClip{
			Asset: shotstackAsset{
				Type:   "html",
				HTML:   agentHTML,
				CSS:    agentCSS,
				Width:  900,
				Height: 220,
			},
			Start:      round2(agentStart),
			Length:     round2(agentLen),
			Position:   "bottom",
			Offset:     &shotstackOffset{Y: 0.08},
			Transition: &shotstackTransition{In: "fade", Out: "fade"},
		})
	}

	return clips
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// ---------------------------------------------------------------------------
// Submit / poll
// ---------------------------------------------------------------------------

// SubmitStitch submits the composition and returns Shotstack's render id.
func (s *ShotstackService) SubmitStitch(ctx context.Context, stitchReq StitchRequest) (string, error) {
	if len(stitchReq.Clips) == 0 {
		return "", fmt.Errorf("no clips to stitch")
	}

	edit := buildEdit(stitchReq)
	jsonData, err := json.Marshal(edit)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Shotstack edit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/render", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	log.Printf("[Shotstack] Submitting render (%d clips, voiceover=%v, music=%v)",
		len(stitchReq.Clips), stitchReq.VoiceoverURL != "", stitchReq.MusicURL != "")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Shotstack request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("Shotstack returned status %d: %s", resp.StatusCode, string(body))
	}

	var renderResp shotstackRenderResponse
	if err := json.Unmarshal(body, &renderResp); err != nil {
		return "", fmt.Errorf("failed to parse Shotstack response: %w (body: %s)", err, string(body))
	}

	if renderResp.Response.ID == "" {
		return "", fmt.Errorf("no render id in Shotstack response: %s", string(body))
	}

	log.Printf("[Shotstack] Render submitted, id=%s", renderResp.Response.ID)
	return renderResp.Response.ID, nil
}

// RenderStatus fetches the current render status and maps Shotstack's
// vocabulary into the job vocabulary.
func (s *ShotstackService) RenderStatus(ctx context.Context, renderID string) (*StitchStatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/render/"+renderID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Shotstack status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Shotstack returned status %d: %s", resp.StatusCode, string(body))
	}

	var renderResp shotstackRenderResponse
	if err := json.Unmarshal(body, &renderResp); err != nil {
		return nil, fmt.Errorf("failed to parse Shotstack status: %w (body: %s)", err, string(body))
	}

	result := &StitchStatusResult{Status: MapShotstackStatus(renderResp.Response.Status)}
	switch result.Status {
	case models.VideoJobStatusCompleted:
		if renderResp.Response.URL == "" {
			return nil, fmt.Errorf("Shotstack render %s done without a URL", renderID)
		}
		result.VideoURL = renderResp.Response.URL
	case models.VideoJobStatusFailed:
		result.Error = renderResp.Response.Error
		if result.Error == "" {
			result.Error = "render failed"
		}
	}

	return result, nil
}

// MapShotstackStatus maps Shotstack's render statuses into the job
// vocabulary: queued/fetching/rendering/saving stay processing, done is
// completed, failed is failed. Unknown states keep polling.
func MapShotstackStatus(status string) models.VideoJobStatus {
	switch status {
	case "done":
		return models.VideoJobStatusCompleted
	case "failed":
		return models.VideoJobStatusFailed
	case "queued", "fetching", "rendering", "saving":
		return models.VideoJobStatusProcessing
	default:
		return models.VideoJobStatusProcessing
	}
}
