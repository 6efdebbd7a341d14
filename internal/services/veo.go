package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/storage"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Third clip generator, via the Google Gen AI SDK. Unlike Luma and Runway
// there is no REST job id to poll, so the long-running operation handle is
// held in memory keyed by a synthetic id, and a completed operation's bytes
// are uploaded to object storage to produce the clip URL the rest of the
// pipeline expects.
// ---------------------------------------------------------------------------

const defaultVeoModel = "veo-3.1-generate-preview"

// VeoService generates clips via Google's Veo model.
type VeoService struct {
	apiKey string
	model  string
	store  *storage.Storage

	mu  sync.Mutex
	ops map[string]*genai.GenerateVideosOperation
}

var _ ClipGenerator = (*VeoService)(nil)

// NewVeoService creates a Veo clip generator. The storage client receives
// finished video bytes; model defaults to veo-3.1-generate-preview.
func NewVeoService(apiKey, model string, store *storage.Storage) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoService{
		apiKey: apiKey,
		model:  model,
		store:  store,
		ops:    make(map[string]*genai.GenerateVideosOperation),
	}
}

func (s *VeoService) Name() string { return "veo" }

func (s *VeoService) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// SubmitClip downloads the source photo, starts a Veo generation with it as
// the first frame, and returns a synthetic id tracking the operation.
func (s *VeoService) SubmitClip(ctx context.Context, clipReq ClipRequest) (string, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return "", err
	}

	imageData, mimeType, err := fetchImage(ctx, clipReq.ImageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source image: %w", err)
	}

	firstFrame := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   mimeType,
	}

	config := &genai.GenerateVideosConfig{
		AspectRatio:    aspectRatio(clipReq.Orientation),
		NumberOfVideos: 1,
	}

	log.Printf("[Veo] Starting generation (model=%s, angle=%s, imageSize=%d bytes)", s.model, clipReq.Angle, len(imageData))

	operation, err := client.Models.GenerateVideos(ctx, s.model, buildClipPrompt(clipReq), firstFrame, config)
	if err != nil {
		return "", fmt.Errorf("failed to start video generation: %w", err)
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.ops[id] = operation
	s.mu.Unlock()

	log.Printf("[Veo] Operation started: %s (tracking id=%s)", operation.Name, id)
	return id, nil
}

// ClipStatus refreshes the tracked operation. When the operation finishes,
// the video bytes are downloaded and uploaded to storage, and the public URL
// is returned as the clip URL.
func (s *VeoService) ClipStatus(ctx context.Context, vendorJobID string) (*ClipStatusResult, error) {
	s.mu.Lock()
	operation, ok := s.ops[vendorJobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown Veo operation id %s", vendorJobID)
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}

	if !operation.Done {
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation: %w", err)
		}
		s.mu.Lock()
		s.ops[vendorJobID] = operation
		s.mu.Unlock()
	}

	if !operation.Done {
		return &ClipStatusResult{Status: models.ClipStatusProcessing}, nil
	}

	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return &ClipStatusResult{
			Status: models.ClipStatusFailed,
			Error:  string(errJSON),
		}, nil
	}

	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 {
		return &ClipStatusResult{
			Status: models.ClipStatusFailed,
			Error:  "no videos in completed operation",
		}, nil
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return &ClipStatusResult{
			Status: models.ClipStatusFailed,
			Error:  "generated video object is nil",
		}, nil
	}

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	objectPath := storage.GenerateObjectPath("clips", "veo.mp4")
	if err := s.store.Upload(ctx, objectPath, videoBytes, "video/mp4"); err != nil {
		return nil, fmt.Errorf("failed to upload Veo clip: %w", err)
	}

	s.mu.Lock()
	delete(s.ops, vendorJobID)
	s.mu.Unlock()

	log.Printf("[Veo] Clip ready (%d bytes) at %s", len(videoBytes), objectPath)
	return &ClipStatusResult{
		Status:  models.ClipStatusCompleted,
		ClipURL: s.store.GetPublicURL(objectPath),
	}, nil
}

// fetchImage downloads an image and reports its content type.
func fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return data, mimeType, nil
}
