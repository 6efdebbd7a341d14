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

	"github.com/reelhaus/listingreel/pkg/httputil"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Converts the marketing narration into voiceover audio.
// Model: eleven_flash_v2_5 (fast, 32 languages, ~75ms latency)
// ---------------------------------------------------------------------------

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_flash_v2_5"
	elevenLabsOutputFormat   = "mp3_44100_128"
)

// ElevenLabsService handles text-to-speech via the ElevenLabs API. Friendly
// voice names are resolved through the injected voice table.
type ElevenLabsService struct {
	apiKey  string
	baseURL string
	modelID string
	voices  *VoiceTable
	client  *httputil.RetryClient
}

var _ TTSService = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs TTS service with the given
// voice table.
func NewElevenLabsService(apiKey string, voices *VoiceTable) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey:  apiKey,
		baseURL: elevenLabsDefaultBaseURL,
		modelID: elevenLabsDefaultModel,
		voices:  voices,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 90 * time.Second},
			httputil.DefaultRetryConfig(),
		),
	}
}

// NewElevenLabsServiceWithBaseURL points the client at a non-default host.
func NewElevenLabsServiceWithBaseURL(apiKey, baseURL string, voices *VoiceTable) *ElevenLabsService {
	s := NewElevenLabsService(apiKey, voices)
	s.baseURL = baseURL
	return s
}

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
	Speed         *float64                 `json:"speed,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// GenerateSpeech converts narration text to speech. voiceName is a friendly
// name; unknown names fall back to the table default.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, text, voiceName string) (*TTSResponse, error) {
	voiceID := s.voices.ResolveVoiceID(voiceName)

	speed := 0.9 // Slightly slower for clear property narration
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		Speed:   &speed,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60,
			SimilarityBoost: 0.80,
			Style:           0.30,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.baseURL, voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[ElevenLabs] Generating speech (voice=%s, voiceID=%s, textLen=%d)",
		voiceName, voiceID, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	durationMs := estimateAudioDuration(text, speed)

	log.Printf("[ElevenLabs] Speech generated (%d bytes, estimated %dms)", len(audioData), durationMs)

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: durationMs,
		Format:     "mp3",
	}, nil
}
