package services

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelhaus/listingreel/internal/models"
)

func TestMapShotstackStatus(t *testing.T) {
	cases := map[string]models.VideoJobStatus{
		"queued":    models.VideoJobStatusProcessing,
		"fetching":  models.VideoJobStatusProcessing,
		"rendering": models.VideoJobStatusProcessing,
		"saving":    models.VideoJobStatusProcessing,
		"done":      models.VideoJobStatusCompleted,
		"failed":    models.VideoJobStatusFailed,
		"mystery":   models.VideoJobStatusProcessing,
	}
	for status, want := range cases {
		if got := MapShotstackStatus(status); got != want {
			t.Errorf("MapShotstackStatus(%q) = %s, want %s", status, got, want)
		}
	}
}

func stitchFixture() StitchRequest {
	agency := "Coastal Realty"
	return StitchRequest{
		Clips: []StitchClip{
			{URL: "https://cdn.example.com/clip-0.mp4", DurationSec: 3.5},
			{URL: "https://cdn.example.com/clip-1.mp4", DurationSec: 3.5},
			{URL: "https://cdn.example.com/clip-2.mp4", DurationSec: 3.5},
		},
		VoiceoverURL: "https://cdn.example.com/voiceover.mp3",
		MusicURL:     "https://cdn.example.com/music.mp3",
		Orientation:  models.OrientationPortrait,
		Property: models.PropertyDetails{
			Address:   "12 Ocean View Drive, Bondi",
			Price:     "$2,450,000",
			Bedrooms:  4,
			Bathrooms: 2,
			Agent: models.AgentBranding{
				Name:   "Jane Doe",
				Phone:  "0412345678",
				Agency: &agency,
			},
		},
	}
}

func TestBuildEditClipTiming(t *testing.T) {
	edit := buildEdit(stitchFixture())

	var videoTrack *shotstackTrack
	for i := range edit.Timeline.Tracks {
		clips := edit.Timeline.Tracks[i].Clips
		if len(clips) > 0 && clips[0].Asset.Type == "video" {
			videoTrack = &edit.Timeline.Tracks[i]
			break
		}
	}
	if videoTrack == nil {
		t.Fatal("no video track in edit")
	}

	// 3.5s clips with a 0.5s crossfade start at 0, 3.0, 6.0
	wantStarts := []float64{0, 3.0, 6.0}
	for i, clip := range videoTrack.Clips {
		if math.Abs(clip.Start-wantStarts[i]) > 1e-9 {
			t.Errorf("clip %d start = %.2f, want %.2f", i, clip.Start, wantStarts[i])
		}
		if clip.Length != 3.5 {
			t.Errorf("clip %d length = %.2f, want 3.5", i, clip.Length)
		}
	}

	// First clip has no incoming transition; the rest crossfade in
	if videoTrack.Clips[0].Transition != nil {
		t.Error("first clip should not have an incoming transition")
	}
	for i := 1; i < len(videoTrack.Clips); i++ {
		if videoTrack.Clips[i].Transition == nil || videoTrack.Clips[i].Transition.In != "fade" {
			t.Errorf("clip %d should fade in", i)
		}
	}
}

func TestBuildEditAudioAndOverlays(t *testing.T) {
	req := stitchFixture()
	edit := buildEdit(req)

	if edit.Timeline.Soundtrack == nil {
		t.Fatal("music should land in the soundtrack")
	}
	if edit.Timeline.Soundtrack.Volume >= 1.0 {
		t.Errorf("music volume %.2f should be ducked under the voiceover", edit.Timeline.Soundtrack.Volume)
	}

	var haveVoiceover, haveOverlay bool
	for _, track := range edit.Timeline.Tracks {
		for _, clip := range track.Clips {
			switch clip.Asset.Type {
			case "audio":
				haveVoiceover = true
				// Voiceover spans the whole slideshow: 3*3.5 - 2*0.5 = 9.5
				if math.Abs(clip.Length-9.5) > 1e-9 {
					t.Errorf("voiceover length = %.2f, want 9.5", clip.Length)
				}
			case "html":
				haveOverlay = true
			}
		}
	}
	if !haveVoiceover {
		t.Error("voiceover track missing")
	}
	if !haveOverlay {
		t.Error("property/agent overlays missing")
	}

	if edit.Output.AspectRatio != "9:16" {
		t.Errorf("aspect ratio = %q, want 9:16", edit.Output.AspectRatio)
	}
}

func TestBuildEditWithoutOptionalAudio(t *testing.T) {
	req := stitchFixture()
	req.VoiceoverURL = ""
	req.MusicURL = ""
	edit := buildEdit(req)

	if edit.Timeline.Soundtrack != nil {
		t.Error("no soundtrack expected without music")
	}
	for _, track := range edit.Timeline.Tracks {
		for _, clip := range track.Clips {
			if clip.Asset.Type == "audio" {
				t.Error("no audio track expected without a voiceover")
			}
		}
	}
}

func TestShotstackSubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ss-key" {
			t.Errorf("missing x-api-key header")
		}
		switch {
		case r.Method == "POST" && r.URL.Path == "/render":
			var edit shotstackEdit
			if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
				t.Errorf("invalid edit payload: %v", err)
			}
			resp := shotstackRenderResponse{Success: true}
			resp.Response.ID = "render-42"
			json.NewEncoder(w).Encode(resp)
		case r.Method == "GET" && r.URL.Path == "/render/render-42":
			resp := shotstackRenderResponse{Success: true}
			resp.Response.ID = "render-42"
			resp.Response.Status = "done"
			resp.Response.URL = "https://cdn.shotstack.io/final.mp4"
			json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewShotstackServiceWithBaseURL("ss-key", srv.URL)
	id, err := s.SubmitStitch(context.Background(), stitchFixture())
	if err != nil {
		t.Fatalf("SubmitStitch failed: %v", err)
	}

	res, err := s.RenderStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("RenderStatus failed: %v", err)
	}
	if res.Status != models.VideoJobStatusCompleted || res.VideoURL != "https://cdn.shotstack.io/final.mp4" {
		t.Errorf("unexpected render result: %+v", res)
	}
}

func TestSubmitStitchRejectsEmptyClipList(t *testing.T) {
	s := NewShotstackServiceWithBaseURL("ss-key", "http://localhost:0")
	if _, err := s.SubmitStitch(context.Background(), StitchRequest{}); err == nil {
		t.Error("expected error for empty clip list")
	}
}
