package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reelhaus/listingreel/internal/models"
)

func TestLumaSubmitClip(t *testing.T) {
	var gotReq lumaGenerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/generations" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer luma-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(lumaGeneration{ID: "gen-123", State: "queued"})
	}))
	defer srv.Close()

	s := NewLumaServiceWithBaseURL("luma-key", srv.URL)
	id, err := s.SubmitClip(context.Background(), ClipRequest{
		ImageURL:    "https://cdn.example.com/kitchen.jpg",
		Angle:       models.AnglePushIn,
		DurationSec: 4.6,
		Orientation: models.OrientationPortrait,
		Address:     "12 Ocean View Drive",
	})
	if err != nil {
		t.Fatalf("SubmitClip failed: %v", err)
	}
	if id != "gen-123" {
		t.Errorf("id = %q, want gen-123", id)
	}

	if gotReq.Keyframes == nil || gotReq.Keyframes.Frame0.URL != "https://cdn.example.com/kitchen.jpg" {
		t.Errorf("source image not sent as frame0: %+v", gotReq.Keyframes)
	}
	if gotReq.AspectRatio != "9:16" {
		t.Errorf("aspect ratio = %q, want 9:16", gotReq.AspectRatio)
	}
	if gotReq.Duration != "5s" {
		t.Errorf("duration = %q, want 5s (rounded)", gotReq.Duration)
	}
	if gotReq.Prompt == "" {
		t.Error("prompt should not be empty")
	}
}

func TestLumaClipStatus(t *testing.T) {
	responses := map[string]lumaGeneration{
		"gen-pending":   {ID: "gen-pending", State: "pending"},
		"gen-dreaming":  {ID: "gen-dreaming", State: "dreaming"},
		"gen-done":      {ID: "gen-done", State: "completed", Assets: &lumaAssets{Video: "https://cdn.luma.ai/out.mp4"}},
		"gen-failed":    {ID: "gen-failed", State: "failed", FailureReason: "nsfw content detected"},
		"gen-no-reason": {ID: "gen-no-reason", State: "failed"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/generations/"):]
		gen, ok := responses[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(gen)
	}))
	defer srv.Close()

	s := NewLumaServiceWithBaseURL("luma-key", srv.URL)
	ctx := context.Background()

	for _, id := range []string{"gen-pending", "gen-dreaming"} {
		res, err := s.ClipStatus(ctx, id)
		if err != nil {
			t.Fatalf("ClipStatus(%s) failed: %v", id, err)
		}
		if res.Status != models.ClipStatusProcessing {
			t.Errorf("%s: status = %s, want processing", id, res.Status)
		}
	}

	done, err := s.ClipStatus(ctx, "gen-done")
	if err != nil {
		t.Fatalf("ClipStatus(gen-done) failed: %v", err)
	}
	if done.Status != models.ClipStatusCompleted || done.ClipURL != "https://cdn.luma.ai/out.mp4" {
		t.Errorf("completed status wrong: %+v", done)
	}

	failed, err := s.ClipStatus(ctx, "gen-failed")
	if err != nil {
		t.Fatalf("ClipStatus(gen-failed) failed: %v", err)
	}
	if failed.Status != models.ClipStatusFailed || failed.Error != "nsfw content detected" {
		t.Errorf("failed status wrong: %+v", failed)
	}

	noReason, err := s.ClipStatus(ctx, "gen-no-reason")
	if err != nil {
		t.Fatal(err)
	}
	if noReason.Error == "" {
		t.Error("failed result must carry a non-empty error message")
	}
}

func TestMapLumaState(t *testing.T) {
	cases := map[string]models.ClipStatus{
		"pending":    models.ClipStatusProcessing,
		"queued":     models.ClipStatusProcessing,
		"processing": models.ClipStatusProcessing,
		"dreaming":   models.ClipStatusProcessing,
		"completed":  models.ClipStatusCompleted,
		"failed":     models.ClipStatusFailed,
		"who-knows":  models.ClipStatusProcessing,
	}
	for state, want := range cases {
		if got := MapLumaState(state); got != want {
			t.Errorf("MapLumaState(%q) = %s, want %s", state, got, want)
		}
	}
}

func TestMapRunwayStatus(t *testing.T) {
	cases := map[string]models.ClipStatus{
		"PENDING":   models.ClipStatusProcessing,
		"THROTTLED": models.ClipStatusProcessing,
		"RUNNING":   models.ClipStatusProcessing,
		"SUCCEEDED": models.ClipStatusCompleted,
		"FAILED":    models.ClipStatusFailed,
		"":          models.ClipStatusProcessing,
	}
	for status, want := range cases {
		if got := MapRunwayStatus(status); got != want {
			t.Errorf("MapRunwayStatus(%q) = %s, want %s", status, got, want)
		}
	}
}

func TestRunwaySubmitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Runway-Version") != runwayAPIVersion {
			t.Errorf("missing version header")
		}
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/image_to_video":
			var req runwayTaskRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.PromptImage == "" || req.Model != runwayModel {
				t.Errorf("bad task request: %+v", req)
			}
			json.NewEncoder(w).Encode(runwayTaskResponse{ID: "task-9"})
		case r.Method == "GET" && r.URL.Path == "/v1/tasks/task-9":
			json.NewEncoder(w).Encode(runwayTask{
				ID:     "task-9",
				Status: "SUCCEEDED",
				Output: []string{"https://cdn.runway.com/out.mp4"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewRunwayServiceWithBaseURL("rw-key", srv.URL)
	id, err := s.SubmitClip(context.Background(), ClipRequest{
		ImageURL:    "https://cdn.example.com/pool.jpg",
		Angle:       models.AngleOrbitLeft,
		DurationSec: 3.5,
		Orientation: models.OrientationLandscape,
	})
	if err != nil {
		t.Fatalf("SubmitClip failed: %v", err)
	}

	res, err := s.ClipStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("ClipStatus failed: %v", err)
	}
	if res.Status != models.ClipStatusCompleted || res.ClipURL != "https://cdn.runway.com/out.mp4" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestBuildClipPromptUsesAngleAndAddress(t *testing.T) {
	withAddr := buildClipPrompt(ClipRequest{Angle: models.AnglePushIn, Address: "7 Harbour St"})
	if !strings.Contains(withAddr, "7 Harbour St") {
		t.Errorf("prompt should mention the address: %s", withAddr)
	}
	if !strings.Contains(withAddr, "push-in") {
		t.Errorf("prompt should describe the movement: %s", withAddr)
	}

	// Unknown angle falls back to push-in rather than an empty fragment
	fallback := buildClipPrompt(ClipRequest{Angle: models.CameraAngle("tilt")})
	if !strings.Contains(fallback, "push-in") {
		t.Errorf("unknown angle should fall back to push-in: %s", fallback)
	}
}
