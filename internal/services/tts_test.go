package services

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVoiceTableResolution(t *testing.T) {
	table := DefaultVoiceTable()

	ausMale := table.ResolveVoiceID("australian-male")
	if ausMale == "" {
		t.Fatal("australian-male must resolve to a vendor id")
	}

	// Known names resolve to their own ids
	if got := table.ResolveVoiceID("british-female"); got == ausMale || got == "" {
		t.Errorf("british-female resolved to %q", got)
	}

	// Unknown and empty names fall back; case and whitespace normalize
	for _, name := range []string{"", "klingon-male", "  AUSTRALIAN-MALE  ", "Australian-Male"} {
		if got := table.ResolveVoiceID(name); got != ausMale {
			t.Errorf("ResolveVoiceID(%q) = %q, want %q", name, got, ausMale)
		}
	}
}

func TestVoiceTableIsImmutable(t *testing.T) {
	table := DefaultVoiceTable()
	voices := table.Voices()
	voices[0].Name = "mutated"

	if table.Voices()[0].Name == "mutated" {
		t.Error("Voices() must return a copy, not the backing slice")
	}
}

func TestTrackTableResolution(t *testing.T) {
	table := DefaultTrackTable()

	if url := table.ResolveTrackURL("uplifting-piano"); !strings.HasSuffix(url, "uplifting-piano.mp3") {
		t.Errorf("unexpected track url %q", url)
	}
	// Unknown id means no background music, not an error
	if url := table.ResolveTrackURL("death-metal"); url != "" {
		t.Errorf("unknown track should resolve to empty url, got %q", url)
	}
	if url := table.ResolveTrackURL(""); url != "" {
		t.Errorf("empty track id should resolve to empty url, got %q", url)
	}
}

func TestEstimateAudioDuration(t *testing.T) {
	// 150 words at normal speed is one minute
	text := strings.Repeat("word ", 150)
	if got := estimateAudioDuration(text, 1.0); got != 60000 {
		t.Errorf("estimateAudioDuration = %dms, want 60000", got)
	}
	if got := estimateAudioDuration("", 1.0); got != 0 {
		t.Errorf("empty text should estimate 0, got %d", got)
	}
}

func TestElevenLabsGenerateSpeech(t *testing.T) {
	audio := []byte("mp3-bytes-here")
	table := DefaultVoiceTable()
	wantVoiceID := table.ResolveVoiceID("british-male")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("missing xi-api-key header")
		}
		if !strings.Contains(r.URL.Path, wantVoiceID) {
			t.Errorf("request path %q should contain resolved voice id %q", r.URL.Path, wantVoiceID)
		}
		if r.URL.Query().Get("output_format") != elevenLabsOutputFormat {
			t.Errorf("output format = %q", r.URL.Query().Get("output_format"))
		}
		w.Write(audio)
	}))
	defer srv.Close()

	s := NewElevenLabsServiceWithBaseURL("el-key", srv.URL, table)
	resp, err := s.GenerateSpeech(context.Background(), "Welcome to 12 Ocean View Drive.", "british-male")
	if err != nil {
		t.Fatalf("GenerateSpeech failed: %v", err)
	}

	if !bytes.Equal(resp.AudioData, audio) {
		t.Error("audio bytes do not match server response")
	}
	if resp.Format != "mp3" {
		t.Errorf("format = %q, want mp3", resp.Format)
	}
	if resp.DurationMs <= 0 {
		t.Errorf("estimated duration should be positive, got %d", resp.DurationMs)
	}
}

func TestElevenLabsUnknownVoiceFallsBack(t *testing.T) {
	table := DefaultVoiceTable()
	fallbackID := table.ResolveVoiceID("australian-male")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, fallbackID) {
			t.Errorf("unknown voice should hit fallback id %q, path was %q", fallbackID, r.URL.Path)
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	s := NewElevenLabsServiceWithBaseURL("el-key", srv.URL, table)
	if _, err := s.GenerateSpeech(context.Background(), "Hello.", "texan-robot"); err != nil {
		t.Fatalf("GenerateSpeech failed: %v", err)
	}
}

func TestElevenLabsSurfacesVendorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	s := NewElevenLabsServiceWithBaseURL("bad-key", srv.URL, DefaultVoiceTable())
	if _, err := s.GenerateSpeech(context.Background(), "Hello.", "australian-male"); err == nil {
		t.Error("expected error from 401 response")
	}
}
