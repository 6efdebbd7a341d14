package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"address": "12 Harbour View Rd",
		"price":   "$1,250,000",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["price"] != "$1,250,000" {
		t.Errorf("expected price=$1,250,000, got %v", result["price"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"bedrooms": 4, "suburb": "Mosman"}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["suburb"] != "Mosman" {
		t.Errorf("expected suburb=Mosman, got %v", j["suburb"])
	}

	if j["bedrooms"].(float64) != 4 {
		t.Errorf("expected bedrooms=4, got %v", j["bedrooms"])
	}
}

func TestVideoJobStatusTerminal(t *testing.T) {
	if !VideoJobStatusCompleted.IsTerminal() {
		t.Error("completed should be terminal")
	}
	if !VideoJobStatusFailed.IsTerminal() {
		t.Error("failed should be terminal")
	}
	if VideoJobStatusProcessing.IsTerminal() {
		t.Error("processing should not be terminal")
	}
	if VideoJobStatusStitching.IsTerminal() {
		t.Error("stitching should not be terminal")
	}
}

func TestSlideshowDurationSec(t *testing.T) {
	tests := []struct {
		n    int
		d    float64
		want float64
	}{
		{0, DefaultClipDurationSec, 0},
		{1, DefaultClipDurationSec, 3.5},
		{5, DefaultClipDurationSec, 15.5},
		{10, DefaultClipDurationSec, 30.5},
	}

	for _, tt := range tests {
		got := SlideshowDurationSec(tt.n, tt.d)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SlideshowDurationSec(%d, %v) = %v, want %v", tt.n, tt.d, got, tt.want)
		}
	}
}

func TestValidateImageCountMotionFlow(t *testing.T) {
	for n := MotionFlowMinImages; n <= MaxImages; n++ {
		if err := ValidateImageCount(FlowMotion, n); err != nil {
			t.Errorf("count %d should be valid for motion flow: %v", n, err)
		}
	}

	err := ValidateImageCount(FlowMotion, 1)
	if err == nil {
		t.Fatal("expected error for 1 photo")
	}
	if !strings.Contains(err.Error(), "add at least 2 more") {
		t.Errorf("expected deterministic shortfall message, got %q", err.Error())
	}

	err = ValidateImageCount(FlowMotion, 12)
	if err == nil {
		t.Fatal("expected error for 12 photos")
	}
	if !strings.Contains(err.Error(), "remove 2") {
		t.Errorf("expected deterministic excess message, got %q", err.Error())
	}
}

func TestValidateImageCountAIFlow(t *testing.T) {
	if err := ValidateImageCount(FlowAI, 5); err != nil {
		t.Errorf("count 5 should be valid for ai flow: %v", err)
	}

	err := ValidateImageCount(FlowAI, 4)
	if err == nil {
		t.Fatal("expected error for 4 photos on ai flow")
	}
	if !strings.Contains(err.Error(), "add at least 1 more") {
		t.Errorf("expected shortfall of 1, got %q", err.Error())
	}
}

func TestGenerationProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 5, 0},
		{1, 5, 16},
		{2, 5, 32},
		{5, 5, 80},
		{3, 7, 34}, // floor(3/7*80) = floor(34.28)
		{0, 0, 0},
	}

	for _, tt := range tests {
		if got := GenerationProgress(tt.completed, tt.total); got != tt.want {
			t.Errorf("GenerationProgress(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestGenerationProgressMonotonic(t *testing.T) {
	// More completed clips never yields less progress, and the phase never
	// exceeds its 80 ceiling.
	total := 10
	prev := -1
	for completed := 0; completed <= total; completed++ {
		p := GenerationProgress(completed, total)
		if p < prev {
			t.Errorf("progress decreased: %d after %d", p, prev)
		}
		if p > 80 {
			t.Errorf("generation progress %d exceeds 80 ceiling", p)
		}
		prev = p
	}
}

func TestValidCameraAngle(t *testing.T) {
	for _, a := range AllCameraAngles {
		if !ValidCameraAngle(a) {
			t.Errorf("angle %q should be valid", a)
		}
	}
	if ValidCameraAngle("dolly-zoom") {
		t.Error("unknown angle should be invalid")
	}
}
