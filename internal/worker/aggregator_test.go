package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/services"
)

// pollStep scripts one ClipStatus response for the fake generator.
type pollStep struct {
	res *services.ClipStatusResult
	err error
}

// fakeGenerator scripts submit and status behavior per image URL. Vendor job
// ids are just the image URLs, which keeps the scripts readable.
type fakeGenerator struct {
	mu         sync.Mutex
	submitFail map[string]error      // image URL -> submit error
	steps      map[string][]pollStep // vendor job -> status sequence
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) SubmitClip(ctx context.Context, req services.ClipRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.submitFail[req.ImageURL]; ok {
		return "", err
	}
	return req.ImageURL, nil
}

func (f *fakeGenerator) ClipStatus(ctx context.Context, vendorJob string) (*services.ClipStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq := f.steps[vendorJob]
	if len(seq) == 0 {
		return &services.ClipStatusResult{Status: models.ClipStatusProcessing}, nil
	}
	step := seq[0]
	f.steps[vendorJob] = seq[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.res, nil
}

var _ services.ClipGenerator = (*fakeGenerator)(nil)

func fastPoll(maxAttempts int) pollConfig {
	return pollConfig{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func clipRequests(urls ...string) []services.ClipRequest {
	reqs := make([]services.ClipRequest, len(urls))
	for i, u := range urls {
		reqs[i] = services.ClipRequest{ImageURL: u, Angle: models.AnglePushIn, DurationSec: 3.5}
	}
	return reqs
}

func completed(url string) pollStep {
	return pollStep{res: &services.ClipStatusResult{Status: models.ClipStatusCompleted, ClipURL: url}}
}

func failed(reason string) pollStep {
	return pollStep{res: &services.ClipStatusResult{Status: models.ClipStatusFailed, Error: reason}}
}

func processing() pollStep {
	return pollStep{res: &services.ClipStatusResult{Status: models.ClipStatusProcessing}}
}

func TestDispatchClipsIsolatesFailures(t *testing.T) {
	gen := &fakeGenerator{
		submitFail: map[string]error{"img2": errors.New("status 429")},
	}

	clips, err := dispatchClips(context.Background(), gen, clipRequests("img1", "img2", "img3"))
	if err != nil {
		t.Fatalf("partial submit failure should not error: %v", err)
	}

	if clips[0].VendorJob != "img1" || clips[2].VendorJob != "img3" {
		t.Errorf("successful submits lost vendor job ids: %+v", clips)
	}
	if clips[1].Status != models.ClipStatusFailed {
		t.Errorf("failed submit not recorded: %+v", clips[1])
	}
	if clips[1].Index != 1 {
		t.Errorf("clip order not preserved: %+v", clips[1])
	}
}

func TestDispatchClipsAllFailed(t *testing.T) {
	gen := &fakeGenerator{
		submitFail: map[string]error{
			"img1": errors.New("status 401"),
			"img2": errors.New("status 401"),
		},
	}

	_, err := dispatchClips(context.Background(), gen, clipRequests("img1", "img2"))
	if err == nil {
		t.Fatal("expected error when every submit failed")
	}
	if !strings.Contains(err.Error(), "all 2") {
		t.Errorf("error should name the batch size: %v", err)
	}
}

func TestPollClipsProgressSequence(t *testing.T) {
	gen := &fakeGenerator{
		steps: map[string][]pollStep{
			"img1": {completed("https://cdn.example.com/c1.mp4")},
			"img2": {processing(), completed("https://cdn.example.com/c2.mp4")},
		},
	}
	clips := mustDispatch(t, gen, "img1", "img2")

	var progress [][2]int
	clips, err := pollClips(context.Background(), gen, clips, fastPoll(10), func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("pollClips failed: %v", err)
	}

	want := [][2]int{{1, 2}, {2, 2}}
	if len(progress) != len(want) {
		t.Fatalf("progress calls = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, progress[i], want[i])
		}
	}
	if clips[0].ClipURL == "" || clips[1].ClipURL == "" {
		t.Errorf("completed clips missing URLs: %+v", clips)
	}
}

func TestPollClipsSwallowsTransientErrors(t *testing.T) {
	gen := &fakeGenerator{
		steps: map[string][]pollStep{
			"img1": {
				{err: errors.New("connection reset")},
				{err: errors.New("status 502")},
				completed("https://cdn.example.com/c1.mp4"),
			},
		},
	}
	clips := mustDispatch(t, gen, "img1")

	clips, err := pollClips(context.Background(), gen, clips, fastPoll(10), nil)
	if err != nil {
		t.Fatalf("transient poll errors should be retried, got: %v", err)
	}
	if clips[0].Status != models.ClipStatusCompleted {
		t.Errorf("clip did not recover: %+v", clips[0])
	}
}

func TestPollClipsTimeout(t *testing.T) {
	gen := &fakeGenerator{} // never terminal
	clips := mustDispatch(t, gen, "img1")

	_, err := pollClips(context.Background(), gen, clips, fastPoll(3), nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out after 3 attempts") {
		t.Errorf("timeout message should name the attempt cap: %v", err)
	}
}

func TestPollClipsAllFailed(t *testing.T) {
	gen := &fakeGenerator{
		steps: map[string][]pollStep{
			"img1": {failed("moderation rejected the image")},
			"img2": {failed("generation failed")},
		},
	}
	clips := mustDispatch(t, gen, "img1", "img2")

	_, err := pollClips(context.Background(), gen, clips, fastPoll(10), nil)
	if err == nil {
		t.Fatal("expected error when every clip failed")
	}
	if !strings.Contains(err.Error(), "all 2 clips failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPollClipsPartialSuccessProceeds(t *testing.T) {
	gen := &fakeGenerator{
		steps: map[string][]pollStep{
			"img1": {completed("https://cdn.example.com/c1.mp4")},
			"img2": {failed("generation failed")},
		},
	}
	clips := mustDispatch(t, gen, "img1", "img2")

	clips, err := pollClips(context.Background(), gen, clips, fastPoll(10), nil)
	if err != nil {
		t.Fatalf("partial success should proceed: %v", err)
	}
	if clips[0].Status != models.ClipStatusCompleted || clips[1].Status != models.ClipStatusFailed {
		t.Errorf("unexpected terminal states: %+v", clips)
	}
}

func TestPollClipsContextCancel(t *testing.T) {
	gen := &fakeGenerator{}
	clips := mustDispatch(t, gen, "img1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pollClips(ctx, gen, clips, pollConfig{Interval: time.Second, MaxAttempts: 10}, nil)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got: %v", err)
	}
}

func mustDispatch(t *testing.T, gen services.ClipGenerator, urls ...string) []models.ClipGeneration {
	t.Helper()
	clips, err := dispatchClips(context.Background(), gen, clipRequests(urls...))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	return clips
}

// fakeStitcher scripts RenderStatus responses.
type fakeStitcher struct {
	mu    sync.Mutex
	steps []pollStitchStep
}

type pollStitchStep struct {
	res *services.StitchStatusResult
	err error
}

func (f *fakeStitcher) SubmitStitch(ctx context.Context, req services.StitchRequest) (string, error) {
	return "render-1", nil
}

func (f *fakeStitcher) RenderStatus(ctx context.Context, renderID string) (*services.StitchStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		return &services.StitchStatusResult{Status: models.VideoJobStatusStitching}, nil
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.res, step.err
}

func TestPollStitchCompleted(t *testing.T) {
	stitcher := &fakeStitcher{steps: []pollStitchStep{
		{res: &services.StitchStatusResult{Status: models.VideoJobStatusStitching}},
		{err: fmt.Errorf("status 500")},
		{res: &services.StitchStatusResult{Status: models.VideoJobStatusCompleted, VideoURL: "https://cdn.example.com/final.mp4"}},
	}}

	url, err := pollStitch(context.Background(), stitcher, "render-1", fastPoll(10))
	if err != nil {
		t.Fatalf("pollStitch failed: %v", err)
	}
	if url != "https://cdn.example.com/final.mp4" {
		t.Errorf("url = %q", url)
	}
}

func TestPollStitchFailed(t *testing.T) {
	stitcher := &fakeStitcher{steps: []pollStitchStep{
		{res: &services.StitchStatusResult{Status: models.VideoJobStatusFailed, Error: "render error"}},
	}}

	_, err := pollStitch(context.Background(), stitcher, "render-1", fastPoll(10))
	if err == nil || !strings.Contains(err.Error(), "render error") {
		t.Errorf("expected failure with vendor reason, got: %v", err)
	}
}

func TestPollStitchTimeout(t *testing.T) {
	stitcher := &fakeStitcher{} // never terminal

	_, err := pollStitch(context.Background(), stitcher, "render-1", fastPoll(2))
	if err == nil || !strings.Contains(err.Error(), "timed out after 2 attempts") {
		t.Errorf("expected timeout naming the attempt cap, got: %v", err)
	}
}
