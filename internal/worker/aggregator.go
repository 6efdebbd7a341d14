package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/services"
	"golang.org/x/sync/errgroup"
)

// maxDispatchConcurrency caps parallel vendor submits. Vendors queue on
// their side; the cap just keeps burst fan-out polite.
const maxDispatchConcurrency = 4

// pollConfig bounds a polling session. The attempt cap turns the loop into
// an explicit bounded iteration instead of poll-forever.
type pollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// defaultPollConfig: 5s cadence, 120 attempts, about 10 minutes.
func defaultPollConfig() pollConfig {
	return pollConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 120,
	}
}

// dispatchClips submits one generation per request. Per-item failures are
// recorded on the descriptor and do not abort sibling submits; the call
// errors only when every item failed.
func dispatchClips(ctx context.Context, gen services.ClipGenerator, reqs []services.ClipRequest) ([]models.ClipGeneration, error) {
	clips := make([]models.ClipGeneration, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDispatchConcurrency)

	for i := range reqs {
		i := i
		clips[i] = models.ClipGeneration{
			Index:    i,
			ImageURL: reqs[i].ImageURL,
			Status:   models.ClipStatusQueued,
		}

		g.Go(func() error {
			vendorJob, err := gen.SubmitClip(gctx, reqs[i])
			if err != nil {
				log.Printf("[Dispatch] Clip %d submit failed (%s): %v", i, gen.Name(), err)
				clips[i].Status = models.ClipStatusFailed
				clips[i].Err = err
				return nil // isolate the failure, siblings keep going
			}
			clips[i].VendorJob = vendorJob
			return nil
		})
	}

	// Goroutines never return errors, so Wait only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failures := 0
	var firstErr error
	for i := range clips {
		if clips[i].Status == models.ClipStatusFailed {
			failures++
			if firstErr == nil {
				firstErr = clips[i].Err
			}
		}
	}
	if failures == len(clips) {
		return clips, fmt.Errorf("all %d clip generations failed to submit: %w", failures, firstErr)
	}
	if failures > 0 {
		log.Printf("[Dispatch] %d/%d clips failed to submit, proceeding with the rest", failures, len(clips))
	}

	return clips, nil
}

// pollClips drives the submitted clips to terminal states on a fixed
// cadence. Transient poll errors are swallowed and retried next tick; the
// consecutive-error counter exists for the logs only. The batch fails only
// when every clip failed; mixed results proceed with whatever completed.
// Exceeding the attempt cap is a distinct timeout failure.
func pollClips(ctx context.Context, gen services.ClipGenerator, clips []models.ClipGeneration, cfg pollConfig, onProgress func(completed, total int)) ([]models.ClipGeneration, error) {
	total := len(clips)
	consecutiveErrors := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("clip polling cancelled: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}

		allTerminal := true
		for i := range clips {
			if clips[i].Status == models.ClipStatusCompleted || clips[i].Status == models.ClipStatusFailed {
				continue
			}

			res, err := gen.ClipStatus(ctx, clips[i].VendorJob)
			if err != nil {
				consecutiveErrors++
				log.Printf("[Poll] Clip %d status error (attempt %d, consecutive errors %d): %v", i, attempt, consecutiveErrors, err)
				allTerminal = false
				continue
			}
			consecutiveErrors = 0

			clips[i].Status = res.Status
			switch res.Status {
			case models.ClipStatusCompleted:
				clips[i].ClipURL = res.ClipURL
			case models.ClipStatusFailed:
				clips[i].Err = fmt.Errorf("%s", res.Error)
				log.Printf("[Poll] Clip %d failed: %s", i, res.Error)
			default:
				allTerminal = false
			}
		}

		completed := 0
		failed := 0
		for i := range clips {
			switch clips[i].Status {
			case models.ClipStatusCompleted:
				completed++
			case models.ClipStatusFailed:
				failed++
			}
		}

		if onProgress != nil {
			onProgress(completed, total)
		}

		if allTerminal {
			if completed == 0 {
				var firstErr error
				for i := range clips {
					if clips[i].Err != nil {
						firstErr = clips[i].Err
						break
					}
				}
				return clips, fmt.Errorf("all %d clips failed: %w", total, firstErr)
			}
			if failed > 0 {
				log.Printf("[Poll] Batch done with partial success: %d completed, %d failed", completed, failed)
			}
			return clips, nil
		}
	}

	return clips, fmt.Errorf("clip generation timed out after %d attempts", cfg.MaxAttempts)
}

// stitchRenderer is the slice of the Shotstack client the poller needs.
type stitchRenderer interface {
	SubmitStitch(ctx context.Context, req services.StitchRequest) (string, error)
	RenderStatus(ctx context.Context, renderID string) (*services.StitchStatusResult, error)
}

// pollStitch drives a render to a terminal state on the same cadence and
// bounds as clip polling. Returns the final video URL.
func pollStitch(ctx context.Context, renderer stitchRenderer, renderID string, cfg pollConfig) (string, error) {
	consecutiveErrors := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("stitch polling cancelled: %w", ctx.Err())
		case <-time.After(cfg.Interval):
		}

		res, err := renderer.RenderStatus(ctx, renderID)
		if err != nil {
			consecutiveErrors++
			log.Printf("[Stitch] Status error (attempt %d, consecutive errors %d): %v", attempt, consecutiveErrors, err)
			continue
		}
		consecutiveErrors = 0

		switch res.Status {
		case models.VideoJobStatusCompleted:
			return res.VideoURL, nil
		case models.VideoJobStatusFailed:
			return "", fmt.Errorf("stitch render failed: %s", res.Error)
		}
	}

	return "", fmt.Errorf("stitch render timed out after %d attempts", cfg.MaxAttempts)
}
