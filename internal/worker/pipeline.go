package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/motion"
	"github.com/reelhaus/listingreel/internal/queue"
	"github.com/reelhaus/listingreel/internal/services"
	"github.com/reelhaus/listingreel/internal/storage"
)

// runPipeline executes one end-to-end generation: narration, voiceover,
// clips (local motion render or AI-vendor dispatch), stitch, and returns
// the final video URL. The caller owns the terminal job write.
func (w *Worker) runPipeline(ctx context.Context, job *queue.Job) (string, error) {
	if err := models.ValidateImageCount(job.Flow, len(job.Images)); err != nil {
		return "", fmt.Errorf("validation: %w", err)
	}

	durations := clipDurations(job.Images)
	totalSec := slideshowTotal(durations)

	voiceoverURL, err := w.generateVoiceover(ctx, job.Property, totalSec)
	if err != nil {
		return "", err
	}

	musicURL := ""
	if w.tracks != nil {
		musicURL = w.tracks.ResolveTrackURL(job.Property.MusicTrack)
	}

	var stitchClips []services.StitchClip
	switch job.Flow {
	case models.FlowAI:
		stitchClips, err = w.generateAIClips(ctx, job, durations)
	default:
		stitchClips, err = w.renderMotionClips(ctx, job, durations)
	}
	if err != nil {
		return "", err
	}

	if err := w.db.UpdateJobProgress(ctx, job.JobID, models.VideoJobStatusStitching, models.StitchingProgress); err != nil {
		log.Printf("Job %s: progress update failed: %v", job.JobID, err)
	}

	renderID, err := w.stitcher.SubmitStitch(ctx, services.StitchRequest{
		Clips:        stitchClips,
		VoiceoverURL: voiceoverURL,
		MusicURL:     musicURL,
		Property:     job.Property,
		Orientation:  job.Orientation,
		Style:        job.Property.Style,
	})
	if err != nil {
		return "", fmt.Errorf("stitch submit: %w", err)
	}

	videoURL, err := pollStitch(ctx, w.stitcher, renderID, w.poll)
	if err != nil {
		return "", err
	}

	return videoURL, nil
}

// generateVoiceover writes the narration, synthesizes it, and uploads the
// audio. Narration is a best-effort enrichment: a script failure produces a
// silent video rather than a failed job. A TTS failure after narration
// exists is a real vendor failure and surfaces.
func (w *Worker) generateVoiceover(ctx context.Context, property models.PropertyDetails, totalSec float64) (string, error) {
	if w.script == nil || w.tts == nil {
		return "", nil
	}

	narration, err := w.script.GenerateScript(ctx, property, totalSec)
	if err != nil {
		log.Printf("[Pipeline] Script generation failed, continuing without voiceover: %v", err)
		return "", nil
	}

	speech, err := w.tts.GenerateSpeech(ctx, narration, property.Voice)
	if err != nil {
		return "", fmt.Errorf("voiceover: %w", err)
	}

	// Probe the real audio length: the vendor's duration estimate drifts on
	// long feature lists, and a voiceover that overruns the slideshow is
	// worth a log line before the stitch trims it.
	if w.ffmpeg != nil {
		audioFile := w.ffmpeg.CreateTempFile("voiceover.mp3")
		if writeErr := os.WriteFile(audioFile, speech.AudioData, 0o644); writeErr == nil {
			if ms, probeErr := w.ffmpeg.GetAudioDuration(ctx, audioFile); probeErr == nil {
				speech.DurationMs = ms
				if float64(ms)/1000.0 > totalSec {
					log.Printf("[Pipeline] Voiceover runs %.1fs over a %.1fs video; the stitch trims the overhang", float64(ms)/1000.0, totalSec)
				}
			}
			w.ffmpeg.Cleanup(audioFile)
		}
	}

	audioPath := storage.GenerateObjectPath("voiceovers", "voiceover.mp3")
	if err := w.storage.Upload(ctx, audioPath, speech.AudioData, "audio/mpeg"); err != nil {
		return "", fmt.Errorf("voiceover upload: %w", err)
	}

	return w.storage.GetPublicURL(audioPath), nil
}

// renderMotionClips runs the local camera-motion flow: each photo becomes a
// clip through ffmpeg, then the batch uploads to storage. Renders run
// sequentially to bound CPU; per-image render failures are isolated and the
// flow proceeds with the successful subset.
func (w *Worker) renderMotionClips(ctx context.Context, job *queue.Job, durations []float64) ([]services.StitchClip, error) {
	type rendered struct {
		index int
		item  storage.UploadItem
	}

	var done []rendered
	var firstErr error
	failures := 0

	for i, img := range job.Images {
		data, err := fetchBytes(ctx, img.URL)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("[Motion] Clip %d: image fetch failed: %v", i, err)
			continue
		}

		clipPath, err := w.ffmpeg.RenderMotionClip(ctx, data, img.CameraAngle, job.Orientation, durations[i], i)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("[Motion] Clip %d: render failed: %v", i, err)
			continue
		}

		clipData, err := os.ReadFile(clipPath)
		w.ffmpeg.Cleanup(clipPath)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		done = append(done, rendered{
			index: i,
			item: storage.UploadItem{
				Path:        storage.GenerateObjectPath("clips", "clip.mp4"),
				Data:        clipData,
				ContentType: "video/mp4",
			},
		})
	}

	if len(done) == 0 {
		return nil, fmt.Errorf("all %d motion clips failed to render: %w", len(job.Images), firstErr)
	}
	if failures > 0 {
		log.Printf("[Motion] %d/%d clips failed, proceeding with the rest", failures, len(job.Images))
	}

	items := make([]storage.UploadItem, len(done))
	for i, r := range done {
		items[i] = r.item
	}

	urls, err := w.storage.UploadBatch(ctx, items, storage.DefaultBatchSize, func(uploaded, total int) {
		progress := models.GenerationProgress(uploaded, total)
		if err := w.db.UpdateJobProgress(ctx, job.JobID, models.VideoJobStatusProcessing, progress); err != nil {
			log.Printf("Job %s: progress update failed: %v", job.JobID, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("clip upload: %w", err)
	}

	clips := make([]services.StitchClip, len(done))
	for i, r := range done {
		clips[i] = services.StitchClip{URL: urls[i], DurationSec: durations[r.index]}
	}
	return clips, nil
}

// generateAIClips runs the vendor flow: one generation per photo, then the
// polling aggregator drives the batch to terminal states. Mixed results
// proceed with whatever completed.
func (w *Worker) generateAIClips(ctx context.Context, job *queue.Job, durations []float64) ([]services.StitchClip, error) {
	reqs := make([]services.ClipRequest, len(job.Images))
	for i, img := range job.Images {
		reqs[i] = services.ClipRequest{
			ImageURL:    img.URL,
			Angle:       motion.Resolve(img.CameraAngle, i),
			DurationSec: durations[i],
			Orientation: job.Orientation,
			Address:     job.Property.Address,
		}
	}

	clips, err := dispatchClips(ctx, w.generator, reqs)
	if err != nil {
		return nil, fmt.Errorf("clip dispatch: %w", err)
	}

	clips, err = pollClips(ctx, w.generator, clips, w.poll, func(completed, total int) {
		progress := models.GenerationProgress(completed, total)
		if err := w.db.UpdateJobProgress(ctx, job.JobID, models.VideoJobStatusProcessing, progress); err != nil {
			log.Printf("Job %s: progress update failed: %v", job.JobID, err)
		}
	})
	if err != nil {
		return nil, err
	}

	var out []services.StitchClip
	for i := range clips {
		if clips[i].Status == models.ClipStatusCompleted {
			out = append(out, services.StitchClip{
				URL:         clips[i].ClipURL,
				DurationSec: durations[clips[i].Index],
			})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no clips completed")
	}
	return out, nil
}

// clipDurations resolves each image's duration: 0 means the default, and
// out-of-range values clamp to the allowed band.
func clipDurations(images []models.ImageSpec) []float64 {
	durations := make([]float64, len(images))
	for i, img := range images {
		d := img.DurationSec
		if d == 0 {
			d = models.DefaultClipDurationSec
		}
		if d < models.MinClipDurationSec {
			d = models.MinClipDurationSec
		}
		if d > models.MaxClipDurationSec {
			d = models.MaxClipDurationSec
		}
		durations[i] = d
	}
	return durations
}

// slideshowTotal sums per-clip durations minus the crossfade overlaps.
func slideshowTotal(durations []float64) float64 {
	if len(durations) == 0 {
		return 0
	}
	total := 0.0
	for _, d := range durations {
		total += d
	}
	return total - float64(len(durations)-1)*models.CrossfadeSec
}

// fetchBytes downloads a public asset.
func fetchBytes(ctx context.Context, url string) ([]byte, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
