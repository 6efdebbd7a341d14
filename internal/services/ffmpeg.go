package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/motion"
)

// ---------------------------------------------------------------------------
// FFmpegService
// Local clip renderer for the motion flow: turns one still photo into a
// camera-motion clip with no AI vendor involved. The movement math and
// filter expressions come from internal/motion.
// ---------------------------------------------------------------------------

type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) *FFmpegService {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}

	return &FFmpegService{
		tempDir: tempDir,
	}
}

// RenderMotionClip renders one still image into a camera-motion clip.
// clipIndex resolves auto angles deterministically so adjacent clips in a
// slideshow never repeat a movement. Returns the output file path; the
// caller owns cleanup.
func (s *FFmpegService) RenderMotionClip(ctx context.Context, imageData []byte, angle models.CameraAngle, orientation models.Orientation, durationSec float64, clipIndex int) (string, error) {
	if durationSec < models.MinClipDurationSec || durationSec > models.MaxClipDurationSec {
		durationSec = models.DefaultClipDurationSec
	}

	resolved := motion.Resolve(angle, clipIndex)

	imagePath := s.CreateTempFile(fmt.Sprintf("src-%s.jpg", uuid.New().String()[:8]))
	if err := os.WriteFile(imagePath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to write source image: %w", err)
	}
	defer os.Remove(imagePath)

	outputPath := s.CreateTempFile(fmt.Sprintf("clip-%s.mp4", uuid.New().String()[:8]))
	filter := motion.BuildFilter(resolved, orientation, durationSec)

	log.Printf("[FFmpeg] Rendering motion clip (angle=%s resolved=%s, duration=%.1fs)", angle, resolved, durationSec)

	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-filter_complex", filter,
		"-map", "[out]",
		"-t", fmt.Sprintf("%.2f", durationSec),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", motion.FPS),
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg render failed (angle=%s): %w", resolved, err)
	}

	return outputPath, nil
}

// GetAudioDuration returns the duration of an audio file in milliseconds.
// Used to reconcile the voiceover length with the slideshow timeline.
func (s *FFmpegService) GetAudioDuration(ctx context.Context, audioPath string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(string(output), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}

// CreateTempFile returns a path inside the service's temp directory.
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
