package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/db"
	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/queue"
	"github.com/reelhaus/listingreel/internal/services"
	"github.com/reelhaus/listingreel/internal/storage"
)

const (
	dequeueTimeout = 5 * time.Second
	reaperInterval = 5 * time.Minute
)

// jobStore is the slice of the database the worker writes through.
type jobStore interface {
	GetVideoJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, status models.VideoJobStatus, progress int) error
	CompleteVideoJob(ctx context.Context, id uuid.UUID, version int, videoURL string) (bool, error)
	FailVideoJob(ctx context.Context, id uuid.UUID, version int, errorCode, errorMessage string) (bool, error)
	SweepStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

var _ jobStore = (*db.DB)(nil)

// Worker consumes generation jobs from the queue and runs the pipeline:
// script, voiceover, clips, upload, stitch, finalize.
type Worker struct {
	db        jobStore
	queue     *queue.Queue
	storage   *storage.Storage
	generator services.ClipGenerator // ai flow vendor (Luma, Runway, or Veo)
	tts       services.TTSService
	script    *services.ScriptService // optional: nil skips narration and voiceover
	stitcher  stitchRenderer
	ffmpeg    *services.FFmpegService
	tracks    *services.TrackTable

	poll        pollConfig
	staleJobAge time.Duration
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	generator services.ClipGenerator,
	ttsSvc services.TTSService,
	scriptSvc *services.ScriptService,
	stitcher stitchRenderer,
	ffmpegSvc *services.FFmpegService,
	tracks *services.TrackTable,
	staleJobAge time.Duration,
) *Worker {
	return &Worker{
		db:          database,
		queue:       q,
		storage:     stor,
		generator:   generator,
		tts:         ttsSvc,
		script:      scriptSvc,
		stitcher:    stitcher,
		ffmpeg:      ffmpegSvc,
		tracks:      tracks,
		poll:        defaultPollConfig(),
		staleJobAge: staleJobAge,
	}
}

// Start begins consuming jobs. concurrency bounds simultaneous pipelines;
// the stale-job reaper runs alongside regardless.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateVideo)
	}
	go w.runReaper(ctx)

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, dequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (video job: %s, flow: %s)", job.ID, job.JobID, job.Flow)
			w.handleGenerateVideo(ctx, job)
		}
	}
}

// handleGenerateVideo runs the pipeline and finalizes the job record
// exactly once. The version read up front guards the terminal write: if
// another writer (a second worker, the reaper) finalized the job meanwhile,
// this write is a no-op instead of an interleaved overwrite.
func (w *Worker) handleGenerateVideo(ctx context.Context, job *queue.Job) {
	record, err := w.db.GetVideoJob(ctx, job.JobID)
	if err != nil {
		log.Printf("Job %s: failed to load record: %v", job.JobID, err)
		return
	}
	if record.Status.IsTerminal() {
		log.Printf("Job %s already finalized (%s), skipping", job.JobID, record.Status)
		return
	}

	videoURL, err := w.runPipeline(ctx, job)
	if err != nil {
		code, userMsg := classifyError(err)
		log.Printf("Job %s failed (code=%s): %v", job.JobID, code, err)

		wrote, dbErr := w.db.FailVideoJob(ctx, job.JobID, record.Version, code, userMsg)
		if dbErr != nil {
			log.Printf("Job %s: failed to record failure: %v", job.JobID, dbErr)
		} else if !wrote {
			log.Printf("Job %s: terminal state already written elsewhere, failure dropped", job.JobID)
		}
		return
	}

	wrote, dbErr := w.db.CompleteVideoJob(ctx, job.JobID, record.Version, videoURL)
	if dbErr != nil {
		log.Printf("Job %s: failed to record completion: %v", job.JobID, dbErr)
		return
	}
	if !wrote {
		log.Printf("Job %s: terminal state already written elsewhere, completion dropped", job.JobID)
		return
	}
	log.Printf("Job %s completed: %s", job.JobID, videoURL)
}

// runReaper periodically force-fails jobs stuck in a non-terminal state
// longer than the configured age: crashed workers and abandoned sessions
// leave records in processing forever otherwise.
func (w *Worker) runReaper(ctx context.Context) {
	if w.staleJobAge <= 0 {
		return
	}

	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.db.SweepStaleJobs(ctx, w.staleJobAge)
			if err != nil {
				log.Printf("[Reaper] Sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[Reaper] Force-failed %d stale jobs", n)
			}
		}
	}
}
