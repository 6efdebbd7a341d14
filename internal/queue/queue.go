package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/models"
)

const (
	QueueGenerateVideo = "queue:generate_video"
)

type Queue struct {
	client *redis.Client
}

// Job is the envelope pushed through Redis. It carries everything the worker
// needs to run the pipeline without re-reading the request: the image specs,
// the property payload, and the flow selector.
type Job struct {
	ID          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	JobID       uuid.UUID              `json:"job_id"` // video_jobs row this run updates
	Flow        models.PipelineFlow    `json:"flow"`
	Orientation models.Orientation     `json:"orientation"`
	Images      []models.ImageSpec     `json:"images"`
	Property    models.PropertyDetails `json:"property"`
	CreatedAt   time.Time              `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueGenerateVideo enqueues one end-to-end video generation run.
func (q *Queue) EnqueueGenerateVideo(ctx context.Context, jobID uuid.UUID, flow models.PipelineFlow, orientation models.Orientation, images []models.ImageSpec, property models.PropertyDetails) error {
	job := &Job{
		ID:          uuid.New(),
		Type:        "generate_video",
		JobID:       jobID,
		Flow:        flow,
		Orientation: orientation,
		Images:      images,
		Property:    property,
	}
	return q.Enqueue(ctx, QueueGenerateVideo, job)
}
