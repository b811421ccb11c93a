package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/hibiken/asynq"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/store"
)

// TaskTypeArchive copies a completed job's final artifact into object storage
const TaskTypeArchive = "video:archive"

// QueueArchive is the asynq queue archive tasks run on
const QueueArchive = "archive"

type archivePayload struct {
	JobID string `json:"jobId"`
}

// TaskEnqueuer is the part of asynq.Client the scheduler needs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ArchiveScheduler enqueues archive tasks for completed jobs
type ArchiveScheduler struct {
	client TaskEnqueuer
}

// NewArchiveScheduler creates a new archive scheduler
func NewArchiveScheduler(client TaskEnqueuer) *ArchiveScheduler {
	return &ArchiveScheduler{client: client}
}

// ScheduleArchive enqueues one archive task per job. Scheduling twice is a no-op.
func (s *ArchiveScheduler) ScheduleArchive(ctx context.Context, jobID string) error {
	data, err := json.Marshal(archivePayload{JobID: jobID})
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeArchive, data),
		asynq.Queue(QueueArchive),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour),
		asynq.TaskID("archive:"+jobID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue archive task: %w", err)
	}
	return nil
}

// ArchiveWorker stores final artifacts in R2 so downloads outlive provider URLs
type ArchiveWorker struct {
	store      store.JobStore
	storage    client.StorageClient
	httpClient *http.Client
	prefix     string
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(jobStore store.JobStore, storage client.StorageClient, prefix string) *ArchiveWorker {
	return &ArchiveWorker{
		store:      jobStore,
		storage:    storage,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		prefix:     prefix,
	}
}

// ProcessTask handles archive task processing. Failures here never touch the
// job's stage or credits.
func (w *ArchiveWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload archivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	if w.storage == nil {
		log.Printf("[Archive] storage not configured, skipping job %s", payload.JobID)
		return nil
	}

	job, err := w.store.Get(ctx, payload.JobID)
	if errors.Is(err, store.ErrJobNotFound) {
		return fmt.Errorf("job %s not found: %w", payload.JobID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	if job.Stage != model.StageCompleted || job.FinalURL == nil {
		return fmt.Errorf("job %s is not completed: %w", job.ID, asynq.SkipRetry)
	}
	if job.ArchiveKey != "" {
		return nil
	}

	key := ArchiveKey(w.prefix, job)
	// a retry after a failed key update finds the object already uploaded
	exists, err := w.storage.Exists(ctx, key)
	if err != nil {
		log.Printf("[Archive] job %s: existence check for %s failed, uploading: %v", job.ID, key, err)
	}
	if !exists {
		if err := w.copyArtifact(ctx, *job.FinalURL, key); err != nil {
			log.Printf("[Archive] job %s: %v", job.ID, err)
			return err
		}
	}

	_, err = w.store.Update(ctx, job.ID, func(j *model.VideoJob) (bool, error) {
		if j.ArchiveKey != "" {
			return false, nil
		}
		j.ArchiveKey = key
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record archive key: %w", err)
	}

	log.Printf("[Archive] job %s archived to %s", job.ID, key)
	return nil
}

func (w *ArchiveWorker) copyArtifact(ctx context.Context, srcURL, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	if _, err := w.storage.Upload(ctx, key, resp.Body, contentType); err != nil {
		return err
	}
	return nil
}

// ArchiveKey is the object key a job's final artifact is stored under
func ArchiveKey(prefix string, job *model.VideoJob) string {
	return path.Join(prefix, job.UserID, job.ID+".mp4")
}
