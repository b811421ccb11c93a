package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/ledger"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/observability"
	"github.com/reelforge/api/internal/store"
)

// ProgressNotifier receives every snapshot a poll produces
type ProgressNotifier interface {
	Publish(status *model.VideoStatusResponse)
}

// ArchiveScheduler copies finished videos into long-term storage
type ArchiveScheduler interface {
	ScheduleArchive(ctx context.Context, jobID string) error
}

// PipelineOptions tunes the orchestrator
type PipelineOptions struct {
	MinViableSuccess int
	AspectRatio      string
	LockTTL          time.Duration
	PollConcurrency  int
	StarterCredits   int64
	DownloadExpiry   time.Duration
}

// VideoServiceDeps groups the collaborators of VideoService
type VideoServiceDeps struct {
	Store      store.JobStore
	Ledger     ledger.Ledger
	Generation client.GenerationService
	Script     *ScriptService
	Motion     *MotionService
	Music      *MusicService
	Storage    client.StorageClient
	Notifier   ProgressNotifier
	Archiver   ArchiveScheduler
}

// VideoService accepts video jobs and drives them forward on every poll.
type VideoService struct {
	store    store.JobStore
	ledger   ledger.Ledger
	gen      client.GenerationService
	script   *ScriptService
	motion   *MotionService
	music    *MusicService
	storage  client.StorageClient
	notifier ProgressNotifier
	archiver ArchiveScheduler
	opts     PipelineOptions
	now      func() time.Time
	newID    func() string
}

func NewVideoService(deps VideoServiceDeps, opts PipelineOptions) *VideoService {
	if opts.MinViableSuccess < 1 {
		opts.MinViableSuccess = 2
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = "9:16"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	if opts.PollConcurrency < 1 {
		opts.PollConcurrency = 8
	}
	if opts.DownloadExpiry <= 0 {
		opts.DownloadExpiry = time.Hour
	}
	return &VideoService{
		store:    deps.Store,
		ledger:   deps.Ledger,
		gen:      deps.Generation,
		script:   deps.Script,
		motion:   deps.Motion,
		music:    deps.Music,
		storage:  deps.Storage,
		notifier: deps.Notifier,
		archiver: deps.Archiver,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit charges the tier price, writes the script and starts one still image
// per scene. Any failure before the job is stored returns the credits.
func (s *VideoService) Submit(ctx context.Context, userID string, req *model.VideoSubmitRequest) (*model.VideoSubmitResponse, error) {
	ctx, span := observability.StartSpan(ctx, "video.submit",
		attribute.String("user.id", userID),
		attribute.String("video.tier", string(req.Tier)),
	)
	defer span.End()

	tier, ok := model.LookupTier(req.Tier)
	if !ok {
		return nil, observability.RecordError(span, ErrUnknownTier)
	}

	if err := s.ensureStarterCredits(ctx, userID); err != nil {
		return nil, observability.RecordError(span, err)
	}

	jobID := s.newID()
	span.SetAttributes(attribute.String("job.id", jobID))

	remaining, err := s.ledger.Charge(ctx, userID, tier.CreditCost, jobID,
		fmt.Sprintf("%s video, %d scenes", tier.ID, tier.SceneCount))
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return nil, observability.RecordError(span, ErrInsufficientCredits)
		}
		return nil, observability.RecordError(span, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	script, err := s.script.Synthesize(ctx, ScriptRequest{
		Idea:        req.Idea,
		SceneCount:  tier.SceneCount,
		ToneHint:    req.ToneHint,
		Constraints: req.Constraints,
	})
	if err != nil {
		log.Printf("[Pipeline] script for job %s failed: %v", jobID, err)
		if rerr := s.refundSubmission(ctx, userID, jobID, tier.CreditCost, "script generation failed"); rerr != nil {
			return nil, observability.RecordError(span, rerr)
		}
		return nil, observability.RecordError(span, fmt.Errorf("%w: %v", ErrScriptGeneration, err))
	}

	subs := make([]submission, len(script.Scenes))
	for i, scene := range script.Scenes {
		subs[i] = submission{index: scene.Index, payload: &client.GenerationPayload{
			Prompt:      scene.Prompt,
			AspectRatio: s.opts.AspectRatio,
		}}
	}
	images := s.fanOut(ctx, model.CapabilityStillImage, subs)

	if viable := countViable(images); viable < s.opts.MinViableSuccess {
		if rerr := s.refundSubmission(ctx, userID, jobID, tier.CreditCost, "image requests rejected"); rerr != nil {
			return nil, observability.RecordError(span, rerr)
		}
		return nil, observability.RecordError(span,
			fmt.Errorf("%w: %d of %d image requests accepted", ErrFanOut, viable, len(images)))
	}

	job := &model.VideoJob{
		ID:             jobID,
		UserID:         userID,
		Idea:           req.Idea,
		ToneHint:       req.ToneHint,
		MusicMood:      req.MusicMood,
		Constraints:    req.Constraints,
		Stage:          model.StageImages,
		Tier:           tier,
		SubjectAnchor:  script.SubjectAnchor,
		Scenes:         script.Scenes,
		ImageJobs:      images,
		CreditsCharged: tier.CreditCost,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		if rerr := s.refundSubmission(ctx, userID, jobID, tier.CreditCost, "job could not be saved"); rerr != nil {
			return nil, observability.RecordError(span, rerr)
		}
		return nil, observability.RecordError(span, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	log.Printf("[Pipeline] job %s accepted: %s tier, %d images started", jobID, tier.ID, countViable(images))
	s.publish(BuildStatus(job))

	return &model.VideoSubmitResponse{
		JobID:            jobID,
		Stage:            job.Stage,
		CreditsCharged:   tier.CreditCost,
		CreditsRemaining: remaining,
	}, nil
}

// Get returns the stored record without advancing it
func (s *VideoService) Get(ctx context.Context, userID, jobID string) (*model.VideoJob, error) {
	return s.load(ctx, userID, jobID)
}

// List returns the caller's jobs, newest first
func (s *VideoService) List(ctx context.Context, userID string, limit int) (*model.VideoListResponse, error) {
	jobs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	summaries := make([]model.VideoJobSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, model.VideoJobSummary{
			JobID:                  j.ID,
			Idea:                   j.Idea,
			Tier:                   j.Tier.ID,
			Stage:                  j.Stage,
			OverallProgressPercent: Progress(j),
			FinalArtifactURL:       j.FinalURL,
			CreditsCharged:         j.CreditsCharged,
			CreatedAt:              j.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &model.VideoListResponse{Jobs: summaries}, nil
}

// Cancel moves a running job to error and returns its credits. Sub-jobs
// already submitted are abandoned.
func (s *VideoService) Cancel(ctx context.Context, userID, jobID string) (*model.VideoStatusResponse, error) {
	ctx, span := observability.StartSpan(ctx, "video.cancel", attribute.String("job.id", jobID))
	defer span.End()

	job, err := s.load(ctx, userID, jobID)
	if err != nil {
		return nil, observability.RecordError(span, err)
	}
	if job.Stage.IsTerminal() {
		return nil, ErrJobFinished
	}

	release, err := s.waitForLock(ctx, jobID)
	if err != nil {
		return nil, observability.RecordError(span, err)
	}
	defer release()

	fresh, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, observability.RecordError(span, persistenceErr(err))
	}
	if fresh.Stage.IsTerminal() {
		return nil, ErrJobFinished
	}

	updated, err := s.fail(ctx, fresh, "Canceled by user")
	if err != nil {
		return nil, observability.RecordError(span, err)
	}

	status := BuildStatus(updated)
	s.publish(status)
	return status, nil
}

// Download returns a link to the finished video, presigned when archived.
func (s *VideoService) Download(ctx context.Context, userID, jobID string) (*model.VideoDownloadResponse, error) {
	job, err := s.load(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Stage != model.StageCompleted || job.FinalURL == nil {
		return nil, ErrJobNotCompleted
	}

	if job.ArchiveKey != "" && s.storage != nil {
		url, err := s.storage.GetSignedURL(ctx, job.ArchiveKey, s.opts.DownloadExpiry)
		if err == nil {
			return &model.VideoDownloadResponse{
				JobID:       job.ID,
				DownloadURL: url,
				Archived:    true,
				ExpiresIn:   int(s.opts.DownloadExpiry.Seconds()),
			}, nil
		}
		log.Printf("[Pipeline] presign failed for job %s, serving provider url: %v", job.ID, err)
	}

	return &model.VideoDownloadResponse{JobID: job.ID, DownloadURL: *job.FinalURL}, nil
}

// Balance returns the caller's credit balance
func (s *VideoService) Balance(ctx context.Context, userID string) (int64, error) {
	if err := s.ensureStarterCredits(ctx, userID); err != nil {
		return 0, err
	}
	bal, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return bal, nil
}

func (s *VideoService) ensureStarterCredits(ctx context.Context, userID string) error {
	if s.opts.StarterCredits <= 0 {
		return nil
	}
	if _, err := s.ledger.Grant(ctx, userID, s.opts.StarterCredits, "starter:"+userID, "Welcome credits"); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *VideoService) load(ctx context.Context, userID, jobID string) (*model.VideoJob, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, persistenceErr(err)
	}
	if job.UserID != userID {
		return nil, ErrForbidden
	}
	return job, nil
}

// refundSubmission returns credits for a job that was never stored. It ignores
// cancellation of the request context and retries a few times; a refund that
// still fails is returned as ErrPersistence since no job record exists to retry it.
func (s *VideoService) refundSubmission(ctx context.Context, userID, jobID string, amount int64, reason string) error {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= refundAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, refundTimeout)
		_, _, err = s.ledger.Refund(attemptCtx, userID, amount, jobID, "Refund: "+reason)
		cancel()
		if err == nil {
			return nil
		}
		log.Printf("[Pipeline] refund of %d credits for job %s failed (attempt %d/%d): %v",
			amount, jobID, attempt, refundAttempts, err)
		if attempt < refundAttempts {
			time.Sleep(time.Duration(attempt) * refundBackoff)
		}
	}
	log.Printf("[Pipeline] CRITICAL: refund of %d credits for job %s (user %s) not recorded: %v", amount, jobID, userID, err)
	return fmt.Errorf("%w: refund of %d credits pending: %v", ErrPersistence, amount, err)
}

const (
	refundAttempts = 3
	refundTimeout  = 5 * time.Second
	refundBackoff  = 50 * time.Millisecond
)

func (s *VideoService) waitForLock(ctx context.Context, jobID string) (func(), error) {
	const attempts = 10
	for i := 0; i < attempts; i++ {
		release, ok, err := s.store.AcquireAdvanceLock(ctx, jobID, s.opts.LockTTL)
		if err != nil {
			return nil, persistenceErr(err)
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, ErrJobBusy
}

func (s *VideoService) publish(status *model.VideoStatusResponse) {
	if s.notifier != nil {
		s.notifier.Publish(status)
	}
}

type submission struct {
	index   int
	payload *client.GenerationPayload
}

// fanOut submits all requests concurrently. Rejected submissions become error
// elements at their index; they never abort the batch.
func (s *VideoService) fanOut(ctx context.Context, capability model.Capability, subs []submission) []model.SubJob {
	ctx, span := observability.StartSpan(ctx, "pipeline.fan_out",
		attribute.String("capability", string(capability)),
		attribute.Int("count", len(subs)),
	)
	defer span.End()

	results := make([]model.SubJob, len(subs))
	var g errgroup.Group
	g.SetLimit(s.opts.PollConcurrency)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			handle, err := s.gen.Submit(ctx, capability, sub.payload)
			if err != nil {
				log.Printf("[Pipeline] %s submission %d rejected: %v", capability, sub.index, err)
				results[i] = model.NewFailedSubJob(sub.index, err.Error())
				return nil
			}
			results[i] = model.NewPendingSubJob(sub.index, *handle)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func countViable(list []model.SubJob) int {
	n := 0
	for _, s := range list {
		if s.State != model.SubJobError {
			n++
		}
	}
	return n
}

func persistenceErr(err error) error {
	if errors.Is(err, store.ErrJobNotFound) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
