package service

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/observability"
)

// maxStageHops bounds how many stages a single poll may move through.
const maxStageHops = 8

// Advance is the only thing that moves a job forward. It polls the pending
// sub-jobs of the current stage, records their outcomes, and once the stage
// has nothing pending performs the next stage's submissions before returning.
// Concurrent calls are safe: outcomes merge element by element and only the
// holder of the advance lock performs a transition.
func (s *VideoService) Advance(ctx context.Context, userID, jobID string) (*model.VideoStatusResponse, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.advance", attribute.String("job.id", jobID))
	defer span.End()

	job, err := s.load(ctx, userID, jobID)
	if err != nil {
		return nil, observability.RecordError(span, err)
	}
	startRevision := job.Revision

	for hop := 0; hop < maxStageHops && !job.Stage.IsTerminal(); hop++ {
		next, err := s.step(ctx, job)
		if err != nil {
			return nil, observability.RecordError(span, err)
		}
		moved := next.Stage != job.Stage
		job = next
		if !moved {
			break
		}
	}

	status := BuildStatus(job)
	span.SetAttributes(
		attribute.String("job.stage", string(job.Stage)),
		attribute.Int("job.progress", status.OverallProgressPercent),
	)
	if job.Revision != startRevision {
		s.publish(status)
	}
	return status, nil
}

func (s *VideoService) step(ctx context.Context, job *model.VideoJob) (*model.VideoJob, error) {
	job, err := s.pollStage(ctx, job)
	if err != nil {
		return nil, err
	}
	if job.Stage.IsTerminal() || !stageResolved(job) {
		return job, nil
	}
	return s.transition(ctx, job)
}

// stageResolved reports whether the current stage has no pending work.
func stageResolved(job *model.VideoJob) bool {
	for _, sj := range job.SubJobsFor(job.Stage) {
		if sj.IsPending() {
			return false
		}
	}
	if job.Stage == model.StageVideos && (job.Music == nil || job.Music.State == model.SubJobPending) {
		return false
	}
	return true
}

type pollOutcome struct {
	index  int
	url    string
	reason string
	failed bool
}

// pollStage polls every pending element of the current stage and merges the
// terminal outcomes into the stored record. Elements that are already resolved
// in the store are left as they are.
func (s *VideoService) pollStage(ctx context.Context, job *model.VideoJob) (*model.VideoJob, error) {
	stage := job.Stage
	var pending []model.SubJob
	for _, sj := range job.SubJobsFor(stage) {
		if sj.IsPending() && sj.Handle != nil {
			pending = append(pending, *sj)
		}
	}
	if len(pending) == 0 {
		return job, nil
	}

	outcomes := s.pollAll(ctx, pending)
	if len(outcomes) == 0 {
		return job, nil
	}

	updated, err := s.store.Update(ctx, job.ID, func(fresh *model.VideoJob) (bool, error) {
		if fresh.Stage != stage {
			return false, nil
		}
		changed := false
		for _, sj := range fresh.SubJobsFor(stage) {
			o, ok := outcomes[sj.Index]
			if !ok {
				continue
			}
			if o.failed {
				changed = sj.Fail(o.reason) || changed
			} else {
				changed = sj.Complete(o.url) || changed
			}
		}
		return changed, nil
	})
	if err != nil {
		return nil, persistenceErr(err)
	}
	return updated, nil
}

// pollAll fans out polls and returns terminal outcomes keyed by element index.
// Transport errors leave the element pending for the next poll.
func (s *VideoService) pollAll(ctx context.Context, pending []model.SubJob) map[int]pollOutcome {
	ctx, span := observability.StartSpan(ctx, "pipeline.poll", attribute.Int("count", len(pending)))
	defer span.End()

	results := make([]*pollOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(s.opts.PollConcurrency)
	for i, sj := range pending {
		i, sj := i, sj
		g.Go(func() error {
			results[i] = s.pollOne(ctx, sj)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make(map[int]pollOutcome, len(results))
	for _, o := range results {
		if o != nil {
			outcomes[o.index] = *o
		}
	}
	return outcomes
}

func (s *VideoService) pollOne(ctx context.Context, sj model.SubJob) *pollOutcome {
	res, err := s.gen.Poll(ctx, *sj.Handle)
	if err != nil {
		log.Printf("[Pipeline] poll %s/%s failed, keeping pending: %v", sj.Handle.Capability, sj.Handle.RequestID, err)
		return nil
	}

	switch res.Status {
	case client.PollFailed:
		return &pollOutcome{index: sj.Index, failed: true, reason: res.Reason}
	case client.PollCompleted:
		url, err := s.gen.FetchResult(ctx, *sj.Handle, res.ResultRef)
		if err != nil {
			log.Printf("[Pipeline] fetch %s/%s failed, keeping pending: %v", sj.Handle.Capability, sj.Handle.RequestID, err)
			return nil
		}
		return &pollOutcome{index: sj.Index, url: url}
	default:
		return nil
	}
}

// stageChange is the outcome of preparing a transition: either a mutation to
// commit or a reason to fail the job.
type stageChange struct {
	apply      func(job *model.VideoJob)
	failReason string
}

func failWith(format string, args ...interface{}) stageChange {
	return stageChange{failReason: fmt.Sprintf(format, args...)}
}

// transition moves a resolved stage forward. Submissions happen outside the
// store transaction while holding the advance lock; the result is committed
// only if the job is still in the stage it was prepared from.
func (s *VideoService) transition(ctx context.Context, job *model.VideoJob) (*model.VideoJob, error) {
	from := job.Stage
	ctx, span := observability.StartSpan(ctx, "pipeline.transition",
		attribute.String("job.id", job.ID),
		attribute.String("stage.from", string(from)),
	)
	defer span.End()

	release, ok, err := s.store.AcquireAdvanceLock(ctx, job.ID, s.opts.LockTTL)
	if err != nil {
		return nil, observability.RecordError(span, persistenceErr(err))
	}
	if !ok {
		// another poll is performing this transition
		return job, nil
	}
	defer release()

	fresh, err := s.store.Get(ctx, job.ID)
	if err != nil {
		return nil, observability.RecordError(span, persistenceErr(err))
	}
	if fresh.Stage != from || !stageResolved(fresh) {
		return fresh, nil
	}

	var change stageChange
	switch from {
	case model.StageImages:
		change = s.enterVideos(ctx, fresh)
	case model.StageVideos:
		change = s.enterMontage(ctx, fresh)
	case model.StageMontage:
		change = s.finishMontage(ctx, fresh)
	case model.StageMergeAudio:
		change = s.finishMerge(ctx, fresh)
	default:
		return fresh, nil
	}

	if change.failReason != "" {
		log.Printf("[Pipeline] job %s failed in %s: %s", fresh.ID, from, change.failReason)
		updated, err := s.fail(ctx, fresh, change.failReason)
		return updated, observability.RecordError(span, err)
	}

	updated, err := s.store.Update(ctx, fresh.ID, func(cur *model.VideoJob) (bool, error) {
		if cur.Stage != from {
			return false, nil
		}
		change.apply(cur)
		return true, nil
	})
	if err != nil {
		return nil, observability.RecordError(span, persistenceErr(err))
	}

	span.SetAttributes(attribute.String("stage.to", string(updated.Stage)))
	log.Printf("[Pipeline] job %s: %s → %s", updated.ID, from, updated.Stage)

	if updated.Stage == model.StageCompleted && s.archiver != nil {
		if err := s.archiver.ScheduleArchive(ctx, updated.ID); err != nil {
			log.Printf("[Pipeline] archive of job %s not scheduled: %v", updated.ID, err)
		}
	}
	return updated, nil
}

// enterVideos writes motion prompts for the completed stills, starts one clip
// per still and resolves the music selection.
func (s *VideoService) enterVideos(ctx context.Context, job *model.VideoJob) stageChange {
	images := model.CompletedResults(job.ImageJobs)
	if len(images) < s.opts.MinViableSuccess {
		return failWith("Only %d of %d scene images could be generated, at least %d are needed",
			len(images), len(job.ImageJobs), s.opts.MinViableSuccess)
	}

	prompts := make([]model.MotionPrompt, len(images))
	var g errgroup.Group
	g.SetLimit(s.opts.PollConcurrency)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			scene, _ := job.SceneByIndex(img.Index)
			prompts[i] = model.MotionPrompt{
				Index: img.Index,
				Prompt: s.motion.Synthesize(ctx, MotionRequest{
					ImageURL:      *img.ResultURL,
					ScenePrompt:   scene.Prompt,
					SubjectAnchor: job.SubjectAnchor,
					Role:          scene.Role,
					ClipSeconds:   job.Tier.ClipDurationSeconds,
				}),
			}
			return nil
		})
	}
	_ = g.Wait()

	subs := make([]submission, len(images))
	for i, img := range images {
		subs[i] = submission{index: img.Index, payload: &client.GenerationPayload{
			Prompt:          prompts[i].Prompt,
			ImageURL:        *img.ResultURL,
			DurationSeconds: job.Tier.ClipDurationSeconds,
			AspectRatio:     s.opts.AspectRatio,
		}}
	}
	clips := s.fanOut(ctx, model.CapabilityImageToVideo, subs)
	if viable := countViable(clips); viable < s.opts.MinViableSuccess {
		return failWith("Only %d of %d scene animations could be started, at least %d are needed",
			viable, len(clips), s.opts.MinViableSuccess)
	}

	music := s.music.Select(job.ID, job.MusicMood)

	return stageChange{apply: func(j *model.VideoJob) {
		j.MotionPrompts = prompts
		j.ClipJobs = clips
		j.Music = music
		j.Stage = model.StageVideos
	}}
}

// enterMontage submits the completed clips, in scene order, for composition.
func (s *VideoService) enterMontage(ctx context.Context, job *model.VideoJob) stageChange {
	clips := model.CompletedResults(job.ClipJobs)
	if len(clips) < s.opts.MinViableSuccess {
		return failWith("Only %d of %d scene animations finished, at least %d are needed",
			len(clips), len(job.ClipJobs), s.opts.MinViableSuccess)
	}

	urls := make([]string, len(clips))
	for i, c := range clips {
		urls[i] = *c.ResultURL
	}

	handle, err := s.gen.Submit(ctx, model.CapabilityComposition, &client.GenerationPayload{
		ClipURLs:        urls,
		DurationSeconds: job.Tier.ClipDurationSeconds * len(urls),
		AspectRatio:     s.opts.AspectRatio,
	})
	if err != nil {
		return failWith("The video montage could not be started: %v", err)
	}

	composition := model.NewPendingSubJob(0, *handle)
	return stageChange{apply: func(j *model.VideoJob) {
		j.Composition = &composition
		j.Stage = model.StageMontage
	}}
}

// finishMontage either completes the job or starts the audio merge.
func (s *VideoService) finishMontage(ctx context.Context, job *model.VideoJob) stageChange {
	comp := job.Composition
	if comp == nil || comp.State != model.SubJobCompleted || comp.ResultURL == nil {
		reason := "unknown error"
		if comp != nil && comp.Error != "" {
			reason = comp.Error
		}
		return failWith("The video montage failed: %s", reason)
	}
	silent := *comp.ResultURL

	if !job.Music.HasTrack() {
		return s.complete(silent, false)
	}

	handle, err := s.gen.Submit(ctx, model.CapabilityAudioMerge, &client.GenerationPayload{
		VideoURL: silent,
		AudioURL: job.Music.TrackURL,
	})
	if err != nil {
		log.Printf("[Pipeline] job %s: music merge could not start, delivering silent video: %v", job.ID, err)
		return s.complete(silent, true)
	}

	merge := model.NewPendingSubJob(0, *handle)
	return stageChange{apply: func(j *model.VideoJob) {
		j.Merge = &merge
		j.Stage = model.StageMergeAudio
	}}
}

// finishMerge completes the job. A failed merge degrades to the silent
// composition instead of failing a video the merchant already paid for.
func (s *VideoService) finishMerge(ctx context.Context, job *model.VideoJob) stageChange {
	if m := job.Merge; m != nil && m.State == model.SubJobCompleted && m.ResultURL != nil {
		return s.complete(*m.ResultURL, false)
	}
	if c := job.Composition; c != nil && c.ResultURL != nil {
		log.Printf("[Pipeline] job %s: music merge failed, delivering silent video", job.ID)
		return s.complete(*c.ResultURL, true)
	}
	return failWith("The final video could not be produced")
}

func (s *VideoService) complete(url string, musicDropped bool) stageChange {
	completedAt := s.now().UTC()
	return stageChange{apply: func(j *model.VideoJob) {
		j.FinalURL = &url
		j.MusicDropped = musicDropped
		j.CompletedAt = &completedAt
		j.Stage = model.StageCompleted
	}}
}

// fail refunds the job and then flips it to error. If the refund cannot be
// recorded the job keeps its stage, so a job in error always has its credits back.
func (s *VideoService) fail(ctx context.Context, job *model.VideoJob, reason string) (*model.VideoJob, error) {
	ctx, span := observability.StartSpan(ctx, "ledger.refund", attribute.String("job.id", job.ID))
	_, _, err := s.ledger.Refund(ctx, job.UserID, job.CreditsCharged, job.ID, "Refund: "+reason)
	span.End()
	if err != nil {
		log.Printf("[Pipeline] refund for job %s failed, leaving stage %s: %v", job.ID, job.Stage, err)
		return nil, persistenceErr(err)
	}

	message := fmt.Sprintf("%s. Your %d credits have been refunded.", reason, job.CreditsCharged)
	updated, err := s.store.Update(ctx, job.ID, func(cur *model.VideoJob) (bool, error) {
		if cur.Stage.IsTerminal() {
			return false, nil
		}
		cur.FailedStage = cur.Stage
		cur.Stage = model.StageError
		cur.ErrorReason = &message
		cur.Refunded = true
		return true, nil
	})
	if err != nil {
		return nil, persistenceErr(err)
	}
	return updated, nil
}
