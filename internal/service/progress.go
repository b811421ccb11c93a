package service

import (
	"fmt"

	"github.com/reelforge/api/internal/model"
)

// stageWeights are the share of overall progress each stage contributes.
var stageWeights = map[model.Stage]int{
	model.StageScenes:       5,
	model.StageImages:       20,
	model.StageVideoPrompts: 5,
	model.StageVideos:       40,
	model.StageMusic:        5,
	model.StageMontage:      15,
	model.StageMergeAudio:   10,
}

// Progress returns overall completion in [0, 100]. Failed jobs report the
// progress they had reached when they stopped.
func Progress(job *model.VideoJob) int {
	stage := job.Stage
	if stage == model.StageCompleted {
		return 100
	}
	if stage == model.StageError {
		stage = job.FailedStage
		if stage == "" {
			return 0
		}
	}

	base := 0
	for _, s := range model.StageOrder {
		if s == stage {
			break
		}
		base += stageWeights[s]
	}

	partial := 0
	counts := model.CountSubJobs(derefSubJobs(job.SubJobsFor(stage)))
	if total := counts.Total(); total > 0 {
		partial = stageWeights[stage] * counts.Resolved() / total
	}
	// music is resolved while clips render, so it is credited inside videos
	if stage == model.StageVideos && job.Music != nil && job.Music.State != model.SubJobPending {
		partial += stageWeights[model.StageMusic]
	}

	p := base + partial
	if p > 99 {
		p = 99
	}
	return p
}

// BuildStatus renders the poll snapshot for a job.
func BuildStatus(job *model.VideoJob) *model.VideoStatusResponse {
	status := &model.VideoStatusResponse{
		JobID:                  job.ID,
		Stage:                  job.Stage,
		OverallProgressPercent: Progress(job),
		MusicDropped:           job.MusicDropped,
	}

	countStage := job.Stage
	if job.Stage == model.StageError {
		countStage = job.FailedStage
	}
	counts := model.CountSubJobs(derefSubJobs(job.SubJobsFor(countStage)))
	status.CompletedCount = counts.Completed
	status.TotalCount = counts.Total()

	switch job.Stage {
	case model.StageCompleted:
		status.FinalArtifactURL = job.FinalURL
		status.CompletedCount, status.TotalCount = 1, 1
	case model.StageError:
		status.ErrorReason = job.ErrorReason
		status.CreditsRefunded = job.Refunded
	}
	status.StepLabel = stepLabel(job, counts)
	return status
}

func stepLabel(job *model.VideoJob, counts model.SubJobCounts) string {
	switch job.Stage {
	case model.StageScenes:
		return "Writing your script"
	case model.StageImages:
		return fmt.Sprintf("Generating scene images (%d/%d)", counts.Resolved(), counts.Total())
	case model.StageVideoPrompts:
		return "Directing camera motion"
	case model.StageVideos:
		return fmt.Sprintf("Animating scenes (%d/%d)", counts.Resolved(), counts.Total())
	case model.StageMusic:
		return "Choosing background music"
	case model.StageMontage:
		return "Assembling your video"
	case model.StageMergeAudio:
		return "Adding background music"
	case model.StageCompleted:
		if job.MusicDropped {
			return "Your video is ready (delivered without background music)"
		}
		return "Your video is ready"
	case model.StageError:
		if job.Refunded {
			return fmt.Sprintf("Video generation stopped. %d credits were returned to your balance", job.CreditsCharged)
		}
		return "Video generation stopped"
	default:
		return string(job.Stage)
	}
}

func derefSubJobs(list []*model.SubJob) []model.SubJob {
	out := make([]model.SubJob, len(list))
	for i, s := range list {
		out[i] = *s
	}
	return out
}
