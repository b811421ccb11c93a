package service

import (
	"strings"
	"testing"

	"github.com/reelforge/api/internal/model"
)

func pending(n int) []model.SubJob {
	out := make([]model.SubJob, n)
	for i := range out {
		out[i] = model.NewPendingSubJob(i, model.Handle{RequestID: "r"})
	}
	return out
}

func TestStageWeightsSumTo100(t *testing.T) {
	total := 0
	for _, w := range stageWeights {
		total += w
	}
	if total != 100 {
		t.Fatalf("stage weights sum to %d", total)
	}
}

func TestProgress(t *testing.T) {
	images := pending(4)
	images[0].Complete("a")
	images[1].Fail("x")

	clips := pending(2)
	clips[0].Complete("c")

	final := "https://cdn.test/final.mp4"

	tests := []struct {
		name string
		job  *model.VideoJob
		want int
	}{
		{"images half resolved", &model.VideoJob{Stage: model.StageImages, ImageJobs: images}, 5 + 10},
		{"videos without music", &model.VideoJob{Stage: model.StageVideos, ClipJobs: clips}, 30 + 20},
		{"videos with music resolved", &model.VideoJob{
			Stage:    model.StageVideos,
			ClipJobs: clips,
			Music:    &model.MusicSelection{Mood: "calm", State: model.SubJobCompleted},
		}, 30 + 20 + 5},
		{"montage pending", &model.VideoJob{Stage: model.StageMontage}, 75},
		{"completed", &model.VideoJob{Stage: model.StageCompleted, FinalURL: &final}, 100},
		{"error keeps failed stage", &model.VideoJob{Stage: model.StageError, FailedStage: model.StageMontage}, 75},
		{"error before any stage", &model.VideoJob{Stage: model.StageError}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.job); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressNeverReaches100BeforeCompletion(t *testing.T) {
	merge := model.NewPendingSubJob(0, model.Handle{RequestID: "m"})
	merge.Complete("done")
	job := &model.VideoJob{Stage: model.StageMergeAudio, Merge: &merge}
	if got := Progress(job); got != 99 {
		t.Fatalf("expected 99, got %d", got)
	}
}

func TestBuildStatus(t *testing.T) {
	images := pending(3)
	images[2].Complete("a")
	status := BuildStatus(&model.VideoJob{ID: "job-1", Stage: model.StageImages, ImageJobs: images})
	if status.CompletedCount != 1 || status.TotalCount != 3 {
		t.Errorf("unexpected counts %d/%d", status.CompletedCount, status.TotalCount)
	}
	if status.StepLabel != "Generating scene images (1/3)" {
		t.Errorf("unexpected label %q", status.StepLabel)
	}
	if status.FinalArtifactURL != nil || status.ErrorReason != nil {
		t.Error("running job must not expose final url or error")
	}

	reason := "Montage failed"
	failed := BuildStatus(&model.VideoJob{
		ID:             "job-2",
		Stage:          model.StageError,
		FailedStage:    model.StageImages,
		ImageJobs:      images,
		ErrorReason:    &reason,
		CreditsCharged: 35,
		Refunded:       true,
	})
	if !failed.CreditsRefunded || failed.ErrorReason == nil || *failed.ErrorReason != reason {
		t.Errorf("unexpected error snapshot %+v", failed)
	}
	if !strings.Contains(failed.StepLabel, "35 credits") {
		t.Errorf("unexpected label %q", failed.StepLabel)
	}
}
