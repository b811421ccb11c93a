package model

import (
	"sort"
	"time"
)

// Handle identifies a request accepted by a generation capability.
type Handle struct {
	Capability Capability `json:"capability"`
	RequestID  string     `json:"requestId"`
}

// SubJob is one indexed unit of external work. The same record is used for
// images, clips, the composition and the audio merge.
type SubJob struct {
	Index     int         `json:"index"`
	Handle    *Handle     `json:"handle"`
	ResultURL *string     `json:"resultUrl"`
	State     SubJobState `json:"state"`
	Error     string      `json:"error,omitempty"`
}

func NewPendingSubJob(index int, handle Handle) SubJob {
	return SubJob{Index: index, Handle: &handle, State: SubJobPending}
}

// NewFailedSubJob records a submission that never reached the provider.
func NewFailedSubJob(index int, reason string) SubJob {
	return SubJob{Index: index, State: SubJobError, Error: reason}
}

func (s *SubJob) IsPending() bool {
	return s.State == SubJobPending
}

// Complete moves a pending element to completed. Resolved elements are left untouched.
func (s *SubJob) Complete(url string) bool {
	if s.State != SubJobPending {
		return false
	}
	s.State = SubJobCompleted
	s.ResultURL = &url
	return true
}

// Fail moves a pending element to error. Resolved elements are left untouched.
func (s *SubJob) Fail(reason string) bool {
	if s.State != SubJobPending {
		return false
	}
	s.State = SubJobError
	s.Error = reason
	return true
}

type Scene struct {
	Index  int           `json:"index"`
	Prompt string        `json:"prompt"`
	Role   NarrativeRole `json:"narrativeRole"`
}

type MotionPrompt struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
}

// MusicSelection is resolved synchronously; an empty TrackURL means the video stays silent.
type MusicSelection struct {
	Mood     string      `json:"mood"`
	TrackURL string      `json:"trackUrl,omitempty"`
	State    SubJobState `json:"state"`
}

func (m *MusicSelection) HasTrack() bool {
	return m != nil && m.State == SubJobCompleted && m.TrackURL != ""
}

// VideoJob is the durable record of one pipeline run.
type VideoJob struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Idea           string          `json:"idea"`
	ToneHint       string          `json:"toneHint,omitempty"`
	MusicMood      string          `json:"musicMood,omitempty"`
	Constraints    string          `json:"constraints,omitempty"`
	Stage          Stage           `json:"stage"`
	Tier           Tier            `json:"tier"`
	SubjectAnchor  string          `json:"subjectAnchor"`
	Scenes         []Scene         `json:"scenes"`
	ImageJobs      []SubJob        `json:"imageSubJobs"`
	MotionPrompts  []MotionPrompt  `json:"motionPrompts,omitempty"`
	ClipJobs       []SubJob        `json:"clipSubJobs,omitempty"`
	Music          *MusicSelection `json:"musicSelection,omitempty"`
	Composition    *SubJob         `json:"compositionSubJob,omitempty"`
	Merge          *SubJob         `json:"mergeSubJob,omitempty"`
	FinalURL       *string         `json:"finalArtifactUrl,omitempty"`
	MusicDropped   bool            `json:"musicDropped,omitempty"`
	ErrorReason    *string         `json:"errorReason,omitempty"`
	FailedStage    Stage           `json:"failedStage,omitempty"`
	CreditsCharged int64           `json:"creditsCharged"`
	Refunded       bool            `json:"creditsRefunded"`
	ArchiveKey     string          `json:"archiveKey,omitempty"`
	Revision       int64           `json:"revision"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// SubJobCounts tallies a sub-job list by state.
type SubJobCounts struct {
	Pending   int
	Completed int
	Failed    int
}

func (c SubJobCounts) Total() int {
	return c.Pending + c.Completed + c.Failed
}

func (c SubJobCounts) Resolved() int {
	return c.Completed + c.Failed
}

func CountSubJobs(list []SubJob) SubJobCounts {
	var c SubJobCounts
	for i := range list {
		switch list[i].State {
		case SubJobPending:
			c.Pending++
		case SubJobCompleted:
			c.Completed++
		default:
			c.Failed++
		}
	}
	return c
}

// CompletedResults returns the completed elements ordered by index.
func CompletedResults(list []SubJob) []SubJob {
	out := make([]SubJob, 0, len(list))
	for _, s := range list {
		if s.State == SubJobCompleted && s.ResultURL != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// SubJobsFor returns pointers to the sub-jobs that belong to stage, in stored order.
func (j *VideoJob) SubJobsFor(stage Stage) []*SubJob {
	var out []*SubJob
	switch stage {
	case StageImages:
		for i := range j.ImageJobs {
			out = append(out, &j.ImageJobs[i])
		}
	case StageVideos:
		for i := range j.ClipJobs {
			out = append(out, &j.ClipJobs[i])
		}
	case StageMontage:
		if j.Composition != nil {
			out = append(out, j.Composition)
		}
	case StageMergeAudio:
		if j.Merge != nil {
			out = append(out, j.Merge)
		}
	}
	return out
}

// SceneByIndex returns the scene with the given index.
func (j *VideoJob) SceneByIndex(index int) (Scene, bool) {
	for _, s := range j.Scenes {
		if s.Index == index {
			return s, true
		}
	}
	return Scene{}, false
}
