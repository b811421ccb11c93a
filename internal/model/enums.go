package model

// Pipeline stages
type Stage string

const (
	StageScenes       Stage = "scenes"
	StageImages       Stage = "images"
	StageVideoPrompts Stage = "video_prompts"
	StageVideos       Stage = "videos"
	StageMusic        Stage = "music"
	StageMontage      Stage = "montage"
	StageMergeAudio   Stage = "merge_audio"
	StageCompleted    Stage = "completed"
	StageError        Stage = "error"
)

// StageOrder lists the non-error stages in the only order a job may move through them.
var StageOrder = []Stage{
	StageScenes, StageImages, StageVideoPrompts, StageVideos,
	StageMusic, StageMontage, StageMergeAudio, StageCompleted,
}

func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageError
}

// Narrative roles
type NarrativeRole string

const (
	RoleHook       NarrativeRole = "hook"
	RoleRise       NarrativeRole = "rise"
	RoleClimax     NarrativeRole = "climax"
	RoleResolution NarrativeRole = "resolution"
)

// RoleForPosition assigns the narrative role of scene i in a script of n scenes.
// The second-to-last scene is only a climax when the script has five or more scenes.
func RoleForPosition(i, n int) NarrativeRole {
	switch {
	case i == 0:
		return RoleHook
	case i == n-1:
		return RoleResolution
	case n >= 5 && i == n-2:
		return RoleClimax
	default:
		return RoleRise
	}
}

// Sub-job states
type SubJobState string

const (
	SubJobPending   SubJobState = "pending"
	SubJobCompleted SubJobState = "completed"
	SubJobError     SubJobState = "error"
)

// Generation capabilities
type Capability string

const (
	CapabilityStillImage   Capability = "still_image"
	CapabilityImageToVideo Capability = "image_to_video"
	CapabilityComposition  Capability = "composition"
	CapabilityAudioMerge   Capability = "audio_merge"
)

// MoodNone disables background music for a job.
const MoodNone = "none"
