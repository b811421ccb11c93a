package model

// VideoSubmitRequest represents the request body for a new video job
type VideoSubmitRequest struct {
	Idea        string `json:"idea" validate:"required,min=10,max=2000"`
	Tier        TierID `json:"tier" validate:"required,oneof=teaser short story feature"`
	ToneHint    string `json:"toneHint" validate:"omitempty,max=200"`
	MusicMood   string `json:"musicMood" validate:"omitempty,max=50"`
	Constraints string `json:"constraints" validate:"omitempty,max=1000"`
}

// VideoSubmitResponse represents the response for an accepted video job
type VideoSubmitResponse struct {
	JobID            string `json:"jobId"`
	Stage            Stage  `json:"stage"`
	CreditsCharged   int64  `json:"creditsCharged"`
	CreditsRemaining int64  `json:"creditsRemaining"`
}

// VideoStatusResponse is the snapshot returned by every poll. It carries no
// time-varying fields so repeated polls of an unchanged job are identical.
type VideoStatusResponse struct {
	JobID                  string  `json:"jobId"`
	Stage                  Stage   `json:"stage"`
	StepLabel              string  `json:"stepLabel"`
	CompletedCount         int     `json:"completedCount"`
	TotalCount             int     `json:"totalCount"`
	OverallProgressPercent int     `json:"overallProgressPercent"`
	FinalArtifactURL       *string `json:"finalArtifactUrl,omitempty"`
	ErrorReason            *string `json:"errorReason,omitempty"`
	CreditsRefunded        bool    `json:"creditsRefunded,omitempty"`
	MusicDropped           bool    `json:"musicDropped,omitempty"`
}

// VideoJobSummary is one row of a merchant's job history
type VideoJobSummary struct {
	JobID                  string  `json:"jobId"`
	Idea                   string  `json:"idea"`
	Tier                   TierID  `json:"tier"`
	Stage                  Stage   `json:"stage"`
	OverallProgressPercent int     `json:"overallProgressPercent"`
	FinalArtifactURL       *string `json:"finalArtifactUrl,omitempty"`
	CreditsCharged         int64   `json:"creditsCharged"`
	CreatedAt              string  `json:"createdAt"`
}

// VideoListResponse represents the job history response
type VideoListResponse struct {
	Jobs []VideoJobSummary `json:"jobs"`
}

// VideoDownloadResponse represents a download link for a completed video
type VideoDownloadResponse struct {
	JobID       string `json:"jobId"`
	DownloadURL string `json:"downloadUrl"`
	Archived    bool   `json:"archived"`
	ExpiresIn   int    `json:"expiresIn,omitempty"` // seconds
}

// CreditBalanceResponse represents the caller's credit balance
type CreditBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TierListResponse represents the tier catalog
type TierListResponse struct {
	Tiers []Tier `json:"tiers"`
}

// MoodListResponse represents the moods available in the music library
type MoodListResponse struct {
	Moods       []string `json:"moods"`
	DefaultMood string   `json:"defaultMood"`
}
