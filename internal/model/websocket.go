package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage wraps a poll snapshot pushed to subscribers of a job
type WSStatusMessage struct {
	Type   string               `json:"type"`
	JobID  string               `json:"jobId"`
	Status *VideoStatusResponse `json:"status"`
}
