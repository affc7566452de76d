package model

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage pushes a job's reduced state to subscribed clients.
type WSStatusMessage struct {
	Type   string            `json:"type"`
	JobID  string            `json:"jobId"`
	Status JobStatus         `json:"status"`
	URLs   map[string]string `json:"urls,omitempty"`
}

// WSErrorMessage tells subscribed clients that the job failed.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
