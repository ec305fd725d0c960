package models

import "time"

// DispatchPayload is the body of the one-shot notification sent downstream
// when a newer upstream release is detected.
type DispatchPayload struct {
	Version         string    `json:"version"`
	SourceTimestamp time.Time `json:"source_timestamp"`
}
