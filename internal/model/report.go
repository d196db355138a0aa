package model

import "time"

// ReportHandle identifies a generated eligibility report
type ReportHandle struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`                // Primary artifact, attached to notifications
	ContentType string    `json:"content_type"`        // MIME type of Path
	Artifacts   []string  `json:"artifacts,omitempty"` // Every file written for this report
	CreatedAt   time.Time `json:"created_at"`
}

// DispatchStatus classifies the outcome of a dispatch call
type DispatchStatus string

const (
	DispatchSent             DispatchStatus = "sent"
	DispatchGeneratedNotSent DispatchStatus = "generated-not-sent"
	DispatchAlreadyAttempted DispatchStatus = "already-attempted"
)

// DispatchResult is returned by the dispatcher
type DispatchResult struct {
	Status DispatchStatus `json:"status"`
	Handle *ReportHandle  `json:"handle,omitempty"`
	Detail string         `json:"detail,omitempty"` // Notification failure reason, if any
}
