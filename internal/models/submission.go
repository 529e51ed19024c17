package models

import "time"

// SubmissionStatus tracks one plagiarism-check lifecycle at the vendor.
type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionReady   SubmissionStatus = "ready"
	SubmissionFailed  SubmissionStatus = "failed"
)

// Submission is one vendor check request for a stored document.
// Once the status is ready or failed the record is never mutated again.
type Submission struct {
	ID         int64            `json:"id"`
	DocumentID int64            `json:"document_id"`
	UserID     int64            `json:"user_id"`
	VendorID   string           `json:"vendor_id"`
	ReportURL  string           `json:"report_url,omitempty"`
	Status     SubmissionStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
