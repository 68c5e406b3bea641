package models

import "time"

// JobStatus represents the lifecycle stage of a server-side analysis job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"

	// JobStatusUnknown models "polled before the server created the job
	// record". A 404 from the job endpoint normalizes to this, it is not
	// an error.
	JobStatusUnknown JobStatus = "unknown"
)

// IsTerminal reports whether no further status transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobScope distinguishes the analysis kinds a match can carry. Pollers are
// keyed (matchID, scope); the status contract is identical for both.
type JobScope string

const (
	ScopePreview  JobScope = "preview_analysis"
	ScopeEnhanced JobScope = "enhanced_analysis"
)

// JobSnapshot is the last known state of a remote analysis job. It is
// replaced wholesale on every poll tick and frozen once a terminal status
// has been observed.
type JobSnapshot struct {
	JobID        string    `json:"job_id,omitempty"`
	MatchID      string    `json:"match_id,omitempty"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// JobStatusResponse is the job status endpoint response body.
type JobStatusResponse struct {
	JobID     string    `json:"job_id"`
	MatchID   string    `json:"match_id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Error     *string   `json:"error"`
	UpdatedAt time.Time `json:"updated_at"`
}
