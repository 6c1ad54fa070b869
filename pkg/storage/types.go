package storage

import "time"

// RunMetadata contains metadata about one optimization run.
//
// Stored as metadata.json next to the run's artifact so past runs can be
// listed and inspected without re-reading artifacts.
type RunMetadata struct {
	// ID is the unique identifier for the run (UUID v4).
	ID string `json:"id"`

	// Link is the redacted node link the run optimized. Credentials are
	// never persisted.
	Link string `json:"link"`

	// Status indicates the current state of the run.
	// Valid values: "running", "completed", "failed"
	Status string `json:"status"`

	// StartedAt is when the run was started (UTC).
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished (UTC).
	// Zero value if the run is still in flight.
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Duration is the run duration in seconds. Only set on completion.
	Duration int `json:"duration_seconds,omitempty"`

	// CandidateCount is how many valid candidate addresses were probed.
	CandidateCount int `json:"candidate_count"`

	// ReachableCount is how many candidates completed a connection.
	ReachableCount int `json:"reachable_count"`

	// ErrorMessage contains error details if the run failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt is when the metadata was first written (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the metadata was last updated (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}

// RunUpdates carries partial metadata updates. Nil fields are left as-is.
type RunUpdates struct {
	Status         *string
	CompletedAt    *time.Time
	Duration       *int
	CandidateCount *int
	ReachableCount *int
	ErrorMessage   *string
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	// Status filters by run status (empty = all statuses).
	Status string

	// Limit is the maximum number of results to return (0 = no limit).
	Limit int
}
