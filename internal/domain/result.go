package domain

import (
	"fmt"
	"time"
)

// Outcome is the final state of a single job
type Outcome string

// Outcome constants
const (
	OutcomeSaved  Outcome = "saved"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// Reasons attached to empty fetch results
const (
	ReasonStatus      = "status"
	ReasonBlacklisted = "blacklisted"
)

// FetchResult represents the result of a single GET request.
// A result with Empty set carries no payload.
type FetchResult struct {
	// URL is the requested URL
	URL string

	// FinalURL is the URL of the response after redirects
	FinalURL string

	// StatusCode is the HTTP status of the response
	StatusCode int

	// Payload is the full response body
	Payload []byte

	// Empty is set when the response was filtered out
	Empty bool

	// Reason explains why the result is empty
	Reason string
}

// DiscardErr returns the sentinel explaining an empty result, or nil when
// the result carries a payload
func (r FetchResult) DiscardErr() error {
	if !r.Empty {
		return nil
	}
	switch r.Reason {
	case ReasonBlacklisted:
		return ErrBlacklisted
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode)
	}
}

// SavedImage describes an image written to the output directory
type SavedImage struct {
	// Path is the absolute path of the written file
	Path string

	// Digest is the hex SHA-256 of the fetched payload
	Digest string

	// Format is the decoded image format (png, jpeg, gif, ...)
	Format string

	// BytesWritten is the size of the written file
	BytesWritten int64
}

// Result represents the outcome of a single job
type Result struct {
	Job     Job
	Outcome Outcome

	// StatusCode is the HTTP status, zero when no response was received
	StatusCode int

	// Reason is set for empty outcomes
	Reason string

	// Image is set for saved outcomes
	Image *SavedImage

	// Err is set for failed outcomes and explains empty ones
	Err error

	Duration time.Duration
}

// Run describes one invocation of the downloader
type Run struct {
	ID        string
	Root      string
	ListFiles int
	StartedAt time.Time
}

// RunSummary holds the final counters of a run
type RunSummary struct {
	Total      int
	Saved      int
	Discarded  int
	Failed     int
	Bytes      int64
	FinishedAt time.Time
}

// RunRecord is a stored run
type RunRecord struct {
	Run
	Summary *RunSummary
}

// ResultRecord is a stored job outcome
type ResultRecord struct {
	ID         int64
	RunID      string
	ListFile   string
	URL        string
	Line       int
	Outcome    Outcome
	StatusCode int
	Reason     string
	Path       string
	Digest     string
	Bytes      int64
	Error      string
	CreatedAt  time.Time
}
