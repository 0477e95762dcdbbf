package event

import (
	"time"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// Event names
const (
	NameRunStarted       = "run.started"
	NameRunCompleted     = "run.completed"
	NameOutputDirCreated = "output_dir.created"
	NameImageSaved       = "image.saved"
	NameJobDiscarded     = "job.discarded"
	NameJobFailed        = "job.failed"
	NameListSkipped      = "list.skipped"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func now() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// RunStarted is raised before the first job is queued
type RunStarted struct {
	BaseEvent
	RunID     string
	Root      string
	ListFiles []string
}

// EventName returns the event name
func (e RunStarted) EventName() string { return NameRunStarted }

// NewRunStarted creates a new RunStarted event
func NewRunStarted(runID, root string, listFiles []string) RunStarted {
	return RunStarted{BaseEvent: now(), RunID: runID, Root: root, ListFiles: listFiles}
}

// RunCompleted is raised once every job has finished
type RunCompleted struct {
	BaseEvent
	RunID     string
	Total     int
	Saved     int
	Discarded int
	Failed    int
	Bytes     int64
	Duration  time.Duration
}

// EventName returns the event name
func (e RunCompleted) EventName() string { return NameRunCompleted }

// OutputDirCreated is raised when a directory did not exist and was created
type OutputDirCreated struct {
	BaseEvent
	Path string
}

// EventName returns the event name
func (e OutputDirCreated) EventName() string { return NameOutputDirCreated }

// NewOutputDirCreated creates a new OutputDirCreated event
func NewOutputDirCreated(path string) OutputDirCreated {
	return OutputDirCreated{BaseEvent: now(), Path: path}
}

// ImageSaved is raised when a job wrote a file
type ImageSaved struct {
	BaseEvent
	RunID  string
	Result domain.Result
}

// EventName returns the event name
func (e ImageSaved) EventName() string { return NameImageSaved }

// JobDiscarded is raised when a fetch result was filtered out
type JobDiscarded struct {
	BaseEvent
	RunID  string
	Result domain.Result
}

// EventName returns the event name
func (e JobDiscarded) EventName() string { return NameJobDiscarded }

// JobFailed is raised when fetching or saving returned an error
type JobFailed struct {
	BaseEvent
	RunID  string
	Result domain.Result
}

// EventName returns the event name
func (e JobFailed) EventName() string { return NameJobFailed }

// NewJobEvent maps a job result to the event matching its outcome
func NewJobEvent(runID string, r domain.Result) DomainEvent {
	switch r.Outcome {
	case domain.OutcomeSaved:
		return ImageSaved{BaseEvent: now(), RunID: runID, Result: r}
	case domain.OutcomeEmpty:
		return JobDiscarded{BaseEvent: now(), RunID: runID, Result: r}
	default:
		return JobFailed{BaseEvent: now(), RunID: runID, Result: r}
	}
}

// ListSkipped is raised when a URL list file could not be read
type ListSkipped struct {
	BaseEvent
	RunID    string
	ListFile string
	Err      error
}

// EventName returns the event name
func (e ListSkipped) EventName() string { return NameListSkipped }

// NewListSkipped creates a new ListSkipped event
func NewListSkipped(runID, listFile string, err error) ListSkipped {
	return ListSkipped{BaseEvent: now(), RunID: runID, ListFile: listFile, Err: err}
}
