package port

import (
	"github.com/vertextoedge/image-downloader/internal/domain"
)

// HistoryRepository stores runs and their job outcomes
type HistoryRepository interface {
	// StartRun records a new run
	StartRun(run *domain.Run) error

	// RecordResult stores the outcome of one job of a run
	RecordResult(runID string, result *domain.Result) error

	// FinishRun stores the final counters of a run
	FinishRun(runID string, summary *domain.RunSummary) error

	// GetRun returns a run and its summary, or nil if not found
	GetRun(runID string) (*domain.RunRecord, error)

	// ListResults returns the stored results of a run in insertion order
	ListResults(runID string) ([]*domain.ResultRecord, error)

	// Close closes the underlying storage
	Close() error
}
