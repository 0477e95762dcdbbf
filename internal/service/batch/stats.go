package batch

import (
	"time"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// Stats tracks aggregate counters across a run
type Stats struct {
	RunID string

	ListFiles    int
	ListsSkipped int

	Total     int
	Saved     int
	Discarded int
	Failed    int

	// Discards broken down by reason
	StatusDiscards    int
	BlacklistDiscards int

	BytesWritten int64
	Duration     time.Duration
}

// add folds one job result into the counters
func (s *Stats) add(r *domain.Result) {
	s.Total++
	switch r.Outcome {
	case domain.OutcomeSaved:
		s.Saved++
		if r.Image != nil {
			s.BytesWritten += r.Image.BytesWritten
		}
	case domain.OutcomeEmpty:
		s.Discarded++
		switch r.Reason {
		case domain.ReasonStatus:
			s.StatusDiscards++
		case domain.ReasonBlacklisted:
			s.BlacklistDiscards++
		}
	default:
		s.Failed++
	}
}
