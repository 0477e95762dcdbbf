package event

import (
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/port"
)

// LoggingHandler logs all events.
// Saves and created directories are logged at info only in verbose mode;
// per-URL failures are always logged at debug.
type LoggingHandler struct {
	logger  *zap.Logger
	verbose bool
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger, verbose bool) *LoggingHandler {
	return &LoggingHandler{logger: logger, verbose: verbose}
}

func (h *LoggingHandler) noticeLevel() zapcore.Level {
	if h.verbose {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case RunStarted:
		h.logger.Info("run started",
			zap.String("run_id", e.RunID),
			zap.String("root", e.Root),
			zap.Int("list_files", len(e.ListFiles)),
		)
	case OutputDirCreated:
		h.logger.Log(h.noticeLevel(), "directory created",
			zap.String("path", e.Path),
		)
	case ImageSaved:
		img := e.Result.Image
		h.logger.Log(h.noticeLevel(), "image saved",
			zap.String("url", e.Result.Job.URL),
			zap.String("path", img.Path),
			zap.String("format", img.Format),
			zap.Int64("size", img.BytesWritten),
		)
	case JobDiscarded:
		h.logger.Debug("fetch result discarded",
			zap.String("url", e.Result.Job.URL),
			zap.Int("status", e.Result.StatusCode),
			zap.String("reason", e.Result.Reason),
			zap.Error(e.Result.Err),
		)
	case JobFailed:
		h.logger.Debug("job failed",
			zap.String("url", e.Result.Job.URL),
			zap.String("list", e.Result.Job.ListFile),
			zap.Int("line", e.Result.Job.Line),
			zap.Error(e.Result.Err),
		)
	case ListSkipped:
		h.logger.Warn("skipping url list",
			zap.String("list", e.ListFile),
			zap.Error(e.Err),
		)
	case RunCompleted:
		h.logger.Info("run completed",
			zap.String("run_id", e.RunID),
			zap.Int("total", e.Total),
			zap.Int("saved", e.Saved),
			zap.Int("discarded", e.Discarded),
			zap.Int("failed", e.Failed),
			zap.String("written", humanize.Bytes(uint64(e.Bytes))),
			zap.Duration("duration", e.Duration),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"} // Handle all events
}

// HistoryHandler records runs and job outcomes in a history repository
type HistoryHandler struct {
	history port.HistoryRepository
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history port.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Handle writes the event to the history repository
func (h *HistoryHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case RunStarted:
		return h.history.StartRun(&domain.Run{
			ID:        e.RunID,
			Root:      e.Root,
			ListFiles: len(e.ListFiles),
			StartedAt: e.Timestamp,
		})
	case ImageSaved:
		return h.history.RecordResult(e.RunID, &e.Result)
	case JobDiscarded:
		return h.history.RecordResult(e.RunID, &e.Result)
	case JobFailed:
		return h.history.RecordResult(e.RunID, &e.Result)
	case RunCompleted:
		return h.history.FinishRun(e.RunID, &domain.RunSummary{
			Total:      e.Total,
			Saved:      e.Saved,
			Discarded:  e.Discarded,
			Failed:     e.Failed,
			Bytes:      e.Bytes,
			FinishedAt: e.Timestamp,
		})
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *HistoryHandler) HandledEvents() []string {
	return []string{
		NameRunStarted,
		NameImageSaved,
		NameJobDiscarded,
		NameJobFailed,
		NameRunCompleted,
	}
}
