// Package batch runs the fetch and save pipeline over a set of URL list files.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/domain/event"
	"github.com/vertextoedge/image-downloader/internal/port"
	"github.com/vertextoedge/image-downloader/internal/service/urlsource"
)

// Config contains orchestrator configuration
type Config struct {
	// Workers is the number of concurrent fetch and save pipelines
	Workers int

	// QueueSize is the capacity of the job and result queues
	QueueSize int

	// TempFileMaxAge is the age after which leftover temp files are removed
	TempFileMaxAge time.Duration

	// ProgressInterval is the minimum time between progress lines. Zero disables them.
	ProgressInterval time.Duration
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:          8,
		QueueSize:        64,
		TempFileMaxAge:   24 * time.Hour,
		ProgressInterval: 10 * time.Second,
	}
}

// Orchestrator fans jobs out to a fixed pool of workers
type Orchestrator struct {
	config  *Config
	fetcher port.Fetcher
	saver   port.Saver
	fs      port.FileSystem
	events  event.EventDispatcher
	logger  *zap.Logger
}

// New creates a new Orchestrator
func New(
	cfg *Config,
	fetcher port.Fetcher,
	saver port.Saver,
	fs port.FileSystem,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 8
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}
	if events == nil {
		events = event.NullDispatcher{}
	}

	return &Orchestrator{
		config:  cfg,
		fetcher: fetcher,
		saver:   saver,
		fs:      fs,
		events:  events,
		logger:  logger,
	}
}

// Run fetches every URL of every list file and saves what can be saved.
// It returns once all queued jobs have finished. Individual job failures
// are counted, never returned; the error is non-nil only when the output
// root cannot be created or ctx was canceled.
func (o *Orchestrator) Run(ctx context.Context, root string, lists []string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{
		RunID:     newRunID(),
		ListFiles: len(lists),
	}

	created, err := o.fs.EnsureDir(o.fs.RootDir())
	if err != nil {
		return stats, fmt.Errorf("failed to create output root: %w", err)
	}
	if created {
		o.dispatch(event.NewOutputDirCreated(o.fs.RootDir()))
	}

	cleaned, err := o.fs.CleanOldTempFiles(o.config.TempFileMaxAge)
	if err != nil {
		o.logger.Warn("failed to clean old temp files", zap.Error(err))
	} else if cleaned > 0 {
		o.logger.Info("removed leftover temp files", zap.Int("count", cleaned))
	}

	o.dispatch(event.NewRunStarted(stats.RunID, root, lists))

	jobs := make(chan domain.Job, o.config.QueueSize)
	results := make(chan domain.Result, o.config.QueueSize)
	skipped := make(chan struct{}, len(lists))

	go o.produce(ctx, stats.RunID, lists, jobs, skipped)

	var wg sync.WaitGroup
	for i := 0; i < o.config.Workers; i++ {
		wg.Add(1)
		go o.worker(ctx, i, jobs, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	progress := newProgressReporter(o.logger, o.config.ProgressInterval)
	for result := range results {
		stats.add(&result)
		o.dispatch(event.NewJobEvent(stats.RunID, result))
		progress.report(stats)
	}

	// The producer has finished once every worker has drained the closed job queue
	stats.ListsSkipped = len(skipped)
	stats.Duration = time.Since(start)

	o.dispatch(event.RunCompleted{
		BaseEvent: event.BaseEvent{Timestamp: time.Now()},
		RunID:     stats.RunID,
		Total:     stats.Total,
		Saved:     stats.Saved,
		Discarded: stats.Discarded,
		Failed:    stats.Failed,
		Bytes:     stats.BytesWritten,
		Duration:  stats.Duration,
	})

	return stats, ctx.Err()
}

// produce streams the lines of every list file into jobs and closes it.
// Unreadable list files are reported and skipped.
func (o *Orchestrator) produce(ctx context.Context, runID string, lists []string, jobs chan<- domain.Job, skipped chan<- struct{}) {
	defer close(jobs)

	for _, list := range lists {
		if ctx.Err() != nil {
			return
		}

		reader, err := urlsource.Open(list)
		if err != nil {
			skipped <- struct{}{}
			o.dispatch(event.NewListSkipped(runID, list, err))
			continue
		}

		if !o.enqueue(ctx, reader, jobs) {
			return
		}
		if err := reader.Err(); err != nil {
			o.logger.Warn("url list read incompletely",
				zap.String("list", list),
				zap.Error(err))
		}
	}
}

// enqueue sends every line of reader to jobs. Returns false if ctx was
// canceled before the reader was exhausted.
func (o *Orchestrator) enqueue(ctx context.Context, reader *urlsource.Reader, jobs chan<- domain.Job) bool {
	line := 0
	for url := range reader.URLs() {
		line++
		job := domain.Job{ListFile: reader.Path(), URL: url, Line: line}
		select {
		case jobs <- job:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// worker processes jobs until the queue is closed
func (o *Orchestrator) worker(ctx context.Context, workerID int, jobs <-chan domain.Job, results chan<- domain.Result, wg *sync.WaitGroup) {
	defer wg.Done()

	workerName := fmt.Sprintf("worker-%d", workerID)
	o.logger.Debug("batch worker started", zap.String("worker", workerName))

	for job := range jobs {
		results <- o.process(ctx, job)
	}

	o.logger.Debug("batch worker stopped", zap.String("worker", workerName))
}

// process fetches one URL and saves the payload. Every failure, including
// a panic in a decoder, becomes a failed result.
func (o *Orchestrator) process(ctx context.Context, job domain.Job) (result domain.Result) {
	start := time.Now()
	result = domain.Result{Job: job}

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = domain.OutcomeFailed
			result.Image = nil
			result.Err = domain.NewSkippableError(fmt.Errorf("panic: %v", r), "process")
		}
		result.Duration = time.Since(start)
	}()

	fetched, err := o.fetcher.Fetch(ctx, job.URL)
	result.StatusCode = fetched.StatusCode
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = domain.NewSkippableError(err, "fetch")
		return result
	}

	if fetched.Empty {
		result.Outcome = domain.OutcomeEmpty
		result.Reason = fetched.Reason
		result.Err = fetched.DiscardErr()
		return result
	}

	saved, err := o.saver.Save(ctx, job, fetched.Payload)
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = domain.NewSkippableError(err, "save")
		return result
	}

	result.Outcome = domain.OutcomeSaved
	result.Image = saved
	return result
}

func (o *Orchestrator) dispatch(e event.DomainEvent) {
	if err := o.events.Dispatch(e); err != nil {
		o.logger.Warn("event handler failed",
			zap.String("event", e.EventName()),
			zap.Error(err))
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
