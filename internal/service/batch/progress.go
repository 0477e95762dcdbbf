package batch

import (
	"time"

	"go.uber.org/zap"
)

// progressReporter logs running counters at most once per interval.
// Only the result collector calls it, so it needs no locking.
type progressReporter struct {
	logger      *zap.Logger
	interval    time.Duration
	lastAllowed time.Time
	now         func() time.Time
}

func newProgressReporter(logger *zap.Logger, interval time.Duration) *progressReporter {
	return &progressReporter{
		logger:      logger,
		interval:    interval,
		lastAllowed: time.Now(),
		now:         time.Now,
	}
}

// allow reports whether a progress line may be written now and records it
func (p *progressReporter) allow() bool {
	if p.interval <= 0 {
		return false
	}
	now := p.now()
	if now.Sub(p.lastAllowed) < p.interval {
		return false
	}
	p.lastAllowed = now
	return true
}

func (p *progressReporter) report(s *Stats) {
	if !p.allow() {
		return
	}
	p.logger.Info("progress",
		zap.Int("done", s.Total),
		zap.Int("saved", s.Saved),
		zap.Int("discarded", s.Discarded),
		zap.Int("failed", s.Failed))
}
