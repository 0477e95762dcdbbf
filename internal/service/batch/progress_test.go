package batch

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestProgressReporter_Allow(t *testing.T) {
	clock := time.Unix(1000, 0)
	p := newProgressReporter(zap.NewNop(), 10*time.Second)
	p.lastAllowed = clock
	p.now = func() time.Time { return clock }

	steps := []struct {
		advance time.Duration
		want    bool
	}{
		{0, false},
		{5 * time.Second, false},
		{5 * time.Second, true},
		{time.Second, false},
		{10 * time.Second, true},
	}

	for i, step := range steps {
		clock = clock.Add(step.advance)
		if got := p.allow(); got != step.want {
			t.Errorf("step %d: allow() = %v, want %v", i, got, step.want)
		}
	}
}

func TestProgressReporter_Disabled(t *testing.T) {
	p := newProgressReporter(zap.NewNop(), 0)
	p.lastAllowed = time.Time{}

	if p.allow() {
		t.Error("allow() = true with zero interval")
	}
}
