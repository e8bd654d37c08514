package backfill

import (
	"sync/atomic"
	"time"
)

// Progress holds the counters of the current (or last) run.
// Writers are the single running backfill; readers may be any goroutine.
type Progress struct {
	running        atomic.Bool
	startedAt      atomic.Int64
	totalEligible  atomic.Int64
	embedded       atomic.Int64
	batches        atomic.Int64
	skippedBatches atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Running        bool
	StartedAt      time.Time
	TotalEligible  int
	Embedded       int
	Batches        int
	SkippedBatches int
}

func (p *Progress) reset(totalEligible int) {
	p.startedAt.Store(time.Now().UnixNano())
	p.totalEligible.Store(int64(totalEligible))
	p.embedded.Store(0)
	p.batches.Store(0)
	p.skippedBatches.Store(0)
}

// Snapshot returns the current counters. Values are read individually, so a snapshot taken
// mid-batch may mix counters from adjacent batches.
func (p *Progress) Snapshot() ProgressSnapshot {
	var started time.Time
	if ns := p.startedAt.Load(); ns > 0 {
		started = time.Unix(0, ns).UTC()
	}
	return ProgressSnapshot{
		Running:        p.running.Load(),
		StartedAt:      started,
		TotalEligible:  int(p.totalEligible.Load()),
		Embedded:       int(p.embedded.Load()),
		Batches:        int(p.batches.Load()),
		SkippedBatches: int(p.skippedBatches.Load()),
	}
}
