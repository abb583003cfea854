package engine

import (
	"log/slog"
	"time"
)

func (e *Engine) reapLoop() {
	defer close(e.reaperDone)

	ticker := time.NewTicker(e.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			e.reap(now)
		}
	}
}

type stuckJob struct {
	jobNumber int
	running   time.Duration
}

// reap removes jobs that completed more than the grace period ago and
// reports jobs running past the stuck threshold.
func (e *Engine) reap(now time.Time) {
	var (
		expired []int
		stuck   []stuckJob
	)

	e.mu.RLock()
	for n, rec := range e.records {
		if at, ok := rec.CompletedAt(); ok {
			if now.Sub(at) > e.config.CompletedJobGracePeriod {
				expired = append(expired, n)
			}
			continue
		}
		if running := now.Sub(rec.StartedAt()); e.config.StuckJobThreshold > 0 && running > e.config.StuckJobThreshold {
			stuck = append(stuck, stuckJob{n, running})
		}
	}
	e.mu.RUnlock()

	if len(stuck) > 0 {
		e.logger.Warn("jobs running past the stuck threshold",
			slog.Int("count", len(stuck)),
			slog.Duration("threshold", e.config.StuckJobThreshold),
		)
		for _, s := range stuck {
			e.extensions.EmitJobStuck(e.ctx, s.jobNumber, s.running)
		}
	}

	if len(expired) == 0 {
		return
	}

	type reaped struct {
		jobNumber int
		age       time.Duration
	}
	var removed []reaped

	e.mu.Lock()
	for _, n := range expired {
		rec, ok := e.records[n]
		if !ok {
			continue
		}
		at, ok := rec.CompletedAt()
		if !ok || now.Sub(at) <= e.config.CompletedJobGracePeriod {
			continue
		}
		delete(e.records, n)
		rec.Release()
		removed = append(removed, reaped{n, now.Sub(at)})
	}
	e.mu.Unlock()

	for _, r := range removed {
		e.dispatcher.MarkJobAsComplete(r.jobNumber)
		e.extensions.EmitJobReaped(e.ctx, r.jobNumber, r.age)
		e.logger.Info("job reaped",
			slog.Int("job_number", r.jobNumber),
			slog.Duration("age", r.age),
		)
	}
}
