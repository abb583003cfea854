package mapsection

import (
	"runtime"
	"time"
)

// Config holds configuration for the section pipeline.
type Config struct {
	// ReapInterval is how often the registry scans for finished jobs.
	ReapInterval time.Duration

	// CompletedJobGracePeriod is how long a completed job stays registered
	// so late diagnostic reads still succeed.
	CompletedJobGracePeriod time.Duration

	// StuckJobThreshold is how long a job may run without completing
	// before the reaper warns about it.
	StuckJobThreshold time.Duration

	// Workers is the number of generation workers the backend runs.
	Workers int

	// QueueCapacity bounds the backend's pending work queue.
	QueueCapacity int

	// PoolMaxFree is the maximum number of idle buffers a pool retains.
	PoolMaxFree int

	// GenerationTimeout bounds a single section generation. Zero disables it.
	GenerationTimeout time.Duration

	// PersistRetries is how many times a failed cache write is retried.
	PersistRetries int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReapInterval:            5 * time.Second,
		CompletedJobGracePeriod: 140 * time.Second,
		StuckJobThreshold:       3 * time.Minute,
		Workers:                 runtime.NumCPU(),
		QueueCapacity:           200,
		PoolMaxFree:             1000,
		PersistRetries:          3,
	}
}
