// Package progress streams job progress to subscribers. Every message is
// an Event tagged with its type and job number, published on topics so a
// consumer can follow one job, all jobs, or everything.
package progress

import (
	"strconv"
	"time"
)

// EventType identifies the kind of progress event.
type EventType string

const (
	EventRequestAdded  EventType = "job.request_added"
	EventSectionLoaded EventType = "job.section_loaded"
	EventJobCompleted  EventType = "job.completed"
	EventJobStopped    EventType = "job.stopped"
	EventJobReaped     EventType = "job.reaped"
	EventJobStuck      EventType = "job.stuck"
	EventShutdown      EventType = "shutdown"
)

// Event is the envelope sent to subscribers. Only the fields relevant to
// Type are set.
type Event struct {
	Type      EventType `json:"type"`
	JobNumber int       `json:"job_number"`
	Timestamp time.Time `json:"ts"`

	// Topic is the job-specific topic the event was published on.
	Topic string `json:"topic,omitempty"`

	// Request added.
	Label         string `json:"label,omitempty"`
	TotalSections int    `json:"total_sections,omitempty"`
	Satisfied     int    `json:"satisfied,omitempty"`

	// Section loaded.
	RequestNumber      int           `json:"request_number,omitempty"`
	FromCache          bool          `json:"from_cache,omitempty"`
	IsLast             bool          `json:"is_last,omitempty"`
	Completed          int           `json:"completed,omitempty"`
	ProcessingDuration time.Duration `json:"processing_duration,omitempty"`
	GenerationDuration time.Duration `json:"generation_duration,omitempty"`

	// Completed, reaped, stuck.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// JobTopic returns the topic name for a specific job.
func JobTopic(jobNumber int) string { return "job:" + strconv.Itoa(jobNumber) }
