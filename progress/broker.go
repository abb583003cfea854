package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/mapsection/ext"
	"github.com/xraph/mapsection/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.RequestAdded  = (*Broker)(nil)
	_ ext.SectionLoaded = (*Broker)(nil)
	_ ext.JobCompleted  = (*Broker)(nil)
	_ ext.JobStopped    = (*Broker)(nil)
	_ ext.JobReaped     = (*Broker)(nil)
	_ ext.JobStuck      = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1 << 20

// Broker fans lifecycle events out to subscribers. It is registered as an
// extension and turns every hook into a tagged Event.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	subscribers sync.Map // subscriberID → *Subscriber

	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new progress broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "progress-broker" }

// Topics returns the topic registry.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeJobs creates a subscriber following the given jobs, or every
// event when none are given.
func (b *Broker) SubscribeJobs(subscriberID string, jobNumbers ...int) *Subscriber {
	if len(jobNumbers) == 0 {
		return b.Subscribe(subscriberID, TopicFirehose)
	}
	topics := make([]string, len(jobNumbers))
	for i, n := range jobNumbers {
		topics[i] = JobTopic(n)
	}
	return b.Subscribe(subscriberID, topics...)
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Publish broadcasts evt to every matching topic.
func (b *Broker) Publish(evt *Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	delivered, dropped := b.topics.Broadcast(resolveTopics(evt), evt)
	b.totalPublished.Add(int64(delivered))
	if dropped > 0 {
		b.totalDropped.Add(int64(dropped))
		b.logger.Debug("progress event dropped",
			slog.String("type", string(evt.Type)),
			slog.Int("job_number", evt.JobNumber),
			slog.Int("subscribers", dropped),
		)
	}
}

func (b *Broker) jobEvent(t EventType, jobNumber int) *Event {
	return &Event{
		Type:      t,
		JobNumber: jobNumber,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(jobNumber),
	}
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnRequestAdded(_ context.Context, r job.RequestAdded) error {
	evt := b.jobEvent(EventRequestAdded, r.JobNumber)
	evt.Label = r.Label
	evt.TotalSections = r.TotalSections
	evt.Satisfied = r.Satisfied
	b.Publish(evt)
	return nil
}

func (b *Broker) OnSectionLoaded(_ context.Context, s job.SectionLoaded) error {
	evt := b.jobEvent(EventSectionLoaded, s.JobNumber)
	evt.RequestNumber = s.RequestNumber
	evt.FromCache = s.FromCache
	evt.IsLast = s.IsLast
	evt.Completed = s.Completed
	evt.ProcessingDuration = s.ProcessingDuration
	evt.GenerationDuration = s.GenerationDuration
	b.Publish(evt)
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, jobNumber int, elapsed time.Duration) error {
	evt := b.jobEvent(EventJobCompleted, jobNumber)
	evt.Elapsed = elapsed
	b.Publish(evt)
	return nil
}

func (b *Broker) OnJobStopped(_ context.Context, jobNumber int) error {
	b.Publish(b.jobEvent(EventJobStopped, jobNumber))
	return nil
}

func (b *Broker) OnJobReaped(_ context.Context, jobNumber int, age time.Duration) error {
	evt := b.jobEvent(EventJobReaped, jobNumber)
	evt.Elapsed = age
	b.Publish(evt)
	return nil
}

func (b *Broker) OnJobStuck(_ context.Context, jobNumber int, running time.Duration) error {
	evt := b.jobEvent(EventJobStuck, jobNumber)
	evt.Elapsed = running
	b.Publish(evt)
	return nil
}

// ── Other hooks ─────────────────────────────────────

// OnShutdown publishes a shutdown event and closes all subscribers.
func (b *Broker) OnShutdown(_ context.Context) error {
	b.Publish(&Event{Type: EventShutdown, Timestamp: time.Now().UTC()})
	b.subscribers.Range(func(key, _ any) bool {
		b.RemoveSubscriber(key.(string)) //nolint:errcheck // sync.Map always stores string keys
		return true
	})
	return nil
}
