package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/ext"
	"github.com/xraph/mapsection/observability"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/progress"
)

const meterName = "github.com/xraph/mapsection"

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine's configuration.
func WithConfig(cfg mapsection.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the engine's logger. Loaders and extensions share it.
func WithLogger(logger *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = logger }
}

// WithExtension registers an extension with the engine. Extensions are
// notified in registration order, after the progress broker.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.pendingExts = append(eng.pendingExts, e)
	}
}

// WithPools sets the buffer pools used to build sections. Share them with
// the backend so flipped mirror buffers are recycled together.
func WithPools(p *pool.Shapes) Option {
	return func(eng *Engine) { eng.pools = p }
}

// WithBroker sets the progress broker. By default the engine creates one.
func WithBroker(b *progress.Broker) Option {
	return func(eng *Engine) { eng.broker = b }
}

// WithMeterProvider registers the metrics extension on a meter from mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.pendingExts = append(eng.pendingExts,
			observability.NewMetricsExtensionWithMeter(mp.Meter(meterName)))
	}
}
