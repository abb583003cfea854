package backend

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/xraph/mapsection/backoff"
	"github.com/xraph/mapsection/middleware"
	"github.com/xraph/mapsection/pool"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of generation workers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueCapacity bounds the pending work queue. AddWork blocks while it
// is full.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithRateLimit caps generations per second across all workers.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMiddleware wraps every generation in mws, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.mws = append(d.mws, mws...) }
}

// WithPersistence saves every generated section to s in the background,
// retrying failed saves up to retries times.
func WithPersistence(s Saver, retries int) Option {
	return func(d *Dispatcher) {
		d.saver = s
		d.retries = retries
	}
}

// WithRetryStrategy sets the delay between persistence retries.
func WithRetryStrategy(s backoff.Strategy) Option {
	return func(d *Dispatcher) { d.strategy = s }
}

// WithPools sets the pools generation buffers are drawn from.
func WithPools(p *pool.Shapes) Option {
	return func(d *Dispatcher) { d.pools = p }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}
