package middleware

import (
	"context"

	"github.com/xraph/mapsection/section"
)

// Handler is the terminal call that generates one section's values.
type Handler func(ctx context.Context) error

// Middleware wraps generation of req. It must call next unless it
// deliberately short-circuits.
type Middleware func(ctx context.Context, req *section.Request, next Handler) error

// Chain composes mws into one Middleware. The first entry is outermost:
//
//	Chain(logging, recover, timeout) runs logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, req *section.Request, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			inner := h
			h = func(ctx context.Context) error {
				return mw(ctx, req, inner)
			}
		}
		return h(ctx)
	}
}
