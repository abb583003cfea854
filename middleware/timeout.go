package middleware

import (
	"context"
	"time"

	"github.com/xraph/mapsection/section"
)

// Timeout bounds each generation to d. A non-positive d disables it.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *section.Request, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
