package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/mapsection/section"
)

// Recover turns a panicking generator into an error so the worker survives
// and the request is answered with an empty response.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *section.Request, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("generator panicked",
					slog.String("request_id", req.ID()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic generating section %s: %v", req.ID(), r)
			}
		}()
		return next(ctx)
	}
}
