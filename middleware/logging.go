package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/mapsection/section"
)

// Logging logs each generation at Debug and failures at Warn.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *section.Request, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("section generation failed",
				slog.String("request_id", req.ID()),
				slog.String("block", req.BlockOffset.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return err
		}

		logger.Debug("section generated",
			slog.String("request_id", req.ID()),
			slog.String("block", req.BlockOffset.String()),
			slog.Int("target_iterations", req.Settings.TargetIterations),
			slog.Duration("elapsed", elapsed),
		)
		return nil
	}
}
