package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"support-router/logger"
)

// Evictor removes expired conversation history.
type Evictor interface {
	EvictExpired(ctx context.Context) (int, error)
}

// StartHistoryCleanup periodically evicts expired history until ctx ends.
func StartHistoryCleanup(ctx context.Context, store Evictor, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Log.Info("History cleanup stopped")
				return
			case <-ticker.C:
				count, err := store.EvictExpired(ctx)
				if err != nil {
					logger.Log.Error("Failed to evict expired history", zap.Error(err))
				} else if count > 0 {
					logger.Log.Info("Evicted expired history", zap.Int("count", count))
				}
			}
		}
	}()

	logger.Log.Info("History cleanup started", zap.Duration("interval", interval))
}
