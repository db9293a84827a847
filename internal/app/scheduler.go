package app

import (
	"context"
	"time"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
)

// startPriceScheduler refreshes prices once at start and then on every
// tick until ctx is cancelled. Refreshes are automatic, so they are
// background saves and skip themselves when auto-update is off.
func startPriceScheduler(ctx context.Context, refresher interfaces.PriceRefresher, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refreshPrices(ctx, refresher, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Price scheduler: stopped")
			return
		case <-ticker.C:
			refreshPrices(ctx, refresher, logger)
		}
	}
}

func refreshPrices(ctx context.Context, refresher interfaces.PriceRefresher, logger *common.Logger) {
	start := time.Now()
	result, err := refresher.Refresh(ctx, false)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Price refresh: failed")
		}
		return
	}
	if result.Skipped != "" {
		logger.Debug().Str("reason", result.Skipped).Msg("Price refresh: skipped")
		return
	}
	logger.Debug().
		Int("updated", result.Updated).
		Int("failed", len(result.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}
