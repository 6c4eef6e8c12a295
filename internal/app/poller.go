package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/squint/internal/state"
)

const defaultRefreshInterval = 5 * time.Minute

// Refresher is the part of the cache the poller drives.
type Refresher interface {
	Refresh(ctx context.Context) (state.RefreshResult, error)
}

// StartPoller launches a background goroutine that refreshes immediately and
// then at a fixed cadence until ctx ends. Failures are logged and wait for
// the next tick. It returns immediately; the channel closes when the
// goroutine exits.
func StartPoller(ctx context.Context, cache Refresher, interval time.Duration, log zerolog.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			refresh(ctx, cache, log)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

func refresh(ctx context.Context, cache Refresher, log zerolog.Logger) {
	res, err := cache.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("scheduled refresh failed")
		}
		return
	}
	if res.InFlight {
		log.Debug().Msg("scheduled refresh skipped, another refresh is running")
	}
}
