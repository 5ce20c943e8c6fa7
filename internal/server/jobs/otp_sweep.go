package jobs

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/otpstore"
)

const sweepTimeout = 10 * time.Second

// StartOTPSweepJob periodically deletes expired completion codes until ctx
// is cancelled. Stores with native expiry need no sweeper.
func StartOTPSweepJob(ctx context.Context, interval time.Duration, sweeper otpstore.Sweeper, logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if sweeper == nil {
		logger.Printf("otp sweep job disabled: store expires codes itself")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
				n, err := sweeper.DeleteExpiredOTPs(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					logger.Printf("WARN: otp sweep job error: %v", err)
					continue
				}
				if n > 0 {
					logger.Printf("otp sweep job removed %d expired codes", n)
				}
			}
		}
	}()
}
