// Package worker implements the Backfill Worker (spec.md §4.E), Live
// Tailer (spec.md §4.F) and Retry/Scheduler (spec.md §4.G), grounded on
// internal/core/blockchain/monitor_evm.go's goroutine fan-out idiom and
// internal/core/blockchain/client_evm.go's retryOperation helper.
package worker

import (
	"context"
	"math"
	"time"

	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
)

// maxRetryAttempts and the 3^i backoff schedule are spec.md §4.G's exact
// policy: "on a retryable RPC error, retry with backoff 3^i seconds
// (i = 0, 1, 2, ...) up to 5 attempts, then give up and surface the
// error; non-retryable errors are never retried."
const maxRetryAttempts = 5

// withRetry runs op, retrying on a retryable error per spec.md §4.G's
// 3^i-second backoff schedule. contextInfo fields are attached to every
// log line, matching retryOperation's contextInfo->logger.Field idiom.
func withRetry(ctx context.Context, log logger.Logger, opName string, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !errors.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == maxRetryAttempts-1 {
			break
		}

		delay := time.Duration(math.Pow(3, float64(attempt))) * time.Second
		log.Warn("retrying after transient error",
			logger.String("op", opName),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Error("exhausted retries", logger.String("op", opName), logger.Error(lastErr))
	return lastErr
}
