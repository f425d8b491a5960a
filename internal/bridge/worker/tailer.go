package worker

import (
	"context"

	"bridgeindexer/internal/bridge/decoder"
	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/store"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/logger"
)

// Tailer implements the Live Tailer (spec.md §4.F): polls for new bridge
// logs and applies them through the same decode/correlate pipeline as
// the Backfill Worker, but never advances the backfill checkpoint — a
// block the tailer has already seen live is re-processed by the next
// backfill pass, which is required to be idempotent (spec.md §8,
// testable property on re-application).
type Tailer struct {
	chain    types.Chain
	client   *rpc.Client
	pipeline *pipeline
	log      logger.Logger
}

// NewTailer builds a Live Tailer for one chain.
func NewTailer(chain types.Chain, client *rpc.Client, dec *decoder.Decoder, txStore store.TransactionStore, log logger.Logger) *Tailer {
	return &Tailer{
		chain:    chain,
		client:   client,
		pipeline: newPipeline(client, dec, txStore, chain.ID),
		log:      log.With(logger.String("chain", chain.Name), logger.String("component", "tailer")),
	}
}

// Run polls logs for address until ctx is cancelled, applying each one
// through the pipeline. RPC/decoder errors for a single log are logged
// and skipped rather than aborting the poll loop, since a dropped live
// log is recovered by the next backfill pass.
func (t *Tailer) Run(ctx context.Context, address string) error {
	logs, errs := t.client.PollLogs(ctx, address, types.AllTopics())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			t.log.Warn("log poll error", logger.Error(err))
		case l, ok := <-logs:
			if !ok {
				return nil
			}
			if err := withRetry(ctx, t.log, "process_log", func() error {
				_, err := t.pipeline.process(ctx, l)
				return err
			}); err != nil {
				t.log.Error("dropping live log after exhausted retries",
					logger.String("tx_hash", l.TxHash),
					logger.Error(err))
			}
		}
	}
}
