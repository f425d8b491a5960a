package worker

import (
	"context"

	"bridgeindexer/internal/bridge/decoder"
	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/store"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/logger"
)

// checkpointNamespace is the key_namespace original_source/indexer/rpc.py's
// get_logs defaults to for bridge-contract backfill, restored verbatim so
// checkpoint keys match spec.md §6's literal format.
const checkpointNamespace = "logs"

// Backfill implements the Backfill Worker (spec.md §4.E): paginates
// eth_getLogs over [checkpoint_or_first_block, chain_head) in
// chain-specific window sizes, decoding and applying each log in order,
// advancing the checkpoint after each log is durably applied. Grounded
// on original_source/indexer/rpc.py's get_logs.
type Backfill struct {
	chain    types.Chain
	client   *rpc.Client
	pipeline *pipeline
	cursor   store.CheckpointKV
	log      logger.Logger
}

// NewBackfill builds a Backfill worker for one chain.
func NewBackfill(chain types.Chain, client *rpc.Client, dec *decoder.Decoder, txStore store.TransactionStore, cursor store.CheckpointKV, log logger.Logger) *Backfill {
	return &Backfill{
		chain:    chain,
		client:   client,
		pipeline: newPipeline(client, dec, txStore, chain.ID),
		cursor:   cursor,
		log:      log.With(logger.String("chain", chain.Name), logger.String("component", "backfill")),
	}
}

// Run executes one full backfill pass from the current checkpoint (or
// chain.FirstBlock if none) up to the chain head at call time. The
// Retry/Scheduler wraps transient RPC failures around each window and
// each log (spec.md §4.G); a non-retryable error aborts the pass.
func (b *Backfill) Run(ctx context.Context, address string) error {
	blockKey := store.CheckpointKey(b.chain.Name, checkpointNamespace, address)
	txIndexKey := store.CheckpointTxIndexKey(b.chain.Name, checkpointNamespace, address)

	startBlock, lastTxIndex, err := b.loadCursor(ctx, blockKey, txIndexKey)
	if err != nil {
		return err
	}

	var till uint64
	if err := withRetry(ctx, b.log, "block_number", func() error {
		n, err := b.client.BlockNumber(ctx)
		till = n
		return err
	}); err != nil {
		return err
	}

	initialBlock := startBlock
	window := b.chain.BackfillWindow

	for startBlock < till {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		toBlock := startBlock + window
		if toBlock > till {
			toBlock = till
		}

		var logs []rpc.Log
		if err := withRetry(ctx, b.log, "get_logs", func() error {
			var err error
			logs, err = b.client.GetLogs(ctx, address, types.AllTopics(), startBlock, toBlock)
			return err
		}); err != nil {
			return err
		}

		for _, l := range logs {
			if l.BlockNumber == initialBlock && int64(l.TxIndex) <= lastTxIndex {
				continue
			}

			if err := withRetry(ctx, b.log, "process_log", func() error {
				_, err := b.pipeline.process(ctx, l)
				return err
			}); err != nil {
				return err
			}

			if err := b.cursor.AdvanceIfGreater(ctx, blockKey, int64(l.BlockNumber)); err != nil {
				return err
			}
			if err := b.cursor.Set(ctx, txIndexKey, formatTxIndex(l.TxIndex)); err != nil {
				return err
			}
		}

		b.log.Info("backfill window complete",
			logger.Int64("from_block", int64(startBlock)),
			logger.Int64("to_block", int64(toBlock)),
			logger.Int("events", len(logs)))

		startBlock = toBlock + 1
	}

	return nil
}

func (b *Backfill) loadCursor(ctx context.Context, blockKey, txIndexKey string) (uint64, int64, error) {
	stored, ok, err := b.cursor.Get(ctx, blockKey)
	if err != nil {
		return 0, -1, err
	}
	if !ok {
		return b.chain.FirstBlock, -1, nil
	}

	n, err := parseUint64(stored)
	if err != nil {
		return b.chain.FirstBlock, -1, nil
	}
	if n < b.chain.FirstBlock {
		n = b.chain.FirstBlock
	}

	txIndex := int64(-1)
	if txStored, ok, err := b.cursor.Get(ctx, txIndexKey); err == nil && ok {
		if parsed, err := parseUint64(txStored); err == nil {
			txIndex = int64(parsed)
		}
	}

	return n, txIndex, nil
}

func parseUint64(s string) (uint64, error) {
	var n uint64
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errInvalidNumber
		}
		n = n*10 + uint64(s[i]-'0')
	}
	return n, nil
}

func formatTxIndex(idx uint) string {
	if idx == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for idx > 0 {
		pos--
		buf[pos] = byte('0' + idx%10)
		idx /= 10
	}
	return string(buf[pos:])
}

var errInvalidNumber = invalidNumberError{}

type invalidNumberError struct{}

func (invalidNumberError) Error() string { return "invalid numeric checkpoint value" }
