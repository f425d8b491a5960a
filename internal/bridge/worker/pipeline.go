package worker

import (
	"context"

	"bridgeindexer/internal/bridge/decoder"
	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/store"
	"bridgeindexer/internal/bridge/types"
)

// pipeline decodes one log and applies the resulting half to the
// Correlation Store, per spec.md §4.C/§4.D. Shared by the Backfill Worker
// and Live Tailer so both ingestion paths apply identical semantics.
type pipeline struct {
	client  *rpc.Client
	decoder *decoder.Decoder
	txStore store.TransactionStore
	chainID int64
}

func newPipeline(client *rpc.Client, dec *decoder.Decoder, txStore store.TransactionStore, chainID int64) *pipeline {
	return &pipeline{client: client, decoder: dec, txStore: txStore, chainID: chainID}
}

func (p *pipeline) process(ctx context.Context, l rpc.Log) (*types.Transaction, error) {
	receipt, err := p.client.GetReceipt(ctx, l.TxHash)
	if err != nil {
		return nil, err
	}

	blockTime, err := p.client.GetBlock(ctx, l.BlockNumber)
	if err != nil {
		return nil, err
	}

	result, err := p.decoder.Decode(ctx, l, receipt, int64(blockTime), p.chainID)
	if err != nil {
		return nil, err
	}

	if result.Out != nil {
		return p.txStore.ApplyOut(ctx, result.Out)
	}
	return p.txStore.ApplyIn(ctx, result.In)
}
