package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bridgeindexer/internal/bridge/decoder"
	"bridgeindexer/internal/bridge/registry"
	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/bridge/worker"
	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
	"bridgeindexer/internal/wire"
)

// chainRuntime bundles the per-chain dependencies constructed from
// wire.Core's singleton graph, since the indexer's per-chain fan-out
// (spec.md §4.M) sits outside wire's static dependency graph.
type chainRuntime struct {
	chain    types.Chain
	client   *rpc.Client
	registry *registry.Registry
	decoder  *decoder.Decoder
	backfill *worker.Backfill
	tailer   *worker.Tailer
}

func main() {
	container, err := wire.BuildContainer()
	if err != nil {
		os.Stderr.WriteString("failed to build dependency container: " + err.Error() + "\n")
		os.Exit(1)
	}

	core := container.Core
	log := core.Logger

	if err := core.DB.MigrateDatabase(); err != nil {
		log.Fatal("failed to migrate database", logger.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtimes, err := buildChainRuntimes(ctx, core)
	if err != nil {
		log.Fatal("failed to initialize chain runtimes", logger.Error(err))
	}

	var wg sync.WaitGroup
	for _, rt := range runtimes {
		rt := rt
		wg.Add(1)
		go func() {
			defer wg.Done()
			runChain(ctx, rt, log)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("indexer is running", logger.Int("chains", len(runtimes)))
	<-quit
	log.Info("received shutdown signal")

	cancel()
	wg.Wait()

	for _, rt := range runtimes {
		rt.client.Close()
	}

	if err := core.DB.Close(); err != nil {
		log.Error("failed to close database connection", logger.Error(err))
	}

	log.Info("indexer gracefully stopped")
}

// buildChainRuntimes connects to every configured chain's RPC endpoint,
// loads its token registry and builds its decoder/backfill/tailer set,
// per spec.md §4.H/§4.M.
func buildChainRuntimes(ctx context.Context, core *wire.Core) ([]*chainRuntime, error) {
	var runtimes []*chainRuntime

	for name, chain := range core.Chains {
		log := core.Logger.With(logger.String("chain", name))

		client, err := rpc.Dial(ctx, name, chain.RPCURL, chain.IsPoA, core.Logger)
		if err != nil {
			return nil, err
		}

		reg, err := registry.New(chain, client, core.Logger)
		if err != nil {
			return nil, err
		}

		tokenAddresses := make([]string, 0, len(chain.PoolAddresses))
		for _, addr := range chain.PoolAddresses {
			tokenAddresses = append(tokenAddresses, addr)
		}
		if len(tokenAddresses) > 0 {
			if err := reg.LoadTokens(ctx, tokenAddresses); err != nil {
				log.Warn("failed to preload token metadata", logger.Error(err))
			}
		}

		dec, err := decoder.New(name, client, reg.Lookup, reg.PoolTokens, core.Logger)
		if err != nil {
			return nil, err
		}

		backfill := worker.NewBackfill(chain, client, dec, core.TxStore, core.Checkpoints, core.Logger)
		tailer := worker.NewTailer(chain, client, dec, core.TxStore, core.Logger)

		runtimes = append(runtimes, &chainRuntime{
			chain:    chain,
			client:   client,
			registry: reg,
			decoder:  dec,
			backfill: backfill,
			tailer:   tailer,
		})
	}

	if len(runtimes) == 0 {
		return nil, errors.NewInvalidConfigError("chains", "no chains configured")
	}

	return runtimes, nil
}

// runChain drives one chain's ingestion: a single backfill pass followed
// by continuous live tailing, per spec.md §4.E/§4.F. A failed backfill
// pass is logged but does not block the tailer from starting, since the
// tailer recovers forward progress even when the backfill cannot
// complete within one process lifetime.
func runChain(ctx context.Context, rt *chainRuntime, log logger.Logger) {
	chainLog := log.With(logger.String("chain", rt.chain.Name))

	if err := rt.backfill.Run(ctx, rt.chain.BridgeAddress); err != nil && ctx.Err() == nil {
		chainLog.Error("backfill pass failed", logger.Error(err))
	}

	if err := rt.tailer.Run(ctx, rt.chain.BridgeAddress); err != nil && ctx.Err() == nil {
		chainLog.Error("live tailer stopped", logger.Error(err))
	}
}
