package wire

import (
	"github.com/google/wire"

	"bridgeindexer/internal/bridge/registry"
	"bridgeindexer/internal/bridge/store"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/config"
	"bridgeindexer/internal/db"
	"bridgeindexer/internal/logger"
	"bridgeindexer/internal/snowflake"
)

// CoreSet combines the process-wide singleton dependencies: configuration,
// persistence and the static chain table. Per-chain dependencies (RPC
// client, registry, decoder, worker) are constructed by cmd/indexer, one
// set per configured chain, since wire's graph models singletons rather
// than the spec's per-chain fan-out (spec.md §4.M).
var CoreSet = wire.NewSet(
	config.LoadConfig,
	NewSnowflake,
	db.NewDatabase,
	logger.NewLogger,
	NewChains,
	store.NewTransactionStore,
	store.NewCheckpointKV,
	NewCore,
)

func NewSnowflake(cfg *config.Config) (*snowflake.Snowflake, error) {
	return snowflake.NewSnowflake(0, 0)
}

// NewChains converts the configuration's chain table into the bridge
// domain's types.Chain values, filling per-chain defaults (spec.md §4.E's
// backfill window table) when the configuration leaves them unset.
func NewChains(cfg *config.Config) map[string]types.Chain {
	chains := make(map[string]types.Chain, len(cfg.Chains))
	for name, c := range cfg.Chains {
		window := c.BackfillWindow
		if window == 0 {
			window = types.BackfillWindowFor(name)
		}
		firstBlock := c.FirstBlock
		if firstBlock == 0 {
			firstBlock = registry.DefaultFirstBlocks[name]
		}
		chains[name] = types.Chain{
			Name:           name,
			ID:             c.ChainID,
			RPCURL:         c.RPCURL,
			BridgeAddress:  c.BridgeAddress,
			PoolAddresses:  c.PoolAddresses,
			FirstBlock:     firstBlock,
			BackfillWindow: window,
			IsPoA:          c.IsPoA,
		}
	}
	return chains
}

// Core holds the process-wide singleton dependencies.
type Core struct {
	Config      *config.Config
	DB          *db.DB
	Logger      logger.Logger
	Chains      map[string]types.Chain
	TxStore     store.TransactionStore
	Checkpoints store.CheckpointKV
}

// NewCore creates a new Core instance with all core dependencies.
func NewCore(
	cfg *config.Config,
	database *db.DB,
	log logger.Logger,
	chains map[string]types.Chain,
	txStore store.TransactionStore,
	checkpoints store.CheckpointKV,
) *Core {
	return &Core{
		Config:      cfg,
		DB:          database,
		Logger:      log,
		Chains:      chains,
		TxStore:     txStore,
		Checkpoints: checkpoints,
	}
}

// Container holds the application's fully wired dependency graph.
type Container struct {
	Core *Core
}

// NewContainer creates a new dependency injection container.
func NewContainer(core *Core) *Container {
	return &Container{Core: core}
}

// ContainerSet combines all dependency sets.
var ContainerSet = wire.NewSet(
	CoreSet,
	NewContainer,
)
