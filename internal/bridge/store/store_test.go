package store

import (
	"context"
	"database/sql"
	"math/big"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeindexer/internal/bridge/types"
	bridgedb "bridgeindexer/internal/db"
	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
	"bridgeindexer/internal/snowflake"
)

func setupTestDB(t *testing.T) (*bridgedb.DB, func()) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY,
			kappa TEXT NOT NULL,
			pending INTEGER NOT NULL DEFAULT 1,
			from_tx_hash TEXT,
			from_address TEXT,
			to_address TEXT,
			sent_value TEXT,
			sent_token TEXT,
			from_chain_id INTEGER,
			to_chain_id INTEGER,
			sent_time INTEGER,
			to_tx_hash TEXT,
			received_value TEXT,
			received_token TEXT,
			received_time INTEGER,
			swap_success INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_kappa ON transactions (kappa);

		CREATE TABLE IF NOT EXISTS checkpoints (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	sf, err := snowflake.NewSnowflake(1, 1)
	require.NoError(t, err)
	log, err := logger.NewLogger()
	require.NoError(t, err)

	database := &bridgedb.DB{Conn: conn, Snowflake: sf, Log: log}

	return database, func() { conn.Close() }
}

func TestTransactionStore_ApplyOut_CreatesPendingRecord(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewTransactionStore(database)
	ctx := context.Background()

	out := &types.OutHalf{
		Kappa:       "0xkappa1",
		FromTxHash:  "0xouttx",
		FromAddress: "0xalice",
		ToAddress:   "0xbridge",
		SentValue:   big.NewInt(1000),
		SentToken:   "nUSD",
		FromChainID: 1,
		ToChainID:   56,
		SentTime:    1700000000,
	}

	txn, err := s.ApplyOut(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "0xkappa1", txn.Kappa)
	assert.True(t, txn.Pending)
	assert.Equal(t, "0xouttx", txn.FromTxHash)
	assert.Equal(t, big.NewInt(1000), txn.SentValue)

	fetched, err := s.Get(ctx, "0xkappa1")
	require.NoError(t, err)
	assert.Equal(t, txn.FromTxHash, fetched.FromTxHash)
}

func TestTransactionStore_ApplyIn_MergesIntoExistingOutHalf(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewTransactionStore(database)
	ctx := context.Background()

	_, err := s.ApplyOut(ctx, &types.OutHalf{
		Kappa:       "0xkappa2",
		FromTxHash:  "0xouttx",
		FromChainID: 1,
		ToChainID:   56,
		SentValue:   big.NewInt(500),
		SentToken:   "nETH",
	})
	require.NoError(t, err)

	merged, err := s.ApplyIn(ctx, &types.InHalf{
		Kappa:         "0xkappa2",
		ToTxHash:      "0xintx",
		ReceivedValue: big.NewInt(495),
		ReceivedToken: "nETH",
		ReceivedTime:  1700000100,
	})
	require.NoError(t, err)

	assert.False(t, merged.Pending, "a transaction with both halves present is no longer pending")
	assert.Equal(t, "0xouttx", merged.FromTxHash)
	assert.Equal(t, "0xintx", merged.ToTxHash)
	assert.Equal(t, big.NewInt(495), merged.ReceivedValue)
}

func TestTransactionStore_ApplyIn_BeforeOut_CreatesRecordFirst(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewTransactionStore(database)
	ctx := context.Background()

	txn, err := s.ApplyIn(ctx, &types.InHalf{
		Kappa:         "0xkappa3",
		ToTxHash:      "0xintx",
		ReceivedValue: big.NewInt(10),
		ReceivedToken: "nUSD",
	})
	require.NoError(t, err)
	assert.True(t, txn.Pending, "an IN-only record is still missing its OUT half")
	assert.Equal(t, "0xintx", txn.ToTxHash)

	_, err = s.Get(ctx, "0xkappa3")
	require.NoError(t, err)
}

func TestTransactionStore_Get_NotFound(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewTransactionStore(database)
	_, err := s.Get(context.Background(), "0xmissing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckpointKV_SetAndGet(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	kv := NewCheckpointKV(database)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "ethereum:logs:0xbridge:MAX_BLOCK_STORED")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "ethereum:logs:0xbridge:MAX_BLOCK_STORED", "100"))

	value, ok, err := kv.Get(ctx, "ethereum:logs:0xbridge:MAX_BLOCK_STORED")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "100", value)
}

func TestCheckpointKV_AdvanceIfGreater_NeverMovesBackward(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	kv := NewCheckpointKV(database)
	ctx := context.Background()
	key := "bsc:logs:0xbridge:MAX_BLOCK_STORED"

	require.NoError(t, kv.AdvanceIfGreater(ctx, key, 500))
	require.NoError(t, kv.AdvanceIfGreater(ctx, key, 200))

	value, ok, err := kv.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "500", value, "checkpoint must not move backward on a lower value")

	require.NoError(t, kv.AdvanceIfGreater(ctx, key, 900))
	value, _, err = kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "900", value)
}

func TestCheckpointKey_Format(t *testing.T) {
	assert.Equal(t, "ethereum:logs:0xbridge:MAX_BLOCK_STORED", CheckpointKey("ethereum", "logs", "0xbridge"))
	assert.Equal(t, "ethereum:logs:0xbridge:TX_INDEX", CheckpointTxIndexKey("ethereum", "logs", "0xbridge"))
}

// TestTransactionStore_ConcurrentApply_DoesNotDropEitherHalf races ApplyOut
// and ApplyIn against the same already-existing kappa. A blind read-merge-
// write apply() would let one writer's update clobber the other's, since
// both read the row before either writes; the optimistic-concurrency guard
// on apply()'s update path must force the loser to re-read, re-merge, and
// retry instead of silently dropping a half.
func TestTransactionStore_ConcurrentApply_DoesNotDropEitherHalf(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	database.Conn.SetMaxOpenConns(1)

	s := NewTransactionStore(database)
	ctx := context.Background()
	kappa := "0xkapparace"

	_, err := database.Conn.ExecContext(ctx, `
		INSERT INTO transactions (id, kappa, pending, created_at, updated_at)
		VALUES (1, ?, 1, 1700000000, 1700000000)
	`, kappa)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, err := s.ApplyOut(ctx, &types.OutHalf{
			Kappa:       kappa,
			FromTxHash:  "0xraceout",
			FromAddress: "0xalice",
			ToAddress:   "0xbridge",
			SentValue:   big.NewInt(100),
			SentToken:   "nUSD",
			FromChainID: 1,
			ToChainID:   56,
			SentTime:    1700000001,
		})
		errs <- err
	}()

	go func() {
		defer wg.Done()
		_, err := s.ApplyIn(ctx, &types.InHalf{
			Kappa:         kappa,
			ToTxHash:      "0xracein",
			ReceivedValue: big.NewInt(99),
			ReceivedToken: "nUSD",
			ReceivedTime:  1700000002,
		})
		errs <- err
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := s.Get(ctx, kappa)
	require.NoError(t, err)
	assert.Equal(t, "0xraceout", final.FromTxHash, "OUT half must survive the concurrent ApplyIn")
	assert.Equal(t, "0xracein", final.ToTxHash, "IN half must survive the concurrent ApplyOut")
}
