package store

import (
	"context"

	"github.com/huandu/go-sqlbuilder"

	"bridgeindexer/internal/db"
	"bridgeindexer/internal/errors"
)

// CheckpointKV is the Checkpoint Store's external collaborator interface
// (spec.md §1, §4.A): a monotonic-advance key/value store keyed by the
// format strings in spec.md §6 ("{chain}:{namespace}:{address}:MAX_BLOCK_STORED"
// and "...:TX_INDEX"), restored verbatim from
// original_source/indexer/rpc.py's get_logs/bridge_callback use of
// LOGS_REDIS_URL.
type CheckpointKV interface {
	// Get returns the stored value for key, or ("", false) if absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes key unconditionally.
	Set(ctx context.Context, key, value string) error
	// AdvanceIfGreater writes value only if no stored value exists or the
	// stored value, compared numerically, is less than value — per
	// spec.md §4.A: "a checkpoint write never moves the cursor backward."
	AdvanceIfGreater(ctx context.Context, key string, value int64) error
}

type sqliteCheckpointKV struct {
	db *db.DB
}

// NewCheckpointKV builds a SQLite-backed CheckpointKV.
func NewCheckpointKV(database *db.DB) CheckpointKV {
	return &sqliteCheckpointKV{db: database}
}

func (s *sqliteCheckpointKV) Get(ctx context.Context, key string) (string, bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("value").From("checkpoints").Where(sb.Equal("key", key))
	query, args := sb.Build()

	rows, err := s.db.ExecuteQuery(ctx, query, args...)
	if err != nil {
		return "", false, errors.NewDatabaseError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, nil
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, errors.NewDatabaseError(err)
	}
	return value, true, nil
}

func (s *sqliteCheckpointKV) Set(ctx context.Context, key, value string) error {
	id, err := s.db.GenerateID()
	if err != nil {
		return errors.NewCheckpointWriteError(key, "", err)
	}

	const query = `INSERT INTO checkpoints (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecuteStatement(ctx, query, key, value, id); err != nil {
		return errors.NewCheckpointWriteError(key, "", err)
	}
	return nil
}

func (s *sqliteCheckpointKV) AdvanceIfGreater(ctx context.Context, key string, value int64) error {
	current, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		if currentValue, parseErr := parseInt64(current); parseErr == nil && currentValue >= value {
			return nil
		}
	}
	return s.Set(ctx, key, formatInt64(value))
}

func parseInt64(s string) (int64, error) {
	var n int64
	var neg bool
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, errors.NewInvalidRecordError("empty checkpoint value")
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.NewInvalidRecordError("non-numeric checkpoint value")
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func formatInt64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// CheckpointKey builds the block-height checkpoint key, per spec.md §6.
func CheckpointKey(chain, namespace, address string) string {
	return chain + ":" + namespace + ":" + address + ":MAX_BLOCK_STORED"
}

// CheckpointTxIndexKey builds the within-block transaction-index
// checkpoint key, per spec.md §6.
func CheckpointTxIndexKey(chain, namespace, address string) string {
	return chain + ":" + namespace + ":" + address + ":TX_INDEX"
}
