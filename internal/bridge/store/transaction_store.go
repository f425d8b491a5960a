// Package store implements the Correlation Store (spec.md §4.D) and
// Checkpoint Store (spec.md §4.A) as SQLite-backed adapters behind the
// document-store/KV interfaces the spec names, grounded on the teacher's
// database/sql + go-sqlbuilder repository idiom
// (internal/services/signer/repository.go).
package store

import (
	"database/sql"
	"math/big"
	"strings"

	"context"

	"github.com/huandu/go-sqlbuilder"

	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/db"
	"bridgeindexer/internal/errors"
)

// transactionRow is the column-mapped row shape for the transactions
// table (migrations/000001_create_transactions.up.sql).
type transactionRow struct {
	ID            int64          `db:"id"`
	Kappa         string         `db:"kappa"`
	Pending       bool           `db:"pending"`
	FromTxHash    sql.NullString `db:"from_tx_hash"`
	FromAddress   sql.NullString `db:"from_address"`
	ToAddress     sql.NullString `db:"to_address"`
	SentValue     sql.NullString `db:"sent_value"`
	SentToken     sql.NullString `db:"sent_token"`
	FromChainID   sql.NullInt64  `db:"from_chain_id"`
	ToChainID     sql.NullInt64  `db:"to_chain_id"`
	SentTime      sql.NullInt64  `db:"sent_time"`
	ToTxHash      sql.NullString `db:"to_tx_hash"`
	ReceivedValue sql.NullString `db:"received_value"`
	ReceivedToken sql.NullString `db:"received_token"`
	ReceivedTime  sql.NullInt64  `db:"received_time"`
	SwapSuccess   sql.NullBool   `db:"swap_success"`
	CreatedAt     int64          `db:"created_at"`
	UpdatedAt     int64          `db:"updated_at"`
}

// TransactionStore is the Correlation Store's external collaborator
// interface (spec.md §1, §4.D): kappa-keyed upsert/merge of OUT and IN
// halves into a single Transaction record.
type TransactionStore interface {
	// ApplyOut merges h into the transaction keyed by h.Kappa, creating it
	// if absent, per spec.md §4.D's upsert/merge rule.
	ApplyOut(ctx context.Context, h *types.OutHalf) (*types.Transaction, error)
	// ApplyIn merges h into the transaction keyed by h.Kappa, creating it
	// if absent.
	ApplyIn(ctx context.Context, h *types.InHalf) (*types.Transaction, error)
	// Get retrieves a transaction by kappa.
	Get(ctx context.Context, kappa string) (*types.Transaction, error)
}

type sqliteTransactionStore struct {
	db        *db.DB
	structMap *sqlbuilder.Struct
}

// NewTransactionStore builds a SQLite-backed TransactionStore.
func NewTransactionStore(database *db.DB) TransactionStore {
	return &sqliteTransactionStore{
		db:        database,
		structMap: sqlbuilder.NewStruct(new(transactionRow)),
	}
}

// ApplyOut implements optimistic-concurrency upsert/merge, per spec.md
// §4.D: "a conflicting concurrent write to the same kappa is retried by
// re-reading and re-merging, not overwritten blind." The caller's own
// retry loop (Retry/Scheduler, spec.md §4.G) handles ErrCodeStoreConflict
// by re-invoking ApplyOut/ApplyIn, which re-reads the current row.
func (s *sqliteTransactionStore) ApplyOut(ctx context.Context, h *types.OutHalf) (*types.Transaction, error) {
	return s.apply(ctx, h.Kappa, func(txn *types.Transaction) {
		txn.ApplyOutHalf(h)
	})
}

// ApplyIn implements the IN-side counterpart of ApplyOut.
func (s *sqliteTransactionStore) ApplyIn(ctx context.Context, h *types.InHalf) (*types.Transaction, error) {
	return s.apply(ctx, h.Kappa, func(txn *types.Transaction) {
		txn.ApplyInHalf(h)
	})
}

// applyRetries bounds how many times apply() will re-read-merge-write a
// kappa after losing a concurrent update race, before surfacing the
// conflict to the caller's own retry loop (Retry/Scheduler, spec.md §4.G).
const applyRetries = 3

func (s *sqliteTransactionStore) apply(ctx context.Context, kappa string, merge func(*types.Transaction)) (*types.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		row, err := s.getRow(ctx, kappa)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}

		var txn *types.Transaction
		if row == nil {
			txn = &types.Transaction{Kappa: kappa, Pending: true}
		} else {
			txn = rowToTransaction(row)
		}
		merge(txn)

		id, err := s.db.GenerateID()
		if err != nil {
			return nil, errors.NewDatabaseError(err)
		}

		if row == nil {
			if err := s.insert(ctx, txn, id); err != nil {
				if isUniqueConflict(err) {
					lastErr = errors.NewStoreConflictError(kappa, err)
					continue
				}
				return nil, errors.NewDatabaseError(err)
			}
			return txn, nil
		}

		matched, err := s.update(ctx, txn, id, row.UpdatedAt)
		if err != nil {
			return nil, errors.NewDatabaseError(err)
		}
		if !matched {
			// Another writer updated this kappa between our read and our
			// write; re-read and re-merge rather than overwriting it blind.
			lastErr = errors.NewStoreConflictError(kappa, nil)
			continue
		}
		return txn, nil
	}

	return nil, lastErr
}

func (s *sqliteTransactionStore) Get(ctx context.Context, kappa string) (*types.Transaction, error) {
	row, err := s.getRow(ctx, kappa)
	if err != nil {
		return nil, err
	}
	return rowToTransaction(row), nil
}

// getRow fetches the raw row for kappa, including updated_at, which apply()
// needs as the optimistic-concurrency guard on its subsequent update.
func (s *sqliteTransactionStore) getRow(ctx context.Context, kappa string) (*transactionRow, error) {
	sb := s.structMap.SelectFrom("transactions")
	sb.Where(sb.Equal("kappa", kappa))
	query, args := sb.Build()

	rows, err := s.db.ExecuteQuery(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errors.NewRecordNotFoundError("transaction")
	}

	row, err := scanRow(rows)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	return row, nil
}

func scanRow(rows *sql.Rows) (*transactionRow, error) {
	var row transactionRow
	err := rows.Scan(
		&row.ID, &row.Kappa, &row.Pending,
		&row.FromTxHash, &row.FromAddress, &row.ToAddress, &row.SentValue, &row.SentToken,
		&row.FromChainID, &row.ToChainID, &row.SentTime,
		&row.ToTxHash, &row.ReceivedValue, &row.ReceivedToken, &row.ReceivedTime, &row.SwapSuccess,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *sqliteTransactionStore) insert(ctx context.Context, txn *types.Transaction, id int64) error {
	row := transactionToRow(txn, id, id)
	ib := s.structMap.InsertInto("transactions", &row)
	query, args := ib.Build()
	_, err := s.db.ExecuteStatement(ctx, query, args...)
	return err
}

// update writes txn's merged fields back, guarded by expectedUpdatedAt: the
// WHERE clause only matches the row this call read, so a writer that lost a
// concurrent race gets zero rows affected instead of clobbering the other
// writer's merge.
func (s *sqliteTransactionStore) update(ctx context.Context, txn *types.Transaction, updatedAt, expectedUpdatedAt int64) (bool, error) {
	row := transactionToRow(txn, 0, updatedAt)
	ub := s.structMap.Update("transactions", &row)
	ub.Where(ub.Equal("kappa", row.Kappa))
	ub.Where(ub.Equal("updated_at", expectedUpdatedAt))
	query, args := ub.Build()
	result, err := s.db.ExecuteStatement(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func transactionToRow(txn *types.Transaction, id, updatedAt int64) transactionRow {
	return transactionRow{
		ID:            id,
		Kappa:         txn.Kappa,
		Pending:       txn.Pending,
		FromTxHash:    nullString(txn.FromTxHash),
		FromAddress:   nullString(txn.FromAddress),
		ToAddress:     nullString(txn.ToAddress),
		SentValue:     nullBigInt(txn.SentValue),
		SentToken:     nullString(txn.SentToken),
		FromChainID:   nullInt64(txn.FromChainID),
		ToChainID:     nullInt64(txn.ToChainID),
		SentTime:      nullInt64(txn.SentTime),
		ToTxHash:      nullString(txn.ToTxHash),
		ReceivedValue: nullBigInt(txn.ReceivedValue),
		ReceivedToken: nullString(txn.ReceivedToken),
		ReceivedTime:  nullInt64(txn.ReceivedTime),
		SwapSuccess:   nullBoolPtr(txn.SwapSuccess),
		CreatedAt:     id,
		UpdatedAt:     updatedAt,
	}
}

func rowToTransaction(row *transactionRow) *types.Transaction {
	txn := &types.Transaction{
		Kappa:         row.Kappa,
		Pending:       row.Pending,
		FromTxHash:    row.FromTxHash.String,
		FromAddress:   row.FromAddress.String,
		ToAddress:     row.ToAddress.String,
		SentToken:     row.SentToken.String,
		FromChainID:   row.FromChainID.Int64,
		ToChainID:     row.ToChainID.Int64,
		SentTime:      row.SentTime.Int64,
		ToTxHash:      row.ToTxHash.String,
		ReceivedToken: row.ReceivedToken.String,
		ReceivedTime:  row.ReceivedTime.Int64,
	}
	if row.SentValue.Valid {
		if v, ok := new(big.Int).SetString(row.SentValue.String, 10); ok {
			txn.SentValue = v
		}
	}
	if row.ReceivedValue.Valid {
		if v, ok := new(big.Int).SetString(row.ReceivedValue.String, 10); ok {
			txn.ReceivedValue = v
		}
	}
	if row.SwapSuccess.Valid {
		b := row.SwapSuccess.Bool
		txn.SwapSuccess = &b
	}
	return txn
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullBoolPtr(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// nullBigInt stores a big.Int as its exact base-10 string, since SQLite
// has no native decimal/128-bit integer type and bridged values routinely
// exceed 2^63 (spec.md §3, §9).
func nullBigInt(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func isUniqueConflict(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
