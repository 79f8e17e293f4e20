// Package postgres implements the history archive on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/storage/history"
	"github.com/LeJamon/goflashd/internal/types"
)

// Archive is the PostgreSQL-backed history store.
type Archive struct {
	db  *sql.DB
	cfg history.Config
}

// New creates an archive; Open establishes the connection.
func New(cfg history.Config) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Archive{cfg: cfg}, nil
}

// Open connects, configures the pool and creates the schema.
func (a *Archive) Open(ctx context.Context) error {
	db, err := sql.Open("postgres", a.cfg.ConnString())
	if err != nil {
		return fmt.Errorf("history: open: %w", err)
	}

	db.SetMaxOpenConns(a.cfg.MaxOpenConns)
	db.SetMaxIdleConns(a.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(a.cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.DefaultTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("history: ping: %w", err)
	}

	a.db = db
	if err := a.initSchema(ctx); err != nil {
		a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Ping verifies the connection is alive.
func (a *Archive) Ping(ctx context.Context) error {
	if a.db == nil {
		return history.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DefaultTimeout)
	defer cancel()
	return a.db.PingContext(ctx)
}

func (a *Archive) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS loans (
			id BIGSERIAL PRIMARY KEY,
			instance BYTEA NOT NULL,
			initiator BYTEA NOT NULL,
			borrower BYTEA NOT NULL,
			asset BYTEA NOT NULL,
			amount NUMERIC(20,0) NOT NULL,
			fee NUMERIC(20,0) NOT NULL,
			seq BIGINT NOT NULL,
			settled_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transfers (
			id BIGSERIAL PRIMARY KEY,
			instance BYTEA NOT NULL,
			asset BYTEA NOT NULL,
			sender BYTEA NOT NULL,
			recipient BYTEA NOT NULL,
			amount NUMERIC(20,0) NOT NULL,
			seq BIGINT NOT NULL,
			executed_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_loans_instance ON loans(instance)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_seq ON loans(seq)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_recipient ON transfers(recipient)`,
	}

	for _, query := range queries {
		if _, err := a.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("history: schema: %w", err)
		}
	}
	return nil
}

// RecordLoan appends one settled loan.
func (a *Archive) RecordLoan(ctx context.Context, loan *history.LoanRecord) error {
	if a.db == nil {
		return history.ErrClosed
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO loans (instance, initiator, borrower, asset, amount, fee, seq, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		loan.Instance[:], loan.Initiator[:], loan.Borrower[:], loan.Asset[:],
		uint64(loan.Amount), uint64(loan.Fee), loan.Seq, loan.SettledAt)
	if err != nil {
		return fmt.Errorf("history: record loan: %w", err)
	}
	return nil
}

// RecordTransfer appends one internal transfer.
func (a *Archive) RecordTransfer(ctx context.Context, transfer *history.TransferRecord) error {
	if a.db == nil {
		return history.ErrClosed
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO transfers (instance, asset, sender, recipient, amount, seq, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		transfer.Instance[:], transfer.Asset[:], transfer.From[:], transfer.To[:],
		uint64(transfer.Amount), transfer.Seq, transfer.ExecutedAt)
	if err != nil {
		return fmt.Errorf("history: record transfer: %w", err)
	}
	return nil
}

// Loans returns settled loans matching q, newest first.
func (a *Archive) Loans(ctx context.Context, q history.LoanQuery) ([]history.LoanRecord, error) {
	if a.db == nil {
		return nil, history.ErrClosed
	}

	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Instance != nil {
		where = append(where, "instance = "+arg(q.Instance[:]))
	}
	if q.Borrower != nil {
		where = append(where, "borrower = "+arg(q.Borrower[:]))
	}
	if q.Asset != nil {
		where = append(where, "asset = "+arg(q.Asset[:]))
	}
	if q.MinSeq > 0 {
		where = append(where, "seq >= "+arg(q.MinSeq))
	}

	query := `SELECT instance, initiator, borrower, asset, amount, fee, seq, settled_at FROM loans`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query loans: %w", err)
	}
	defer rows.Close()

	var out []history.LoanRecord
	for rows.Next() {
		var (
			rec                                 history.LoanRecord
			instance, initiator, borrower, asst []byte
			amountRaw, feeRaw                   uint64
		)
		if err := rows.Scan(&instance, &initiator, &borrower, &asst,
			&amountRaw, &feeRaw, &rec.Seq, &rec.SettledAt); err != nil {
			return nil, fmt.Errorf("history: scan loan: %w", err)
		}
		copy(rec.Instance[:], instance)
		copy(rec.Initiator[:], initiator)
		copy(rec.Borrower[:], borrower)
		copy(rec.Asset[:], asst)
		rec.Amount = amount.Quantity(amountRaw)
		rec.Fee = amount.Quantity(feeRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoanCount reports the number of archived loans.
func (a *Archive) LoanCount(ctx context.Context) (uint64, error) {
	if a.db == nil {
		return 0, history.ErrClosed
	}

	var count uint64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("history: loan count: %w", err)
	}
	return count, nil
}

// TransfersByAccount returns transfers where account is sender or recipient,
// newest first.
func (a *Archive) TransfersByAccount(ctx context.Context, account types.AccountID, limit uint32) ([]history.TransferRecord, error) {
	if a.db == nil {
		return nil, history.ErrClosed
	}

	query := `SELECT instance, asset, sender, recipient, amount, seq, executed_at
		 FROM transfers WHERE sender = $1 OR recipient = $1 ORDER BY seq DESC`
	args := []interface{}{account[:]}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query transfers: %w", err)
	}
	defer rows.Close()

	var out []history.TransferRecord
	for rows.Next() {
		var (
			rec                               history.TransferRecord
			instance, asst, sender, recipient []byte
			amountRaw                         uint64
		)
		if err := rows.Scan(&instance, &asst, &sender, &recipient,
			&amountRaw, &rec.Seq, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("history: scan transfer: %w", err)
		}
		copy(rec.Instance[:], instance)
		copy(rec.Asset[:], asst)
		copy(rec.From[:], sender)
		copy(rec.To[:], recipient)
		rec.Amount = amount.Quantity(amountRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ history.Store = (*Archive)(nil)
