// Package history defines the optional relational archive of settled loans
// and internal transfers. Core settlement never depends on it; the daemon
// feeds it after the fact so operators can query activity with SQL.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/types"
)

var (
	// ErrClosed is returned when the archive connection is not open.
	ErrClosed = errors.New("history: database closed")

	// ErrNotFound is returned when a lookup matches no rows.
	ErrNotFound = errors.New("history: not found")

	// ErrMissingHost marks a config with no database host.
	ErrMissingHost = errors.New("history: database host is required")

	// ErrMissingDatabase marks a config with no database name.
	ErrMissingDatabase = errors.New("history: database name is required")

	// ErrMissingUsername marks a config with no database user.
	ErrMissingUsername = errors.New("history: database username is required")
)

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DefaultTimeout  time.Duration
}

// DefaultConfig returns production defaults; Host is left for the operator.
func DefaultConfig() Config {
	return Config{
		Port:            5432,
		Database:        "goflashd",
		Username:        "goflashd",
		SSLMode:         "prefer",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		DefaultTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Database == "" {
		return ErrMissingDatabase
	}
	if c.Username == "" {
		return ErrMissingUsername
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("history: invalid port %d", c.Port)
	}
	switch c.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("history: invalid ssl mode %q", c.SSLMode)
	}
	return nil
}

// ConnString builds the lib/pq connection string.
func (c *Config) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, sslMode)
}

// LoanRecord is one settled flash loan.
type LoanRecord struct {
	Instance  types.AccountID
	Initiator types.AccountID
	Borrower  types.AccountID
	Asset     types.AssetID
	Amount    amount.Quantity
	Fee       amount.Quantity
	Seq       uint64
	SettledAt time.Time
}

// TransferRecord is one internal balance movement.
type TransferRecord struct {
	Instance   types.AccountID
	Asset      types.AssetID
	From       types.AccountID
	To         types.AccountID
	Amount     amount.Quantity
	Seq        uint64
	ExecutedAt time.Time
}

// LoanQuery filters loan lookups. Zero fields match everything.
type LoanQuery struct {
	Instance *types.AccountID
	Borrower *types.AccountID
	Asset    *types.AssetID
	MinSeq   uint64
	Limit    uint32
}

// Store is the archive contract. The postgres subpackage provides the real
// implementation.
type Store interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	RecordLoan(ctx context.Context, loan *LoanRecord) error
	RecordTransfer(ctx context.Context, transfer *TransferRecord) error

	Loans(ctx context.Context, q LoanQuery) ([]LoanRecord, error)
	LoanCount(ctx context.Context) (uint64, error)
	TransfersByAccount(ctx context.Context, account types.AccountID, limit uint32) ([]TransferRecord, error)
}
