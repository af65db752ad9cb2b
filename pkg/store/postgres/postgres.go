// Package postgres implements the store contract on PostgreSQL. Optimistic
// concurrency uses a version column: every UPDATE carries the version the
// transaction read, and zero affected rows means another writer got there
// first.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/lib/pq"
)

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns sensible defaults for connection pooling
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Store is a PostgreSQL-backed store.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, applies the pool configuration and ensures the
// schema exists.
func Open(databaseURL string, poolCfg PoolConfig) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(poolCfg.MaxOpenConns)
	db.SetMaxIdleConns(poolCfg.MaxIdleConns)
	db.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("✅ Database connected (pool: %d open / %d idle)",
		poolCfg.MaxOpenConns, poolCfg.MaxIdleConns)
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a database transaction. A version mismatch on any
// staged update surfaces as store.ErrWriteConflict and rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	t := &pgTx{ctx: ctx, tx: dbTx}
	if err := fn(t); err != nil {
		dbTx.Rollback()
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// migrate creates the tables if they do not exist
func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// pgTx groups the per-entity repositories over one database transaction.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Accounts() store.AccountRepo       { return &accountRepo{t} }
func (t *pgTx) Coupons() store.CouponRepo         { return &couponRepo{t} }
func (t *pgTx) Redemptions() store.RedemptionRepo { return &redemptionRepo{t} }
func (t *pgTx) Affiliates() store.AffiliateRepo   { return &affiliateRepo{t} }
func (t *pgTx) Payouts() store.PayoutRepo         { return &payoutRepo{t} }
func (t *pgTx) Referrals() store.ReferralRepo     { return &referralRepo{t} }
func (t *pgTx) CreditKeys() store.CreditKeyRepo   { return &creditKeyRepo{t} }
func (t *pgTx) Ledger() store.LedgerRepo          { return &ledgerRepo{t} }

// mapError translates driver errors to the store sentinels.
func mapError(err error) error {
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}

// checkVersioned interprets the result of a version-guarded UPDATE.
func checkVersioned(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrWriteConflict
	}
	return nil
}
