package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrz1836/paytoken/internal/domain"
)

// accountRow is a ledger account.
type accountRow struct {
	UID     string `gorm:"primaryKey"`
	Balance int64
}

func (accountRow) TableName() string { return "accounts" }

// transactionRow is a ledger transaction. The unique nonce index is what
// makes settlement idempotent.
type transactionRow struct {
	ID          string `gorm:"primaryKey"`
	FromID      string `gorm:"index"`
	ToID        string `gorm:"index"`
	Amount      int64
	Type        string
	Memo        string
	Nonce       string `gorm:"uniqueIndex"`
	TimestampMs int64  `gorm:"index"`
	IsVerified  bool
}

func (transactionRow) TableName() string { return "transactions" }

func (r *transactionRow) toDomain() *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:          r.ID,
		FromID:      r.FromID,
		ToID:        r.ToID,
		Amount:      r.Amount,
		Type:        domain.TransactionType(r.Type),
		Memo:        r.Memo,
		Nonce:       r.Nonce,
		TimestampMs: r.TimestampMs,
		IsVerified:  r.IsVerified,
	}
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// migrates the ledger schema. Query failures are logged to logger.
func OpenSQLite(path string, logger zerolog.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection queues transactions
	// instead of failing them with SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&accountRow{}, &transactionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// NewSQL creates a Ledger persisted through gorm. The schema must already
// exist; OpenSQLite migrates it.
func NewSQL(db *gorm.DB, verifier TokenVerifier, opts ...Option) *Ledger {
	return newLedger(&sqlRepo{db: db}, verifier, opts...)
}

type sqlRepo struct {
	db *gorm.DB
}

func (r *sqlRepo) atomically(ctx context.Context, fn func(book) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqlBook{tx: tx})
	})
}

func (r *sqlRepo) history(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error) {
	var rows []transactionRow
	err := r.db.WithContext(ctx).
		Where("from_id = ? OR to_id = ?", uid, uid).
		Order("timestamp_ms DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	out := make([]domain.LedgerTransaction, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

type sqlBook struct {
	tx *gorm.DB
}

func (b *sqlBook) account(uid string) (int64, bool, error) {
	var row accountRow
	err := b.tx.Where("uid = ?", uid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load account: %w", err)
	}
	return row.Balance, true, nil
}

func (b *sqlBook) createAccount(uid string, balance int64) error {
	return b.tx.Create(&accountRow{UID: uid, Balance: balance}).Error
}

func (b *sqlBook) adjust(uid string, delta int64) error {
	return b.tx.Model(&accountRow{}).
		Where("uid = ?", uid).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (b *sqlBook) byNonce(nonce string) (*domain.LedgerTransaction, error) {
	var row transactionRow
	err := b.tx.Where("nonce = ?", nonce).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return row.toDomain(), nil
}

func (b *sqlBook) insert(tx *domain.LedgerTransaction) error {
	return b.tx.Create(&transactionRow{
		ID:          tx.ID,
		FromID:      tx.FromID,
		ToID:        tx.ToID,
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		Memo:        tx.Memo,
		Nonce:       tx.Nonce,
		TimestampMs: tx.TimestampMs,
		IsVerified:  tx.IsVerified,
	}).Error
}

func (b *sqlBook) markVerified(id string) error {
	return b.tx.Model(&transactionRow{}).Where("id = ?", id).Update("is_verified", true).Error
}
