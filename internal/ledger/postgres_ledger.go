package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/reelforge/api/db/migrations"
)

// PostgresLedger stores balances and an append-only entry table. The unique
// (kind, reference) constraint is what makes charges and refunds idempotent.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	l := &PostgresLedger{db: db}
	if err := l.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

func (l *PostgresLedger) ensureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return err
	}
	files, err := listMigrationFiles(migrations.Files)
	if err != nil {
		return err
	}
	for _, file := range files {
		var applied bool
		if err := l.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, file).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := l.applyMigration(ctx, file); err != nil {
			return err
		}
		log.Printf("[Ledger] applied migration %s", file)
	}
	return nil
}

func (l *PostgresLedger) applyMigration(ctx context.Context, file string) error {
	sqlBytes, err := migrations.Files.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, file, time.Now().UTC()); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	return tx.Commit()
}

func listMigrationFiles(migFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migFS, ".")
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (l *PostgresLedger) Charge(ctx context.Context, userID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var remaining int64
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		inserted, err := insertEntry(ctx, tx, KindCharge, userID, amount, reference, description)
		if err != nil {
			return err
		}
		if !inserted {
			remaining, err = balanceTx(ctx, tx, userID)
			return err
		}
		err = tx.QueryRowContext(ctx,
			`UPDATE credit_balances SET balance = balance - $2, updated_at = now()
			 WHERE user_id = $1 AND balance >= $2 RETURNING balance`,
			userID, amount,
		).Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientCredits
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			bal, _ := l.Balance(ctx, userID)
			return bal, err
		}
		return 0, fmt.Errorf("failed to charge credits: %w", err)
	}
	return remaining, nil
}

func (l *PostgresLedger) Refund(ctx context.Context, userID string, amount int64, reference, description string) (bool, int64, error) {
	if amount <= 0 {
		return false, 0, ErrInvalidAmount
	}
	var (
		refunded bool
		balance  int64
	)
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var charged bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM credit_entries WHERE kind = $1 AND reference = $2)`,
			KindCharge, reference,
		).Scan(&charged); err != nil {
			return err
		}
		if !charged {
			return ErrNoCharge
		}
		inserted, err := insertEntry(ctx, tx, KindRefund, userID, amount, reference, description)
		if err != nil {
			return err
		}
		if !inserted {
			balance, err = balanceTx(ctx, tx, userID)
			return err
		}
		refunded = true
		balance, err = addBalance(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoCharge) {
			return false, 0, err
		}
		return false, 0, fmt.Errorf("failed to refund credits: %w", err)
	}
	return refunded, balance, nil
}

func (l *PostgresLedger) Grant(ctx context.Context, userID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		inserted, err := insertEntry(ctx, tx, KindGrant, userID, amount, reference, description)
		if err != nil {
			return err
		}
		if !inserted {
			balance, err = balanceTx(ctx, tx, userID)
			return err
		}
		balance, err = addBalance(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	return balance, nil
}

func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.QueryRowContext(ctx, `SELECT balance FROM credit_balances WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func (l *PostgresLedger) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// insertEntry reports false when an entry with the same kind and reference exists.
func insertEntry(ctx context.Context, tx *sql.Tx, kind, userID string, amount int64, reference, description string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO credit_entries (user_id, kind, amount, reference, description)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (kind, reference) DO NOTHING`,
		userID, kind, amount, reference, description,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func addBalance(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO credit_balances (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET balance = credit_balances.balance + EXCLUDED.balance, updated_at = now()
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	return balance, err
}

func balanceTx(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM credit_balances WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}
