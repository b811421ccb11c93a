// Package ledger holds merchant credit balances. Every mutation is keyed by a
// reference (the job id for charges and refunds) so a retried call never moves
// credits twice.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNoCharge            = errors.New("no charge recorded for reference")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Entry kinds
const (
	KindCharge = "charge"
	KindRefund = "refund"
	KindGrant  = "grant"
)

// Entry is one line of a merchant's credit history
type Entry struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Ledger interface {
	// Charge debits amount atomically, or fails with ErrInsufficientCredits
	// leaving the balance untouched. Returns the remaining balance.
	Charge(ctx context.Context, userID string, amount int64, reference, description string) (int64, error)
	// Refund credits back a prior charge with the same reference at most once.
	// refunded is false when the refund had already been applied.
	Refund(ctx context.Context, userID string, amount int64, reference, description string) (refunded bool, balance int64, err error)
	// Grant adds credits once per reference.
	Grant(ctx context.Context, userID string, amount int64, reference, description string) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
}
