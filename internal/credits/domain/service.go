package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrUserNotFound        = errors.New("user_not_found")
)

// Service owns every credit balance mutation. Deductions fail closed; every
// mutation appends exactly one ledger row.
type Service interface {
	// Deduct removes amount from the user's balance. Fails with
	// ErrInsufficientCredits when balance < amount; the balance is never
	// driven negative. Returns the post-deduction balance.
	Deduct(ctx context.Context, userID snowflake.ID, amount int, reason string, metadata map[string]any) (int, error)

	// Add grants credits of the given kind (earned, bonus, refund,
	// admin_adjustment). Returns the post-grant balance.
	Add(ctx context.Context, userID snowflake.ID, amount int, kind TransactionKind, reason string, metadata map[string]any) (int, error)

	// ResetMonthly restores a free-plan user's balance to their monthly
	// allocation once now >= next_reset_at, advancing next_reset_at past now.
	// Safe to call redundantly: the second call in a period is a no-op.
	// Returns whether a reset happened.
	ResetMonthly(ctx context.Context, userID snowflake.ID) (bool, error)

	Balance(ctx context.Context, userID snowflake.ID) (int, error)

	ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]CreditTransaction, error)

	// PruneOlderThan removes ledger rows older than cutoff. Used by the
	// monthly history pruning job.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
