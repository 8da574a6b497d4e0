package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound = errors.New("user_not_found")
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	FindByReferralCode(ctx context.Context, code string) (*User, error)
	Save(ctx context.Context, user *User) error

	// ActiveSince counts users whose updated_at falls in the window.
	ActiveSince(ctx context.Context, since time.Time) (int64, error)
	SignupsSince(ctx context.Context, since time.Time) (int64, error)
	CountByPlan(ctx context.Context) (map[Plan]int64, error)

	// DueMonthlyReset lists free-plan users whose next_reset_at has passed.
	DueMonthlyReset(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error)
	// LowCreditUsers lists opted-in free-plan users with 0 < balance <= threshold.
	LowCreditUsers(ctx context.Context, threshold int) ([]*User, error)
}
