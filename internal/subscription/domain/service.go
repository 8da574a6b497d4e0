// Package domain defines subscription lifecycle operations. Subscription
// state lives on the user row; this service owns its transitions.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

var (
	ErrNoActiveSubscription = errors.New("no_active_subscription")
)

type Service interface {
	// Activate upgrades the user to pro for one billing period. Called from
	// the payment webhook after a captured payment.
	Activate(ctx context.Context, userID snowflake.ID, cycle userdomain.BillingCycle, periodStart time.Time) error

	// CancelAtPeriodEnd flags an active pro subscription to lapse when the
	// current period ends. The plan stays pro until then.
	CancelAtPeriodEnd(ctx context.Context, userID snowflake.ID) error

	// DowngradeDue moves users whose cancel-at-period-end period has elapsed
	// back to the free plan, writing a zero-amount admin_adjustment ledger
	// entry documenting the downgrade. Returns how many were downgraded.
	DowngradeDue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// PeriodEnd computes the period bound for a billing cycle.
func PeriodEnd(cycle userdomain.BillingCycle, start time.Time) time.Time {
	if cycle == userdomain.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
