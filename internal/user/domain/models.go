// Package domain contains the account model shared by the credit, referral
// and subscription services.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan is the billing plan a user is on.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusNone     SubscriptionStatus = "none"
)

// BillingCycle is the subscription renewal interval.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// User is one row per account. Subscription, credit and usage state live on
// the row itself; the credit transaction log lives in its own table.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	Name      string       `gorm:"type:text"`
	AvatarURL string       `gorm:"type:text"`
	GoogleID  string       `gorm:"type:text;uniqueIndex:ux_users_google_id"`
	Role      string       `gorm:"type:text;not null;default:user"`

	Plan               Plan               `gorm:"type:text;not null;default:free"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:text;not null;default:none"`
	BillingCycle       BillingCycle       `gorm:"type:text"`
	PeriodStart        *time.Time         `gorm:""`
	PeriodEnd          *time.Time         `gorm:""`
	CancelAtPeriodEnd  bool               `gorm:"not null;default:false"`
	AutoRenew          bool               `gorm:"not null;default:true"`

	CreditsBalance    int       `gorm:"not null;default:0"`
	MonthlyAllocation int       `gorm:"not null;default:0"`
	NextResetAt       time.Time `gorm:"not null"`
	LifetimeEarned    int64     `gorm:"not null;default:0"`
	LifetimeSpent     int64     `gorm:"not null;default:0"`

	SummariesToday int   `gorm:"not null;default:0"`
	SummariesMonth int   `gorm:"not null;default:0"`
	SummariesTotal int64 `gorm:"not null;default:0"`
	MinutesSaved   int64 `gorm:"not null;default:0"`

	ReferralCode          string        `gorm:"type:text;not null;uniqueIndex:ux_users_referral_code"`
	ReferredBy            *snowflake.ID `gorm:"index"`
	TotalReferrals        int           `gorm:"not null;default:0"`
	ReferralCreditsEarned int64         `gorm:"not null;default:0"`

	NotifyLowCredits bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

func (u User) IsPro() bool {
	return u.Plan == PlanPro && u.SubscriptionStatus == SubscriptionStatusActive
}

// RefreshToken stores the sha256 of issued refresh tokens.
type RefreshToken struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;index"`
	TokenHash string       `gorm:"type:text;not null;uniqueIndex:ux_refresh_tokens_hash"`
	ExpiresAt time.Time    `gorm:"not null"`
	RevokedAt *time.Time   `gorm:""`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RefreshToken) TableName() string { return "refresh_tokens" }
