// Package domain defines referral bookkeeping.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnknownCode     = errors.New("unknown_referral_code")
	ErrSelfReferral    = errors.New("self_referral")
	ErrAlreadyReferred = errors.New("referral_already_processed")
)

// ReferralUse is one row per referred user; the unique index on
// referred_user_id makes reward processing idempotent.
type ReferralUse struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ReferrerID     snowflake.ID `gorm:"not null;index"`
	ReferredUserID snowflake.ID `gorm:"not null;uniqueIndex:ux_referral_uses_referred"`
	RewardCredits  int          `gorm:"not null"`
	WelcomeCredits int          `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReferralUse) TableName() string { return "referral_uses" }

// Outcome reports what a processed referral granted.
type Outcome struct {
	ReferrerID     snowflake.ID
	RewardCredits  int
	WelcomeCredits int
}

type Service interface {
	// ProcessReferral rewards the owner of code for referring newUserID and
	// grants the new user their welcome bonus. Rejects unknown codes,
	// self-referrals, and repeat referrals of the same user.
	ProcessReferral(ctx context.Context, newUserID snowflake.ID, code string) (*Outcome, error)
}
