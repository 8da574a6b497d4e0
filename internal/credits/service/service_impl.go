package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/clock"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) creditsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credits.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Deduct(ctx context.Context, userID snowflake.ID, amount int, reason string, metadata map[string]any) (int, error) {
	if amount <= 0 {
		return 0, creditsdomain.ErrInvalidAmount
	}

	var balanceAfter int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		result := tx.Exec(
			`UPDATE users
			 SET credits_balance = credits_balance - ?,
			     lifetime_spent = lifetime_spent + ?,
			     updated_at = ?
			 WHERE id = ? AND credits_balance >= ?`,
			amount, amount, now, userID, amount,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&userdomain.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return creditsdomain.ErrUserNotFound
			}
			return creditsdomain.ErrInsufficientCredits
		}

		balance, err := s.readBalance(tx, userID)
		if err != nil {
			return err
		}
		balanceAfter = balance

		return s.appendEntry(tx, userID, creditsdomain.KindDeduction, -amount, balance, reason, metadata, now)
	})
	if err != nil {
		return 0, err
	}
	return balanceAfter, nil
}

func (s *Service) Add(ctx context.Context, userID snowflake.ID, amount int, kind creditsdomain.TransactionKind, reason string, metadata map[string]any) (int, error) {
	if amount < 0 {
		return 0, creditsdomain.ErrInvalidAmount
	}
	switch kind {
	case creditsdomain.KindEarned, creditsdomain.KindBonus, creditsdomain.KindRefund, creditsdomain.KindAdminAdjustment:
	default:
		return 0, creditsdomain.ErrInvalidKind
	}

	var balanceAfter int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		result := tx.Exec(
			`UPDATE users
			 SET credits_balance = credits_balance + ?,
			     lifetime_earned = lifetime_earned + ?,
			     updated_at = ?
			 WHERE id = ?`,
			amount, amount, now, userID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditsdomain.ErrUserNotFound
		}

		balance, err := s.readBalance(tx, userID)
		if err != nil {
			return err
		}
		balanceAfter = balance

		return s.appendEntry(tx, userID, kind, amount, balance, reason, metadata, now)
	})
	if err != nil {
		return 0, err
	}
	return balanceAfter, nil
}

func (s *Service) ResetMonthly(ctx context.Context, userID snowflake.ID) (bool, error) {
	reset := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user userdomain.User
		err := tx.Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return creditsdomain.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if user.Plan != userdomain.PlanFree || now.Before(user.NextResetAt) {
			return nil
		}

		next := advancePastNow(user.NextResetAt, now)

		// the WHERE on next_reset_at is the idempotency key: a concurrent
		// reset for the same period leaves nothing for us to do
		result := tx.Exec(
			`UPDATE users
			 SET credits_balance = monthly_allocation,
			     lifetime_earned = lifetime_earned + monthly_allocation,
			     next_reset_at = ?,
			     summaries_month = 0,
			     updated_at = ?
			 WHERE id = ? AND plan = ? AND next_reset_at = ?`,
			next, now, userID, userdomain.PlanFree, user.NextResetAt,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		reset = true

		return s.appendEntry(tx, userID, creditsdomain.KindEarned, user.MonthlyAllocation, user.MonthlyAllocation,
			"monthly credit reset", map[string]any{"next_reset_at": next.Format(time.RFC3339)}, now)
	})
	if err != nil {
		return false, err
	}
	return reset, nil
}

func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int, error) {
	return s.readBalance(s.db.WithContext(ctx), userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]creditsdomain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []creditsdomain.CreditTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&creditsdomain.CreditTransaction{})
	return result.RowsAffected, result.Error
}

func (s *Service) readBalance(tx *gorm.DB, userID snowflake.ID) (int, error) {
	var balance int
	err := tx.Model(&userdomain.User{}).
		Where("id = ?", userID).
		Pluck("credits_balance", &balance).Error
	return balance, err
}

func (s *Service) appendEntry(tx *gorm.DB, userID snowflake.ID, kind creditsdomain.TransactionKind, amount, balanceAfter int, reason string, metadata map[string]any, at time.Time) error {
	entry := creditsdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  reason,
		Metadata:     datatypes.JSONMap(metadata),
		CreatedAt:    at,
	}
	return tx.Create(&entry).Error
}

// advancePastNow walks the reset boundary forward month by month until it is
// in the future, so a user inactive for several periods resets once.
func advancePastNow(next, now time.Time) time.Time {
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}
