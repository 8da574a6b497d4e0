package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	subscriptiondomain "github.com/briefly-app/briefly/internal/subscription/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Credits creditsdomain.Service
	PlanCfg *config.PlanConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	credits creditsdomain.Service
	planCfg *config.PlanConfigHolder
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		clock:   p.Clock,
		credits: p.Credits,
		planCfg: p.PlanCfg,
	}
}

func (s *Service) Activate(ctx context.Context, userID snowflake.ID, cycle userdomain.BillingCycle, periodStart time.Time) error {
	if cycle != userdomain.BillingCycleMonthly && cycle != userdomain.BillingCycleYearly {
		cycle = userdomain.BillingCycleMonthly
	}
	periodEnd := subscriptiondomain.PeriodEnd(cycle, periodStart)

	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET plan = ?,
		     subscription_status = ?,
		     billing_cycle = ?,
		     period_start = ?,
		     period_end = ?,
		     cancel_at_period_end = ?,
		     auto_renew = ?,
		     updated_at = ?
		 WHERE id = ?`,
		userdomain.PlanPro,
		userdomain.SubscriptionStatusActive,
		cycle,
		periodStart,
		periodEnd,
		false,
		true,
		s.clock.Now(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return userdomain.ErrNotFound
	}

	s.log.Info("subscription activated",
		zap.String("user_id", userID.String()),
		zap.String("cycle", string(cycle)),
		zap.Time("period_end", periodEnd),
	)
	return nil
}

func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID snowflake.ID) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET cancel_at_period_end = ?, auto_renew = ?, updated_at = ?
		 WHERE id = ? AND plan = ? AND subscription_status = ?`,
		true, false, s.clock.Now(),
		userID, userdomain.PlanPro, userdomain.SubscriptionStatusActive,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrNoActiveSubscription
	}
	return nil
}

func (s *Service) DowngradeDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	downgraded := 0
	var jobErr error

	for {
		var ids []snowflake.ID
		err := s.db.WithContext(ctx).
			Model(&userdomain.User{}).
			Where("plan = ? AND cancel_at_period_end = ? AND period_end <= ?",
				userdomain.PlanPro, true, now).
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return downgraded, errors.Join(jobErr, err)
		}
		if len(ids) == 0 {
			return downgraded, jobErr
		}

		plans := s.planCfg.Get()
		progress := 0
		for _, id := range ids {
			if err := s.downgradeOne(ctx, id, plans, now); err != nil {
				jobErr = errors.Join(jobErr, err)
				continue
			}
			progress++
		}
		downgraded += progress
		if progress == 0 {
			// every row in the batch failed; bail rather than spin
			return downgraded, jobErr
		}
	}
}

func (s *Service) downgradeOne(ctx context.Context, userID snowflake.ID, plans config.PlanConfig, now time.Time) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET plan = ?,
		     subscription_status = ?,
		     cancel_at_period_end = ?,
		     monthly_allocation = ?,
		     next_reset_at = ?,
		     updated_at = ?
		 WHERE id = ? AND plan = ? AND cancel_at_period_end = ?`,
		userdomain.PlanFree,
		userdomain.SubscriptionStatusCanceled,
		false,
		plans.FreeMonthlyCredits,
		now.AddDate(0, 1, 0),
		now,
		userID, userdomain.PlanPro, true,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	_, err := s.credits.Add(ctx, userID, 0, creditsdomain.KindAdminAdjustment,
		"subscription downgraded at period end", map[string]any{"downgraded_at": now.Format(time.RFC3339)})
	if err != nil {
		s.log.Error("failed to record downgrade ledger entry",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return err
	}

	s.log.Info("subscription downgraded", zap.String("user_id", userID.String()))
	return nil
}
