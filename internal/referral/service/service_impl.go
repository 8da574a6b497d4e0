package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	referraldomain "github.com/briefly-app/briefly/internal/referral/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	"github.com/briefly-app/briefly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Users     userdomain.Repository
	Credits   creditsdomain.Service
	PlanCfg   *config.PlanConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	users   userdomain.Repository
	credits creditsdomain.Service
	planCfg *config.PlanConfigHolder
}

func NewService(p Params) referraldomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("referral.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		users:   p.Users,
		credits: p.Credits,
		planCfg: p.PlanCfg,
	}
}

func (s *Service) ProcessReferral(ctx context.Context, newUserID snowflake.ID, code string) (*referraldomain.Outcome, error) {
	referrer, err := s.users.FindByReferralCode(ctx, code)
	if err == userdomain.ErrNotFound {
		return nil, referraldomain.ErrUnknownCode
	}
	if err != nil {
		return nil, err
	}
	if referrer.ID == newUserID {
		return nil, referraldomain.ErrSelfReferral
	}

	plans := s.planCfg.Get()
	reward := plans.ReferralReward(referrer.TotalReferrals)
	welcome := plans.WelcomeBonusCredits

	// claim first: the unique index on referred_user_id is what makes a
	// repeat referral of the same user a rejection, not a double reward
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		use := referraldomain.ReferralUse{
			ID:             s.genID.Generate(),
			ReferrerID:     referrer.ID,
			ReferredUserID: newUserID,
			RewardCredits:  reward,
			WelcomeCredits: welcome,
			CreatedAt:      s.clock.Now(),
		}
		if err := tx.Create(&use).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return referraldomain.ErrAlreadyReferred
			}
			return err
		}
		return tx.Exec(
			`UPDATE users
			 SET total_referrals = total_referrals + 1,
			     referral_credits_earned = referral_credits_earned + ?,
			     updated_at = ?
			 WHERE id = ?`,
			reward, s.clock.Now(), referrer.ID,
		).Error
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"referred_user_id": newUserID.String()}
	if _, err := s.credits.Add(ctx, referrer.ID, reward, creditsdomain.KindEarned,
		fmt.Sprintf("referral reward (#%d)", referrer.TotalReferrals+1), meta); err != nil {
		s.log.Error("failed to grant referral reward",
			zap.String("referrer_id", referrer.ID.String()),
			zap.Error(err))
		return nil, err
	}

	welcomeMeta := map[string]any{"referrer_id": referrer.ID.String()}
	if _, err := s.credits.Add(ctx, newUserID, welcome, creditsdomain.KindBonus,
		"referral welcome bonus", welcomeMeta); err != nil {
		s.log.Error("failed to grant welcome bonus",
			zap.String("user_id", newUserID.String()),
			zap.Error(err))
		return nil, err
	}

	return &referraldomain.Outcome{
		ReferrerID:     referrer.ID,
		RewardCredits:  reward,
		WelcomeCredits: welcome,
	}, nil
}
