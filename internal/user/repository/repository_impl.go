package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type repo struct {
	db *gorm.DB
}

func Provide(p Params) domain.Repository {
	return &repo{db: p.DB}
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *repo) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.findOne(ctx, "google_id = ?", googleID)
}

func (r *repo) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return r.findOne(ctx, "referral_code = ?", code)
}

func (r *repo) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) Save(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *repo) ActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("updated_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *repo) SignupsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *repo) DueMonthlyReset(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("plan = ? AND next_reset_at <= ?", domain.PlanFree, now).
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repo) LowCreditUsers(ctx context.Context, threshold int) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.WithContext(ctx).
		Where("plan = ? AND notify_low_credits = ? AND credits_balance > 0 AND credits_balance <= ?",
			domain.PlanFree, true, threshold).
		Find(&users).Error
	return users, err
}

func (r *repo) CountByPlan(ctx context.Context) (map[domain.Plan]int64, error) {
	var rows []struct {
		Plan  domain.Plan
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Select("plan, COUNT(*) AS count").
		Group("plan").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Plan]int64, len(rows))
	for _, row := range rows {
		counts[row.Plan] = row.Count
	}
	return counts, nil
}
