package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/briefly-app/briefly/internal/payment/domain"
	"github.com/briefly-app/briefly/pkg/db"
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

func (r *repo) CreateOrder(ctx context.Context, order *domain.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindOrderByProviderID(ctx context.Context, providerOrderID string) (*domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("provider_order_id = ?", providerOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) SaveOrder(ctx context.Context, order *domain.PaymentOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repo) ListOrders(ctx context.Context, userID snowflake.ID, limit int) ([]domain.PaymentOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []domain.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repo) RecordEvent(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
