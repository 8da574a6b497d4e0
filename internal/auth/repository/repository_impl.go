package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/briefly-app/briefly/internal/auth/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type repo struct {
	db *gorm.DB
}

func Provide(p Params) domain.RefreshTokenRepository {
	return &repo{db: p.DB}
}

func (r *repo) Store(ctx context.Context, token *userdomain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repo) FindActive(ctx context.Context, tokenHash string, now time.Time) (*userdomain.RefreshToken, error) {
	var token userdomain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return &token, nil
}

func (r *repo) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&userdomain.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Update("revoked_at", at).Error
}
