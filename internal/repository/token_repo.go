package repository

import (
	"context"
	"errors"
	"time"

	"mobzilla/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Create(ctx context.Context, token *entity.VerificationToken) error
	// Find returns the token row whatever its expiry or used state, so
	// the lifecycle engine can tell NotFound, Expired and AlreadyUsed
	// apart. Returns (nil, nil) when no row matches.
	Find(ctx context.Context, tokenHash string, kind entity.TokenKind) (*entity.VerificationToken, error)
	// MarkUsed performs the atomic conditional update
	// `used_at = now WHERE id = ? AND used_at IS NULL` and reports
	// whether this call won the row. Concurrent consumers of the same
	// token see exactly one true.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	DeleteUnused(ctx context.Context, userID uuid.UUID, kind entity.TokenKind) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, t *entity.VerificationToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tokenRepository) Find(
	ctx context.Context,
	tokenHash string,
	kind entity.TokenKind,
) (*entity.VerificationToken, error) {

	var token entity.VerificationToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND kind = ?", tokenHash, kind).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

func (r *tokenRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.VerificationToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", &at)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *tokenRepository) DeleteUnused(ctx context.Context, userID uuid.UUID, kind entity.TokenKind) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND used_at IS NULL", userID, kind).
		Delete(&entity.VerificationToken{}).
		Error
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&entity.VerificationToken{})
	return result.RowsAffected, result.Error
}
