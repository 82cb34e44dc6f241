package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork runs a function against user and token repositories bound to
// a single database transaction. Marking a token used and mutating its
// owning user must commit or roll back together.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(users UserRepository, tokens TokenRepository) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(users UserRepository, tokens TokenRepository) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUserRepository(tx), NewTokenRepository(tx))
	})
}
