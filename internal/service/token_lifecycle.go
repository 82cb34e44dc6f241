package service

import (
	"context"
	"time"

	"mobzilla/internal/entity"
	"mobzilla/internal/repository"
	"mobzilla/internal/utils"

	"github.com/google/uuid"
)

const rawTokenBytes = 32

// TokenLifecycle issues, validates and consumes single-use tokens. It is
// the only component that touches the used flag, and consumption is the
// only place a token and its owning user are written together.
type TokenLifecycle struct {
	tokens repository.TokenRepository
	uow    repository.UnitOfWork
	clock  Clock

	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewTokenLifecycle(
	tokens repository.TokenRepository,
	uow repository.UnitOfWork,
	clock Clock,
	config AuthConfig,
) *TokenLifecycle {
	verificationTTL := config.VerificationTokenTTL
	if verificationTTL == 0 {
		verificationTTL = 24 * time.Hour
	}
	resetTTL := config.ResetTokenTTL
	if resetTTL == 0 {
		resetTTL = time.Hour
	}
	return &TokenLifecycle{
		tokens:          tokens,
		uow:             uow,
		clock:           clock,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

func (e *TokenLifecycle) TTL(kind entity.TokenKind) time.Duration {
	if kind == entity.PasswordReset {
		return e.resetTTL
	}
	return e.verificationTTL
}

// Issue deletes any unused tokens of the same kind for the user, so at
// most one live token per kind exists, then creates a fresh one. The raw
// value is returned for the outbound link and never persisted.
func (e *TokenLifecycle) Issue(ctx context.Context, userID uuid.UUID, kind entity.TokenKind) (string, error) {
	raw, err := utils.GenerateRandomToken(rawTokenBytes)
	if err != nil {
		return "", err
	}

	token := &entity.VerificationToken{
		UserID:    userID,
		TokenHash: utils.HashToken(raw),
		Kind:      kind,
		ExpiresAt: e.clock.Now().Add(e.TTL(kind)),
	}
	err = e.uow.Do(ctx, func(users repository.UserRepository, tokens repository.TokenRepository) error {
		if err := tokens.DeleteUnused(ctx, userID, kind); err != nil {
			return err
		}
		return tokens.Create(ctx, token)
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// CleanupExpired hard-deletes token rows past their expiry. Purely
// housekeeping: expired rows already validate as Expired.
func (e *TokenLifecycle) CleanupExpired(ctx context.Context) (int64, error) {
	return e.tokens.DeleteExpired(ctx, e.clock.Now())
}

// ApplyFunc mutates the owning user inside the consumption transaction.
type ApplyFunc func(ctx context.Context, users repository.UserRepository, user *entity.User) error

// Consume classifies the raw token as NotFound, Expired, AlreadyUsed or
// Valid. On Valid it marks the token used and runs apply against the
// owning user in one transaction. The conditional mark-used serializes
// racing consumers: exactly one sees Valid, the rest AlreadyUsed.
// Expired tokens are left unconsumed.
func (e *TokenLifecycle) Consume(
	ctx context.Context,
	raw string,
	kind entity.TokenKind,
	apply ApplyFunc,
) (*entity.User, TokenOutcome, error) {

	token, err := e.tokens.Find(ctx, utils.HashToken(raw), kind)
	if err != nil {
		return nil, "", err
	}
	if token == nil {
		return nil, TokenNotFound, nil
	}
	if e.clock.Now().After(token.ExpiresAt) {
		return nil, TokenExpired, nil
	}
	if token.UsedAt != nil {
		return nil, TokenUsed, nil
	}

	var user *entity.User
	outcome := TokenValid
	err = e.uow.Do(ctx, func(users repository.UserRepository, tokens repository.TokenRepository) error {
		won, err := tokens.MarkUsed(ctx, token.ID, e.clock.Now())
		if err != nil {
			return err
		}
		if !won {
			outcome = TokenUsed
			return nil
		}
		user, err = users.FindByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			// Owner reaped between lookup and consumption.
			outcome = TokenNotFound
			return nil
		}
		if apply != nil {
			return apply(ctx, users, user)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if outcome != TokenValid {
		return nil, outcome, nil
	}
	return user, TokenValid, nil
}
