package entity

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const (
	EmailVerify   TokenKind = "email_verify"
	PasswordReset TokenKind = "password_reset"
)

// VerificationToken is a single-use, expiring token bound to one user.
// Only the SHA-256 hash of the emailed value is stored. UsedAt is
// monotonic: once set it is never cleared.
type VerificationToken struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash string    `gorm:"type:text;not null;index"`
	Kind      TokenKind `gorm:"type:token_kind;not null"`

	ExpiresAt time.Time
	UsedAt    *time.Time

	CreatedAt time.Time
}
