package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess     SecurityAction = "login_success"
	LoginFailed      SecurityAction = "login_failed"
	Logout           SecurityAction = "logout"
	EmailVerified    SecurityAction = "email_verified"
	ResetRequested   SecurityAction = "password_reset_requested"
	PasswordWasReset SecurityAction = "password_reset"
	SignupReaped     SecurityAction = "signup_reaped"
	SessionRevoked   SecurityAction = "session_revoked"
	DeliveryFailure  SecurityAction = "email_delivery_failed"
	PasswordChanged  SecurityAction = "password_changed"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:security_action;not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
