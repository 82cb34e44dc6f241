package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string    `gorm:"type:varchar(100)"`
	PasswordHash *string   `gorm:"type:text"`

	// EmailVerifiedAt doubles as the verified flag: nil means the address
	// was never confirmed. An unverified user stays inactive until token
	// consumption flips both fields in the same transaction.
	EmailVerifiedAt *time.Time
	IsActive        bool `gorm:"default:false"`

	IsStaff     bool `gorm:"default:false"`
	IsSuperuser bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []Session
	Tokens   []VerificationToken
}

// HasStaffAccess is the capability check used by the authorization layer.
// Staff access is a plain boolean property of the record, not inherited
// behavior.
func (u *User) HasStaffAccess() bool {
	return u.IsStaff || u.IsSuperuser
}
