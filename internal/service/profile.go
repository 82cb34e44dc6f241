package service

import (
	"context"
	"strings"

	"mobzilla/internal/entity"

	"github.com/google/uuid"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ProfileInput struct {
	Name string
}

// ProfileChange is the validated subset of fields a user may edit. Email
// is immutable; whatever the form submits for it is ignored.
type ProfileChange struct {
	Name string
}

// ValidateProfileUpdate is a pure validation and mapping step: raw input
// in, either a change set or field errors out. No storage involved.
func ValidateProfileUpdate(input ProfileInput) (ProfileChange, []FieldError) {
	var fieldErrors []FieldError

	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "name", Message: "name is required"})
	}
	if len(name) > 100 {
		fieldErrors = append(fieldErrors, FieldError{Field: "name", Message: "name must be at most 100 characters"})
	}
	if fieldErrors != nil {
		return ProfileChange{}, fieldErrors
	}
	return ProfileChange{Name: name}, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*entity.User, []FieldError, error) {
	change, fieldErrors := ValidateProfileUpdate(input)
	if fieldErrors != nil {
		return nil, fieldErrors, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	user.Name = change.Name
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}
	return user, nil, nil
}

// ChangePassword replaces the credential of a logged-in user after
// re-checking the current password. Unlike a reset it does not touch the
// caller's sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if strings.TrimSpace(currentPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PasswordHash == nil || !s.passwordHash.Verify(*user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.PasswordChanged, nil)
	return nil
}
