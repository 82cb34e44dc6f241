package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mobzilla/internal/entity"
	"mobzilla/internal/repository"
	"mobzilla/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

// AuthService orchestrates signup, verification, login and password reset
// by composing the repositories, the token lifecycle engine and the email
// sender. Every operation returns a tagged outcome; Go errors mean the
// storage layer failed.
type AuthService struct {
	users        repository.UserRepository
	sessions     repository.SessionRepository
	securityLogs repository.SecurityLogRepository

	tokens       *TokenLifecycle
	emailSender  EmailSender
	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	clock        Clock
	config       AuthConfig
	logger       *logrus.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	securityLogs repository.SecurityLogRepository,
	tokens *TokenLifecycle,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	clock Clock,
	config AuthConfig,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		securityLogs: securityLogs,
		tokens:       tokens,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		accessTokens: accessTokens,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

// Signup handles a signup attempt for the given email.
//
// A colliding unverified account older than the verification window is
// reaped: deleted along with its tokens, then the signup proceeds as if
// fresh. Within the window the existing account keeps its row and only
// gets a new verification token. The reap is evaluated lazily, on the
// colliding attempt itself; there is no background sweep of abandoned
// signups.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (SignupOutcome, error) {
	email := utils.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || input.Password == "" {
		return "", ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user != nil {
		if user.EmailVerifiedAt != nil {
			return SignupExists, nil
		}
		if s.now().Sub(user.CreatedAt) > s.verificationWindow() {
			if err := s.users.Delete(ctx, user); err != nil {
				return "", err
			}
			_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.SignupReaped, map[string]any{"email": email})
			delivered, err := s.createAccount(ctx, email, name, input.Password)
			if err != nil {
				if errors.Is(err, repository.ErrDuplicateEmail) {
					return SignupExists, nil
				}
				return "", err
			}
			if !delivered {
				return SignupFailed, nil
			}
			return SignupReissued, nil
		}
		// Still within the window: re-issue, invalidating the prior
		// token, and re-notify. Delivery failure is logged but the
		// outcome stays resend; the next attempt re-issues again.
		if _, err := s.sendVerification(ctx, user); err != nil {
			return "", err
		}
		return SignupResend, nil
	}

	delivered, err := s.createAccount(ctx, email, name, input.Password)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return SignupExists, nil
		}
		return "", err
	}
	if !delivered {
		// The inactive account exists; re-signup within the window
		// resends the link.
		return SignupFailed, nil
	}
	return SignupCreated, nil
}

// VerifyEmail consumes a verification token. The used mark and the
// verified/active flip commit in one transaction inside the lifecycle
// engine. The welcome email afterwards is fire and forget.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (TokenOutcome, error) {
	if strings.TrimSpace(rawToken) == "" {
		return "", ErrInvalidInput
	}

	user, outcome, err := s.tokens.Consume(ctx, rawToken, entity.EmailVerify,
		func(ctx context.Context, users repository.UserRepository, user *entity.User) error {
			now := s.now()
			if err := users.VerifyEmail(ctx, user.ID, now); err != nil {
				return err
			}
			user.EmailVerifiedAt = &now
			user.IsActive = true
			return nil
		})
	if err != nil || outcome != TokenValid {
		return outcome, err
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			s.logDeliveryFailure(ctx, user, "welcome", err)
		}
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.EmailVerified, nil)
	return TokenValid, nil
}

// ResendVerification re-sends the verification link for an existing
// unverified account. Unlike Signup it never reaps.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (ResendOutcome, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return "", ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return ResendInvalid, nil
	}
	if user.EmailVerifiedAt != nil {
		return ResendAlreadyVerified, nil
	}

	delivered, err := s.sendVerification(ctx, user)
	if err != nil {
		return "", err
	}
	if !delivered {
		return ResendFailed, nil
	}
	return ResendSuccess, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, LoginOutcome, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, "", ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || user.PasswordHash == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		_ = s.logSecurity(ctx, nil, input.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, LoginInvalid, nil
	}

	// Verification and activity gate the credential check: an unverified
	// account is reported unverified regardless of the password.
	if user.EmailVerifiedAt == nil {
		return nil, LoginUnverified, nil
	}
	if !user.IsActive {
		return nil, LoginInactive, nil
	}

	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return nil, LoginInvalid, nil
	}

	result, err := s.createSessionAndTokens(ctx, user, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, "", err
	}
	_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, nil)
	return result, LoginSuccess, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	newRefreshToken, newRefreshHash, newRefreshExpiry, err := s.buildRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RotateToken(ctx, session.ID, newRefreshHash, newRefreshExpiry); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.accessTokens.IssueAccessToken(*user, session.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:      accessToken,
		ExpiresIn:        int64(expiresIn.Seconds()),
		RefreshToken:     newRefreshToken,
		RefreshExpiresIn: int64(newRefreshExpiry.Sub(s.now()).Seconds()),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID, userID *uuid.UUID, ipAddress *string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, userID, ipAddress, entity.Logout, nil)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, ipAddress *string) error {
	if err := s.sessions.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &userID, ipAddress, entity.SessionRevoked, map[string]any{"scope": "all"})
	return nil
}

// RequestPasswordReset issues a reset token for a verified account. An
// unverified account past the verification window is reaped here too,
// since the email owner evidently never finished signing up.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (ResetRequestOutcome, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return "", ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return ResetRequestInvalid, nil
	}
	if user.EmailVerifiedAt == nil {
		if s.now().Sub(user.CreatedAt) > s.verificationWindow() {
			if err := s.users.Delete(ctx, user); err != nil {
				return "", err
			}
			_ = s.logSecurity(ctx, &user.ID, nil, entity.SignupReaped, map[string]any{"email": email})
			return ResetRequestReaped, nil
		}
		return ResetRequestUnverified, nil
	}

	token, err := s.tokens.Issue(ctx, user.ID, entity.PasswordReset)
	if err != nil {
		return "", err
	}
	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
			// The token stays issued; a retry re-issues and
			// invalidates it, so no duplicate live tokens.
			s.logDeliveryFailure(ctx, user, "password_reset", err)
			return ResetRequestFailed, nil
		}
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.ResetRequested, nil)
	return ResetRequestSuccess, nil
}

// ResetPassword consumes a reset token and replaces the stored credential.
// Verification and active flags are untouched. All sessions are revoked
// afterwards.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, newPassword string) (TokenOutcome, error) {
	if strings.TrimSpace(rawToken) == "" || strings.TrimSpace(newPassword) == "" {
		return "", ErrInvalidInput
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return "", err
	}

	user, outcome, err := s.tokens.Consume(ctx, rawToken, entity.PasswordReset,
		func(ctx context.Context, users repository.UserRepository, user *entity.User) error {
			user.PasswordHash = &hash
			return users.Update(ctx, user)
		})
	if err != nil || outcome != TokenValid {
		return outcome, err
	}

	_ = s.sessions.RevokeAllByUser(ctx, user.ID)
	_ = s.logSecurity(ctx, &user.ID, nil, entity.PasswordWasReset, nil)
	return TokenValid, nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUser(ctx, userID)
}

// CleanupExpiredTokens sweeps expired token rows. Optional housekeeping;
// expired tokens are inert either way.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanupExpired(ctx)
}

// createAccount creates the unverified, inactive user and sends the first
// verification link. The returned bool reports delivery; a false with nil
// error means the account exists but the email failed.
func (s *AuthService) createAccount(ctx context.Context, email, name, password string) (bool, error) {
	hash, err := s.passwordHash.Hash(password)
	if err != nil {
		return false, err
	}
	user := &entity.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		IsActive:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, err
	}
	return s.sendVerification(ctx, user)
}

func (s *AuthService) sendVerification(ctx context.Context, user *entity.User) (bool, error) {
	token, err := s.tokens.Issue(ctx, user.ID, entity.EmailVerify)
	if err != nil {
		return false, err
	}
	if s.emailSender == nil {
		return true, nil
	}
	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, token); err != nil {
		s.logDeliveryFailure(ctx, user, "verification", err)
		return false, nil
	}
	return true, nil
}

func (s *AuthService) createSessionAndTokens(
	ctx context.Context,
	user *entity.User,
	ipAddress *string,
	userAgent *string,
) (*LoginResult, error) {
	refreshToken, refreshHash, refreshExpiry, err := s.buildRefreshToken()
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		UserID:    user.ID,
		TokenHash: refreshHash,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: refreshExpiry,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.accessTokens.IssueAccessToken(*user, session.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:      accessToken,
		ExpiresIn:        int64(expiresIn.Seconds()),
		RefreshToken:     refreshToken,
		RefreshExpiresIn: int64(refreshExpiry.Sub(s.now()).Seconds()),
	}, nil
}

func (s *AuthService) buildRefreshToken() (string, string, time.Time, error) {
	rawToken, err := utils.GenerateRandomToken(48)
	if err != nil {
		return "", "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.refreshTokenTTL())
	return rawToken, utils.HashToken(rawToken), expiresAt, nil
}

func (s *AuthService) logDeliveryFailure(ctx context.Context, user *entity.User, template string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"email":    user.Email,
			"template": template,
		}).Error("email delivery failed")
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.DeliveryFailure, map[string]any{"template": template})
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	return s.securityLogs.Log(ctx, log)
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AuthService) verificationWindow() time.Duration {
	if s.config.VerificationWindow > 0 {
		return s.config.VerificationWindow
	}
	return 24 * time.Hour
}

func (s *AuthService) refreshTokenTTL() time.Duration {
	if s.config.RefreshTokenTTL > 0 {
		return s.config.RefreshTokenTTL
	}
	return 30 * 24 * time.Hour
}
