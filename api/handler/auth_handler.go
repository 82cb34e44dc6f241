package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mobzilla/api/middleware"
	"mobzilla/internal/dto"
	"mobzilla/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuthHandler translates service outcomes into HTTP statuses and
// user-visible messages. It is the only layer that renders outcomes.
type AuthHandler struct {
	Service           *service.AuthService
	Validate          *validator.Validate
	RefreshCookieName string
	CookieDomain      string
	SecureCookies     bool
	SameSite          http.SameSite
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:           svc,
		Validate:          validate,
		RefreshCookieName: "refresh_token",
		SecureCookies:     true,
		SameSite:          http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req dto.SignupRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.SignupInput{
		Email:     req.Email,
		Name:      req.Name,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
	}
	outcome, err := h.Service.Signup(c.Request().Context(), input)
	if err != nil {
		return writeServiceError(c, err)
	}

	switch outcome {
	case service.SignupCreated, service.SignupReissued:
		return c.JSON(http.StatusCreated, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Verification email sent. Please check your inbox.",
		})
	case service.SignupResend:
		return c.JSON(http.StatusOK, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Verification email resent. Please check your inbox.",
		})
	case service.SignupExists:
		return c.JSON(http.StatusConflict, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Email already registered.",
		})
	default: // fail
		return c.JSON(http.StatusBadGateway, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Account created but email failed to send. Try signing up again to resend.",
		})
	}
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	outcome, err := h.Service.VerifyEmail(c.Request().Context(), req.Token)
	if err != nil {
		return writeServiceError(c, err)
	}
	if outcome == service.TokenValid {
		return c.JSON(http.StatusOK, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Your email has been verified. You can now log in.",
		})
	}
	return writeTokenOutcome(c, outcome, "verification")
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req dto.ResendVerificationRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	outcome, err := h.Service.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return writeServiceError(c, err)
	}

	switch outcome {
	case service.ResendSuccess:
		return c.JSON(http.StatusAccepted, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Verification email sent. Please check your inbox.",
		})
	case service.ResendInvalid:
		return c.JSON(http.StatusNotFound, dto.StatusResponse{
			Status:  string(outcome),
			Message: "No account found with this email address.",
		})
	case service.ResendAlreadyVerified:
		return c.JSON(http.StatusConflict, dto.StatusResponse{
			Status:  string(outcome),
			Message: "This email address is already verified.",
		})
	default: // fail
		return c.JSON(http.StatusBadGateway, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Failed to send verification email.",
		})
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
	result, outcome, err := h.Service.Login(c.Request().Context(), input)
	if err != nil {
		return writeServiceError(c, err)
	}

	switch outcome {
	case service.LoginSuccess:
		h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresIn)
		return c.JSON(http.StatusOK, dto.LoginResponse{
			AccessToken: result.AccessToken,
			ExpiresIn:   result.ExpiresIn,
		})
	case service.LoginUnverified:
		return c.JSON(http.StatusForbidden, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Please verify your email first.",
		})
	case service.LoginInactive:
		return c.JSON(http.StatusForbidden, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Your account has been deactivated. Please contact support.",
		})
	default: // invalid
		return c.JSON(http.StatusUnauthorized, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Invalid email or password.",
		})
	}
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshToken := h.readRefreshCookie(c)
	if refreshToken == "" {
		return writeError(c, http.StatusUnauthorized, errors.New("missing refresh token"))
	}
	result, err := h.Service.Refresh(c.Request().Context(), refreshToken)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresIn)
	return c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Service.Logout(c.Request().Context(), sessionID, &userID, stringPtr(c.RealIP())); err != nil {
		return writeServiceError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Service.LogoutAll(c.Request().Context(), userID, stringPtr(c.RealIP())); err != nil {
		return writeServiceError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) PasswordForgot(c echo.Context) error {
	var req dto.PasswordForgotRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	outcome, err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return writeServiceError(c, err)
	}

	switch outcome {
	case service.ResetRequestSuccess:
		return c.JSON(http.StatusAccepted, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Password reset instructions sent to your email.",
		})
	case service.ResetRequestInvalid:
		return c.JSON(http.StatusNotFound, dto.StatusResponse{
			Status:  string(outcome),
			Message: "No account found with this email.",
		})
	case service.ResetRequestUnverified:
		return c.JSON(http.StatusForbidden, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Please verify your email address first.",
		})
	case service.ResetRequestReaped:
		return c.JSON(http.StatusGone, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Your account exceeded the time limit for verification. Please register again.",
		})
	default: // fail
		return c.JSON(http.StatusBadGateway, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Failed to send password reset email. Try again later.",
		})
	}
}

func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req dto.PasswordResetRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	outcome, err := h.Service.ResetPassword(c.Request().Context(), req.Token, req.NewPassword)
	if err != nil {
		return writeServiceError(c, err)
	}
	if outcome == service.TokenValid {
		return c.JSON(http.StatusOK, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Your password has been reset. You can log in now.",
		})
	}
	return writeTokenOutcome(c, outcome, "password reset")
}

func (h *AuthHandler) AdminListUsers(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	users, err := h.Service.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponsesFromEntities(users))
}

func (h *AuthHandler) AdminRevokeUserSessions(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	if err := h.Service.RevokeUserSessions(c.Request().Context(), userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) AdminCleanupTokens(c echo.Context) error {
	deleted, err := h.Service.CleanupExpiredTokens(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.CleanupResponse{Deleted: deleted})
}

func (h *AuthHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, expiresIn int64) {
	if token == "" {
		return
	}
	maxAge := int(expiresIn)
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		Expires:  time.Now().Add(time.Duration(expiresIn) * time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) readRefreshCookie(c echo.Context) string {
	cookie, err := c.Cookie(h.RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeTokenOutcome(c echo.Context, outcome service.TokenOutcome, linkName string) error {
	switch outcome {
	case service.TokenExpired:
		return c.JSON(http.StatusGone, dto.StatusResponse{
			Status:  string(outcome),
			Message: "This " + linkName + " link has expired. Request a new one.",
		})
	case service.TokenUsed:
		return c.JSON(http.StatusConflict, dto.StatusResponse{
			Status:  string(outcome),
			Message: "This " + linkName + " link has already been used.",
		})
	default: // not found
		return c.JSON(http.StatusNotFound, dto.StatusResponse{
			Status:  string(outcome),
			Message: "Invalid " + linkName + " link.",
		})
	}
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"message": err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	}
	return writeError(c, status, err)
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
