// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/pkg/errutil"
)

// AuthService is the account and session API the handlers call.
// *auth.Service implements it.
type AuthService interface {
	SessionResolver
	Register(ctx context.Context, in auth.RegistrationInput) auth.RegistrationResult
	Login(ctx context.Context, in auth.LoginInput, client auth.ClientInfo) auth.LoginResult
	Logout(ctx context.Context, token string) error
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Name     string `json:"name" form:"name" binding:"max=256"`
	Email    string `json:"email" form:"email" binding:"max=254"`
	Password string `json:"password" form:"password" binding:"max=1024"`
	Confirm  string `json:"confirm" form:"confirm" binding:"max=1024"`
	Location string `json:"location" form:"location" binding:"max=256"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"max=254"`
	Password string `json:"password" form:"password" binding:"max=1024"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Location:  u.Location,
		CreatedAt: u.CreatedAt,
	}
}

var registrationStatus = map[auth.RegistrationOutcome]int{
	auth.RegistrationSuccess:           http.StatusCreated,
	auth.RegistrationMissingFields:     http.StatusBadRequest,
	auth.RegistrationPasswordMismatch:  http.StatusBadRequest,
	auth.RegistrationValidationFailed:  http.StatusBadRequest,
	auth.RegistrationEmailExists:       http.StatusConflict,
	auth.RegistrationHashingFailed:     http.StatusServiceUnavailable,
	auth.RegistrationPersistenceFailed: http.StatusServiceUnavailable,
}

// AuthHandler serves the account routes.
type AuthHandler struct {
	svc     AuthService
	cookies CookieConfig
	logger  *slog.Logger
	version string
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc AuthService, cookies CookieConfig, logger *slog.Logger, version string) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger, version: version}
}

// Home describes the service.
func (h *AuthHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "gatehouse",
		"version": h.version,
		"routes":  []string{"POST /register", "POST /login", "POST /logout", "GET /dashboard"},
	})
}

// Register handles POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !Bind(c, &req) {
		return
	}

	res := h.svc.Register(c.Request.Context(), auth.RegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Confirm,
		Location: req.Location,
	})

	status, ok := registrationStatus[res.Outcome]
	if !ok {
		status = http.StatusInternalServerError
	}
	if res.OK() {
		c.JSON(status, gin.H{
			"message": res.Message,
			"user":    newUserResponse(res.User),
		})
		return
	}
	RespondError(c, status, res.Outcome.String(), res.Message, gin.H{"form": res.Form})
}

// Login handles POST /login. On success the session token is set as an
// HttpOnly cookie and also returned in the body for non-browser clients.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !Bind(c, &req) {
		return
	}

	res := h.svc.Login(c.Request.Context(),
		auth.LoginInput{Email: req.Email, Password: req.Password},
		auth.ClientInfo{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()})

	switch res.Outcome {
	case auth.LoginSuccess:
		h.cookies.set(c, res.SessionToken, res.Session.ExpiresAt)
		c.JSON(http.StatusOK, gin.H{
			"user_id":    res.Principal.UserID.String(),
			"token":      res.SessionToken,
			"expires_at": res.Session.ExpiresAt,
		})
	case auth.LoginMissingFields:
		RespondError(c, http.StatusBadRequest, "missing_fields", res.Message, nil)
	case auth.LoginFailed:
		if res.Retryable {
			RespondUnavailable(c, "login_unavailable", res.Message)
			return
		}
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", res.Message, nil)
	default:
		RespondUnavailable(c, "login_unavailable", res.Message)
	}
}

// Logout handles POST /logout. It succeeds whether or not a session exists.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := sessionToken(c, h.cookies.name())
	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		errutil.LogError(h.logger, "logout failed", err)
		RespondUnavailable(c, "logout_failed", "Logout is temporarily unavailable, please try again")
		return
	}
	h.cookies.clear(c)
	c.Status(http.StatusNoContent)
}

// Dashboard handles GET /dashboard. RequireSession must run first.
func (h *AuthHandler) Dashboard(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		RespondUnauthorized(c, "Please log in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}
