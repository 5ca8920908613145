// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/web"
)

// stubService returns canned results.
type stubService struct {
	register  auth.RegistrationResult
	login     auth.LoginResult
	logoutErr error
	user      *auth.User
	userErr   error
}

func (s *stubService) Register(context.Context, auth.RegistrationInput) auth.RegistrationResult {
	return s.register
}

func (s *stubService) Login(context.Context, auth.LoginInput, auth.ClientInfo) auth.LoginResult {
	return s.login
}

func (s *stubService) Logout(context.Context, string) error { return s.logoutErr }

func (s *stubService) CurrentUser(context.Context, string) (*auth.User, error) {
	return s.user, s.userErr
}

func stubRouter(svc web.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return web.NewRouter(web.RouterConfig{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestHandlers_BackendFailuresAreUnavailable(t *testing.T) {
	sessionCookie := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: web.DefaultCookieName, Value: "tok"})
	}

	tests := []struct {
		name     string
		svc      *stubService
		method   string
		path     string
		body     any
		wantCode string
	}{
		{
			name:     "registration hashing failed",
			svc:      &stubService{register: auth.RegistrationResult{Outcome: auth.RegistrationHashingFailed, Message: "try again"}},
			method:   http.MethodPost,
			path:     "/register",
			body:     ann,
			wantCode: "hashing_failed",
		},
		{
			name:     "registration persistence failed",
			svc:      &stubService{register: auth.RegistrationResult{Outcome: auth.RegistrationPersistenceFailed, Message: "try again"}},
			method:   http.MethodPost,
			path:     "/register",
			body:     ann,
			wantCode: "persistence_failed",
		},
		{
			name: "login hash error",
			svc: &stubService{login: auth.LoginResult{
				Outcome: auth.LoginFailed, Reason: auth.ReasonInternalHashError, Retryable: true, Message: auth.MessageLoginUnavailable,
			}},
			method:   http.MethodPost,
			path:     "/login",
			body:     web.LoginRequest{Email: "ann@x.com", Password: "pw123"},
			wantCode: "login_unavailable",
		},
		{
			name:     "login store unavailable",
			svc:      &stubService{login: auth.LoginResult{Outcome: auth.LoginUnavailable, Message: auth.MessageLoginUnavailable}},
			method:   http.MethodPost,
			path:     "/login",
			body:     web.LoginRequest{Email: "ann@x.com", Password: "pw123"},
			wantCode: "login_unavailable",
		},
		{
			name:     "logout store error",
			svc:      &stubService{logoutErr: errors.New("redis down")},
			method:   http.MethodPost,
			path:     "/logout",
			wantCode: "logout_failed",
		},
		{
			name:     "session store error",
			svc:      &stubService{userErr: errors.New("redis down")},
			method:   http.MethodGet,
			path:     "/dashboard",
			wantCode: "session_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(stubRouter(tt.svc), tt.method, tt.path, tt.body, sessionCookie)
			require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(web.RequestID(), web.Recovery(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decodeError(t, w).Error.Code)
}

func TestMaxBodyBytes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := web.NewRouter(web.RouterConfig{
		Service:      &stubService{},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxBodyBytes: 16,
	})

	w := do(r, http.MethodPost, "/register", ann)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeError(t, w).Error.Code)
}
