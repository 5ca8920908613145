// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatehouse/pkg/errutil"
)

// DefaultStoreTimeout bounds each repository and session store call.
const DefaultStoreTimeout = 3 * time.Second

// ErrUnauthenticated is wrapped by CurrentUser when the request carries no
// usable session.
var ErrUnauthenticated = errors.New("not authenticated")

// Recorder receives command outcomes for metrics.
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRegistration(string) {}
func (nopRecorder) RecordLogin(string)        {}

// ServiceConfig tunes a Service. Zero values select defaults.
type ServiceConfig struct {
	SessionTTL   time.Duration
	StoreTimeout time.Duration
	Recorder     Recorder
}

// ClientInfo describes the client that initiated a login.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Service provides registration, login and session operations.
type Service struct {
	users    UserRepository
	sessions SessionStore
	codec    *SessionCodec
	register *RegisterCommand
	login    *LoginCommand
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService creates a Service that logs to slog.Default().
func NewService(users UserRepository, sessions SessionStore, hasher CredentialHasher, cfg ServiceConfig) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, cfg, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, sessions SessionStore, hasher CredentialHasher, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	codec, err := NewSessionCodec(users)
	if err != nil {
		return nil, err
	}
	strategy, err := NewLocalStrategy(users, hasher)
	if err != nil {
		return nil, err
	}
	register, err := NewRegisterCommand(users, hasher, cfg.StoreTimeout)
	if err != nil {
		return nil, err
	}
	login, err := NewLoginCommand(strategy, codec, cfg.StoreTimeout)
	if err != nil {
		return nil, err
	}

	return &Service{
		users:    users,
		sessions: sessions,
		codec:    codec,
		register: register,
		login:    login,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// SessionTTL returns the lifetime of newly created sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// Register creates a user account.
func (s *Service) Register(ctx context.Context, in RegistrationInput) RegistrationResult {
	res := s.register.Execute(ctx, in)
	s.cfg.Recorder.RecordRegistration(res.Outcome.String())

	switch res.Outcome {
	case RegistrationSuccess:
		s.logger.InfoContext(ctx, "user registered",
			"user_id", res.User.ID.String(),
			"email", res.Form.Email,
			"location", res.User.Location)
	case RegistrationHashingFailed, RegistrationPersistenceFailed:
		errutil.LogError(s.logger.With("outcome", res.Outcome.String(), "email", res.Form.Email),
			"registration failed", res.Err)
	default:
		s.logger.InfoContext(ctx, "registration rejected",
			"outcome", res.Outcome.String(),
			"email", res.Form.Email)
	}
	return res
}

// Login authenticates the credential and, on success, stores a new session.
// The plaintext session token is returned in LoginResult.SessionToken.
func (s *Service) Login(ctx context.Context, in LoginInput, client ClientInfo) LoginResult {
	res := s.login.Execute(ctx, in)
	if res.OK() {
		res = s.startSession(ctx, res, client)
	}

	outcome := res.Outcome.String()
	if res.Outcome == LoginFailed {
		outcome = res.Reason.String()
	}
	s.cfg.Recorder.RecordLogin(outcome)

	switch res.Outcome {
	case LoginSuccess:
		s.logger.InfoContext(ctx, "user logged in",
			"user_id", res.Principal.UserID.String(),
			"ip_address", client.IPAddress)
	case LoginFailed:
		attrs := []any{"reason", res.Reason.String(), "email", in.Email, "ip_address", client.IPAddress}
		if res.Reason == ReasonInternalHashError {
			errutil.LogError(s.logger.With(attrs...), "login failed", res.Err)
		} else {
			s.logger.InfoContext(ctx, "login rejected", attrs...)
		}
	case LoginUnavailable:
		errutil.LogError(s.logger.With("email", in.Email), "login unavailable", res.Err)
	}
	return res
}

func (s *Service) startSession(ctx context.Context, res LoginResult, client ClientInfo) LoginResult {
	unavailable := func(err error) LoginResult {
		return LoginResult{
			Outcome:   LoginUnavailable,
			Message:   MessageLoginUnavailable,
			Retryable: true,
			Err:       err,
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return unavailable(err)
	}
	session, err := NewSession(res.Token, tokenHash, client.UserAgent, client.IPAddress, time.Now().Add(s.cfg.SessionTTL))
	if err != nil {
		return unavailable(err)
	}

	// A request abandoned after authentication must not leave a session behind.
	if err := ctx.Err(); err != nil {
		return unavailable(oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err))
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.sessions.Put(storeCtx, session); err != nil {
		return unavailable(oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err))
	}

	res.Session = session
	res.SessionToken = token
	return res
}

// Logout removes the session identified by the plaintext token. Logging out
// an unknown or empty token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.sessions.Delete(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// LogoutEverywhere removes every session of the user.
func (s *Service) LogoutEverywhere(ctx context.Context, userID ulid.ULID) (int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	principal := s.codec.Serialize(Principal{UserID: userID})
	n, err := s.sessions.DeleteByPrincipal(ctx, principal)
	if err != nil {
		return 0, oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete sessions by principal").
			With("user_id", principal).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user logged out everywhere", "user_id", principal, "sessions", n)
	return n, nil
}

// CurrentUser resolves the plaintext session token to its user.
// Missing, expired and orphaned sessions return an error wrapping
// ErrUnauthenticated; orphaned sessions are deleted.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrapf(ErrUnauthenticated, "session token cannot be empty")
	}
	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	tokenHash := HashSessionToken(token)
	session, err := s.sessions.Get(ctx, tokenHash)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("SESSION_INVALID").Wrapf(ErrUnauthenticated, "invalid session token")
	}
	if err != nil {
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Wrapf(ErrUnauthenticated, "session has expired")
	}

	user, err := s.codec.Deserialize(ctx, session.Principal)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if delErr := s.sessions.Delete(ctx, tokenHash); delErr != nil {
			errutil.LogError(s.logger, "failed to delete orphaned session", delErr)
		}
		return nil, oops.Code("SESSION_ORPHANED").
			With("principal", session.Principal).
			Wrapf(ErrUnauthenticated, "session user no longer exists")
	}
	return user, nil
}
