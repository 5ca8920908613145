// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
)

// LoginCommandOutcome is the terminal state of a login attempt.
type LoginCommandOutcome int

// Login command outcomes.
const (
	LoginSuccess LoginCommandOutcome = iota
	LoginMissingFields
	LoginFailed
	LoginUnavailable
)

func (o LoginCommandOutcome) String() string {
	switch o {
	case LoginSuccess:
		return "success"
	case LoginMissingFields:
		return "missing_fields"
	case LoginFailed:
		return "failed"
	case LoginUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("LoginCommandOutcome(%d)", int(o))
	}
}

// User-facing login messages. Unknown identities and bad passwords share
// one message so responses do not reveal which emails are registered.
const (
	MessageMissingCredentials = "Please enter your email and password"
	MessageInvalidCredentials = "Invalid email or password"
	MessageLoginUnavailable   = "Login is temporarily unavailable, please try again"
)

// LoginInput is the raw login form.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult describes how a login attempt ended.
type LoginResult struct {
	Outcome LoginCommandOutcome
	// Reason is set when Outcome is LoginFailed.
	Reason    FailureReason
	Message   string
	Retryable bool
	Principal Principal
	// Token is the serialized principal, set on success.
	Token string
	// Session and SessionToken are set by Service.Login once the session
	// has been stored. SessionToken is the plaintext client credential.
	Session      *Session
	SessionToken string
	Err          error
}

// OK reports whether the login succeeded.
func (r LoginResult) OK() bool {
	return r.Outcome == LoginSuccess
}

// Authenticator verifies a credential. LocalStrategy implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Principal, error)
}

// LoginCommand authenticates a credential and serializes the principal.
type LoginCommand struct {
	strategy Authenticator
	codec    *SessionCodec
	timeout  time.Duration
}

// NewLoginCommand creates a LoginCommand. timeout bounds the user lookup
// and password verification together; zero disables the bound.
func NewLoginCommand(strategy Authenticator, codec *SessionCodec, timeout time.Duration) (*LoginCommand, error) {
	if strategy == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if codec == nil {
		return nil, oops.Errorf("session codec is required")
	}
	return &LoginCommand{strategy: strategy, codec: codec, timeout: timeout}, nil
}

// Execute authenticates the input. It never returns an error; every
// failure is reported through the result.
func (c *LoginCommand) Execute(ctx context.Context, in LoginInput) LoginResult {
	if in.Email == "" || in.Password == "" {
		return LoginResult{Outcome: LoginMissingFields, Message: MessageMissingCredentials}
	}

	principal, err := c.authenticate(ctx, in)
	if err != nil {
		var failure *AuthFailure
		if errors.As(err, &failure) {
			res := LoginResult{
				Outcome:   LoginFailed,
				Reason:    failure.Reason,
				Message:   MessageInvalidCredentials,
				Retryable: failure.Retryable(),
				Err:       err,
			}
			if res.Retryable {
				res.Message = MessageLoginUnavailable
			}
			return res
		}
		return LoginResult{
			Outcome:   LoginUnavailable,
			Message:   MessageLoginUnavailable,
			Retryable: true,
			Err:       err,
		}
	}

	return LoginResult{
		Outcome:   LoginSuccess,
		Principal: principal,
		Token:     c.codec.Serialize(principal),
	}
}

func (c *LoginCommand) authenticate(ctx context.Context, in LoginInput) (Principal, error) {
	ctx, cancel := withStoreTimeout(ctx, c.timeout)
	defer cancel()
	return c.strategy.Authenticate(ctx, in.Email, in.Password)
}
