// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Principal is the authenticated identity attached to a session.
type Principal struct {
	UserID ulid.ULID
}

// FailureReason says why authentication did not succeed.
type FailureReason int

// Failure reasons. The zero value is not a valid reason.
const (
	ReasonUnknownIdentity FailureReason = iota + 1
	ReasonBadCredential
	ReasonInternalHashError
)

func (r FailureReason) String() string {
	switch r {
	case ReasonUnknownIdentity:
		return "unknown-identity"
	case ReasonBadCredential:
		return "bad-credential"
	case ReasonInternalHashError:
		return "internal-hash-error"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// AuthFailure is returned by LocalStrategy.Authenticate when the credential
// was not accepted.
type AuthFailure struct {
	Reason FailureReason
	Email  string
	Err    error
}

func (f *AuthFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", f.Reason)
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the same credential may succeed on a later
// attempt.
func (f *AuthFailure) Retryable() bool {
	return f.Reason == ReasonInternalHashError
}

// LoginOutcome is the four-way result of an authentication attempt.
type LoginOutcome int

// Login outcomes.
const (
	OutcomeSuccess LoginOutcome = iota
	OutcomeUnknownIdentity
	OutcomeBadCredential
	OutcomeInternalHashError
)

func (o LoginOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnknownIdentity:
		return ReasonUnknownIdentity.String()
	case OutcomeBadCredential:
		return ReasonBadCredential.String()
	case OutcomeInternalHashError:
		return ReasonInternalHashError.String()
	default:
		return fmt.Sprintf("LoginOutcome(%d)", int(o))
	}
}

// OutcomeOf classifies the error returned by Authenticate. The second
// result is false when err is neither nil nor an *AuthFailure, for example
// a store outage.
func OutcomeOf(err error) (LoginOutcome, bool) {
	if err == nil {
		return OutcomeSuccess, true
	}
	var failure *AuthFailure
	if !errors.As(err, &failure) {
		return 0, false
	}
	switch failure.Reason {
	case ReasonUnknownIdentity:
		return OutcomeUnknownIdentity, true
	case ReasonBadCredential:
		return OutcomeBadCredential, true
	case ReasonInternalHashError:
		return OutcomeInternalHashError, true
	default:
		return 0, false
	}
}

// LocalStrategy verifies an email and password against stored users.
type LocalStrategy struct {
	users  UserRepository
	hasher CredentialHasher
}

// NewLocalStrategy creates a LocalStrategy.
func NewLocalStrategy(users UserRepository, hasher CredentialHasher) (*LocalStrategy, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	return &LocalStrategy{users: users, hasher: hasher}, nil
}

// Authenticate returns the principal for a matching credential.
// Credential problems are reported as *AuthFailure; any other error means
// the user store could not be consulted.
func (s *LocalStrategy) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, &AuthFailure{Reason: ReasonUnknownIdentity, Email: email}
		}
		return Principal{}, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get user by email").
			Wrap(err)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return Principal{}, &AuthFailure{Reason: ReasonInternalHashError, Email: email, Err: err}
	}
	if !ok {
		return Principal{}, &AuthFailure{Reason: ReasonBadCredential, Email: email}
	}

	return Principal{UserID: user.ID}, nil
}
