// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatehouse/pkg/errutil"
)

// RegistrationOutcome is the terminal state of a registration attempt.
// The failure outcomes are listed in the order they are checked.
type RegistrationOutcome int

// Registration outcomes.
const (
	RegistrationSuccess RegistrationOutcome = iota
	RegistrationMissingFields
	RegistrationPasswordMismatch
	RegistrationEmailExists
	RegistrationValidationFailed
	RegistrationHashingFailed
	RegistrationPersistenceFailed
)

var registrationOutcomeNames = map[RegistrationOutcome]string{
	RegistrationSuccess:           "success",
	RegistrationMissingFields:     "missing_fields",
	RegistrationPasswordMismatch:  "password_mismatch",
	RegistrationEmailExists:       "email_exists",
	RegistrationValidationFailed:  "validation_failed",
	RegistrationHashingFailed:     "hashing_failed",
	RegistrationPersistenceFailed: "persistence_failed",
}

func (o RegistrationOutcome) String() string {
	if name, ok := registrationOutcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("RegistrationOutcome(%d)", int(o))
}

// RegistrationInput is the raw registration form.
type RegistrationInput struct {
	Name     string
	Email    string
	Password string
	Confirm  string
	Location string
}

// Form returns the fields that are safe to echo back to the client.
func (in RegistrationInput) Form() RegistrationForm {
	return RegistrationForm{Name: in.Name, Email: in.Email, Location: in.Location}
}

// RegistrationForm holds the submitted non-secret fields.
type RegistrationForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location,omitempty"`
}

// RegistrationResult describes how a registration attempt ended.
type RegistrationResult struct {
	Outcome RegistrationOutcome
	Form    RegistrationForm
	Message string
	// User is set only on success.
	User *User
	// Err is the underlying cause of a failure, for logging.
	Err error
}

// OK reports whether the registration succeeded.
func (r RegistrationResult) OK() bool {
	return r.Outcome == RegistrationSuccess
}

var registrationMessages = map[RegistrationOutcome]string{
	RegistrationSuccess:           "Registration complete, please log in",
	RegistrationMissingFields:     "Please fill in all fields",
	RegistrationPasswordMismatch:  "Passwords do not match",
	RegistrationEmailExists:       "Email is already registered",
	RegistrationHashingFailed:     "Registration is temporarily unavailable, please try again",
	RegistrationPersistenceFailed: "Registration is temporarily unavailable, please try again",
}

// RegisterCommand validates registration input and persists a new user.
type RegisterCommand struct {
	users        UserRepository
	hasher       CredentialHasher
	storeTimeout time.Duration
}

// NewRegisterCommand creates a RegisterCommand. storeTimeout bounds each
// repository call; zero disables the bound.
func NewRegisterCommand(users UserRepository, hasher CredentialHasher, storeTimeout time.Duration) (*RegisterCommand, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	return &RegisterCommand{users: users, hasher: hasher, storeTimeout: storeTimeout}, nil
}

// Execute runs the registration checks in order and stops at the first
// failure. Only a successful run writes to the repository.
func (c *RegisterCommand) Execute(ctx context.Context, in RegistrationInput) RegistrationResult {
	form := in.Form()
	fail := func(outcome RegistrationOutcome, err error) RegistrationResult {
		msg := registrationMessages[outcome]
		if outcome == RegistrationValidationFailed {
			msg = validationMessage(err)
		}
		return RegistrationResult{Outcome: outcome, Form: form, Message: msg, Err: err}
	}

	if strings.TrimSpace(in.Name) == "" || in.Email == "" || in.Password == "" || in.Confirm == "" {
		return fail(RegistrationMissingFields, nil)
	}
	if in.Password != in.Confirm {
		return fail(RegistrationPasswordMismatch, nil)
	}

	exists, err := c.emailExists(ctx, in.Email)
	if err != nil {
		return fail(RegistrationPersistenceFailed, err)
	}
	if exists {
		return fail(RegistrationEmailExists, nil)
	}

	builder, err := NewUserBuilder(in.Name, in.Email, in.Password)
	if err == nil {
		builder, err = builder.WithLocation(in.Location)
	}
	if err != nil {
		return fail(RegistrationValidationFailed, err)
	}
	user := builder.Build()

	if err := user.HashPassword(ctx, c.hasher); err != nil {
		return fail(RegistrationHashingFailed, err)
	}

	if err := c.create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return fail(RegistrationEmailExists, err)
		}
		return fail(RegistrationPersistenceFailed, err)
	}

	return RegistrationResult{
		Outcome: RegistrationSuccess,
		Form:    form,
		Message: registrationMessages[RegistrationSuccess],
		User:    user,
	}
}

func (c *RegisterCommand) emailExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := withStoreTimeout(ctx, c.storeTimeout)
	defer cancel()

	_, err := c.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get user by email").
			Wrap(err)
	}
	return true, nil
}

func (c *RegisterCommand) create(ctx context.Context, user *User) error {
	ctx, cancel := withStoreTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.users.Create(ctx, user)
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// validationMessage turns a builder error into text for the client.
func validationMessage(err error) string {
	field := "field"
	if oopsErr, ok := oops.AsOops(err); ok {
		if f, ok := oopsErr.Context()["field"].(string); ok {
			field = f
		}
	}
	switch errutil.Code(err) {
	case "AUTH_MISSING_FIELD":
		return fmt.Sprintf("The %s field is required", field)
	case "AUTH_INVALID_EMAIL":
		return "Please enter a valid email address"
	case "AUTH_PASSWORD_TOO_LONG":
		return fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)
	case "AUTH_INVALID_LOCATION":
		return fmt.Sprintf("Location must be at most %d printable characters", MaxLocationLength)
	default:
		return "Registration details are invalid"
	}
}
