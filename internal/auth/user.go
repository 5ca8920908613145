// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultLocation is assigned to users who register without a location.
const DefaultLocation = "Kyiv"

// MaxLocationLength is the longest accepted location, in runes.
const MaxLocationLength = 100

// emailRegex accepts anything shaped like local@domain.tld with no whitespace.
var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	Location     string
	CreatedAt    time.Time

	// plaintext is set by Build and cleared by HashPassword.
	plaintext string
}

// HashPassword replaces the plaintext password captured at build time with
// its hash. It is the only mutation a User undergoes before persistence.
func (u *User) HashPassword(ctx context.Context, hasher CredentialHasher) error {
	if u.plaintext == "" {
		return oops.Code("AUTH_ALREADY_HASHED").
			With("user_id", u.ID.String()).
			Errorf("user has no plaintext password to hash")
	}
	hash, err := hasher.Hash(ctx, u.plaintext)
	if err != nil {
		return oops.With("user_id", u.ID.String()).Wrap(err)
	}
	u.PasswordHash = hash
	u.plaintext = ""
	return nil
}

// ValidateEmail reports whether email has the shape of an address.
func ValidateEmail(email string) error {
	if email == "" {
		return missingField("email")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("field", "email").
			Wrapf(ErrValidation, "email must look like name@example.com")
	}
	return nil
}

func missingField(field string) error {
	return oops.Code("AUTH_MISSING_FIELD").
		With("field", field).
		Wrapf(ErrValidation, "%s is required", field)
}

// UserBuilder assembles a User from raw registration input. It is the only
// construction path for User values.
type UserBuilder struct {
	name      string
	email     string
	password  string
	location  string
	createdAt time.Time
}

// NewUserBuilder validates the required fields and returns a builder. The
// name is trimmed; a name of only spaces counts as missing.
func NewUserBuilder(name, email, password string) (*UserBuilder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, missingField("name")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, missingField("password")
	}
	if len(password) > MaxPasswordBytes {
		return nil, oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("field", "password").
			With("max_bytes", MaxPasswordBytes).
			Wrapf(ErrValidation, "password must be at most %d bytes", MaxPasswordBytes)
	}
	return &UserBuilder{name: name, email: email, password: password}, nil
}

// WithLocation sets the user's location. Blank locations fall back to
// DefaultLocation at build time.
func (b *UserBuilder) WithLocation(location string) (*UserBuilder, error) {
	if utf8.RuneCountInString(location) > MaxLocationLength {
		return nil, oops.Code("AUTH_INVALID_LOCATION").
			With("field", "location").
			With("max", MaxLocationLength).
			Wrapf(ErrValidation, "location must be at most %d characters", MaxLocationLength)
	}
	if strings.IndexFunc(location, unicode.IsControl) >= 0 {
		return nil, oops.Code("AUTH_INVALID_LOCATION").
			With("field", "location").
			Wrapf(ErrValidation, "location contains control characters")
	}
	b.location = strings.TrimSpace(location)
	return b, nil
}

// WithDate sets the creation timestamp. The zero time is rejected; omit the
// call to stamp the user with the build time.
func (b *UserBuilder) WithDate(t time.Time) (*UserBuilder, error) {
	if t.IsZero() {
		return nil, oops.Code("AUTH_INVALID_DATE").
			With("field", "date").
			Wrapf(ErrValidation, "date must be a valid time")
	}
	b.createdAt = t
	return b, nil
}

// Build returns the user. The password is still plaintext; call
// User.HashPassword before persisting.
func (b *UserBuilder) Build() *User {
	location := b.location
	if location == "" {
		location = DefaultLocation
	}
	createdAt := b.createdAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &User{
		ID:        ulid.Make(),
		Name:      b.name,
		Email:     b.email,
		Location:  location,
		CreatedAt: createdAt,
		plaintext: b.password,
	}
}

// CreateDefaultUser builds a user stamped with the current time and the
// default location.
func CreateDefaultUser(name, email, password string) (*User, error) {
	b, err := NewUserBuilder(name, email, password)
	if err != nil {
		return nil, err
	}
	if b, err = b.WithDate(time.Now()); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// CreateCustomUser builds a user with an explicit location and creation date.
func CreateCustomUser(name, email, password, location string, date time.Time) (*User, error) {
	b, err := NewUserBuilder(name, email, password)
	if err != nil {
		return nil, err
	}
	if b, err = b.WithLocation(location); err != nil {
		return nil, err
	}
	if b, err = b.WithDate(date); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrEmailTaken if
	// the email is already registered (case-insensitive).
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
