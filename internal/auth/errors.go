// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by UserRepository.Create when another user
// already owns the email address.
var ErrEmailTaken = errors.New("email already registered")

// ErrValidation is wrapped by every error the user builder returns.
var ErrValidation = errors.New("validation failed")
