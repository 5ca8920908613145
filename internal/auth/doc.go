// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth authenticates users against stored credentials and tracks
// the authenticated principal across requests.
//
// # Domain Types
//
// Users must be created through the builder so that no invalid record can
// exist:
//   - NewUserBuilder - validates name, email and password
//   - CreateDefaultUser - builder preset with default location and date
//   - CreateCustomUser - builder preset with explicit location and date
//
// A built User still holds its plaintext password. Call User.HashPassword
// before handing it to a UserRepository; repositories refuse users without
// a hash.
//
// # Commands
//
// RegisterCommand and LoginCommand turn raw transport input into terminal
// outcomes. Neither returns an error: every failure is folded into the
// result's Outcome so the caller can render it.
//
// # Services
//
// Service wires the commands to a SessionStore and a SessionCodec:
//   - Register - RegisterCommand
//   - Login - LoginCommand plus session creation
//   - Logout, LogoutEverywhere - session removal
//   - CurrentUser - session lookup and principal deserialization
//
// Services are created with NewService or NewServiceWithLogger, which
// validate dependencies.
package auth
