// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable value types for the
// Matrix identifiers Warden works with: user IDs, room IDs, room
// aliases, event IDs, and event types.
//
// Every identifier is validated once at the boundary where it enters
// the program (configuration, command-line flags, homeserver API
// responses) and carried as a value type afterwards. This prevents a
// room ID from being passed where a user ID is expected, and removes
// re-validation from the hot paths of the reconciliation engine.
//
// The zero value of each type is not valid; use IsZero to check.
// Types implement encoding.TextMarshaler/TextUnmarshaler so they can
// appear directly in JSON request and response structs.
package ref
