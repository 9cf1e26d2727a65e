// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API endpoints that
// Warden's moderation loop depends on.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client holding the homeserver URL and HTTP transport; it
// handles password login and turns stored access tokens into sessions.
// [Session] wraps a Client with an access token for authenticated
// operations: membership retrieval (the full /members roster and the
// cheaper joined-members variant), moderation actions (ban, unban,
// redact), room joining and resolution, message pagination, and
// plain-text reporting messages.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.), the server's
// human-readable message, and the HTTP status code. [IsMatrixError]
// tests for a specific code. Request URLs are built by string
// concatenation rather than url.URL to avoid double-encoding of path
// segments that contain URL-encoded characters.
//
// The package intentionally implements no retry or backoff: callers
// own failure policy, and the reconciliation engine treats a failed
// call as that room's terminal error for the pass.
package messaging
