// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package redaction bulk-redacts a banned user's recent messages in a
// room. Jobs arrive through a bounded queue that never blocks the
// producer; a single worker drains the queue and pages backward
// through the room timeline, redacting matching events one at a time.
//
// Redaction is strictly best-effort. A saturated queue drops the job,
// a failed job is logged and forgotten, and nothing here ever feeds
// back into ban-list reconciliation.
package redaction
