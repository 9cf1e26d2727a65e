// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile implements Warden's core loop: bringing the
// membership of a set of protected rooms into compliance with a set
// of ordered ban lists.
//
// The [Engine] processes rooms sequentially and independently. For
// each room it builds a fresh membership snapshot, scans every member
// against the lists in order (rules within a list in order), and
// executes the first applicable decision immediately — a later rule
// can never override an already-executed action. Matching a ban rule
// against an already-banned user (or an unban rule against a user who
// is not banned) is treated as no match, which makes repeated passes
// idempotent against converged membership.
//
// Failures are isolated per room: the first error while fetching
// membership or executing an action aborts that room only and is
// recorded as one [RoomUpdateError], classified as Permission or
// Fatal by a documented substring heuristic. The aggregate result is
// always a complete best-effort report covering every requested room.
//
// The engine performs no I/O of its own; the homeserver is reached
// through the narrow [Session] interface, and bulk redactions are
// handed to a [RedactionEnqueuer] whose Enqueue must never block.
package reconcile
