// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/policy"
)

// Config is the engine's configuration surface, passed explicitly so
// the engine is pure with respect to its inputs.
type Config struct {
	// NoOp suppresses all mutating homeserver calls. Decisions are
	// still computed and logged at debug severity, so operators can
	// preview the effect of a list change.
	NoOp bool

	// FasterMembershipChecks selects the joined-members snapshot
	// strategy instead of the full member roster. Cheaper on large
	// rooms, but existing bans are invisible, so unban rules never
	// fire.
	FasterMembershipChecks bool

	// AutomaticRedactPatterns are case-insensitive glob patterns
	// matched against a committed ban's reason. On a match, a bulk
	// redaction of the banned user's messages in that room is
	// enqueued.
	AutomaticRedactPatterns []string
}

// Moderator issues the concrete ban and unban calls.
// *messaging.Session satisfies it.
type Moderator interface {
	BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error
	UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error
}

// Session is the full homeserver surface the engine consumes: the
// moderation calls plus the two membership retrieval endpoints.
// *messaging.Session satisfies it; tests substitute a mock.
type Session interface {
	Moderator
	memberFetcher
	joinedFetcher
}

// RedactionEnqueuer accepts fire-and-forget bulk redaction jobs.
// Enqueue must never block; it reports false when the job was dropped
// (queue saturated), which the engine logs and otherwise ignores.
type RedactionEnqueuer interface {
	Enqueue(roomID ref.RoomID, userID ref.UserID) bool
}

// Engine reconciles room membership against ban lists. Create one
// with NewEngine and drive it with ApplyBanPolicies; an Engine is
// stateless between passes and may be reused.
type Engine struct {
	session     Session
	members     MemberSource
	redactions  RedactionEnqueuer
	redactGlobs []policy.Glob
	noop        bool
	logger      *slog.Logger
}

// NewEngine builds an engine. redactions may be nil, in which case
// automatic redaction is disabled regardless of configured patterns.
// logger may be nil for slog.Default(). Returns an error if any
// automatic-redaction pattern fails to compile.
func NewEngine(config Config, session Session, redactions RedactionEnqueuer, logger *slog.Logger) (*Engine, error) {
	if session == nil {
		return nil, fmt.Errorf("reconcile: session is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	redactGlobs, err := policy.CompileGlobs(config.AutomaticRedactPatterns)
	if err != nil {
		return nil, fmt.Errorf("reconcile: automatic redact patterns: %w", err)
	}

	var members MemberSource
	if config.FasterMembershipChecks {
		members = FastMemberSource{Session: session}
	} else {
		members = FullMemberSource{Session: session}
	}

	return &Engine{
		session:     session,
		members:     members,
		redactions:  redactions,
		redactGlobs: redactGlobs,
		noop:        config.NoOp,
		logger:      logger,
	}, nil
}

// ApplyBanPolicies runs one reconciliation pass: every room in
// roomIDs is checked against the lists in their given order, and
// committed decisions execute immediately. Rooms are processed
// sequentially and in isolation — a room's failure is recorded and
// the pass moves on. The returned slice holds at most one
// RoomUpdateError per failed room; an empty result means every room
// converged (or was already converged).
func (e *Engine) ApplyBanPolicies(ctx context.Context, lists []*policy.List, roomIDs []ref.RoomID) []RoomUpdateError {
	var errs []RoomUpdateError
	for _, roomID := range roomIDs {
		if err := e.applyRoom(ctx, lists, roomID); err != nil {
			roomErr := newRoomUpdateError(roomID, err)
			errs = append(errs, roomErr)
			e.logger.Warn("room update failed",
				"room_id", roomID,
				"kind", roomErr.Kind,
				"error", roomErr.Message,
			)
		}
	}
	return errs
}

// applyRoom processes one room. The first error — membership fetch or
// action execution — aborts the room; partial application is fine
// because the next pass is idempotent.
func (e *Engine) applyRoom(ctx context.Context, lists []*policy.List, roomID ref.RoomID) error {
	members, err := e.members.Members(ctx, roomID)
	if err != nil {
		return err
	}

	for _, member := range members {
		decision := FirstDecision(lists, roomID, member)
		if decision.Action == ActionNone {
			continue
		}
		if err := e.execute(ctx, decision); err != nil {
			return err
		}
	}
	return nil
}

// execute commits a decision. In no-op mode the decision is only
// reported; otherwise the ban/unban call is issued. A committed ban
// whose reason matches an automatic-redaction pattern also enqueues a
// bulk redaction, which never blocks or fails the pass.
func (e *Engine) execute(ctx context.Context, decision Decision) error {
	if e.noop {
		e.logger.Debug("would apply ban policy action",
			"action", decision.Action,
			"room_id", decision.RoomID,
			"user_id", decision.UserID,
			"list", decision.List,
			"reason", decision.Reason,
		)
		return nil
	}

	switch decision.Action {
	case ActionBan:
		if err := e.session.BanUser(ctx, decision.RoomID, decision.UserID, decision.Reason); err != nil {
			return fmt.Errorf("reconcile: banning %s: %w", decision.UserID, err)
		}
		e.logger.Info("banned user",
			"room_id", decision.RoomID,
			"user_id", decision.UserID,
			"list", decision.List,
			"reason", decision.Reason,
		)
		if policy.MatchAnyGlob(e.redactGlobs, decision.Reason) {
			e.enqueueRedaction(decision)
		}
	case ActionUnban:
		if err := e.session.UnbanUser(ctx, decision.RoomID, decision.UserID); err != nil {
			return fmt.Errorf("reconcile: unbanning %s: %w", decision.UserID, err)
		}
		e.logger.Info("unbanned user",
			"room_id", decision.RoomID,
			"user_id", decision.UserID,
			"list", decision.List,
		)
	}
	return nil
}

// enqueueRedaction hands a committed ban to the redaction queue.
// Saturation drops the job with a warning; the reconciliation pass is
// never failed by the redaction subsystem.
func (e *Engine) enqueueRedaction(decision Decision) {
	if e.redactions == nil {
		return
	}
	if !e.redactions.Enqueue(decision.RoomID, decision.UserID) {
		e.logger.Warn("redaction queue saturated, dropping job",
			"room_id", decision.RoomID,
			"user_id", decision.UserID,
		)
	}
}
