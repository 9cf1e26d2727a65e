// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/policy"
)

// Action is what the engine decided to do about one member.
type Action int

const (
	// ActionNone means no rule applied to the member.
	ActionNone Action = iota
	// ActionBan bans the member with the matching rule's reason.
	ActionBan
	// ActionUnban lifts an existing ban on the member.
	ActionUnban
)

// String returns the lowercase action name for logs.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionBan:
		return "ban"
	case ActionUnban:
		return "unban"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is the transient outcome of scanning one member against
// the lists. It is produced by FirstDecision and consumed immediately
// by the engine; it is never persisted.
type Decision struct {
	RoomID ref.RoomID
	UserID ref.UserID
	Action Action
	Reason string
	// List names the ban list whose rule decided, for logging.
	List string
}

// FirstDecision scans lists in the given order, and rules within each
// list in their order, returning the first applicable decision for
// the member — an explicit short-circuit search over the ordered
// (list, rule) pairs.
//
// A ban rule matching an already-banned member is treated as no match
// (never re-issue a ban); symmetrically, an unban rule only applies
// to members whose membership is currently "ban". Scanning continues
// past such non-applicable matches, so a later rule may still decide.
// Ban-match is checked before unban-match as two independent
// predicates; the engine does not assume a rule kind makes them
// exclusive.
//
// When no rule applies, the returned Decision has ActionNone.
func FirstDecision(lists []*policy.List, roomID ref.RoomID, member Member) Decision {
	for _, list := range lists {
		for _, rule := range list.Rules() {
			if rule.MatchesBan(member.UserID) {
				if member.Membership == MembershipBan {
					// Already banned: idempotent no-op, keep scanning.
					continue
				}
				return Decision{
					RoomID: roomID,
					UserID: member.UserID,
					Action: ActionBan,
					Reason: rule.Reason(),
					List:   list.Name(),
				}
			}
			if rule.MatchesUnban(member.UserID) {
				if member.Membership != MembershipBan {
					// Not banned: nothing to lift, keep scanning.
					continue
				}
				return Decision{
					RoomID: roomID,
					UserID: member.UserID,
					Action: ActionUnban,
					Reason: rule.Reason(),
					List:   list.Name(),
				}
			}
		}
	}
	return Decision{RoomID: roomID, UserID: member.UserID, Action: ActionNone}
}
