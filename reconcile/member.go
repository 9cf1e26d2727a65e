// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/messaging"
)

// Matrix membership states Warden cares about. Other values ("invite",
// "knock") pass through Member.Membership untouched; the decision
// procedure only distinguishes "ban" from everything else.
const (
	MembershipJoin  = "join"
	MembershipBan   = "ban"
	MembershipLeave = "leave"
)

// Member is one entry of a room's membership snapshot.
type Member struct {
	UserID     ref.UserID
	Membership string
}

// MemberSource builds a membership snapshot for a room. Snapshots are
// built fresh per room per pass and never cached — membership may
// have changed between passes.
type MemberSource interface {
	Members(ctx context.Context, roomID ref.RoomID) ([]Member, error)
}

// memberFetcher is the session subset the full strategy needs.
type memberFetcher interface {
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error)
}

// joinedFetcher is the session subset the fast strategy needs.
type joinedFetcher interface {
	JoinedMembers(ctx context.Context, roomID ref.RoomID) ([]string, error)
}

// FullMemberSource fetches the room's complete member roster from the
// /members endpoint. This sees banned, left, and invited users, so
// existing bans are re-detected and unban rules can take effect.
type FullMemberSource struct {
	Session memberFetcher
}

// Members implements MemberSource over the full member roster. A
// roster entry with no membership maps to "leave"; entries with
// malformed user IDs are skipped, they cannot be acted on.
func (s FullMemberSource) Members(ctx context.Context, roomID ref.RoomID) ([]Member, error) {
	roster, err := s.Session.GetRoomMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetching members of %s: %w", roomID, err)
	}

	members := make([]Member, 0, len(roster))
	for _, entry := range roster {
		userID, err := ref.ParseUserID(entry.UserID)
		if err != nil {
			continue
		}
		membership := entry.Membership
		if membership == "" {
			membership = MembershipLeave
		}
		members = append(members, Member{UserID: userID, Membership: membership})
	}
	return members, nil
}

// FastMemberSource lists only currently-joined users and synthesizes
// membership "join" for each. Cheaper than the full roster, but blind
// to banned and left users: existing bans can never be detected as
// already applied, and unban candidates who are not joined are
// invisible.
type FastMemberSource struct {
	Session joinedFetcher
}

// Members implements MemberSource over the joined_members endpoint.
func (s FastMemberSource) Members(ctx context.Context, roomID ref.RoomID) ([]Member, error) {
	userIDs, err := s.Session.JoinedMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetching joined members of %s: %w", roomID, err)
	}

	members := make([]Member, 0, len(userIDs))
	for _, raw := range userIDs {
		userID, err := ref.ParseUserID(raw)
		if err != nil {
			continue
		}
		members = append(members, Member{UserID: userID, Membership: MembershipJoin})
	}
	return members, nil
}
