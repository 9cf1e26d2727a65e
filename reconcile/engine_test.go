// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/messaging"
	"github.com/matrix-warden/warden/policy"
)

type banCall struct {
	roomID ref.RoomID
	userID ref.UserID
	reason string
}

type unbanCall struct {
	roomID ref.RoomID
	userID ref.UserID
}

// mockSession is an in-memory homeserver: member rosters and joined
// members keyed by room, plus injectable failures.
type mockSession struct {
	rosters  map[ref.RoomID][]messaging.RoomMember
	joined   map[ref.RoomID][]string
	fetchErr map[ref.RoomID]error
	banErr   map[ref.RoomID]map[ref.UserID]error
	unbanErr map[ref.UserID]error

	bans   []banCall
	unbans []unbanCall
}

func (m *mockSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	if err := m.fetchErr[roomID]; err != nil {
		return nil, err
	}
	return m.rosters[roomID], nil
}

func (m *mockSession) JoinedMembers(ctx context.Context, roomID ref.RoomID) ([]string, error) {
	if err := m.fetchErr[roomID]; err != nil {
		return nil, err
	}
	return m.joined[roomID], nil
}

func (m *mockSession) BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error {
	if err := m.banErr[roomID][userID]; err != nil {
		return err
	}
	m.bans = append(m.bans, banCall{roomID: roomID, userID: userID, reason: reason})
	return nil
}

func (m *mockSession) UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	if err := m.unbanErr[userID]; err != nil {
		return err
	}
	m.unbans = append(m.unbans, unbanCall{roomID: roomID, userID: userID})
	return nil
}

// applyRecorded replays the session's recorded ban/unban calls into
// its own rosters, the way the homeserver would.
func (m *mockSession) applyRecorded() {
	for _, ban := range m.bans {
		m.setMembership(ban.roomID, ban.userID, MembershipBan)
	}
	for _, unban := range m.unbans {
		m.setMembership(unban.roomID, unban.userID, MembershipLeave)
	}
}

func (m *mockSession) setMembership(roomID ref.RoomID, userID ref.UserID, membership string) {
	roster := m.rosters[roomID]
	for i, entry := range roster {
		if entry.UserID == userID.String() {
			roster[i].Membership = membership
			return
		}
	}
	m.rosters[roomID] = append(roster, member(userID.String(), membership))
}

func member(userID, membership string) messaging.RoomMember {
	return messaging.RoomMember{UserID: userID, Membership: membership}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, config Config, session Session, redactions RedactionEnqueuer) *Engine {
	t.Helper()
	engine, err := NewEngine(config, session, redactions, testLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func banList(t *testing.T, name string, rules ...policy.Rule) *policy.List {
	t.Helper()
	return policy.NewList(name, rules)
}

var (
	room1 = ref.MustParseRoomID("!moderated:example.org")
	room2 = ref.MustParseRoomID("!lounge:example.org")
	room3 = ref.MustParseRoomID("!offtopic:example.org")

	spammer  = ref.MustParseUserID("@spammer:example.org")
	innocent = ref.MustParseUserID("@alice:example.org")
)

func TestApplyBanPoliciesBansMatchingUser(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {
				member(spammer.String(), MembershipJoin),
				member(innocent.String(), MembershipJoin),
			},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "spam")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}

	want := []banCall{{roomID: room1, userID: spammer, reason: "spam"}}
	if len(session.bans) != 1 || session.bans[0] != want[0] {
		t.Fatalf("bans = %v, want %v", session.bans, want)
	}
	if len(session.unbans) != 0 {
		t.Fatalf("unexpected unbans: %v", session.unbans)
	}
}

func TestApplyBanPoliciesAlreadyBanned(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(spammer.String(), MembershipBan)},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "spam")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(session.bans) != 0 {
		t.Fatalf("ban re-issued against already-banned user: %v", session.bans)
	}
}

func TestApplyBanPoliciesIdempotent(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {
				member(spammer.String(), MembershipJoin),
				member(innocent.String(), MembershipBan),
			},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "policy",
			mustRule(t, policy.KindBan, "@spam*", "spam"),
			mustRule(t, policy.KindUnban, "@alice:*", ""),
		),
	}
	rooms := []ref.RoomID{room1}

	if errs := engine.ApplyBanPolicies(context.Background(), lists, rooms); len(errs) != 0 {
		t.Fatalf("first pass returned errors: %v", errs)
	}
	if len(session.bans) != 1 || len(session.unbans) != 1 {
		t.Fatalf("first pass: bans = %v, unbans = %v", session.bans, session.unbans)
	}

	// With the first pass's effects visible, a second pass must make
	// zero mutating calls.
	session.applyRecorded()
	session.bans, session.unbans = nil, nil

	if errs := engine.ApplyBanPolicies(context.Background(), lists, rooms); len(errs) != 0 {
		t.Fatalf("second pass returned errors: %v", errs)
	}
	if len(session.bans) != 0 || len(session.unbans) != 0 {
		t.Fatalf("second pass mutated: bans = %v, unbans = %v", session.bans, session.unbans)
	}
}

func TestApplyBanPoliciesFirstListWins(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(spammer.String(), MembershipJoin)},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	// The first list bans, the second would unban. Order decides.
	lists := []*policy.List{
		banList(t, "blocklist", mustRule(t, policy.KindBan, "@spammer:*", "spam")),
		banList(t, "allowlist", mustRule(t, policy.KindUnban, "@spammer:*", "")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(session.bans) != 1 || session.bans[0].userID != spammer {
		t.Fatalf("bans = %v, want one ban of %s", session.bans, spammer)
	}
	if len(session.unbans) != 0 {
		t.Fatalf("unexpected unbans: %v", session.unbans)
	}
}

func TestApplyBanPoliciesNoOp(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {
				member(spammer.String(), MembershipJoin),
				member(innocent.String(), MembershipBan),
			},
		},
	}
	engine := newTestEngine(t, Config{NoOp: true}, session, nil)

	lists := []*policy.List{
		banList(t, "policy",
			mustRule(t, policy.KindBan, "@spam*", "spam"),
			mustRule(t, policy.KindUnban, "@alice:*", ""),
		),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(session.bans) != 0 || len(session.unbans) != 0 {
		t.Fatalf("no-op mode mutated: bans = %v, unbans = %v", session.bans, session.unbans)
	}
}

func TestApplyBanPoliciesRoomIsolation(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room2: {member(spammer.String(), MembershipJoin)},
			room3: {member(spammer.String(), MembershipJoin)},
		},
		fetchErr: map[ref.RoomID]error{
			room1: errors.New("connection reset"),
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spammer:*", "spam")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1, room2, room3})

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].RoomID != room1 {
		t.Errorf("error attributed to %s, want %s", errs[0].RoomID, room1)
	}
	if errs[0].Kind != ErrorFatal {
		t.Errorf("Kind = %v, want %v", errs[0].Kind, ErrorFatal)
	}
	// The failing room must not prevent the remaining rooms from
	// converging.
	if len(session.bans) != 2 {
		t.Fatalf("bans = %v, want bans in %s and %s", session.bans, room2, room3)
	}
}

func TestApplyBanPoliciesBanFailureAbortsRoomOnly(t *testing.T) {
	other := ref.MustParseUserID("@spambot:example.org")
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {
				member(spammer.String(), MembershipJoin),
				member(other.String(), MembershipJoin),
			},
			room2: {member(spammer.String(), MembershipJoin)},
		},
		banErr: map[ref.RoomID]map[ref.UserID]error{
			room1: {
				spammer: &messaging.MatrixError{
					Code:       messaging.ErrCodeForbidden,
					Message:    "You don't have permission to ban",
					StatusCode: 403,
				},
			},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "spam")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1, room2})

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].RoomID != room1 {
		t.Errorf("error attributed to %s, want %s", errs[0].RoomID, room1)
	}
	if errs[0].Kind != ErrorPermission {
		t.Errorf("Kind = %v, want %v", errs[0].Kind, ErrorPermission)
	}
	// room1 aborted after the failed ban: @spambot untouched there,
	// but room2's ban still went through.
	want := banCall{roomID: room2, userID: spammer, reason: "spam"}
	if len(session.bans) != 1 || session.bans[0] != want {
		t.Fatalf("bans = %v, want only %v", session.bans, want)
	}
}

func TestApplyBanPoliciesUnban(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(innocent.String(), MembershipBan)},
		},
	}
	engine := newTestEngine(t, Config{}, session, nil)

	lists := []*policy.List{
		banList(t, "amnesty", mustRule(t, policy.KindUnban, "@alice:*", "")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	want := unbanCall{roomID: room1, userID: innocent}
	if len(session.unbans) != 1 || session.unbans[0] != want {
		t.Fatalf("unbans = %v, want %v", session.unbans, want)
	}
}

func TestApplyBanPoliciesFastStrategy(t *testing.T) {
	session := &mockSession{
		joined: map[ref.RoomID][]string{
			room1: {spammer.String(), innocent.String()},
		},
	}
	engine := newTestEngine(t, Config{FasterMembershipChecks: true}, session, nil)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "spam")),
		// Unban rules can never fire under the fast strategy: the
		// joined-members snapshot contains no banned users.
		banList(t, "amnesty", mustRule(t, policy.KindUnban, "@alice:*", "")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(session.bans) != 1 || session.bans[0].userID != spammer {
		t.Fatalf("bans = %v, want one ban of %s", session.bans, spammer)
	}
	if len(session.unbans) != 0 {
		t.Fatalf("unexpected unbans: %v", session.unbans)
	}
}

type mockRedactionQueue struct {
	jobs []unbanCall
	full bool
}

func (q *mockRedactionQueue) Enqueue(roomID ref.RoomID, userID ref.UserID) bool {
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, unbanCall{roomID: roomID, userID: userID})
	return true
}

func TestAutomaticRedaction(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(spammer.String(), MembershipJoin)},
		},
	}
	queue := &mockRedactionQueue{}
	engine := newTestEngine(t, Config{AutomaticRedactPatterns: []string{"*spam*"}}, session, queue)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "Spam flood")),
	}
	errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1})
	if len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	want := unbanCall{roomID: room1, userID: spammer}
	if len(queue.jobs) != 1 || queue.jobs[0] != want {
		t.Fatalf("redaction jobs = %v, want %v", queue.jobs, want)
	}
}

func TestAutomaticRedactionReasonMismatch(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(spammer.String(), MembershipJoin)},
		},
	}
	queue := &mockRedactionQueue{}
	engine := newTestEngine(t, Config{AutomaticRedactPatterns: []string{"*spam*"}}, session, queue)

	lists := []*policy.List{
		banList(t, "conduct", mustRule(t, policy.KindBan, "@spam*", "harassment")),
	}
	if errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1}); len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("unexpected redaction jobs: %v", queue.jobs)
	}
}

func TestAutomaticRedactionQueueSaturated(t *testing.T) {
	session := &mockSession{
		rosters: map[ref.RoomID][]messaging.RoomMember{
			room1: {member(spammer.String(), MembershipJoin)},
		},
	}
	queue := &mockRedactionQueue{full: true}
	engine := newTestEngine(t, Config{AutomaticRedactPatterns: []string{"*spam*"}}, session, queue)

	lists := []*policy.List{
		banList(t, "spam", mustRule(t, policy.KindBan, "@spam*", "spam")),
	}
	// A dropped redaction job must not fail the pass.
	if errs := engine.ApplyBanPolicies(context.Background(), lists, []ref.RoomID{room1}); len(errs) != 0 {
		t.Fatalf("ApplyBanPolicies returned errors: %v", errs)
	}
	if len(session.bans) != 1 {
		t.Fatalf("bans = %v, want one", session.bans)
	}
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(Config{}, nil, nil, testLogger()); err == nil {
		t.Fatal("NewEngine accepted a nil session")
	}

	session := &mockSession{}
	config := Config{AutomaticRedactPatterns: []string{""}}
	if _, err := NewEngine(config, session, nil, testLogger()); err == nil {
		t.Fatal("NewEngine accepted an empty redact pattern")
	}
}
