// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/matrix-warden/warden/lib/ref"
)

// Kind distinguishes ban rules from unban rules. The two kinds are
// mutually exclusive per rule, but consumers must treat MatchesBan
// and MatchesUnban as independent predicates rather than assuming
// exclusivity.
type Kind int

const (
	// KindBan marks a rule whose matches should be banned.
	KindBan Kind = iota
	// KindUnban marks a rule whose matches are exempt: banned users
	// matching the rule should be unbanned.
	KindUnban
)

// String returns the lowercase kind name used in list files and logs.
func (k Kind) String() string {
	switch k {
	case KindBan:
		return "ban"
	case KindUnban:
		return "unban"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the list-file action string ("ban" or "unban").
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case "ban":
		return KindBan, nil
	case "unban":
		return KindUnban, nil
	default:
		return 0, fmt.Errorf("policy: unknown rule action %q (want \"ban\" or \"unban\")", raw)
	}
}

// Rule is a single user-matching rule: a glob pattern over full
// Matrix user IDs, the action to take on a match, and a reason
// string. Rules are immutable once constructed and owned by the List
// that loaded them.
type Rule struct {
	kind	Kind
	glob	Glob
	reason	string
}

// NewRule compiles a rule from its pattern. An empty reason is legal;
// it is carried as the empty string in logs and ban requests.
func NewRule(kind Kind, pattern, reason string) (Rule, error) {
	glob, err := CompileGlob(pattern)
	if err != nil {
		return Rule{}, err
	}
	return Rule{kind: kind, glob: glob, reason: reason}, nil
}

// Kind returns the rule's action kind.
func (r Rule) Kind() Kind { return r.kind }

// Pattern returns the rule's source glob pattern.
func (r Rule) Pattern() string { return r.glob.Pattern() }

// Reason returns the rule's reason string, possibly empty.
func (r Rule) Reason() string { return r.reason }

// MatchesBan reports whether this rule is a ban rule matching the
// given user. Always false for unban rules.
func (r Rule) MatchesBan(userID ref.UserID) bool {
	return r.kind == KindBan && r.glob.Match(userID.String())
}

// MatchesUnban reports whether this rule is an unban rule matching
// the given user. Always false for ban rules.
func (r Rule) MatchesUnban(userID ref.UserID) bool {
	return r.kind == KindUnban && r.glob.Match(userID.String())
}
