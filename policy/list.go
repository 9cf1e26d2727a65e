// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// List is an ordered ban list. Rule order is evaluation priority:
// the reconciliation engine scans rules front to back and commits
// the first applicable decision.
type List struct {
	name  string
	rules []Rule
}

// NewList constructs a list from rules in evaluation order. The rules
// slice is copied; the caller may reuse it.
func NewList(name string, rules []Rule) *List {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &List{name: name, rules: copied}
}

// Name returns the list's display name, used in logs and reports.
func (l *List) Name() string { return l.name }

// Len returns the number of rules in the list.
func (l *List) Len() int { return len(l.rules) }

// Rules returns the rules in evaluation order. The returned slice is
// the list's backing storage — callers must not modify it.
func (l *List) Rules() []Rule { return l.rules }

// String returns a short description for logging.
func (l *List) String() string {
	return fmt.Sprintf("%s (%d rules)", l.name, len(l.rules))
}
