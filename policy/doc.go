// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy defines Warden's moderation ban lists: ordered
// collections of user-matching rules.
//
// A [Rule] pairs a glob pattern over full Matrix user IDs with an
// action (ban or unban) and a human-readable reason. A [List] is an
// ordered sequence of rules; insertion order is evaluation priority.
// Lists are immutable after construction and read-only to the
// reconciliation engine for the duration of a pass.
//
// Glob semantics follow Matrix moderation policy conventions, not
// filesystem path matching: '*' matches any run of characters,
// including ':' and '.', so "@spam:*" matches "@spam:example.org".
// '?' matches exactly one character. Matching is case-sensitive; use
// [CompileGlobFold] where the caller needs case-insensitive matching
// (the automatic-redaction reason patterns do).
//
// Lists are authored on disk as JSONC files (JSON extended with
// comments and trailing commas); [ReadFile] and [Parse] handle the
// format. Fetching list content from Matrix policy rooms is out of
// scope for this package.
package policy
