// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is a compiled user-ID glob pattern. '*' matches any run of
// characters (including ':' and '.'), '?' matches exactly one
// character, everything else matches literally. The pattern must
// match the entire input string.
//
// This deliberately differs from path.Match: Matrix identifiers are
// not hierarchical paths, and moderation patterns like "@spam:*"
// must cross the localpart/server boundary.
type Glob struct {
	pattern string
	matcher *regexp.Regexp
}

// CompileGlob compiles a case-sensitive glob pattern.
func CompileGlob(pattern string) (Glob, error) {
	return compile(pattern, false)
}

// CompileGlobFold compiles a case-insensitive glob pattern. Used for
// the automatic-redaction reason patterns, which match operator-typed
// reasons where casing is not meaningful.
func CompileGlobFold(pattern string) (Glob, error) {
	return compile(pattern, true)
}

func compile(pattern string, fold bool) (Glob, error) {
	if pattern == "" {
		return Glob{}, fmt.Errorf("policy: empty glob pattern")
	}

	var expression strings.Builder
	if fold {
		expression.WriteString("(?i)")
	}
	expression.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			expression.WriteString(".*")
		case '?':
			expression.WriteString(".")
		default:
			expression.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	expression.WriteString("$")

	matcher, err := regexp.Compile(expression.String())
	if err != nil {
		return Glob{}, fmt.Errorf("policy: compiling glob %q: %w", pattern, err)
	}
	return Glob{pattern: pattern, matcher: matcher}, nil
}

// Match reports whether the input matches the pattern. The zero-value
// Glob matches nothing.
func (g Glob) Match(input string) bool {
	if g.matcher == nil {
		return false
	}
	return g.matcher.MatchString(input)
}

// Pattern returns the source pattern string.
func (g Glob) Pattern() string { return g.pattern }

// IsZero reports whether the Glob is the zero value (uncompiled).
func (g Glob) IsZero() bool { return g.matcher == nil }

// CompileGlobs compiles a slice of case-insensitive glob patterns.
// Returns an error naming the first pattern that fails to compile.
func CompileGlobs(patterns []string) ([]Glob, error) {
	globs := make([]Glob, 0, len(patterns))
	for _, pattern := range patterns {
		glob, err := CompileGlobFold(pattern)
		if err != nil {
			return nil, err
		}
		globs = append(globs, glob)
	}
	return globs, nil
}

// MatchAnyGlob reports whether the input matches any of the given
// globs. Returns false for an empty slice.
func MatchAnyGlob(globs []Glob, input string) bool {
	for _, glob := range globs {
		if glob.Match(input) {
			return true
		}
	}
	return false
}
