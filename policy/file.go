// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// listFile is the on-disk shape of a ban list. Files are JSONC: JSON
// extended with // line comments, /* block comments */, and trailing
// commas, so operators can annotate why a rule exists.
type listFile struct {
	Name  string     `json:"name"`
	Rules []ruleFile `json:"rules"`
}

type ruleFile struct {
	Action  string `json:"action"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and compiles the result into a List. The file must
// declare a name; ReadFile falls back to the filename.
func Parse(data []byte) (*List, error) {
	return parse(data, "")
}

// ReadFile reads a JSONC ban-list file from disk and parses it. When
// the file omits a name, the base filename (without extension) is
// used: "lists/spam-wave.jsonc" yields the list name "spam-wave".
func ReadFile(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: reading %s: %w", path, err)
	}

	list, err := parse(data, listNameFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// parse decodes and compiles list data. fallbackName is used when the
// file declares no name; an empty fallbackName makes a name required.
func parse(data []byte, fallbackName string) (*List, error) {
	stripped := jsonc.ToJSON(data)

	var file listFile
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("policy: parsing list: %w", err)
	}

	name := file.Name
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return nil, fmt.Errorf("policy: list has no name")
	}

	rules := make([]Rule, 0, len(file.Rules))
	for index, entry := range file.Rules {
		kind, err := ParseKind(entry.Action)
		if err != nil {
			return nil, fmt.Errorf("policy: list %q rule %d: %w", name, index, err)
		}
		rule, err := NewRule(kind, entry.Pattern, entry.Reason)
		if err != nil {
			return nil, fmt.Errorf("policy: list %q rule %d: %w", name, index, err)
		}
		rules = append(rules, rule)
	}

	return NewList(name, rules), nil
}

// listNameFromPath derives a list name from a file path.
func listNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
