// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Reconcile.Interval != "5m" {
		t.Errorf("expected interval=5m, got %s", cfg.Reconcile.Interval)
	}
	if cfg.Redaction.QueueCapacity != 32 {
		t.Errorf("expected queue_capacity=32, got %d", cfg.Redaction.QueueCapacity)
	}
	if cfg.Redaction.ScanLimit != 1000 {
		t.Errorf("expected scan_limit=1000, got %d", cfg.Redaction.ScanLimit)
	}
}

func TestLoad_RequiresWardenConfig(t *testing.T) {
	origConfig := os.Getenv("WARDEN_CONFIG")
	defer os.Setenv("WARDEN_CONFIG", origConfig)

	os.Unsetenv("WARDEN_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when WARDEN_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "WARDEN_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
homeserver:
  url: https://matrix.example.org
  user_id: "@warden:example.org"
  token_file: /etc/warden/token
management_room: "!mgmt:example.org"
protected_rooms:
  - "!moderated:example.org"
  - "#lounge:example.org"
ban_lists:
  - /etc/warden/lists/spam.json
reconcile:
  noop: true
  faster_membership_checks: true
  automatic_redact_reasons:
    - "*spam*"
  interval: 90s
redaction:
  queue_capacity: 8
  reason: spam
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Homeserver.URL != "https://matrix.example.org" {
		t.Errorf("homeserver.url = %q", cfg.Homeserver.URL)
	}
	if cfg.ManagementRoom != "!mgmt:example.org" {
		t.Errorf("management_room = %q", cfg.ManagementRoom)
	}
	if len(cfg.ProtectedRooms) != 2 {
		t.Errorf("protected_rooms = %v", cfg.ProtectedRooms)
	}
	if !cfg.Reconcile.NoOp || !cfg.Reconcile.FasterMembershipChecks {
		t.Error("reconcile flags not loaded")
	}

	interval, err := cfg.ReconcileInterval()
	if err != nil {
		t.Fatalf("ReconcileInterval failed: %v", err)
	}
	if interval != 90*time.Second {
		t.Errorf("interval = %s, want 90s", interval)
	}

	// File values override defaults, untouched defaults survive.
	if cfg.Redaction.QueueCapacity != 8 {
		t.Errorf("queue_capacity = %d, want 8", cfg.Redaction.QueueCapacity)
	}
	if cfg.Redaction.ScanLimit != 1000 {
		t.Errorf("scan_limit = %d, want default 1000", cfg.Redaction.ScanLimit)
	}
}

func TestLoadFileExpandsVariables(t *testing.T) {
	t.Setenv("HOME", "/home/warden")

	path := writeConfig(t, `
homeserver:
  url: https://matrix.example.org
  token_file: ${HOME}/.config/warden/token
ban_lists:
  - ${WARDEN_LISTS:-/etc/warden/lists}/spam.json
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Homeserver.TokenFile != "/home/warden/.config/warden/token" {
		t.Errorf("token_file = %q", cfg.Homeserver.TokenFile)
	}
	if cfg.BanLists[0] != "/etc/warden/lists/spam.json" {
		t.Errorf("ban_lists[0] = %q", cfg.BanLists[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing homeserver URL",
			mutate:  func(c *Config) { c.Homeserver.URL = "" },
			wantErr: "homeserver.url is required",
		},
		{
			name:    "malformed management room",
			mutate:  func(c *Config) { c.ManagementRoom = "mgmt" },
			wantErr: "management_room",
		},
		{
			name:    "malformed protected room",
			mutate:  func(c *Config) { c.ProtectedRooms = []string{"not-a-room"} },
			wantErr: "protected_rooms",
		},
		{
			name:    "bad interval",
			mutate:  func(c *Config) { c.Reconcile.Interval = "soon" },
			wantErr: "reconcile.interval",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Reconcile.Interval = "-1m" },
			wantErr: "reconcile.interval",
		},
		{
			name:    "zero queue capacity",
			mutate:  func(c *Config) { c.Redaction.QueueCapacity = 0 },
			wantErr: "redaction.queue_capacity",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Homeserver.URL = "https://matrix.example.org"
			test.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), test.wantErr)
			}
		})
	}
}

func TestReadToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("syt_abc123\n"), 0600); err != nil {
		t.Fatalf("writing token: %v", err)
	}

	cfg := Default()
	cfg.Homeserver.TokenFile = tokenPath

	token, err := cfg.ReadToken()
	if err != nil {
		t.Fatalf("ReadToken failed: %v", err)
	}
	if token != "syt_abc123" {
		t.Errorf("token = %q", token)
	}

	if err := os.WriteFile(tokenPath, []byte("  \n"), 0600); err != nil {
		t.Fatalf("writing token: %v", err)
	}
	if _, err := cfg.ReadToken(); err == nil {
		t.Fatal("ReadToken accepted an empty token file")
	}
}
