// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Warden.
//
// Configuration is loaded from a single YAML file specified by:
//   - WARDEN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// The only expansion performed is ${HOME} and similar path variables
// for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matrix-warden/warden/lib/ref"
)

// Config is the master configuration for Warden.
type Config struct {
	// Homeserver configures the Matrix client connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// ManagementRoom is the room ID where Warden posts pass reports
	// and fatal-error summaries. Empty disables reporting.
	ManagementRoom string `yaml:"management_room"`

	// ProtectedRooms are the room IDs (or aliases) reconciled on
	// every pass. Aliases are resolved once at startup.
	ProtectedRooms []string `yaml:"protected_rooms"`

	// BanLists are paths to ban-list files, in priority order: when
	// two lists both match a user, the earlier list's decision wins.
	BanLists []string `yaml:"ban_lists"`

	// Reconcile configures the reconciliation engine.
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// Redaction configures the bulk-redaction worker.
	Redaction RedactionConfig `yaml:"redaction"`
}

// HomeserverConfig configures the Matrix client connection.
type HomeserverConfig struct {
	// URL is the homeserver base URL (e.g., "https://matrix.example.org").
	URL string `yaml:"url"`

	// UserID is the account Warden acts as (e.g., "@warden:example.org").
	UserID string `yaml:"user_id"`

	// TokenFile is the path of a file holding the access token.
	// The file should be readable only by the Warden user.
	TokenFile string `yaml:"token_file"`
}

// ReconcileConfig configures the reconciliation engine.
type ReconcileConfig struct {
	// NoOp computes and logs decisions without issuing any mutating
	// homeserver call.
	NoOp bool `yaml:"noop"`

	// FasterMembershipChecks uses the joined-members endpoint instead
	// of a full state fetch. Cheaper on large rooms, but existing
	// bans become invisible, so unban rules never take effect.
	FasterMembershipChecks bool `yaml:"faster_membership_checks"`

	// AutomaticRedactReasons are case-insensitive glob patterns; a
	// ban whose reason matches one triggers a bulk redaction of the
	// banned user's messages.
	AutomaticRedactReasons []string `yaml:"automatic_redact_reasons"`

	// Interval is how often a reconciliation pass runs, as a Go
	// duration string. Default: 5m.
	Interval string `yaml:"interval"`
}

// RedactionConfig configures the bulk-redaction worker.
type RedactionConfig struct {
	// QueueCapacity bounds the pending-job queue; jobs beyond it are
	// dropped. Default: 32.
	QueueCapacity int `yaml:"queue_capacity"`

	// ScanLimit caps how many timeline events one job examines.
	// Default: 1000.
	ScanLimit int `yaml:"scan_limit"`

	// PageSize is the timeline page size per request. Default: 100.
	PageSize int `yaml:"page_size"`

	// Reason is attached to each redaction event.
	Reason string `yaml:"reason"`
}

// Default returns the default configuration. These defaults are a
// base before loading the config file, not a substitute for it: the
// file supplies everything that has no sensible default (homeserver,
// rooms, lists).
func Default() *Config {
	return &Config{
		Homeserver: HomeserverConfig{
			TokenFile: "${HOME}/.config/warden/token",
		},
		Reconcile: ReconcileConfig{
			Interval: "5m",
		},
		Redaction: RedactionConfig{
			QueueCapacity: 32,
			ScanLimit:     1000,
			PageSize:      100,
		},
	}
}

// Load loads configuration from the WARDEN_CONFIG environment
// variable. There are no fallbacks: if WARDEN_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("WARDEN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("WARDEN_CONFIG environment variable not set; " +
			"set it to the path of your warden.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// path-valued fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Homeserver.TokenFile = expandVars(c.Homeserver.TokenFile, vars)
	for i, path := range c.BanLists {
		c.BanLists[i] = expandVars(path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Homeserver.URL == "" {
		errs = append(errs, fmt.Errorf("homeserver.url is required"))
	}

	if c.ManagementRoom != "" {
		if _, err := ref.ParseRoomID(c.ManagementRoom); err != nil {
			errs = append(errs, fmt.Errorf("management_room: %w", err))
		}
	}

	for _, room := range c.ProtectedRooms {
		if _, idErr := ref.ParseRoomID(room); idErr != nil {
			if _, aliasErr := ref.ParseRoomAlias(room); aliasErr != nil {
				errs = append(errs, fmt.Errorf("protected_rooms: %q is neither a room ID nor an alias", room))
			}
		}
	}

	if _, err := c.ReconcileInterval(); err != nil {
		errs = append(errs, err)
	}

	if c.Redaction.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("redaction.queue_capacity must be positive"))
	}
	if c.Redaction.ScanLimit <= 0 {
		errs = append(errs, fmt.Errorf("redaction.scan_limit must be positive"))
	}
	if c.Redaction.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("redaction.page_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ReconcileInterval parses the configured pass interval.
func (c *Config) ReconcileInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Reconcile.Interval)
	if err != nil {
		return 0, fmt.Errorf("reconcile.interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("reconcile.interval must be positive, got %s", interval)
	}
	return interval, nil
}

// ReadToken reads and trims the access token from TokenFile.
func (c *Config) ReadToken() (string, error) {
	data, err := os.ReadFile(c.Homeserver.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", c.Homeserver.TokenFile)
	}
	return token, nil
}
