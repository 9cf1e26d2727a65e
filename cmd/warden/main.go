// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Warden is a Matrix room moderation daemon. It loads ordered ban
// lists, connects to the homeserver as a moderation account, and
// reconciles the membership of every protected room against the lists:
// users matching a ban rule are banned, banned users matching an unban
// rule are unbanned, and everything already in the desired state is
// left alone.
//
// On startup:
//  1. Loads configuration (WARDEN_CONFIG or --config).
//  2. Opens a session from the stored access token (or --login).
//  3. Resolves protected room aliases and loads the ban lists.
//  4. Runs one reconciliation pass, then repeats on the configured
//     interval until interrupted (--once stops after the first pass).
//
// Failures are isolated per room: a room Warden cannot fetch or
// moderate is reported, and the pass continues with the next room.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/matrix-warden/warden/lib/config"
	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/lib/version"
	"github.com/matrix-warden/warden/messaging"
	"github.com/matrix-warden/warden/policy"
	"github.com/matrix-warden/warden/reconcile"
	"github.com/matrix-warden/warden/redaction"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		extraRooms   []string
		extraLists   []string
		noop         bool
		once         bool
		login        bool
		passwordFile string
		showVersion  bool
	)

	pflag.StringVar(&configPath, "config", "", "path to warden.yaml (overrides WARDEN_CONFIG)")
	pflag.StringArrayVar(&extraRooms, "room", nil, "additional room ID or alias to protect (repeatable)")
	pflag.StringArrayVar(&extraLists, "list", nil, "additional ban-list file, appended after configured lists (repeatable)")
	pflag.BoolVar(&noop, "noop", false, "compute and log decisions without issuing any ban or unban")
	pflag.BoolVar(&once, "once", false, "run a single reconciliation pass and exit")
	pflag.BoolVar(&login, "login", false, "prompt for a password, obtain a fresh access token, store it, and exit")
	pflag.StringVar(&passwordFile, "password-file", "", "read the --login password from this file instead of prompting")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("warden %s\n", version.Info())
		return nil
	}

	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ProtectedRooms = append(cfg.ProtectedRooms, extraRooms...)
	cfg.BanLists = append(cfg.BanLists, extraLists...)
	if noop {
		cfg.Reconcile.NoOp = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.CloseIdleConnections()

	versions, err := client.ServerVersions(ctx)
	if err != nil {
		return fmt.Errorf("homeserver %s unreachable: %w", cfg.Homeserver.URL, err)
	}
	logger.Info("homeserver reachable", "versions", versions.Versions)

	if login {
		return performLogin(ctx, client, cfg, passwordFile)
	}

	token, err := cfg.ReadToken()
	if err != nil {
		return fmt.Errorf("no access token (run with --login first): %w", err)
	}
	var configuredUser ref.UserID
	if cfg.Homeserver.UserID != "" {
		configuredUser, err = ref.ParseUserID(cfg.Homeserver.UserID)
		if err != nil {
			return fmt.Errorf("homeserver.user_id: %w", err)
		}
	}
	session, err := client.SessionFromToken(configuredUser, token)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("validating session: %w", err)
	}
	logger.Info("session validated", "user_id", userID, "homeserver", cfg.Homeserver.URL)

	daemon, err := newDaemon(cfg, session, logger)
	if err != nil {
		return err
	}
	return daemon.run(ctx, once)
}

// newLogger builds the process logger. A terminal on stderr gets
// human-readable text; pipes and service managers get JSON.
func newLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// resolveRooms turns the configured room IDs and aliases into room
// IDs, resolving aliases against the homeserver.
func resolveRooms(ctx context.Context, session *messaging.Session, rooms []string) ([]ref.RoomID, error) {
	resolved := make([]ref.RoomID, 0, len(rooms))
	seen := make(map[ref.RoomID]bool)
	for _, room := range rooms {
		var roomID ref.RoomID
		if alias, err := ref.ParseRoomAlias(room); err == nil {
			roomID, err = session.ResolveAlias(ctx, alias)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", alias, err)
			}
		} else {
			var err error
			roomID, err = ref.ParseRoomID(room)
			if err != nil {
				return nil, fmt.Errorf("protected room %q: %w", room, err)
			}
		}
		if !seen[roomID] {
			seen[roomID] = true
			resolved = append(resolved, roomID)
		}
	}
	return resolved, nil
}

// loadLists reads every configured ban-list file, preserving the
// configured priority order.
func loadLists(paths []string) ([]*policy.List, error) {
	lists := make([]*policy.List, 0, len(paths))
	for _, path := range paths {
		list, err := policy.ReadFile(path)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// newEngine wires the redaction queue and the reconciliation engine
// from the validated configuration.
func newEngine(cfg *config.Config, session *messaging.Session, logger *slog.Logger) (*reconcile.Engine, *redaction.Queue, error) {
	redactor := redaction.SessionRedactor{
		Session:   session,
		Reason:    cfg.Redaction.Reason,
		ScanLimit: cfg.Redaction.ScanLimit,
		PageSize:  cfg.Redaction.PageSize,
	}
	queue, err := redaction.NewQueue(redactor, cfg.Redaction.QueueCapacity, logger)
	if err != nil {
		return nil, nil, err
	}

	engine, err := reconcile.NewEngine(reconcile.Config{
		NoOp:                    cfg.Reconcile.NoOp,
		FasterMembershipChecks:  cfg.Reconcile.FasterMembershipChecks,
		AutomaticRedactPatterns: cfg.Reconcile.AutomaticRedactReasons,
	}, session, queue, logger)
	if err != nil {
		return nil, nil, err
	}
	return engine, queue, nil
}
