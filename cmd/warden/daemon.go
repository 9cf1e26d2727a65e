// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matrix-warden/warden/lib/config"
	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/messaging"
	"github.com/matrix-warden/warden/policy"
	"github.com/matrix-warden/warden/reconcile"
	"github.com/matrix-warden/warden/redaction"
)

// daemon holds everything a reconciliation pass needs: the engine,
// the loaded lists, the resolved room set, and the session used for
// management-room reports.
type daemon struct {
	cfg            *config.Config
	session        *messaging.Session
	engine         *reconcile.Engine
	queue          *redaction.Queue
	lists          []*policy.List
	rooms          []ref.RoomID
	managementRoom ref.RoomID
	interval       time.Duration
	logger         *slog.Logger
}

func newDaemon(cfg *config.Config, session *messaging.Session, logger *slog.Logger) (*daemon, error) {
	engine, queue, err := newEngine(cfg, session, logger)
	if err != nil {
		return nil, err
	}

	lists, err := loadLists(cfg.BanLists)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("no ban lists configured")
	}

	interval, err := cfg.ReconcileInterval()
	if err != nil {
		return nil, err
	}

	var managementRoom ref.RoomID
	if cfg.ManagementRoom != "" {
		managementRoom, err = ref.ParseRoomID(cfg.ManagementRoom)
		if err != nil {
			return nil, fmt.Errorf("management_room: %w", err)
		}
	}

	return &daemon{
		cfg:            cfg,
		session:        session,
		engine:         engine,
		queue:          queue,
		lists:          lists,
		managementRoom: managementRoom,
		interval:       interval,
		logger:         logger,
	}, nil
}

// run resolves the protected rooms, starts the redaction worker, and
// drives reconciliation passes until the context is canceled (or
// after one pass when once is set).
func (d *daemon) run(ctx context.Context, once bool) error {
	rooms, err := resolveRooms(ctx, d.session, d.cfg.ProtectedRooms)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return fmt.Errorf("no protected rooms configured")
	}
	if err := d.ensureJoined(ctx, rooms); err != nil {
		return err
	}
	d.rooms = rooms

	d.logger.Info("starting",
		"rooms", len(d.rooms),
		"lists", len(d.lists),
		"interval", d.interval,
		"noop", d.cfg.Reconcile.NoOp,
	)

	workerDone := make(chan struct{})
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go func() {
		defer close(workerDone)
		d.queue.Run(workerCtx)
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	d.pass(ctx)
	if once {
		// Redactions enqueued by the pass must still happen: stop
		// accepting jobs and wait for the worker to drain the queue.
		d.queue.Close()
		<-workerDone
		return nil
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down", "pending_redactions", d.queue.Pending())
			return nil
		case <-ticker.C:
			d.pass(ctx)
		}
	}
}

// ensureJoined joins any protected room the session is not already
// in. Warden cannot read membership of a room it has not joined, so
// a join failure here is fatal rather than deferred to the pass.
func (d *daemon) ensureJoined(ctx context.Context, rooms []ref.RoomID) error {
	joined, err := d.session.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("listing joined rooms: %w", err)
	}
	isJoined := make(map[ref.RoomID]bool, len(joined))
	for _, roomID := range joined {
		isJoined[roomID] = true
	}

	for _, roomID := range rooms {
		if isJoined[roomID] {
			continue
		}
		if _, err := d.session.JoinRoom(ctx, roomID); err != nil {
			return fmt.Errorf("joining protected room %s: %w", roomID, err)
		}
		d.logger.Info("joined protected room", "room_id", roomID)
	}
	return nil
}

// pass runs one reconciliation over every protected room and reports
// the outcome.
func (d *daemon) pass(ctx context.Context) {
	started := time.Now()
	errs := d.engine.ApplyBanPolicies(ctx, d.lists, d.rooms)
	elapsed := time.Since(started).Round(time.Millisecond)

	if len(errs) == 0 {
		d.logger.Info("pass complete", "rooms", len(d.rooms), "elapsed", elapsed)
		return
	}

	d.logger.Warn("pass complete with failures",
		"rooms", len(d.rooms),
		"failed", len(errs),
		"elapsed", elapsed,
	)
	d.report(ctx, errs)
}

// report posts a failure summary to the management room, if one is
// configured. Reporting is best-effort; a failed post is only logged.
func (d *daemon) report(ctx context.Context, errs []reconcile.RoomUpdateError) {
	if d.managementRoom.IsZero() {
		return
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	message := messaging.NewTextMessage(formatReport(errs))
	if _, err := d.session.SendMessage(ctx, d.managementRoom, message); err != nil {
		d.logger.Warn("posting report to management room failed", "error", err)
	}
}

// formatReport renders the per-room failures as a plain-text summary,
// permission failures after fatal ones.
func formatReport(errs []reconcile.RoomUpdateError) string {
	var fatal, permission []reconcile.RoomUpdateError
	for _, err := range errs {
		if err.Kind == reconcile.ErrorPermission {
			permission = append(permission, err)
		} else {
			fatal = append(fatal, err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ban policy pass failed in %d room(s)", len(errs))
	if len(fatal) > 0 {
		fmt.Fprintf(&b, "\n\n%d fatal:", len(fatal))
		for _, err := range fatal {
			fmt.Fprintf(&b, "\n  %s: %s", err.RoomID, err.Message)
		}
	}
	if len(permission) > 0 {
		fmt.Fprintf(&b, "\n\n%d missing ban permission:", len(permission))
		for _, err := range permission {
			fmt.Fprintf(&b, "\n  %s: %s", err.RoomID, err.Message)
		}
	}
	return b.String()
}
