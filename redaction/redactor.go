// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package redaction

import (
	"context"
	"fmt"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/messaging"
)

// Per-job defaults. Scanning is capped so a job in a very busy room
// terminates in bounded time; older messages from the banned user
// simply survive.
const (
	defaultScanLimit = 1000
	defaultPageSize  = 100
)

// messageSource is the session subset the redactor needs.
// *messaging.Session satisfies it.
type messageSource interface {
	RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error)
	RedactEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (string, error)
}

// SessionRedactor redacts a user's recent messages by paging backward
// from the live edge of the room timeline.
type SessionRedactor struct {
	Session messageSource

	// Reason is attached to every redaction event.
	Reason string

	// ScanLimit caps how many timeline events are examined per job.
	// Zero uses defaultScanLimit.
	ScanLimit int

	// PageSize is the per-request event count. Zero uses
	// defaultPageSize.
	PageSize int
}

// RedactUserMessages implements Redactor. It walks the timeline
// newest-first, redacting m.room.message events sent by userID, and
// returns how many events were redacted before the scan limit, the
// end of the timeline, or an error stopped it.
func (r SessionRedactor) RedactUserMessages(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (int, error) {
	scanLimit := r.ScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	sender := userID.String()
	redacted := 0
	scanned := 0
	from := ""

	for scanned < scanLimit {
		page, err := r.Session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
			From:      from,
			Direction: "b",
			Limit:     pageSize,
		})
		if err != nil {
			return redacted, fmt.Errorf("redaction: paging messages in %s: %w", roomID, err)
		}
		if len(page.Chunk) == 0 {
			break
		}

		for _, event := range page.Chunk {
			scanned++
			if !r.shouldRedact(event, sender) {
				continue
			}
			eventID, err := ref.ParseEventID(event.EventID)
			if err != nil {
				continue
			}
			if _, err := r.Session.RedactEvent(ctx, roomID, eventID, r.Reason); err != nil {
				return redacted, fmt.Errorf("redaction: redacting %s in %s: %w", eventID, roomID, err)
			}
			redacted++
			if scanned >= scanLimit {
				break
			}
		}

		if page.End == "" {
			break
		}
		from = page.End
	}
	return redacted, nil
}

// shouldRedact keeps the scan to the banned user's message events.
// An event with empty content is already redacted.
func (r SessionRedactor) shouldRedact(event messaging.Event, sender string) bool {
	if event.Sender != sender {
		return false
	}
	if event.Type != "m.room.message" {
		return false
	}
	return len(event.Content) > 0
}
