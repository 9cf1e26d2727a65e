// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matrix-warden/warden/lib/ref"
	"github.com/matrix-warden/warden/messaging"
)

// ErrorKind classifies a room's failure for the caller: Permission
// failures (the bot lacks ban power in that room) are usually noted
// quietly, Fatal failures (network, malformed response, anything
// else) usually alert.
type ErrorKind int

const (
	// ErrorFatal covers everything that is not a permission failure.
	ErrorFatal ErrorKind = iota
	// ErrorPermission means the acting account lacks the power level
	// to ban or unban in the room.
	ErrorPermission
)

// String returns the lowercase kind name for logs and reports.
func (k ErrorKind) String() string {
	switch k {
	case ErrorFatal:
		return "fatal"
	case ErrorPermission:
		return "permission"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RoomUpdateError records the single failure that aborted one room's
// processing. At most one is produced per room per pass.
type RoomUpdateError struct {
	RoomID  ref.RoomID
	Message string
	Kind    ErrorKind
}

// Error implements the error interface.
func (e RoomUpdateError) Error() string {
	return fmt.Sprintf("reconcile: room %s: %s (%s)", e.RoomID, e.Message, e.Kind)
}

// permissionDeniedFragment is the phrasing homeservers use when the
// acting account lacks ban power. Classification by substring is a
// deliberate, documented heuristic: the transport gives us no typed
// distinction between permission and other failures, and inventing a
// richer taxonomy here would promise more than the error actually
// carries.
const permissionDeniedFragment = "You don't have permission to ban"

// Classify sorts an error into Permission or Fatal. The composed
// error string is checked first; if the fragment is absent there, the
// nested Matrix error body message is checked via errors.As.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorFatal
	}
	if strings.Contains(err.Error(), permissionDeniedFragment) {
		return ErrorPermission
	}

	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) && strings.Contains(matrixErr.Message, permissionDeniedFragment) {
		return ErrorPermission
	}
	return ErrorFatal
}

// newRoomUpdateError converts the error that aborted a room into that
// room's report entry.
func newRoomUpdateError(roomID ref.RoomID, err error) RoomUpdateError {
	return RoomUpdateError{
		RoomID:  roomID,
		Message: err.Error(),
		Kind:    Classify(err),
	}
}
