// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "github.com/matrix-warden/warden/lib/ref"

// LoginRequest is the m.login.password request body.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// ServerVersionsResponse lists the protocol versions a homeserver supports.
type ServerVersionsResponse struct {
	Versions []string `json:"versions"`
}

// WhoAmIResponse is returned by the whoami endpoint.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id"`
}

// ResolveAliasResponse is returned by the room directory lookup.
type ResolveAliasResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// JoinedRoomsResponse is returned by the joined_rooms endpoint.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}

// SendEventResponse is returned by event send endpoints.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// Event represents a Matrix event from the server. StateKey is a
// pointer: state events carry one (possibly empty), timeline events
// carry none, and the distinction matters when filtering room state.
type Event struct {
	EventID        string         `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         string         `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         string         `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
}

// MemberEvent is one m.room.member state event as returned by the
// /members endpoint.
type MemberEvent struct {
	StateKey string        `json:"state_key"`
	Type     ref.EventType `json:"type"`
	Content  struct {
		Membership  string `json:"membership"`
		DisplayName string `json:"displayname,omitempty"`
		AvatarURL   string `json:"avatar_url,omitempty"`
	} `json:"content"`
}

// RoomMembersResponse is returned by the /members endpoint.
type RoomMembersResponse struct {
	Chunk []MemberEvent `json:"chunk"`
}

// RoomMember is one member of a room with their current membership
// state ("join", "ban", "leave", "invite", "knock").
type RoomMember struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Membership  string `json:"membership"`
}

// JoinedMembersResponse is returned by the /joined_members endpoint.
// The map is keyed by user ID; only currently-joined users appear.
type JoinedMembersResponse struct {
	Joined map[string]struct {
		DisplayName string `json:"display_name,omitempty"`
		AvatarURL   string `json:"avatar_url,omitempty"`
	} `json:"joined"`
}

// BanRequest is the body of the /ban endpoint.
type BanRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// UnbanRequest is the body of the /unban endpoint.
type UnbanRequest struct {
	UserID ref.UserID `json:"user_id"`
}

// RedactRequest is the body of the /redact endpoint.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// MessageContent is the content body of a Matrix message event
// (m.room.message). Warden only sends plain text reports.
type MessageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// RoomMessagesOptions controls pagination for RoomMessages.
type RoomMessagesOptions struct {
	// From is the pagination token to start from. Empty starts at the
	// live edge of the timeline.
	From string
	// Direction is "b" (backward, newest first) or "f". Empty means "b".
	Direction string
	// Limit caps the number of events per page. Zero uses the server default.
	Limit int
}

// RoomMessagesResponse is one page of room timeline events.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Chunk []Event `json:"chunk"`
}
