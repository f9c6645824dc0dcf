package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

// Inbound wire names.
const (
	MsgJoinCall      = "join-call"
	MsgSignal        = "signal"
	MsgChat          = "chat-message"
	MsgStatusUpdate  = "update-participant-status"
	MsgSpeakerUpdate = "speaker-detection"
	MsgLeaveCall     = "leave-call"
	MsgPing          = "ping"
)

// Outbound wire names.
const (
	EventWelcome           = "welcome"
	EventUserJoined        = "user-joined"
	EventParticipantJoined = "participant-joined"
	EventChatMessage       = "chat-message"
	EventChatHistory       = "chat-history"
	EventUserLeft          = "user-left"
	EventLeft              = "left"
	EventRoomStats         = "room-stats-update"
	EventStatusUpdate      = "participant-status-update"
	EventSpeakerUpdate     = "speaker-update"
	EventSignal            = "signal"
	EventPong              = "pong"

	EventMeetingFull = "meeting-full"
	EventJoinError   = "join-error"
	EventSignalError = "signal-error"
	EventChatError   = "chat-error"
	EventStatusError = "status-update-error"
	EventError       = "error"
)

// UserJoined carries the full roster in join order.
type UserJoined struct {
	Type         string          `json:"type"`
	ConnectionID domain.ConnID   `json:"connectionId"`
	Members      []domain.ConnID `json:"members"`
}

type ParticipantJoined struct {
	Type string `json:"type"`
	domain.Participant
}

type ChatEvent struct {
	Type string `json:"type"`
	domain.ChatMessage
}

// ChatHistory replays a room's stored messages to a joiner in one frame,
// oldest first.
type ChatHistory struct {
	Type     string               `json:"type"`
	Room     domain.RoomID        `json:"roomId"`
	Messages []domain.ChatMessage `json:"messages"`
}

type UserLeft struct {
	Type         string        `json:"type"`
	ConnectionID domain.ConnID `json:"connectionId"`
	DisplayName  string        `json:"displayName"`
	Timestamp    time.Time     `json:"timestamp"`
	// SessionDuration is in milliseconds.
	SessionDuration int64 `json:"sessionDuration"`
}

type Left struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"roomId"`
}

// RoomStats is the aggregate snapshot pushed after every membership,
// chat or status change.
type RoomStats struct {
	Type             string               `json:"type"`
	RoomID           domain.RoomID        `json:"roomId"`
	ParticipantCount int                  `json:"participantCount"`
	MaxParticipants  int                  `json:"maxParticipants"`
	Participants     []domain.Participant `json:"participants"`
	MessageCount     int                  `json:"messageCount"`
	CreatedAt        time.Time            `json:"createdAt"`
	Timestamp        time.Time            `json:"timestamp"`
}

type ParticipantStatus struct {
	Type string `json:"type"`
	domain.Participant
}

type SpeakerState struct {
	Type         string        `json:"type"`
	ConnectionID domain.ConnID `json:"connectionId"`
	DisplayName  string        `json:"displayName"`
	IsSpeaking   bool          `json:"isSpeaking"`
	AudioLevel   float64       `json:"audioLevel"`
	Timestamp    time.Time     `json:"timestamp"`
}

// SignalRelay is what the target of a signal receives.
type SignalRelay struct {
	Type    string          `json:"type"`
	From    domain.ConnID   `json:"fromConnectionId"`
	Payload json.RawMessage `json:"payload"`
}

type Pong struct {
	Type string `json:"type"`
}

// ErrorEvent is only ever sent to the connection that caused it.
type ErrorEvent struct {
	Type            string        `json:"type"`
	Message         string        `json:"message"`
	Field           string        `json:"field,omitempty"`
	Target          string        `json:"target,omitempty"`
	Room            domain.RoomID `json:"roomId,omitempty"`
	CurrentCount    int           `json:"currentCount,omitempty"`
	MaxParticipants int           `json:"maxParticipants,omitempty"`
}
