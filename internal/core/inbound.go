package core

import (
	"encoding/json"

	"github.com/dkeye/huddle/internal/domain"
)

// Inbound is the closed set of events a participant connection can raise.
// Only types in this package implement it.
type Inbound interface {
	inbound()
}

type JoinCall struct {
	Room        domain.RoomID      `json:"roomId"`
	DisplayName string             `json:"displayName,omitempty"`
	Options     domain.JoinOptions `json:"options"`
}

// Signal carries an SDP or ICE payload for one peer. Payload is opaque.
type Signal struct {
	To      domain.ConnID   `json:"toConnectionId"`
	Payload json.RawMessage `json:"payload"`
}

type Chat struct {
	Data   string `json:"data"`
	Sender string `json:"sender"`
}

type StatusUpdate struct {
	AudioEnabled      *bool   `json:"audioEnabled,omitempty"`
	VideoEnabled      *bool   `json:"videoEnabled,omitempty"`
	ConnectionQuality *string `json:"connectionQuality,omitempty"`
}

type SpeakerUpdate struct {
	IsSpeaking bool    `json:"isSpeaking"`
	AudioLevel float64 `json:"audioLevel"`
}

// LeaveCall leaves the current room but keeps the transport open.
type LeaveCall struct{}

type Ping struct{}

// Disconnect is raised by the transport itself, never sent by clients.
type Disconnect struct{}

func (JoinCall) inbound()      {}
func (Signal) inbound()        {}
func (Chat) inbound()          {}
func (StatusUpdate) inbound()  {}
func (SpeakerUpdate) inbound() {}
func (LeaveCall) inbound()     {}
func (Ping) inbound()          {}
func (Disconnect) inbound()    {}
