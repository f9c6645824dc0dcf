package orch

import (
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay forwards an SDP or ICE payload to one peer, untouched.
func (o *Orchestrator) Relay(from, to domain.ConnID, payload json.RawMessage) error {
	if to == "" {
		return &domain.ValidationError{Field: "toConnectionId", Reason: "invalid recipient"}
	}
	roomID, ok := o.Registry.RoomOf(to)
	if !ok {
		return &domain.RoutingError{Target: string(to), Reason: "recipient not connected"}
	}
	f, ok := encode(core.SignalRelay{Type: core.EventSignal, From: from, Payload: payload})
	if !ok {
		return &domain.ValidationError{Field: "payload", Reason: "payload is not valid JSON"}
	}
	if !o.deliver(roomID, to, f) {
		return &domain.RoutingError{Target: string(to), Reason: "recipient unavailable"}
	}
	log.Debug().Str("module", "orch").Str("from", string(from)).Str("to", string(to)).Int("bytes", len(payload)).Msg("signal relayed")
	return nil
}
