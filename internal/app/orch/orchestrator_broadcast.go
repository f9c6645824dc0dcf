package orch

import (
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Chat appends to the room history and echoes to every member, sender
// included.
func (o *Orchestrator) Chat(sid domain.ConnID, body, sender string) error {
	return o.withRoom(sid, func(r *app.Room) error {
		msg, err := domain.NewChatMessage(sid, sender, body, o.now())
		if err != nil {
			return err
		}
		r.AppendChat(msg)
		o.broadcast(r, "", core.ChatEvent{Type: core.EventChatMessage, ChatMessage: msg})
		o.publishStats(r)
		return nil
	})
}

// StatusUpdate merges the present fields into sid's profile and tells the
// rest of the room.
func (o *Orchestrator) StatusUpdate(sid domain.ConnID, patch domain.StatusPatch) error {
	return o.withRoom(sid, func(r *app.Room) error {
		now := o.now()
		p, ok := o.Registry.UpdateParticipant(sid, func(p *domain.Participant) {
			p.Apply(patch, now)
		})
		if !ok {
			return &domain.RoutingError{Target: string(sid), Reason: "not in any room"}
		}
		o.broadcast(r, sid, core.ParticipantStatus{Type: core.EventStatusUpdate, Participant: p})
		o.publishStats(r)
		return nil
	})
}

// SpeakerUpdate is a stateless pass-through to the rest of the room.
func (o *Orchestrator) SpeakerUpdate(sid domain.ConnID, speaking bool, level float64) error {
	return o.withRoom(sid, func(r *app.Room) error {
		ev := core.SpeakerState{
			Type:         core.EventSpeakerUpdate,
			ConnectionID: sid,
			DisplayName:  domain.DefaultDisplayName,
			IsSpeaking:   speaking,
			AudioLevel:   level,
			Timestamp:    o.now(),
		}
		if p, ok := o.Registry.Participant(sid); ok {
			ev.DisplayName = p.DisplayName
		}
		o.broadcast(r, sid, ev)
		return nil
	})
}
