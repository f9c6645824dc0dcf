package orch

import (
	"errors"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts sid into roomID, creating the room on first join. A connection
// already in another room leaves it first; a repeated join to the same room
// is a no-op.
func (o *Orchestrator) Join(sid domain.ConnID, roomID domain.RoomID, displayName string, opts domain.JoinOptions) error {
	if roomID == "" {
		return &domain.ValidationError{Field: "roomId", Reason: "room id is required"}
	}
	if _, ok := o.Registry.Conn(sid); !ok {
		return &domain.RoutingError{Target: string(sid), Reason: "connection not registered"}
	}
	if cur, ok := o.Registry.RoomOf(sid); ok {
		if cur == roomID {
			log.Debug().Str("module", "orch").Str("conn", string(sid)).Str("room", string(roomID)).Msg("duplicate join ignored")
			return nil
		}
		o.Leave(sid)
		log.Info().Str("module", "orch").Str("conn", string(sid)).Str("from_room", string(cur)).Str("room", string(roomID)).Msg("moving rooms")
	}

	for range maxRoomRetries {
		room := o.Rooms.GetOrCreate(roomID)
		var joinErr error
		err := room.Do(func(r *app.Room) {
			joinErr = o.join(r, sid, displayName, opts)
		})
		if errors.Is(err, domain.ErrRoomClosed) {
			continue
		}
		return joinErr
	}
	return domain.ErrRoomClosed
}

func (o *Orchestrator) join(r *app.Room, sid domain.ConnID, displayName string, opts domain.JoinOptions) error {
	if r.Has(sid) {
		return nil
	}
	if n := r.Len(); n >= domain.MaxParticipants {
		return &domain.CapacityError{Room: r.ID(), Current: n, Max: domain.MaxParticipants}
	}

	p := domain.NewParticipant(sid, displayName, opts, o.now())
	if !o.Registry.Attach(sid, r.ID(), p) {
		// The connection dropped while the join was queued.
		if r.Len() == 0 {
			o.Rooms.Retire(r)
		}
		return &domain.RoutingError{Target: string(sid), Reason: "connection not registered"}
	}
	r.AddMember(sid)
	log.Info().Str("module", "orch").Str("conn", string(sid)).Str("room", string(r.ID())).
		Str("name", p.DisplayName).Int("members", r.Len()).Msg("joined")

	o.broadcast(r, "", core.UserJoined{
		Type:         core.EventUserJoined,
		ConnectionID: sid,
		Members:      r.Members(),
	})
	o.broadcast(r, "", core.ParticipantJoined{
		Type:        core.EventParticipantJoined,
		Participant: *p,
	})
	if history := r.History(); len(history) > 0 {
		o.sendTo(sid, core.ChatHistory{Type: core.EventChatHistory, Room: r.ID(), Messages: history})
	}
	o.publishStats(r)
	return nil
}

// Leave removes sid from its room but keeps the connection registered.
// It reports the room that was left.
func (o *Orchestrator) Leave(sid domain.ConnID) (domain.RoomID, bool) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		o.Registry.Detach(sid)
		return roomID, true
	}
	err := room.Do(func(r *app.Room) {
		o.leave(r, sid)
	})
	if err != nil {
		// The room retired under us; only the registry still points at it.
		o.Registry.Detach(sid)
	}
	return roomID, true
}

func (o *Orchestrator) leave(r *app.Room, sid domain.ConnID) {
	p, hadMeta := o.Registry.Detach(sid)
	if !r.RemoveMember(sid) {
		return
	}
	now := o.now()
	ev := core.UserLeft{
		Type:         core.EventUserLeft,
		ConnectionID: sid,
		DisplayName:  domain.DefaultDisplayName,
		Timestamp:    now,
	}
	if hadMeta {
		ev.DisplayName = p.DisplayName
		ev.SessionDuration = max(now.Sub(p.JoinedAt).Milliseconds(), 0)
	}
	log.Info().Str("module", "orch").Str("conn", string(sid)).Str("room", string(r.ID())).
		Int64("session_ms", ev.SessionDuration).Int("members", r.Len()).Msg("left")

	o.broadcast(r, sid, ev)
	if r.Len() == 0 {
		o.Rooms.Retire(r)
		return
	}
	o.publishStats(r)
}

// Disconnect runs the leave path and forgets the connection.
func (o *Orchestrator) Disconnect(sid domain.ConnID) {
	client := o.Registry.Client(sid)
	o.Leave(sid)
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("conn", string(sid)).Str("client", client).Msg("disconnected")
}
