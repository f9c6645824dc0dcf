package orch

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// maxRoomRetries bounds how often an operation chases a room that retired
// between lookup and execution.
const maxRoomRetries = 8

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	// Now is overridable for tests.
	Now func() time.Time
}

func New(reg *app.Registry, rooms *app.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Policy:   policy,
		Now:      time.Now,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Dispatch routes one inbound event. Rejections are answered to sid only.
func (o *Orchestrator) Dispatch(sid domain.ConnID, in core.Inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "orch").Str("conn", string(sid)).Interface("panic", rec).Msg("dispatch panicked")
		}
	}()

	switch m := in.(type) {
	case core.JoinCall:
		if err := o.Join(sid, m.Room, m.DisplayName, m.Options); err != nil {
			o.reject(sid, core.EventJoinError, err)
		}
	case core.Signal:
		if err := o.Relay(sid, m.To, m.Payload); err != nil {
			o.reject(sid, core.EventSignalError, err)
		}
	case core.Chat:
		if err := o.Chat(sid, m.Data, m.Sender); err != nil {
			o.reject(sid, core.EventChatError, err)
		}
	case core.StatusUpdate:
		patch, err := statusPatch(m)
		if err == nil {
			err = o.StatusUpdate(sid, patch)
		}
		if err != nil {
			o.reject(sid, core.EventStatusError, err)
		}
	case core.SpeakerUpdate:
		if err := o.SpeakerUpdate(sid, m.IsSpeaking, m.AudioLevel); err != nil {
			log.Debug().Err(err).Str("module", "orch").Str("conn", string(sid)).Msg("speaker update dropped")
		}
	case core.LeaveCall:
		if room, ok := o.Leave(sid); ok {
			o.sendTo(sid, core.Left{Type: core.EventLeft, Room: room})
		}
	case core.Ping:
		o.sendTo(sid, core.Pong{Type: core.EventPong})
	case core.Disconnect:
		o.Disconnect(sid)
	default:
		log.Warn().Str("module", "orch").Str("conn", string(sid)).Type("event", in).Msg("unhandled inbound event")
	}
}

func statusPatch(m core.StatusUpdate) (domain.StatusPatch, error) {
	patch := domain.StatusPatch{
		AudioEnabled: m.AudioEnabled,
		VideoEnabled: m.VideoEnabled,
	}
	if m.ConnectionQuality != nil {
		q, err := domain.ParseQuality(*m.ConnectionQuality)
		if err != nil {
			return domain.StatusPatch{}, err
		}
		patch.ConnectionQuality = &q
	}
	return patch, nil
}

// reject turns an operation error into a targeted error event.
func (o *Orchestrator) reject(sid domain.ConnID, kind string, err error) {
	ev := core.ErrorEvent{Type: kind, Message: err.Error()}

	var (
		capErr   *domain.CapacityError
		valErr   *domain.ValidationError
		routeErr *domain.RoutingError
	)
	switch {
	case errors.As(err, &capErr):
		ev.Type = core.EventMeetingFull
		ev.Message = "meeting is full"
		ev.Room = capErr.Room
		ev.CurrentCount = capErr.Current
		ev.MaxParticipants = capErr.Max
	case errors.As(err, &valErr):
		ev.Field = valErr.Field
	case errors.As(err, &routeErr):
		ev.Target = routeErr.Target
	}
	log.Warn().Err(err).Str("module", "orch").Str("conn", string(sid)).Str("reply", ev.Type).Msg("operation rejected")
	o.sendTo(sid, ev)
}

// withRoom runs fn on the actor of the room sid is joined to.
func (o *Orchestrator) withRoom(sid domain.ConnID, fn func(*app.Room) error) error {
	for range maxRoomRetries {
		roomID, ok := o.Registry.RoomOf(sid)
		if !ok {
			return &domain.RoutingError{Target: string(sid), Reason: "not in any room"}
		}
		room, ok := o.Rooms.Get(roomID)
		if !ok {
			return &domain.RoutingError{Target: string(sid), Reason: "not in any room"}
		}
		var opErr error
		err := room.Do(func(r *app.Room) {
			if !r.Has(sid) {
				opErr = &domain.RoutingError{Target: string(sid), Reason: "not in any room"}
				return
			}
			opErr = fn(r)
		})
		if errors.Is(err, domain.ErrRoomClosed) {
			continue
		}
		return opErr
	}
	return domain.ErrRoomClosed
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return nil, false
	}
	return b, true
}

// sendTo writes directly to one connection, bypassing the backpressure
// policy. Used for replies to the originator.
func (o *Orchestrator) sendTo(sid domain.ConnID, v any) {
	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}
	f, ok := encode(v)
	if !ok {
		return
	}
	if err := conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(sid)).Msg("reply dropped")
	}
}

// deliver writes a room event to one member and applies the policy when
// the member cannot keep up.
func (o *Orchestrator) deliver(room domain.RoomID, to domain.ConnID, f core.Frame) bool {
	conn, ok := o.Registry.Conn(to)
	if !ok {
		return false
	}
	if err := conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Str("conn", string(to)).Msg("delivery failed")
		if o.Policy != nil {
			switch o.Policy.OnBackPressure(room, to) {
			case app.KickMember:
				o.Registry.Cancel(to)
			case app.DropFrame, app.NoAction:
			}
		}
		return false
	}
	return true
}

// broadcast fans v out to every member of r except skip.
func (o *Orchestrator) broadcast(r *app.Room, skip domain.ConnID, v any) int {
	f, ok := encode(v)
	if !ok {
		return 0
	}
	sent := 0
	for _, sid := range r.Members() {
		if sid == skip {
			continue
		}
		if o.deliver(r.ID(), sid, f) {
			sent++
		}
	}
	log.Debug().Str("module", "orch").Str("room", string(r.ID())).Int("sent_to", sent).Msg("broadcast result")
	return sent
}
