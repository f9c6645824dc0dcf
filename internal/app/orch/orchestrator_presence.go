package orch

import (
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// PublishStats pushes a fresh snapshot to every member of roomID.
func (o *Orchestrator) PublishStats(roomID domain.RoomID) bool {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	return room.Do(o.publishStats) == nil
}

// Snapshot returns the current aggregate for roomID without publishing it.
func (o *Orchestrator) Snapshot(roomID domain.RoomID) (core.RoomStats, bool) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.RoomStats{}, false
	}
	var stats core.RoomStats
	if err := room.Do(func(r *app.Room) { stats = o.stats(r) }); err != nil {
		return core.RoomStats{}, false
	}
	return stats, true
}

func (o *Orchestrator) publishStats(r *app.Room) {
	o.broadcast(r, "", o.stats(r))
}

func (o *Orchestrator) stats(r *app.Room) core.RoomStats {
	members := r.Members()
	participants := make([]domain.Participant, 0, len(members))
	for _, sid := range members {
		if p, ok := o.Registry.Participant(sid); ok {
			participants = append(participants, p)
		}
	}
	return core.RoomStats{
		Type:             core.EventRoomStats,
		RoomID:           r.ID(),
		ParticipantCount: len(members),
		MaxParticipants:  domain.MaxParticipants,
		Participants:     participants,
		MessageCount:     r.MessageCount(),
		CreatedAt:        r.CreatedAt(),
		Timestamp:        o.now(),
	}
}
