package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultMailbox = 128

type RoomInfo struct {
	ID               domain.RoomID `json:"id"`
	ParticipantCount int           `json:"participantCount"`
	MessageCount     int           `json:"messageCount"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// RoomManager owns the set of active room actors. A room exists from its
// first join until its last member leaves.
type RoomManager struct {
	ctx     context.Context
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*Room
	mailbox int
	now     func() time.Time
}

func NewRoomManager(ctx context.Context, mailbox int) *RoomManager {
	if mailbox <= 0 {
		mailbox = DefaultMailbox
	}
	return &RoomManager{
		ctx:     ctx,
		rooms:   make(map[domain.RoomID]*Room),
		mailbox: mailbox,
		now:     time.Now,
	}
}

func (m *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *RoomManager) GetOrCreate(id domain.RoomID) *Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = newRoom(id, m.now(), m.mailbox)
	m.rooms[id] = room
	go room.run(m.ctx)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

// Retire removes an empty room. Must be called from inside room.Do; the
// actor stops after the current operation and queued operations fail
// with domain.ErrRoomClosed.
func (m *RoomManager) Retire(room *Room) {
	room.retired = true
	m.mu.Lock()
	if cur, ok := m.rooms[room.id]; ok && cur == room {
		delete(m.rooms, room.id)
	}
	m.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", string(room.id)).Msg("room deleted")
}

func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		var info RoomInfo
		err := room.Do(func(r *Room) {
			info = RoomInfo{
				ID:               r.ID(),
				ParticipantCount: r.Len(),
				MessageCount:     r.MessageCount(),
				CreatedAt:        r.CreatedAt(),
			}
		})
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
