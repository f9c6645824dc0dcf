package app

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const registryShards = 32

type sessionEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
	Client string
	Room   domain.RoomID
	Meta   *domain.Participant
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
}

// Registry indexes every live connection to its transport, its room and
// its participant metadata. Reads from any room actor are safe; writes are
// serialized per shard.
type Registry struct {
	shards [registryShards]registryShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[domain.ConnID]*sessionEntry)
	}
	return r
}

func (r *Registry) shard(sid domain.ConnID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	return &r.shards[h.Sum32()%registryShards]
}

// Bind registers a freshly accepted connection that has not joined a room.
func (r *Registry) Bind(sid domain.ConnID, client string, conn core.SignalConnection, cancel context.CancelFunc) {
	s := r.shard(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel, Client: client}
	log.Debug().Str("module", "app.registry").Str("conn", string(sid)).Str("client", client).Msg("bound connection")
}

// Unbind drops the connection entirely. Terminal step of a disconnect.
func (r *Registry) Unbind(sid domain.ConnID) {
	s := r.shard(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("conn", string(sid)).Msg("unbound connection")
}

func (r *Registry) Conn(sid domain.ConnID) (core.SignalConnection, bool) {
	s := r.shard(sid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

func (r *Registry) Client(sid domain.ConnID) string {
	s := r.shard(sid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[sid]; ok {
		return e.Client
	}
	return ""
}

// RoomOf reports the room the connection is currently joined to.
func (r *Registry) RoomOf(sid domain.ConnID) (domain.RoomID, bool) {
	s := r.shard(sid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// Attach records room membership and metadata for a bound connection.
// It returns false if the connection is gone.
func (r *Registry) Attach(sid domain.ConnID, room domain.RoomID, meta *domain.Participant) bool {
	s := r.shard(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return false
	}
	e.Room = room
	e.Meta = meta
	return true
}

// Detach clears the room association and returns the metadata it held.
func (r *Registry) Detach(sid domain.ConnID) (domain.Participant, bool) {
	s := r.shard(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok || e.Meta == nil {
		if ok {
			e.Room = ""
		}
		return domain.Participant{}, false
	}
	meta := *e.Meta
	e.Room = ""
	e.Meta = nil
	return meta, true
}

func (r *Registry) Participant(sid domain.ConnID) (domain.Participant, bool) {
	s := r.shard(sid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok || e.Meta == nil {
		return domain.Participant{}, false
	}
	return *e.Meta, true
}

// UpdateParticipant mutates the stored metadata and returns the result.
func (r *Registry) UpdateParticipant(sid domain.ConnID, fn func(*domain.Participant)) (domain.Participant, bool) {
	s := r.shard(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok || e.Meta == nil {
		return domain.Participant{}, false
	}
	fn(e.Meta)
	return *e.Meta, true
}

// Cancel tears down the connection's context; the adapter then runs the
// normal disconnect path.
func (r *Registry) Cancel(sid domain.ConnID) bool {
	s := r.shard(sid)
	s.mu.RLock()
	e, ok := s.sessions[sid]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(sid)).Msg("canceled connection")
	return true
}

func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.sessions)
		s.mu.RUnlock()
	}
	return n
}
