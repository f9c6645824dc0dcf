package app

import (
	"context"
	"slices"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is a single meeting run as an actor. All state below the mailbox is
// touched only from the actor goroutine, i.e. from inside Do.
type Room struct {
	id        domain.RoomID
	createdAt time.Time

	members []domain.ConnID
	history []domain.ChatMessage
	retired bool

	mailbox chan func()
	stopped chan struct{}
}

func newRoom(id domain.RoomID, createdAt time.Time, mailbox int) *Room {
	return &Room{
		id:        id,
		createdAt: createdAt,
		mailbox:   make(chan func(), mailbox),
		stopped:   make(chan struct{}),
	}
}

func (r *Room) run(ctx context.Context) {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.mailbox:
			r.exec(op)
			if r.retired {
				log.Debug().Str("module", "app.room").Str("room", string(r.id)).Msg("actor stopped")
				return
			}
		}
	}
}

func (r *Room) exec(op func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "app.room").Str("room", string(r.id)).Interface("panic", rec).Msg("room operation panicked")
		}
	}()
	op()
}

// Do runs fn on the room's actor and waits for it. It returns
// domain.ErrRoomClosed if the room retired before fn could run.
func (r *Room) Do(fn func(*Room)) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn(r)
	}
	select {
	case r.mailbox <- op:
	case <-r.stopped:
		return domain.ErrRoomClosed
	}
	select {
	case <-done:
		return nil
	case <-r.stopped:
		select {
		case <-done:
			return nil
		default:
			return domain.ErrRoomClosed
		}
	}
}

// Done is closed once the actor has stopped.
func (r *Room) Done() <-chan struct{} { return r.stopped }

func (r *Room) ID() domain.RoomID          { return r.id }
func (r *Room) CreatedAt() time.Time       { return r.createdAt }
func (r *Room) Len() int                   { return len(r.members) }
func (r *Room) MessageCount() int          { return len(r.history) }
func (r *Room) Has(sid domain.ConnID) bool { return slices.Contains(r.members, sid) }

// Members returns the roster in join order.
func (r *Room) Members() []domain.ConnID { return slices.Clone(r.members) }

func (r *Room) History() []domain.ChatMessage { return slices.Clone(r.history) }

// AddMember appends to the roster. Capacity is the caller's concern.
func (r *Room) AddMember(sid domain.ConnID) {
	r.members = append(r.members, sid)
}

func (r *Room) RemoveMember(sid domain.ConnID) bool {
	i := slices.Index(r.members, sid)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	return true
}

func (r *Room) AppendChat(msg domain.ChatMessage) {
	r.history = append(r.history, msg)
}
