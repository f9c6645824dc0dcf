package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var errFull = errors.New("buffer full")

// sendBuffer matches the default per-connection send_buffer.
const sendBuffer = 64

// fakeConn records frames. With capacity set it behaves like a send
// channel nobody drains: TrySend fails once capacity frames are queued.
type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	full     bool
	canceled bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || (f.capacity > 0 && len(f.frames) >= f.capacity) {
		return errFull
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = true
}

func (f *fakeConn) isCanceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

func (f *fakeConn) setFull(full bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = full
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range f.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	evs := f.ofType(t, typ)
	require.NotEmpty(t, evs, "no %s event", typ)
	return evs[len(evs)-1]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o := New(app.NewRegistry(), app.NewRoomManager(ctx, 0), app.SimplePolicy{})
	o.Now = (&fakeClock{t: time.Unix(1700000000, 0)}).Now
	return o
}

func connect(o *Orchestrator, sid domain.ConnID) *fakeConn {
	return connectBounded(o, sid, 0)
}

func connectBounded(o *Orchestrator, sid domain.ConnID, capacity int) *fakeConn {
	c := &fakeConn{capacity: capacity}
	o.Registry.Bind(sid, "client-"+string(sid), c, c.cancel)
	return c
}

func (f *fakeConn) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func members(t *testing.T, o *Orchestrator, room domain.RoomID) []domain.ConnID {
	t.Helper()
	stats, ok := o.Snapshot(room)
	if !ok {
		return nil
	}
	out := make([]domain.ConnID, 0, len(stats.Participants))
	for _, p := range stats.Participants {
		out = append(out, p.ConnID)
	}
	return out
}

func ids(ev map[string]any, key string) []string {
	raw, _ := ev[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(string))
	}
	return out
}
