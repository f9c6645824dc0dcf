package orch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

func twoInRoom(t *testing.T) (*Orchestrator, *fakeConn, *fakeConn) {
	t.Helper()
	o := newTestOrchestrator(t)
	c1 := connect(o, "c1")
	c2 := connect(o, "c2")
	require.NoError(t, o.Join("c1", "abc", "Alice", domain.JoinOptions{}))
	require.NoError(t, o.Join("c2", "abc", "Bob", domain.JoinOptions{}))
	c1.reset()
	c2.reset()
	return o, c1, c2
}

func TestChat_EchoesToEveryMemberIncludingSender(t *testing.T) {
	o, c1, c2 := twoInRoom(t)

	require.NoError(t, o.Chat("c1", "hello", "Alice"))

	for _, c := range []*fakeConn{c1, c2} {
		msgs := c.ofType(t, core.EventChatMessage)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0]["data"])
		assert.Equal(t, "Alice", msgs[0]["sender"])
		assert.Equal(t, "c1", msgs[0]["senderConnectionId"])
		assert.NotEmpty(t, msgs[0]["timestamp"])
		assert.EqualValues(t, 1, c.last(t, core.EventRoomStats)["messageCount"])
	}
}

func TestChat_ReplayedOnceToNewJoinerInOrder(t *testing.T) {
	o, c1, c2 := twoInRoom(t)
	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, o.Chat("c1", body, "Alice"))
	}
	c1.reset()
	c2.reset()

	c3 := connect(o, "c3")
	require.NoError(t, o.Join("c3", "abc", "Carol", domain.JoinOptions{}))

	replays := c3.ofType(t, core.EventChatHistory)
	require.Len(t, replays, 1)
	assert.Equal(t, "abc", replays[0]["roomId"])
	assert.Equal(t, []string{"one", "two", "three"}, historyData(replays[0]))
	assert.Empty(t, c3.ofType(t, core.EventChatMessage))

	for _, c := range []*fakeConn{c1, c2} {
		assert.Empty(t, c.ofType(t, core.EventChatMessage))
		assert.Empty(t, c.ofType(t, core.EventChatHistory))
	}
}

func TestChat_LongHistoryReplayFitsSendBuffer(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(o, "c1")
	require.NoError(t, o.Join("c1", "abc", "Alice", domain.JoinOptions{}))
	const posted = 100
	want := make([]string, 0, posted)
	for i := range posted {
		body := fmt.Sprintf("msg-%d", i)
		want = append(want, body)
		require.NoError(t, o.Chat("c1", body, "Alice"))
	}

	c2 := connectBounded(o, "c2", sendBuffer)
	require.NoError(t, o.Join("c2", "abc", "Bob", domain.JoinOptions{}))

	assert.False(t, c2.isCanceled())
	assert.LessOrEqual(t, c2.len(), sendBuffer)
	assert.Equal(t, []string{"c1", "c2"}, ids(c2.last(t, core.EventUserJoined), "members"))
	assert.Equal(t, want, historyData(c2.last(t, core.EventChatHistory)))
	assert.EqualValues(t, posted, c2.last(t, core.EventRoomStats)["messageCount"])
}

func TestChat_BurstAtSendBufferSize(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(o, "c1")
	c2 := connectBounded(o, "c2", sendBuffer)
	require.NoError(t, o.Join("c1", "abc", "Alice", domain.JoinOptions{}))
	require.NoError(t, o.Join("c2", "abc", "Bob", domain.JoinOptions{}))
	c2.reset()

	// Each chat queues a chat-message and a room-stats-update per member.
	for i := range sendBuffer / 2 {
		require.NoError(t, o.Chat("c1", fmt.Sprintf("burst-%d", i), "Alice"))
	}
	assert.False(t, c2.isCanceled(), "a burst that fits the buffer is delivered")
	assert.Equal(t, sendBuffer, c2.len())
	assert.Len(t, c2.ofType(t, core.EventChatMessage), sendBuffer/2)

	require.NoError(t, o.Chat("c1", "overflow", "Alice"))
	assert.True(t, c2.isCanceled(), "a consumer that falls a full buffer behind is kicked")
}

func historyData(ev map[string]any) []string {
	raw, _ := ev["messages"].([]any)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.(map[string]any)["data"].(string))
	}
	return out
}

func TestChat_Rejections(t *testing.T) {
	o, c1, _ := twoInRoom(t)
	connect(o, "loner")

	tests := []struct {
		name  string
		sid   domain.ConnID
		body  string
		from  string
		check func(t *testing.T, err error)
	}{
		{
			name: "not in any room",
			sid:  "loner", body: "hi", from: "Lone",
			check: func(t *testing.T, err error) {
				var rerr *domain.RoutingError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, "loner", rerr.Target)
			},
		},
		{
			name: "empty body",
			sid:  "c1", body: "", from: "Alice",
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "data", verr.Field)
			},
		},
		{
			name: "empty sender",
			sid:  "c1", body: "hi", from: "",
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "sender", verr.Field)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, o.Chat(tt.sid, tt.body, tt.from))
		})
	}

	assert.Empty(t, c1.events(t))
	stats, ok := o.Snapshot("abc")
	require.True(t, ok)
	assert.Equal(t, 0, stats.MessageCount)
}

func TestStatusUpdate_MergesAndSkipsOriginator(t *testing.T) {
	o, c1, c2 := twoInRoom(t)
	off := false
	q := domain.QualityExcellent

	require.NoError(t, o.StatusUpdate("c1", domain.StatusPatch{VideoEnabled: &off, ConnectionQuality: &q}))

	assert.Empty(t, c1.ofType(t, core.EventStatusUpdate))
	ev := c2.last(t, core.EventStatusUpdate)
	assert.Equal(t, "c1", ev["connectionId"])
	assert.Equal(t, true, ev["audioEnabled"])
	assert.Equal(t, false, ev["videoEnabled"])
	assert.Equal(t, "excellent", ev["connectionQuality"])

	p, ok := o.Registry.Participant("c1")
	require.True(t, ok)
	assert.True(t, p.LastUpdated.After(p.JoinedAt))

	for _, c := range []*fakeConn{c1, c2} {
		stats := c.last(t, core.EventRoomStats)
		first := stats["participants"].([]any)[0].(map[string]any)
		assert.Equal(t, false, first["videoEnabled"])
	}
}

func TestStatusUpdate_NotInRoom(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(o, "c1")

	var rerr *domain.RoutingError
	require.ErrorAs(t, o.StatusUpdate("c1", domain.StatusPatch{}), &rerr)
}

func TestSpeakerUpdate_PassThrough(t *testing.T) {
	o, c1, c2 := twoInRoom(t)

	require.NoError(t, o.SpeakerUpdate("c2", true, 0.75))

	assert.Empty(t, c2.events(t))
	ev := c1.last(t, core.EventSpeakerUpdate)
	assert.Equal(t, "c2", ev["connectionId"])
	assert.Equal(t, "Bob", ev["displayName"])
	assert.Equal(t, true, ev["isSpeaking"])
	assert.InDelta(t, 0.75, ev["audioLevel"], 1e-9)
	assert.Empty(t, c1.ofType(t, core.EventRoomStats))
}

func TestPublishStats_SameSnapshotToEveryMember(t *testing.T) {
	o, c1, c2 := twoInRoom(t)

	require.True(t, o.PublishStats("abc"))
	assert.False(t, o.PublishStats("missing"))

	s1 := c1.last(t, core.EventRoomStats)
	s2 := c2.last(t, core.EventRoomStats)
	assert.Equal(t, s1, s2)
	assert.Equal(t, "abc", s1["roomId"])
	assert.EqualValues(t, 2, s1["participantCount"])
	assert.Len(t, s1["participants"], 2)
	assert.NotEmpty(t, s1["createdAt"])
}

func TestBroadcast_SlowConsumerIsKicked(t *testing.T) {
	o, c1, c2 := twoInRoom(t)
	c2.setFull(true)

	require.NoError(t, o.Chat("c1", "hello", "Alice"))

	assert.True(t, c2.isCanceled())
	assert.False(t, c1.isCanceled())
	assert.Len(t, c1.ofType(t, core.EventChatMessage), 1)
}
