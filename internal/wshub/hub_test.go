package wshub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id string, buffer int) *Client {
	return NewClient(id, nil, buffer)
}

func recv(t *testing.T, c *Client) ServerMessage {
	t.Helper()
	select {
	case data := <-c.Send:
		var got ServerMessage
		require.NoError(t, json.Unmarshal(data, &got))
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("%s did not receive message", c.ID)
		return ServerMessage{}
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	h := NewHub(nil)

	c1 := newTestClient("c1", 16)
	c2 := newTestClient("c2", 16)
	other := newTestClient("c3", 16)

	h.Subscribe("room-a", c1)
	h.Subscribe("room-a", c2)
	h.Subscribe("room-b", other)

	h.Broadcast("room-a", ServerMessage{Event: "buzzer-reset"})

	assert.Equal(t, "buzzer-reset", recv(t, c1).Event)
	assert.Equal(t, "buzzer-reset", recv(t, c2).Event)

	select {
	case <-other.Send:
		t.Fatal("subscriber of another room received the message")
	default:
	}
}

func TestBroadcastExcept(t *testing.T) {
	h := NewHub(nil)

	c1 := newTestClient("c1", 16)
	c2 := newTestClient("c2", 16)
	h.Subscribe("room-a", c1)
	h.Subscribe("room-a", c2)

	h.BroadcastExcept("room-a", "c1", ServerMessage{Event: "player-joined", Data: map[string]string{"id": "p1"}})

	got := recv(t, c2)
	assert.Equal(t, "player-joined", got.Event)

	select {
	case <-c1.Send:
		t.Fatal("c1 should not receive its own message")
	default:
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient("c1", 64)
	h.Subscribe("room-a", c)

	events := []string{"player-buzzed", "buzzer-reset", "score-updated", "player-list-updated"}
	for _, ev := range events {
		h.Broadcast("room-a", ServerMessage{Event: ev})
	}
	for _, want := range events {
		assert.Equal(t, want, recv(t, c).Event)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient("c1", 4)
	h.Subscribe("room-a", c)
	assert.Equal(t, 1, h.Subscribers("room-a"))

	h.Unsubscribe("room-a", "c1")
	assert.Equal(t, 0, h.Subscribers("room-a"))

	h.Broadcast("room-a", ServerMessage{Event: "buzzer-reset"})
	select {
	case <-c.Send:
		t.Fatal("unsubscribed client received message")
	default:
	}

	// Should not panic
	h.Unsubscribe("missing", "c1")
}

func TestSlowConsumerEvicted(t *testing.T) {
	h := NewHub(nil)

	var evicted []string
	h.OnEvict(func(c *Client) { evicted = append(evicted, c.ID) })

	c := newTestClient("c1", 1)
	h.Subscribe("room-a", c)

	c.Send <- []byte("filler")

	// This should not block
	h.Broadcast("room-a", ServerMessage{Event: "buzzer-reset"})

	select {
	case <-c.Done():
	default:
		t.Fatal("full client should be closed")
	}
	assert.Equal(t, []string{"c1"}, evicted)

	assert.False(t, h.Send(c, ServerMessage{Event: "error"}))
	assert.Equal(t, []string{"c1"}, evicted, "closed client is not evicted twice")
}

func TestRegisterUnregister(t *testing.T) {
	h := NewHub(nil)
	c1 := newTestClient("c1", 1)
	c2 := newTestClient("c2", 1)

	h.Register(c1)
	h.Register(c2)
	assert.Equal(t, 2, h.ConnectionCount())

	h.Unregister(c1)
	assert.Equal(t, 1, h.ConnectionCount())
	select {
	case <-c1.Done():
	default:
		t.Fatal("unregistered client should be closed")
	}

	// Close is idempotent
	c1.Close()
}
