package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-duel/testing/suite"
)

func newTestHub(t *testing.T, connIDs ...string) (*Hub, map[string]*client) {
	t.Helper()

	hub := NewHub(suite.NewLogger())
	clients := make(map[string]*client, len(connIDs))
	for _, id := range connIDs {
		c := newClient(id, nil)
		hub.register(c)
		clients[id] = c
	}

	return hub, clients
}

func receive(t *testing.T, c *client) outbound {
	t.Helper()

	select {
	case data := <-c.send:
		var msg outbound
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatalf("nothing queued for %s", c.id)
		return outbound{}
	}
}

func assertNothingQueued(t *testing.T, c *client) {
	t.Helper()

	assert.Empty(t, c.send, "unexpected message for %s", c.id)
}

func TestHub_Send(t *testing.T) {
	hub, clients := newTestHub(t, "a", "b")

	// When: a message is sent to one connection
	require.NoError(t, hub.Send("a", outbound{Event: "ping"}))

	// Then: only that connection gets it
	assert.Equal(t, "ping", receive(t, clients["a"]).Event)
	assertNothingQueued(t, clients["b"])

	// And: sending to an unknown connection fails
	require.Error(t, hub.Send("zzz", outbound{Event: "ping"}))
}

func TestHub_Publish(t *testing.T) {
	hub, clients := newTestHub(t, "a", "b", "c")

	// Given: a and b subscribed to g1
	hub.Subscribe("a", "g1")
	hub.Subscribe("b", "g1")
	hub.Subscribe("c", "g2")

	// When: publishing on g1
	require.NoError(t, hub.Publish("g1", outbound{Event: "moveMade"}))

	// Then: only g1 subscribers receive it
	assert.Equal(t, "moveMade", receive(t, clients["a"]).Event)
	assert.Equal(t, "moveMade", receive(t, clients["b"]).Event)
	assertNothingQueued(t, clients["c"])

	// When: b leaves the channel
	hub.Unsubscribe("b", "g1")
	require.NoError(t, hub.Publish("g1", outbound{Event: "gameOver"}))

	// Then: b no longer hears about g1
	assert.Equal(t, "gameOver", receive(t, clients["a"]).Event)
	assertNothingQueued(t, clients["b"])
}

func TestHub_Broadcast(t *testing.T) {
	hub, clients := newTestHub(t, "a", "b", "c")

	require.NoError(t, hub.Broadcast(outbound{Event: "newGameAvailable"}, "a"))

	assertNothingQueued(t, clients["a"])
	assert.Equal(t, "newGameAvailable", receive(t, clients["b"]).Event)
	assert.Equal(t, "newGameAvailable", receive(t, clients["c"]).Event)
}

func TestHub_BindPlayer(t *testing.T) {
	hub, _ := newTestHub(t, "a", "b")

	hub.BindPlayer("alice", "a")

	connID, ok := hub.ConnForPlayer("alice")
	require.True(t, ok)
	assert.Equal(t, "a", connID)

	// a reconnect on another connection takes over the binding
	hub.BindPlayer("alice", "b")
	connID, _ = hub.ConnForPlayer("alice")
	assert.Equal(t, "b", connID)

	// unknown connections can't be bound
	hub.BindPlayer("bob", "zzz")
	_, ok = hub.ConnForPlayer("bob")
	assert.False(t, ok)
}

func TestHub_Unregister(t *testing.T) {
	hub, clients := newTestHub(t, "a", "b")
	hub.Subscribe("a", "g1")
	hub.Subscribe("b", "g1")
	hub.BindPlayer("alice", "a")

	// When: a disconnects
	hub.unregister("a")

	// Then: it is gone from channels and bindings, and its queue is closed
	assert.Equal(t, 1, hub.subscribers("g1"))
	_, ok := hub.ConnForPlayer("alice")
	assert.False(t, ok)

	_, open := <-clients["a"].send
	assert.False(t, open)

	// And: the rest of the channel still works
	require.NoError(t, hub.Publish("g1", outbound{Event: "moveMade"}))
	assert.Equal(t, "moveMade", receive(t, clients["b"]).Event)

	// And: unregistering twice is harmless
	hub.unregister("a")
}

func TestHub_SlowClientDropsMessages(t *testing.T) {
	hub, clients := newTestHub(t, "a")

	for range sendBufferSize + 5 {
		require.NoError(t, hub.Send("a", outbound{Event: "spam"}))
	}

	assert.Len(t, clients["a"].send, sendBufferSize)
}
