package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub")
		return nil, false
	}
}

func TestHubPublishReachesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	a := &Client{hub: hub, UserID: "a", Send: make(chan []byte, 1)}
	b := &Client{hub: hub, UserID: "b", Send: make(chan []byte, 1)}
	require.True(t, hub.Join(a))
	require.True(t, hub.Join(b))

	hub.Publish(ActionMessageCreated, map[string]string{"name": "Ann"})

	for _, c := range []*Client{a, b} {
		raw, ok := receive(t, c.Send)
		require.True(t, ok)

		var msg struct {
			Action  string            `json:"action"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, ActionMessageCreated, msg.Action)
		assert.Equal(t, "Ann", msg.Payload["name"])
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	c := &Client{hub: hub, Send: make(chan []byte, 1)}
	require.True(t, hub.Join(c))
	hub.unregister(c)

	_, ok := receive(t, c.Send)
	assert.False(t, ok)
}

func TestHubStop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{hub: hub, Send: make(chan []byte, 1)}
	require.True(t, hub.Join(c))
	hub.Stop()

	_, ok := receive(t, c.Send)
	assert.False(t, ok)
	assert.False(t, hub.Join(&Client{hub: hub, Send: make(chan []byte)}))
}
