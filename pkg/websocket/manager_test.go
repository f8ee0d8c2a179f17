package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AddRemove(t *testing.T) {
	m := NewManager()
	first := &Client{UserID: 1, Send: make(chan []byte, 1)}
	second := &Client{UserID: 1, Send: make(chan []byte, 1)}

	assert.True(t, m.AddClient(first))
	assert.False(t, m.AddClient(second))
	assert.Equal(t, 2, m.Connections(1))
	assert.True(t, m.IsOnline(1))

	assert.False(t, m.RemoveClient(first))
	assert.True(t, m.RemoveClient(second))
	assert.False(t, m.IsOnline(1))

	// a second removal must not close the channel twice
	assert.True(t, m.RemoveClient(second))
}

func TestManager_Notify(t *testing.T) {
	m := NewManager()
	alice := &Client{UserID: 1, Send: make(chan []byte, 4)}
	aliceTab := &Client{UserID: 1, Send: make(chan []byte, 4)}
	bob := &Client{UserID: 2, Send: make(chan []byte, 4)}
	carol := &Client{UserID: 3, Send: make(chan []byte, 4)}
	for _, c := range []*Client{alice, aliceTab, bob, carol} {
		m.AddClient(c)
	}

	m.Notify([]uint{1, 2, 99}, map[string]interface{}{"type": "message", "chat_id": 7})

	for _, c := range []*Client{alice, aliceTab, bob} {
		require.Len(t, c.Send, 1)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(<-c.Send, &got))
		assert.Equal(t, "message", got["type"])
		assert.EqualValues(t, 7, got["chat_id"])
	}
	assert.Empty(t, carol.Send)
}

func TestManager_NotifyDropsSlowClient(t *testing.T) {
	m := NewManager()
	slow := &Client{UserID: 1, Send: make(chan []byte)}
	m.AddClient(slow)

	m.Notify([]uint{1}, "hello")

	assert.False(t, m.IsOnline(1))
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestManager_NotifyUnmarshalable(t *testing.T) {
	m := NewManager()
	c := &Client{UserID: 1, Send: make(chan []byte, 1)}
	m.AddClient(c)

	m.Notify([]uint{1}, func() {})
	assert.Empty(t, c.Send)
	assert.True(t, m.IsOnline(1))
}
