package websocket

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendDeliversInOrder(t *testing.T) {
	client, peer := newTestClient(t)

	require.True(t, client.Send([]byte(`{"event":"insight_update","industry":"Tech"}`)))
	require.True(t, client.Send([]byte(`{"event":"joined","industry":"Tech"}`)))

	assert.Equal(t, EventInsightUpdate, readEnvelope(t, peer).Event)
	assert.Equal(t, EventJoined, readEnvelope(t, peer).Event)
}

func TestClient_SendFailsWhenBufferFull(t *testing.T) {
	server, _ := newTestConnPair(t)
	// No writer goroutine: nothing drains the buffer.
	c := &Client{
		id:          "test",
		connection:  server,
		clock:       clockwork.NewRealClock(),
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}

	for range messageBufferSize {
		require.True(t, c.Send([]byte("x")))
	}
	assert.False(t, c.Send([]byte("x")))
}

func TestClient_SendAfterStop(t *testing.T) {
	client, _ := newTestClient(t)

	client.stop()
	client.stop()

	assert.False(t, client.Send([]byte("x")))
}

func TestClient_IDsAreUnique(t *testing.T) {
	a, _ := newTestClient(t)
	b, _ := newTestClient(t)
	assert.NotEqual(t, a.ID(), b.ID())
}
