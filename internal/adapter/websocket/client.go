package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	maxMessageSize    = 4096
	messageBufferSize = 16
)

// Client owns the write side of one connection. All outbound frames go through
// its buffered channel so that only the writer goroutine touches the socket.
type Client struct {
	id          string
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewClient(connection *websocket.Conn, clock clockwork.Clock) *Client {
	c := &Client{
		id:          uuid.NewString(),
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	c.configureReadSide()
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Client) ID() string {
	return c.id
}

// Send enqueues a frame without blocking. It reports false when the buffer is
// full or the client has stopped.
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.doneChannel:
		return false
	default:
	}

	select {
	case c.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.connection.Close()
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.connection.Close()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

// stop closes the socket, which unblocks any pending write, and waits for the writer.
func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.doneChannel)
		_ = c.connection.Close()
	})
	c.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (c *Client) stopGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.doneChannel)

		// The writer must be gone before we write the close frame ourselves.
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		c.updateWriteDeadline()
		_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.connection.Close()
	})
	c.wg.Wait()
}

func (c *Client) configureReadSide() {
	c.connection.SetReadLimit(maxMessageSize)
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Client) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Client) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
