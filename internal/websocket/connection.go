package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bustogether/pkg/types"
)

// Connection wraps one rider's socket
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions,
// so every outbound frame goes through writeCh and a single writer goroutine
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte // FUNCTIONAL DISCOVERY: buffer sized for a full bus of chatter
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closing   chan struct{} // graceful close requested
	closeOnce sync.Once
	flushOnce sync.Once
	done      chan struct{}
}

// NewConnection creates a connection wrapper and starts its writer
func NewConnection(id string, conn *websocket.Conn, buffer int, writeTimeout time.Duration) *Connection {
	if buffer <= 0 {
		buffer = 100
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           id,
		conn:         conn,
		writeCh:      make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

// ID returns the server-assigned connection identifier
func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the writer has exited
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	defer close(c.done)

	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				c.Close()
				return
			}

		case <-c.closing:
			// FUNCTIONAL DISCOVERY: A kicked or evicted rider must still receive the
			// event explaining why, so queued frames go out before the close frame
			c.flush()
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeTimeout),
			)
			c.Close()
			return

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) flush() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Send queues an event without blocking
// TECHNICAL DISCOVERY: A rider in a tunnel must not stall the room, so a full
// buffer drops the event for that rider only
func (c *Connection) Send(event *types.Event) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-c.closing:
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// CloseGracefully flushes queued events, sends a close frame and closes the socket.
// It returns immediately; the writer goroutine finishes the work.
func (c *Connection) CloseGracefully() {
	c.flushOnce.Do(func() {
		close(c.closing)
	})
}

// Close tears the connection down immediately, discarding queued events
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
