package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadJSON reads and decodes a message into the provided structure.
// The read deadline is extended by every pong.
func ReadJSON(conn *websocket.Conn, v any) error {
	return conn.ReadJSON(v)
}

// Conn serializes writes to a WebSocket. Envelopes are queued by any
// goroutine and written by WritePump.
type Conn struct {
	ws     *websocket.Conn
	send   chan Envelope
	closed chan struct{}
	once   sync.Once
	log    zerolog.Logger

	// Droppable reports envelopes that may be discarded when the client
	// falls behind instead of closing the connection.
	Droppable func(Envelope) bool
}

// NewConn wraps an upgraded connection and installs the pong handler.
func NewConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{
		ws:     ws,
		send:   make(chan Envelope, sendBuffer),
		closed: make(chan struct{}),
		log:    log,
	}
}

// Raw returns the underlying connection for reading.
func (c *Conn) Raw() *websocket.Conn { return c.ws }

// Send queues env without blocking. A full queue closes the connection
// unless env is droppable.
func (c *Conn) Send(env Envelope) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- env:
	default:
		if c.Droppable != nil && c.Droppable(env) {
			return
		}
		c.log.Warn().Str("event", env.Event).Msg("Client too slow, closing connection")
		c.Close()
	}
}

// SendError queues an error envelope.
func (c *Conn) SendError(requestID, code, message string) {
	c.Send(Envelope{Event: EventError, RequestID: requestID, Data: ErrorData{Code: code, Message: message}})
}

// Close stops the write pump. It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.closed) })
}

// Done is closed once the connection is shutting down.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// WritePump writes queued envelopes and pings until Close is called or a
// write fails. It closes the underlying connection on return.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.ws.Close()
	}()

	for {
		select {
		case env := <-c.send:
			if err := WriteTyped(c.ws, env); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.closed:
			c.drain()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// drain writes whatever is still queued so final events reach the client.
func (c *Conn) drain() {
	for {
		select {
		case env := <-c.send:
			if err := WriteTyped(c.ws, env); err != nil {
				return
			}
		default:
			return
		}
	}
}
