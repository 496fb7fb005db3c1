package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 << 10 // 64 KiB per inbound frame

	sendBuffer = 64
)

var errSendBufferFull = errors.New("ws: send buffer full")

// frame is the wire envelope in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// conn adapts one websocket connection to the realtime Handle contract.
// Emits go through a buffered channel drained by a single write pump, so a
// slow client never blocks a broadcast; when the buffer fills, frames for
// this client are dropped and Emit reports the failure.
type conn struct {
	ws   *websocket.Conn
	send chan frame
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(wsc *websocket.Conn, log *slog.Logger) *conn {
	return &conn{
		ws:   wsc,
		send: make(chan frame, sendBuffer),
		log:  log,
		done: make(chan struct{}),
	}
}

func (c *conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame{Event: event, Data: data}:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		c.log.Warn("ws frame dropped", "event", event)
		return errSendBufferFull
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	return nil
}

// writePump owns all writes to the underlying socket, including pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
