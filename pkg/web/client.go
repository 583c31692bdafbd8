package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/racelogger/laptimer-go/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

// outbound envelope on the websocket
type wsMessage struct {
	Type string `json:"type"` // state | lapflash
	Data any    `json:"data"`
}

// inbound operator commands from the display
type wsCommand struct {
	Type   string `json:"type"`
	Driver string `json:"driver,omitempty"`
}

type client struct {
	id   string
	srv  *Server
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func newClient(srv *Server, conn *websocket.Conn) *client {
	return &client{
		id:   uuid.New().String(),
		srv:  srv,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// forward subscribes to the session broadcasts and queues everything for
// this connection until the server context ends or the client disconnects.
func (c *client) forward(ctx context.Context) {
	snaps := c.srv.ctrl.SubscribeSnapshots()
	flashes := c.srv.ctrl.SubscribeLapFlashes()
	defer func() {
		c.srv.ctrl.CancelSnapshots(snaps)
		c.srv.ctrl.CancelLapFlashes(flashes)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			c.queue(wsMessage{Type: "state", Data: snap})
		case flash, ok := <-flashes:
			if !ok {
				return
			}
			c.queue(wsMessage{Type: "lapflash", Data: flash})
		}
	}
}

func (c *client) queue(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.srv.l.Error("error marshalling message",
			log.String("client", c.id), log.ErrorField(err))
		return
	}
	select {
	case c.send <- data:
	default:
		// connection too slow, drop; the next snapshot catches it up
	}
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	//nolint:errcheck // deadline on fresh conn
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.srv.l.Warn("websocket read error",
					log.String("client", c.id), log.ErrorField(err))
			}
			return
		}
		c.handleCommand(message)
	}
}

// handleCommand maps display input onto session operations.
func (c *client) handleCommand(message []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.srv.l.Warn("invalid command",
			log.String("client", c.id), log.ErrorField(err))
		return
	}
	ctrl := c.srv.ctrl
	switch cmd.Type {
	case "start":
		ctrl.StartSession()
	case "stop":
		ctrl.StopSession()
	case "reset":
		ctrl.ResetSession()
	case "togglePit":
		ctrl.TogglePit()
	case "selectDriver":
		ctrl.SelectDriver(cmd.Driver)
	default:
		c.srv.l.Warn("unknown command",
			log.String("client", c.id), log.String("type", cmd.Type))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			//nolint:errcheck // deadline on live conn
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // closing anyway
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // deadline on live conn
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
