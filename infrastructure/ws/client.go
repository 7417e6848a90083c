package ws

import (
	"context"
	"log/slog"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/sink"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024
)

// client owns one accepted connection: a read pump feeding the relay
// service and a write pump draining the sink. Close and transport error
// both funnel through teardown, which runs exactly once.
type client struct {
	log           *slog.Logger
	conn          *websocket.Conn
	service       contract.IRelayService
	sink          *sink.ConnectionSink
	id            domain.ConnectionID
	participantID domain.ParticipantID

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(log *slog.Logger, conn *websocket.Conn, service contract.IRelayService,
	connSink *sink.ConnectionSink, id domain.ConnectionID, participantID domain.ParticipantID) *client {
	return &client{
		log:           log.With("connection", id),
		conn:          conn,
		service:       service,
		sink:          connSink,
		id:            id,
		participantID: participantID,
	}
}

// run blocks until the connection dies, whichever pump notices first.
func (c *client) run() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *client) readPump(ctx context.Context) {
	defer c.teardown()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			// Clean close and transport error take the same teardown path.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("Connection read error", "error", err)
			}
			return
		}

		// A malformed frame is already logged and counted by the service;
		// the connection stays open.
		_ = c.service.HandleFrame(ctx, c.id, raw)
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.sink.Frames:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.log.Warn("Connection write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown unregisters and closes, guarded so simultaneous close and error
// events release resources exactly once.
func (c *client) teardown() {
	c.closeOnce.Do(func() {
		c.service.Disconnect(context.Background(), c.id, c.participantID)
		_ = c.conn.Close()
		if c.cancel != nil {
			c.cancel()
		}
	})
}
