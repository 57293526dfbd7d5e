package notifications

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Connection tuning. pingEvery must stay below readTimeout so a healthy
// peer's pong always lands before the read deadline.
const (
	writeTimeout    = 10 * time.Second
	readTimeout     = 60 * time.Second
	pingEvery       = readTimeout * 9 / 10
	maxCommandBytes = 4096
	sendBuffer      = 256
	maxWatchedPosts = 200
)

// EventStreamDropped tells a client that events were discarded because it
// was not reading fast enough; it should refetch the counters it shows.
const EventStreamDropped EventType = "stream_dropped"

var droppedNotice, _ = json.Marshal(Event{Type: EventStreamDropped})

// WSHub is the part of a hub a client reports back to.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one WebSocket connection and the set of posts it watches.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	UserID uint
	// Send buffers encoded events for WritePump. It is never closed;
	// Close signals shutdown instead.
	Send chan []byte

	done       chan struct{}
	closeOnce  sync.Once
	writerDone chan struct{}

	mu sync.RWMutex
	// Empty means every post.
	watched map[uint]struct{}
}

func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		watched:    make(map[uint]struct{}),
	}
}

// Close stops WritePump and makes later sends no-ops. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Command is a client-to-server message.
type Command struct {
	Action  string `json:"action"`
	PostIDs []uint `json:"post_ids"`
}

// Watches reports whether events for postID go to this client.
func (c *Client) Watches(postID uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.watched) == 0 {
		return true
	}
	_, ok := c.watched[postID]
	return ok
}

// HandleCommand applies subscribe / unsubscribe. Anything else is ignored.
func (c *Client) HandleCommand(raw []byte) {
	var cmd Command
	if json.Unmarshal(raw, &cmd) != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd.Action {
	case "subscribe":
		for _, id := range cmd.PostIDs {
			if len(c.watched) == maxWatchedPosts {
				return
			}
			c.watched[id] = struct{}{}
		}
	case "unsubscribe":
		for _, id := range cmd.PostIDs {
			delete(c.watched, id)
		}
	}
}

// Serve runs both pumps and returns only after WritePump has stopped, so
// the caller may hand Conn back to the upgrader once it returns.
func (c *Client) Serve() {
	go c.WritePump()
	c.ReadPump()
	<-c.writerDone
}

// ReadPump reads commands until the connection fails, then unregisters the
// client and stops WritePump. It owns closing Conn.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Close()
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxCommandBytes)
	extend := func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(readTimeout)) }
	_ = extend("")
	c.Conn.SetPongHandler(extend)

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.HandleCommand(msg)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
// It returns once Close is called or a write fails.
func (c *Client) WritePump() {
	defer close(c.writerDone)
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	write := func(kind int, data []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.Conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.Send:
			if err := write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues msg without blocking. When the buffer is full the message
// is dropped and, space permitting, a stream_dropped notice is queued.
func (c *Client) TrySend(msg []byte) {
	if c.closed() {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		return
	}
	select {
	case c.Send <- msg:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	middleware.Logger.Warn("websocket buffer full, dropped event",
		slog.Uint64("user_id", uint64(c.UserID)),
		slog.String("hub", c.Hub.Name()),
	)
	select {
	case c.Send <- droppedNotice:
	default:
	}
}
