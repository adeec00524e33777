package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/parse"
)

// Control messages a client may send.
const (
	ControlSubscribe        = "subscribe:reactor"
	ControlUnsubscribe      = "unsubscribe:reactor"
	ControlGetSubscriptions = "get:subscriptions"
)

var (
	errQueueFull  = errors.New("send queue full")
	errConnClosed = errors.New("connection closed")
)

// Options tunes a websocket client.
type Options struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

// OptionsFromConfig converts the realtime config section.
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		SendBuffer:      cfg.SendBuffer,
		WriteWait:       cfg.WriteWait,
		PongWait:        cfg.PongWait,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}
}

func (o Options) pingPeriod() time.Duration { return (o.PongWait * 9) / 10 }

// Client is a middleman between a websocket connection and the broadcaster.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	hub      *Broadcaster
	opts     Options
	log      zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient wraps an upgraded, already authenticated connection.
func NewClient(hub *Broadcaster, conn *websocket.Conn, identity auth.Identity, opts Options) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		hub:      hub,
		opts:     opts,
		log:      hub.log.With().Str("conn_id", id).Logger(),
		send:     make(chan []byte, opts.SendBuffer),
	}
}

func (c *Client) ID() string              { return c.id }
func (c *Client) Identity() auth.Identity { return c.identity }

// Send queues msg without blocking.
func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errQueueFull
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve registers the client, greets it and pumps until the connection ends.
func (c *Client) Serve() error {
	if err := c.hub.Register(c); err != nil {
		c.conn.Close()
		return err
	}
	if err := c.hub.SendTo(c.id, EventSystem, SystemMessage{Message: "Connected to bioreactor monitor", ConnID: c.id}); err != nil {
		c.log.Warn().Err(err).Msg("greeting not queued")
	}
	go c.writePump()
	c.readPump()
	return nil
}

type controlMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// readPump handles control messages until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(EventError, map[string]string{"message": "malformed message"})
		return
	}

	switch msg.Event {
	case ControlSubscribe, ControlUnsubscribe:
		reactorID, err := parse.ReactorID(msg.Data)
		if err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		if msg.Event == ControlSubscribe {
			err = c.hub.Subscribe(c.id, reactorID)
		} else {
			err = c.hub.Unsubscribe(c.id, reactorID)
		}
		if err != nil {
			c.log.Debug().Err(err).Str("event", msg.Event).Msg("control message ignored")
		}
	case ControlGetSubscriptions:
		ids, err := c.hub.Subscriptions(c.id)
		if err != nil {
			return
		}
		c.reply(EventSubscriptions, map[string][]int64{"reactorIds": ids})
	default:
		c.reply(EventError, map[string]string{"message": "unknown event " + msg.Event})
	}
}

func (c *Client) reply(event string, data any) {
	if err := c.hub.SendTo(c.id, event, data); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("reply dropped")
	}
}

// writePump writes queued events, one frame each, and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("websocket ping error")
				return
			}
		}
	}
}
