// Package realtime pushes sensor data and alerts to subscribed connections.
package realtime

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/metrics"
	"bioreactor-monitor/internal/model"
)

// Event names on the wire.
const (
	EventData          = "reactor:data"
	EventAlert         = "reactor:alert"
	EventSubscriptions = "subscriptions"
	EventSystem        = "system:message"
	EventError         = "error"
)

// Envelope is the frame written to a connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// DataUpdate is the payload of a reactor:data event.
type DataUpdate struct {
	ReactorID int64          `json:"reactorId"`
	DataType  model.DataType `json:"dataType"`
	Label     string         `json:"label"`
	Record    any            `json:"record"`
}

// SystemMessage is the payload of a system:message event.
type SystemMessage struct {
	Message string `json:"message"`
	ConnID  string `json:"connId,omitempty"`
}

// AlertEvent is the payload of a reactor:alert event.
type AlertEvent struct {
	model.Alert
	ReactorName string `json:"reactor_name"`
}

// Sender is one live, authenticated connection. Send must not block.
type Sender interface {
	ID() string
	Identity() auth.Identity
	Send(msg []byte) error
	Close()
}

var (
	ErrClosed            = errors.New("broadcaster closed")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDuplicate         = errors.New("connection already registered")
)

type subscriber struct {
	sender   Sender
	reactors map[int64]struct{}
}

// Broadcaster owns the subscription registry. A process normally has one; tests build as
// many as they need.
type Broadcaster struct {
	mu       sync.RWMutex
	conns    map[string]*subscriber
	reactors map[int64]map[string]struct{}
	closed   bool

	// dispatch serializes publishes so events reach each connection in call order.
	dispatch sync.Mutex

	log zerolog.Logger
}

func New(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		conns:    make(map[string]*subscriber),
		reactors: make(map[int64]map[string]struct{}),
		log:      log,
	}
}

// Register adds an authenticated connection with no subscriptions.
func (b *Broadcaster) Register(s Sender) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, ok := b.conns[s.ID()]; ok {
		return ErrDuplicate
	}
	b.conns[s.ID()] = &subscriber{sender: s, reactors: make(map[int64]struct{})}
	metrics.RealtimeConnections.Inc()
	id := s.Identity()
	b.log.Info().Str("conn_id", s.ID()).Str("user", id.Username).Str("role", string(id.Role)).Msg("connection registered")
	return nil
}

// Subscribe adds reactorID to the connection's subscriptions. Subscribing twice is a no-op.
func (b *Broadcaster) Subscribe(connID string, reactorID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	sub.reactors[reactorID] = struct{}{}
	set, ok := b.reactors[reactorID]
	if !ok {
		set = make(map[string]struct{})
		b.reactors[reactorID] = set
	}
	set[connID] = struct{}{}
	b.log.Debug().Str("conn_id", connID).Int64("reactor_id", reactorID).Msg("subscribed")
	return nil
}

// Unsubscribe removes reactorID from the connection's subscriptions.
func (b *Broadcaster) Unsubscribe(connID string, reactorID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	delete(sub.reactors, reactorID)
	b.dropFromReactor(reactorID, connID)
	b.log.Debug().Str("conn_id", connID).Int64("reactor_id", reactorID).Msg("unsubscribed")
	return nil
}

// Subscriptions returns the reactor ids the connection watches, ascending.
func (b *Broadcaster) Subscriptions(connID string) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.conns[connID]
	if !ok {
		return nil, ErrUnknownConnection
	}
	ids := make([]int64, 0, len(sub.reactors))
	for id := range sub.reactors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Disconnect removes the connection and every subscription it held, then closes it.
// It reports whether the connection was registered.
func (b *Broadcaster) Disconnect(connID string) bool {
	b.mu.Lock()
	sub, ok := b.conns[connID]
	if ok {
		for reactorID := range sub.reactors {
			b.dropFromReactor(reactorID, connID)
		}
		delete(b.conns, connID)
		metrics.RealtimeConnections.Dec()
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	sub.sender.Close()
	b.log.Info().Str("conn_id", connID).Msg("connection removed")
	return true
}

// must hold b.mu
func (b *Broadcaster) dropFromReactor(reactorID int64, connID string) {
	set, ok := b.reactors[reactorID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(b.reactors, reactorID)
	}
}

// Connections returns the number of registered connections.
func (b *Broadcaster) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Subscribers returns the number of connections subscribed to reactorID.
func (b *Broadcaster) Subscribers(reactorID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.reactors[reactorID])
}

// PublishDataUpdate sends a reactor:data event to the reactor's subscribers and returns
// how many connections accepted it.
func (b *Broadcaster) PublishDataUpdate(reactorID int64, dataType model.DataType, record any) int {
	payload := DataUpdate{ReactorID: reactorID, DataType: dataType, Label: model.Describe(dataType).Label, Record: record}
	return b.publish(EventData, payload, func() []Sender {
		return b.sendersFor(reactorID, false)
	})
}

// PublishAlert sends a reactor:alert event to the reactor's subscribers and to every admin
// connection. Each connection receives the event at most once.
func (b *Broadcaster) PublishAlert(alert model.Alert, reactorName string) int {
	payload := AlertEvent{Alert: alert, ReactorName: reactorName}
	return b.publish(EventAlert, payload, func() []Sender {
		return b.sendersFor(alert.ReactorID, true)
	})
}

// SendTo delivers an event to a single connection.
func (b *Broadcaster) SendTo(connID, event string, data any) error {
	b.mu.RLock()
	sub, ok := b.conns[connID]
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	return sub.sender.Send(msg)
}

func (b *Broadcaster) sendersFor(reactorID int64, withAdmins bool) []Sender {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	var out []Sender
	seen := make(map[string]struct{})
	for connID := range b.reactors[reactorID] {
		seen[connID] = struct{}{}
		out = append(out, b.conns[connID].sender)
	}
	if withAdmins {
		for connID, sub := range b.conns {
			if _, dup := seen[connID]; dup || !sub.sender.Identity().IsAdmin() {
				continue
			}
			out = append(out, sub.sender)
		}
	}
	return out
}

func (b *Broadcaster) publish(event string, data any, recipients func() []Sender) int {
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return 0
	}

	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	delivered := 0
	for _, s := range recipients() {
		if err := s.Send(msg); err != nil {
			metrics.RealtimeDeliveries.WithLabelValues(event, "dropped").Inc()
			b.log.Warn().Err(apperr.Broadcast(s.ID(), err)).Str("event", event).Str("conn_id", s.ID()).Msg("delivery skipped")
			continue
		}
		metrics.RealtimeDeliveries.WithLabelValues(event, "sent").Inc()
		delivered++
	}
	return delivered
}

// Close disconnects every connection and clears the registry. Later calls to Register
// fail with ErrClosed and publishes deliver nothing.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	senders := make([]Sender, 0, len(b.conns))
	for _, sub := range b.conns {
		senders = append(senders, sub.sender)
	}
	metrics.RealtimeConnections.Sub(float64(len(b.conns)))
	b.conns = make(map[string]*subscriber)
	b.reactors = make(map[int64]map[string]struct{})
	b.mu.Unlock()

	for _, s := range senders {
		s.Close()
	}
	b.log.Info().Int("connections", len(senders)).Msg("broadcaster closed")
}
