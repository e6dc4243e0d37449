// Package realtime multiplexes change-event subscriptions. Many observers
// can register interest in the same (table, filter) key while at most one
// upstream connection exists per key; the connection's lifetime is owned
// by a reference count over the registered handles.
package realtime

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Key identifies one logical change stream: a table plus an optional
// equality filter of the form "column=value".
type Key struct {
	Table  string
	Filter string
}

func (k Key) String() string {
	if k.Filter == "" {
		return k.Table
	}
	return k.Table + ":" + k.Filter
}

// Event is a single change notification observed on a key's connection.
type Event struct {
	Table   string
	Payload []byte
}

// Status is the liveness state of an upstream connection.
type Status int

const (
	StatusConnecting Status = iota
	StatusSubscribed
	StatusTimedOut
	StatusClosed
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusSubscribed:
		return "subscribed"
	case StatusTimedOut:
		return "timed-out"
	case StatusClosed:
		return "closed"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Connection is a live upstream subscription owned by the multiplexer.
type Connection interface {
	Close() error
}

// Upstream opens live subscriptions against the event source. Events for
// a key are delivered in source order through onEvent; liveness changes
// are reported through onStatus from the same goroutine, so a status
// change is ordered with respect to the events around it.
type Upstream interface {
	Subscribe(key Key, onEvent func(Event), onStatus func(Status)) (Connection, error)
}

type entry struct {
	conn         Connection
	refs         int
	subscribers  map[*Subscription]struct{}
	disconnected bool
}

// Multiplexer fans one upstream connection per key out to any number of
// registered observers.
type Multiplexer struct {
	mu       sync.Mutex
	upstream Upstream
	entries  map[Key]*entry
}

// NewMultiplexer creates a multiplexer over the given upstream.
func NewMultiplexer(upstream Upstream) *Multiplexer {
	return &Multiplexer{
		upstream: upstream,
		entries:  make(map[Key]*entry),
	}
}

// Subscription is one observer's registration on a key. Release it when
// the observer is done; the upstream connection is torn down when the
// last handle for its key is released.
type Subscription struct {
	mux         *Multiplexer
	key         Key
	onEvent     func(Event)
	onReconnect func()

	once sync.Once
}

// Register subscribes an observer to the change stream for key. The first
// registration for a key opens the upstream connection; later ones share
// it. onReconnect may be nil; when set it fires once per restored
// connection, before event delivery resumes, so the observer can
// resynchronize any state it may have missed while disconnected.
func (m *Multiplexer) Register(key Key, onEvent func(Event), onReconnect func()) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &Subscription{
		mux:         m,
		key:         key,
		onEvent:     onEvent,
		onReconnect: onReconnect,
	}

	if e, ok := m.entries[key]; ok {
		e.refs++
		e.subscribers[sub] = struct{}{}
		log.Debug().Stringer("key", key).Int("refs", e.refs).Msg("Reusing existing subscription")
		return sub, nil
	}

	e := &entry{
		refs:        1,
		subscribers: map[*Subscription]struct{}{sub: {}},
	}
	m.entries[key] = e

	conn, err := m.upstream.Subscribe(key,
		func(ev Event) { m.dispatch(key, ev) },
		func(st Status) { m.trackStatus(key, st) },
	)
	if err != nil {
		delete(m.entries, key)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}
	e.conn = conn

	log.Info().Stringer("key", key).Msg("Opened new subscription")
	return sub, nil
}

// dispatch delivers an event to every subscriber registered on key.
func (m *Multiplexer) dispatch(key Key, ev Event) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so they can register or release.
	for _, s := range subs {
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// trackStatus watches connection liveness. A transition from any
// disconnected state back to subscribed fires every onReconnect hook
// exactly once, before further events are delivered; the upstream calls
// this from its delivery goroutine, which guarantees that ordering.
func (m *Multiplexer) trackStatus(key Key, st Status) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return
	}

	var hooks []func()
	switch st {
	case StatusSubscribed:
		if e.disconnected {
			e.disconnected = false
			for s := range e.subscribers {
				if s.onReconnect != nil {
					hooks = append(hooks, s.onReconnect)
				}
			}
			log.Info().Stringer("key", key).Msg("Connection restored, triggering resynchronization")
		}
	case StatusTimedOut, StatusClosed, StatusErrored:
		if !e.disconnected {
			e.disconnected = true
			log.Warn().Stringer("key", key).Stringer("status", st).Msg("Connection lost, will recover")
		}
	}
	m.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// Release detaches the handle from its key. Idempotent: calling it more
// than once has no further effect. When the key's reference count reaches
// zero the upstream connection is closed and the entry removed.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.mux.release(s)
	})
}

func (m *Multiplexer) release(sub *Subscription) {
	m.mu.Lock()
	e, ok := m.entries[sub.key]
	if !ok {
		m.mu.Unlock()
		return
	}

	delete(e.subscribers, sub)
	e.refs--
	log.Debug().Stringer("key", sub.key).Int("refs", e.refs).Msg("Released subscription handle")

	var conn Connection
	if e.refs <= 0 {
		conn = e.conn
		delete(m.entries, sub.key)
		log.Info().Stringer("key", sub.key).Msg("Closing final subscription")
	}
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Stringer("key", sub.key).Msg("Failed to close subscription connection")
		}
	}
}

// Close tears down every open connection regardless of outstanding
// handles. Intended for process shutdown only.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	conns := make([]Connection, 0, len(m.entries))
	for key, e := range m.entries {
		if e.conn != nil {
			conns = append(conns, e.conn)
		}
		delete(m.entries, key)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close subscription connection")
		}
	}
}
