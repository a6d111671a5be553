package relay

import (
	"sync"
	"sync/atomic"

	"github.com/opd-ai/threshold-relay/noise"
	"github.com/sirupsen/logrus"
)

// Outbound is the minimal send surface a Connection needs from its socket;
// Server implements it over a gorilla/websocket connection, tests over an
// in-memory channel.
type Outbound interface {
	WriteFrame(frame []byte) error
	Close() error
}

// Connection is per-socket state: a monotonically assigned id, the Noise
// channel to the server (handshake in progress or transport established),
// and the peer's long-term public key once the handshake completes.
type Connection struct {
	ID ConnID

	mu          sync.RWMutex
	handshake   *noise.Handshake
	transport   *noise.Transport
	staticKey   []byte // the connection's own announced static key, once known
	out         Outbound
}

// ConnID is a monotonically assigned connection identifier.
type ConnID uint64

func newConnection(id ConnID, role noise.Role, out Outbound) (*Connection, error) {
	hs, err := noise.New(role)
	if err != nil {
		return nil, err
	}
	return &Connection{ID: id, handshake: hs, out: out}, nil
}

// Transport returns the connection's established transport cipher state, or
// nil if the handshake has not yet completed.
func (c *Connection) Transport() *noise.Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

// Handshake returns the connection's in-progress handshake state, or nil
// once it has completed.
func (c *Connection) Handshake() *noise.Handshake {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshake
}

// CompleteHandshake promotes a connection from Handshake to Transport state
// and records the peer's static key, announced as the payload of its first
// handshake message.
func (c *Connection) CompleteHandshake(staticKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	transport, err := c.handshake.Transport()
	if err != nil {
		return err
	}
	c.transport = transport
	c.handshake = nil
	c.staticKey = staticKey
	return nil
}

// StaticKey returns the peer's long-term public key, or nil if not yet
// bound.
func (c *Connection) StaticKey() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staticKey
}

func (c *Connection) send(frame []byte) error {
	return c.out.WriteFrame(frame)
}

// Registry is the relay's single mutex-guarded connection table, keyed both
// by connection id and by the peer's announced static key once known.
type Registry struct {
	mu       sync.RWMutex
	byID     map[ConnID]*Connection
	byKey    map[string]*Connection
	nextID   atomic.Uint64
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[ConnID]*Connection),
		byKey: make(map[string]*Connection),
	}
}

// Add assigns a fresh id to a new socket and registers its connection in
// Handshake state.
func (r *Registry) Add(role noise.Role, out Outbound) (*Connection, error) {
	id := ConnID(r.nextID.Add(1))
	conn, err := newConnection(id, role, out)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.byID[id] = conn
	r.mu.Unlock()
	logrus.WithFields(logrus.Fields{"conn_id": id}).Debug("relay: connection registered")
	return conn, nil
}

// BindKey associates a connection's static key once its handshake
// completes, making it reachable by ResolveByKey.
func (r *Registry) BindKey(conn *Connection, staticKey []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[string(staticKey)] = conn
}

// Remove drops a connection from the registry, e.g. on socket error.
func (r *Registry) Remove(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if key := conn.StaticKey(); key != nil {
		delete(r.byKey, string(key))
	}
}

// ByID looks up a connection by its assigned id.
func (r *Registry) ByID(id ConnID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[id]
	return conn, ok
}

// ByKey looks up a connection by its bound static key.
func (r *Registry) ByKey(staticKey []byte) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byKey[string(staticKey)]
	return conn, ok
}
