package websocket

import (
	"log/slog"
	"sync"

	"bustogether/internal/metrics"
	"bustogether/internal/observability"
	"bustogether/pkg/types"
)

// Registry tracks live connections and per-route broadcast groups
// ARCHITECTURAL DISCOVERY: Pure connection management without chat logic; the gateway
// decides who belongs to a room and the registry only delivers
type Registry struct {
	mu          sync.RWMutex                   // TECHNICAL DISCOVERY: RWMutex optimizes for fan-out lookups
	connections map[string]*Connection         // connID -> Connection
	rooms       map[string]map[string]struct{} // routeID -> set of connIDs
	logger      *slog.Logger
}

// NewRegistry creates a new connection registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]struct{}),
		logger:      observability.WithComponent("registry"),
	}
}

// Register adds a freshly upgraded connection
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return ErrDuplicateConnID
	}
	r.connections[conn.ID()] = conn
	metrics.ConnectedClients.Inc()
	return nil
}

// Unregister drops a connection from the registry and from every room
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// FUNCTIONAL DISCOVERY: Only remove if this exact connection is registered
	if current, exists := r.connections[conn.ID()]; !exists || current != conn {
		return
	}
	delete(r.connections, conn.ID())
	metrics.ConnectedClients.Dec()

	for routeID, members := range r.rooms {
		delete(members, conn.ID())
		if len(members) == 0 {
			delete(r.rooms, routeID)
		}
	}
}

// Get returns a registered connection
func (r *Registry) Get(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[connID]
	return conn, ok
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// RoomSize returns how many connections are subscribed to a route
func (r *Registry) RoomSize(routeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[routeID])
}

func (r *Registry) Subscribe(routeID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connID]; !exists {
		return
	}
	members, ok := r.rooms[routeID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[routeID] = members
	}
	members[connID] = struct{}{}
}

func (r *Registry) Unsubscribe(routeID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[routeID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, routeID)
	}
}

func (r *Registry) SendTo(connID string, event *types.Event) error {
	conn, ok := r.Get(connID)
	if !ok {
		return ErrConnectionNotFound
	}
	return conn.Send(event)
}

// Broadcast delivers to every room member except exceptConnID.
// Recipients are collected under the read lock and written outside it.
func (r *Registry) Broadcast(routeID string, event *types.Event, exceptConnID string) {
	r.mu.RLock()
	recipients := make([]*Connection, 0, len(r.rooms[routeID]))
	for connID := range r.rooms[routeID] {
		if connID == exceptConnID {
			continue
		}
		if conn, ok := r.connections[connID]; ok {
			recipients = append(recipients, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range recipients {
		if err := conn.Send(event); err != nil {
			r.logger.Debug("broadcast dropped", "route_id", routeID, "conn_id", conn.ID(), "event", event.Type, "error", err)
		}
	}
}

// Disconnect closes one connection after flushing what was already queued for it
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	conn, ok := r.connections[connID]
	for routeID, members := range r.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, routeID)
		}
	}
	r.mu.Unlock()

	if ok {
		conn.CloseGracefully()
	}
}

func (r *Registry) EvictRoom(routeID string) int {
	r.mu.Lock()
	members := r.rooms[routeID]
	delete(r.rooms, routeID)
	evicted := make([]*Connection, 0, len(members))
	for connID := range members {
		if conn, ok := r.connections[connID]; ok {
			evicted = append(evicted, conn)
		}
	}
	r.mu.Unlock()

	for _, conn := range evicted {
		conn.CloseGracefully()
	}
	if len(evicted) > 0 {
		r.logger.Info("room evicted", "route_id", routeID, "connections", len(evicted))
	}
	return len(evicted)
}

// CloseAll closes every registered connection, used on shutdown
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.CloseGracefully()
	}
	return len(conns)
}
