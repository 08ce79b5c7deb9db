package interfaces

import "bustogether/pkg/types"

// Broadcaster is the transport boundary: room membership and fan-out.
// ARCHITECTURAL DISCOVERY: The chat core decides what is delivered and to whom;
// socket mechanics stay behind this interface so the gateway can be tested without sockets
type Broadcaster interface {
	// Subscribe adds a connection to a route's broadcast group
	Subscribe(routeID, connID string)

	// Unsubscribe removes a connection from a route's broadcast group (idempotent)
	Unsubscribe(routeID, connID string)

	// SendTo delivers an event to one connection
	SendTo(connID string, event *types.Event) error

	// Broadcast delivers an event to every member of a route's group except exceptConnID
	// FUNCTIONAL DISCOVERY: Best-effort at-most-once; a slow member never blocks the others
	Broadcast(routeID string, event *types.Event, exceptConnID string)

	// Disconnect forcibly closes one connection
	Disconnect(connID string)

	// EvictRoom unsubscribes and disconnects every member of a route's group,
	// returning how many connections were evicted
	EvictRoom(routeID string) int
}
