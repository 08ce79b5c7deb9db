package mocks

import (
	"sync"

	"bustogether/pkg/types"
)

// Delivery is one event captured by RecordingBroadcaster
type Delivery struct {
	ConnID string
	Event  *types.Event
}

// RecordingBroadcaster is an in-memory Broadcaster that records every delivery.
// Broadcasts are expanded into one Delivery per current group member.
type RecordingBroadcaster struct {
	mu           sync.Mutex
	groups       map[string]map[string]struct{}
	deliveries   []Delivery
	disconnected []string
	evicted      []string
}

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{groups: make(map[string]map[string]struct{})}
}

func (b *RecordingBroadcaster) Subscribe(routeID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groups[routeID] == nil {
		b.groups[routeID] = make(map[string]struct{})
	}
	b.groups[routeID][connID] = struct{}{}
}

func (b *RecordingBroadcaster) Unsubscribe(routeID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups[routeID], connID)
}

func (b *RecordingBroadcaster) SendTo(connID string, event *types.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, Delivery{ConnID: connID, Event: event})
	return nil
}

func (b *RecordingBroadcaster) Broadcast(routeID string, event *types.Event, exceptConnID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for connID := range b.groups[routeID] {
		if connID != exceptConnID {
			b.deliveries = append(b.deliveries, Delivery{ConnID: connID, Event: event})
		}
	}
}

func (b *RecordingBroadcaster) Disconnect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, connID)
	for _, members := range b.groups {
		delete(members, connID)
	}
}

func (b *RecordingBroadcaster) EvictRoom(routeID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for connID := range b.groups[routeID] {
		b.disconnected = append(b.disconnected, connID)
		n++
	}
	delete(b.groups, routeID)
	b.evicted = append(b.evicted, routeID)
	return n
}

// Members returns the current members of a route's group
func (b *RecordingBroadcaster) Members(routeID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.groups[routeID]))
	for connID := range b.groups[routeID] {
		out = append(out, connID)
	}
	return out
}

// EventsFor returns events delivered to connID, optionally filtered by type
func (b *RecordingBroadcaster) EventsFor(connID string, eventType ...string) []*types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*types.Event
	for _, d := range b.deliveries {
		if d.ConnID != connID {
			continue
		}
		if len(eventType) > 0 && d.Event.Type != eventType[0] {
			continue
		}
		out = append(out, d.Event)
	}
	return out
}

// Last returns the most recent event delivered to connID, or nil
func (b *RecordingBroadcaster) Last(connID string) *types.Event {
	events := b.EventsFor(connID)
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

func (b *RecordingBroadcaster) Disconnected() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.disconnected...)
}

func (b *RecordingBroadcaster) Evicted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.evicted...)
}

// Reset forgets recorded deliveries but keeps group membership
func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = nil
	b.disconnected = nil
	b.evicted = nil
}
