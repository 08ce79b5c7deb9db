package hub

import (
	"context"
	"log/slog"
	"sync"

	"bustogether/internal/observability"
	"bustogether/pkg/types"
)

// Handler consumes inbound requests in arrival order
type Handler interface {
	Handle(connID string, req *types.Inbound) error
	Disconnected(connID string)
}

// event is either a request or, when req is nil, a disconnect
type event struct {
	connID string
	req    *types.Inbound
}

// Hub feeds every connection's requests to the gateway from one goroutine
// ARCHITECTURAL DISCOVERY: Requests and disconnects share one channel so a connection's
// final request is always handled before its cleanup, never after
type Hub struct {
	// FUNCTIONAL DISCOVERY: Buffered channel absorbs bursts when a full bus starts typing at once
	events          chan event
	shutdownChannel chan struct{}
	done            chan struct{}

	handler Handler

	running bool
	mu      sync.RWMutex

	logger *slog.Logger
}

// NewHub creates a new hub
func NewHub(handler Handler, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1000
	}
	return &Hub{
		events:          make(chan event, buffer),
		shutdownChannel: make(chan struct{}),
		done:            make(chan struct{}),
		handler:         handler,
		logger:          observability.WithComponent("hub"),
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.logger.Info("starting hub")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down and waits for the loop to exit
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdownChannel)
	h.mu.Unlock()

	<-h.done
	return nil
}

// Submit queues a request without blocking
// TECHNICAL DISCOVERY: Non-blocking send keeps one flooding client from stalling its read loop
func (h *Hub) Submit(connID string, req *types.Inbound) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}

	select {
	case h.events <- event{connID: connID, req: req}:
		return nil
	default:
		return ErrRequestChannelFull
	}
}

// Disconnected queues cleanup for a dropped connection. It blocks until queued
// so cleanup is never lost to a full buffer.
func (h *Hub) Disconnected(connID string) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	shutdown := h.shutdownChannel
	h.mu.RUnlock()

	select {
	case h.events <- event{connID: connID}:
		return nil
	case <-shutdown:
		return ErrHubNotRunning
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.logger.Info("hub processing stopped")

	for {
		select {
		case ev := <-h.events:
			h.dispatch(ev)
		case <-h.shutdownChannel:
			return
		case <-ctx.Done():
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdownChannel)
			}
			h.mu.Unlock()
			return
		}
	}
}

// dispatch isolates handler panics so one bad request cannot stop the hub
func (h *Hub) dispatch(ev event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic", "conn_id", ev.connID, "panic", r)
		}
	}()

	if ev.req == nil {
		h.handler.Disconnected(ev.connID)
		return
	}
	_ = h.handler.Handle(ev.connID, ev.req)
}
