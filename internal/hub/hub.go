// Package hub streams mirror changes to the viewer over server-sent events.
// The stream is a change feed for the browser driving the mirror, so only
// one stream is served at a time.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"virtnet/internal/domain"
	"virtnet/internal/service"
)

// KeepAlive is the interval between comment frames on idle streams
var KeepAlive = 30 * time.Second

// Message is the payload of one event frame
type Message struct {
	Type     service.EventType `json:"type"`
	Seed     string            `json:"seed,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Elements []domain.Element  `json:"elements,omitempty"`
	Dropped  int               `json:"dropped,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ErrStreamBusy is returned when the stream limit is reached
var ErrStreamBusy = errors.New("event stream already in use")

// Client represents a connected SSE client
type Client struct {
	id       string
	events   chan []byte
	accepted chan bool
}

// Hub manages SSE client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	maxClients int
	logger     *zap.Logger
}

// New creates a new Hub
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		maxClients: 1,
		logger:     logger.Named("hub"),
	}
}

// SetMaxClients changes how many streams may be open at once. Call it
// before Run.
func (h *Hub) SetMaxClients(n int) {
	if n < 1 {
		n = 1
	}
	h.maxClients = n
}

// Run starts the hub's event loop and blocks until ctx is cancelled. Open
// streams are closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.events)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			full := len(h.clients) >= h.maxClients
			if !full {
				h.clients[client] = struct{}{}
			}
			n := len(h.clients)
			h.mu.Unlock()
			client.accepted <- !full
			if full {
				h.logger.Debug("stream limit reached", zap.String("client", client.id), zap.Int("total", n))
				continue
			}
			h.logger.Debug("client connected", zap.String("client", client.id), zap.Int("total", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", zap.String("client", client.id), zap.Int("total", n))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Warn("failed to marshal event", zap.Error(err))
				continue
			}
			frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", msg.Type, data))

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- frame:
				default:
					h.logger.Warn("client is slow, skipping message", zap.String("client", client.id))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping event", zap.String("type", string(msg.Type)))
	}
}

// Publish is an event bus handler forwarding mirror events to clients
func (h *Hub) Publish(ev service.Event) {
	msg := Message{
		Type:     ev.Type,
		Seed:     ev.Seed,
		Kind:     ev.Kind,
		Elements: ev.Elements,
		Dropped:  ev.Dropped,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		events:   make(chan []byte, 64),
		accepted: make(chan bool, 1),
	}

	select {
	case h.register <- client:
		if !<-client.accepted {
			http.Error(w, ErrStreamBusy.Error(), http.StatusConflict)
			return
		}
	case <-h.done:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
