// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeSimilarity = "similarity"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is the JSON frame written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	defaultBroadcastBuffer = 1024
	clientSendBuffer       = 256
)

// Hub fans accepted similarity updates out to connected feed clients. It
// implements eventprocessor.SimilarityObserver.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan models.EventSimilarity
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	allowedOrigins map[string]bool
	allowAny       bool

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub. allowedOrigins are accepted in addition to the
// request's own host; "*" accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:        make(map[*Client]struct{}),
		broadcast:      make(chan models.EventSimilarity, defaultBroadcastBuffer),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			h.allowAny = true
		}
		h.allowedOrigins[o] = true
	}
	return h
}

// Run serves the hub until ctx is canceled, then closes every client.
//
// Lifecycle events are drained before broadcasts so a client registered
// before an update is published receives it.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.register:
			h.add(client)
			continue
		case client := <-h.unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case s := <-h.broadcast:
			h.broadcastToClients(s)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client", c.id).Int("total_clients", n).Msg("feed client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client", c.id).Int("total_clients", n).Msg("feed client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	count := h.ClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "similarity-feed").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("similarity feed stopped")
}

// sortedClients returns clients in connection order. Callers hold mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients delivers s to every interested client. A client whose
// send buffer is full is disconnected.
func (h *Hub) broadcastToClients(s models.EventSimilarity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := Message{Type: MessageTypeSimilarity, Data: s}
	var slow []*Client
	for _, c := range h.sortedClients() {
		if !c.wants(s) {
			continue
		}
		select {
		case c.send <- msg:
			h.delivered.Add(1)
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		close(c.send)
		delete(h.clients, c)
		logging.Warn().Uint64("client", c.id).Msg("feed client too slow, disconnected")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
	}
}

// ObserveSimilarity queues s for broadcast. It never blocks; updates are
// dropped while the queue is full.
func (h *Hub) ObserveSimilarity(s models.EventSimilarity) {
	select {
	case h.broadcast <- s:
	default:
		if h.dropped.Add(1)%1000 == 1 {
			logging.Warn().Int64("dropped", h.dropped.Load()).Msg("similarity feed queue full, dropping updates")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports feed counters.
type Stats struct {
	Clients   int   `json:"clients"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.ClientCount(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}
