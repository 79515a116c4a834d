package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

const clientBuffer = 64

// eventEnvelope frames every message on the /events feed.
type eventEnvelope struct {
	Kind    string `json:"kind"` // "status" or "query"
	Payload any    `json:"payload"`
}

// EventHub fans status and query log events out to connected WebSocket
// clients. It implements port.StatusBroadcaster; broadcasts never block —
// a slow client loses events rather than stalling the core.
type EventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan eventEnvelope]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	return &EventHub{
		logger:  logger,
		clients: make(map[chan eventEnvelope]struct{}),
	}
}

func (h *EventHub) BroadcastStatus(ev domain.ConnectionStatusEvent) {
	h.broadcast(eventEnvelope{Kind: "status", Payload: ev})
}

func (h *EventHub) BroadcastQueryLog(ev domain.QueryLogEvent) {
	h.broadcast(eventEnvelope{Kind: "query", Payload: ev})
}

func (h *EventHub) broadcast(env eventEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- env:
		default:
			// Client buffer full; drop rather than block the core.
		}
	}
}

func (h *EventHub) register() chan eventEnvelope {
	ch := make(chan eventEnvelope, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unregister(ch chan eventEnvelope) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// HandleWebSocket upgrades the request and streams events until the client
// goes away.
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	ch := h.register()
	defer h.unregister(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-ch:
			payload, err := json.Marshal(env)
			if err != nil {
				h.logger.Error("encoding event failed", slog.String("error", err.Error()))
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
