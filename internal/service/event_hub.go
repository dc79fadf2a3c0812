package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/observability"
)

const liveFeedBufferSize = 32

// EventPublisher fans attendance events out to live subscribers and the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.AttendanceEvent)
}

// LiveFeed lets admins follow check-ins of one session as they happen.
type LiveFeed interface {
	Subscribe(sessionID uint) (<-chan dto.AttendanceEvent, func())
}

// EventHub implements EventPublisher and LiveFeed. The NATS connection is optional.
type EventHub struct {
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger

	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.AttendanceEvent]struct{}
}

// NewEventHub constructs the hub. Events are published on "<subject>.<event type>".
func NewEventHub(conn *nats.Conn, subject string, logger zerolog.Logger) *EventHub {
	return &EventHub{
		nats:        conn,
		subject:     strings.Trim(strings.TrimSpace(subject), "."),
		logger:      logger.With().Str("component", "event_hub").Logger(),
		subscribers: make(map[uint]map[chan dto.AttendanceEvent]struct{}),
	}
}

// Publish broadcasts the event to live subscribers of its session and to NATS.
func (h *EventHub) Publish(ctx context.Context, event dto.AttendanceEvent) {
	h.broadcast(event)

	if h.nats == nil || h.subject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to encode event")
		return
	}

	if err := h.nats.Publish(h.subject+"."+event.Type, payload); err != nil {
		h.logger.Warn().Err(err).Str("event", event.Type).Uint("session_id", event.SessionID).Msg("failed to publish event to nats")
	}
}

// Subscribe registers a buffered channel for one session. The returned func
// unsubscribes and closes the channel.
func (h *EventHub) Subscribe(sessionID uint) (<-chan dto.AttendanceEvent, func()) {
	channel := make(chan dto.AttendanceEvent, liveFeedBufferSize)

	h.mu.Lock()
	if _, exists := h.subscribers[sessionID]; !exists {
		h.subscribers[sessionID] = make(map[chan dto.AttendanceEvent]struct{})
	}
	h.subscribers[sessionID][channel] = struct{}{}
	h.mu.Unlock()
	observability.LiveClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subscribers[sessionID]; ok {
				delete(subscribers, channel)
				close(channel)
				if len(subscribers) == 0 {
					delete(h.subscribers, sessionID)
				}
			}
			h.mu.Unlock()
			observability.LiveClients().Dec()
		})
	}

	return channel, cleanup
}

func (h *EventHub) broadcast(event dto.AttendanceEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
			// slow consumer; drop rather than block the request
		}
	}
}
