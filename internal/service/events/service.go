package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/ws"
)

// TopicAll receives every event regardless of its own topic.
const TopicAll = "all"

// Service publishes change events to websocket subscribers.
type Service struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs an events service.
func New(hub *ws.Hub, logger *slog.Logger) Service {
	return Service{hub: hub, logger: logger}
}

// Publish broadcasts the event on its topic and on TopicAll.
func (s Service) Publish(event domain.ChangeEvent) {
	if s.hub == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal change event", "type", event.Type, "error", err)
		return
	}
	s.hub.Broadcast(event.Topic(), data)
	s.hub.Broadcast(TopicAll, data)
}

// Hub returns the websocket hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// ValidTopic reports whether clients may subscribe to topic.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicAll, "posts", "comments":
		return true
	}
	return false
}
