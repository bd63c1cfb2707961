package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/ws"
)

type chanSubscriber chan []byte

func (c chanSubscriber) Send(p []byte) error { c <- p; return nil }
func (c chanSubscriber) Close()              {}

func TestPublishReachesTopicAndAll(t *testing.T) {
	hub := ws.NewHub(8)
	posts := make(chanSubscriber, 2)
	all := make(chanSubscriber, 2)
	hub.Register("posts", posts)
	hub.Register(TopicAll, all)

	svc := New(hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.Publish(domain.ChangeEvent{Type: domain.EventPostCreated, PostID: 9})

	for _, ch := range []chanSubscriber{posts, all} {
		select {
		case payload := <-ch:
			var event domain.ChangeEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event.Type != domain.EventPostCreated || event.PostID != 9 || event.OccurredAt.IsZero() {
				t.Fatalf("unexpected event %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatalf("event not delivered")
		}
	}
}

func TestValidTopic(t *testing.T) {
	for _, topic := range []string{"all", "posts", "comments"} {
		if !ValidTopic(topic) {
			t.Fatalf("expected %q to be valid", topic)
		}
	}
	if ValidTopic("users") {
		t.Fatalf("users is not a topic")
	}
}
