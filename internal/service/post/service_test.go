package post

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
	"github.com/Camiloez/postboard/internal/repository/memory"
)

type recordingPublisher struct {
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(e domain.ChangeEvent) {
	p.events = append(p.events, e)
}

func newService(t *testing.T) (Service, *memory.Repository, *recordingPublisher) {
	t.Helper()
	repo := memory.New()
	pub := &recordingPublisher{}
	svc := New(repo, repo, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC) }
	return svc, repo, pub
}

func strPtr(s string) *string { return &s }

func TestPageValidatesAndCaps(t *testing.T) {
	skip, limit, err := Page(5, 1000)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if skip != 5 || limit != MaxLimit {
		t.Fatalf("expected (5, %d), got (%d, %d)", MaxLimit, skip, limit)
	}

	_, _, err = Page(-1, -2)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0].Loc[1] != "skip" || verr.Fields[1].Loc[1] != "limit" {
		t.Fatalf("unexpected field errors: %+v", verr.Fields)
	}
	if verr.Fields[0].Input != "-1" || verr.Fields[1].Input != "-2" {
		t.Fatalf("expected string inputs, got %+v", verr.Fields)
	}
}

func TestCreateRequiresTitleAndContent(t *testing.T) {
	svc, _, pub := newService(t)
	_, err := svc.Create(context.Background(), CreateInput{Content: strPtr("body")})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Type != "missing" || verr.Fields[0].Loc[1] != "title" {
		t.Fatalf("unexpected field errors: %+v", verr.Fields)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event expected on failed create")
	}
}

func TestCreateDefaultsPublicationDateAndReturnsComments(t *testing.T) {
	svc, _, pub := newService(t)
	created, err := svc.Create(context.Background(), CreateInput{Title: strPtr("Hello"), Content: strPtr("World")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 1 || created.Title != "Hello" {
		t.Fatalf("unexpected post: %+v", created)
	}
	if !created.PublicationDate.Equal(time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected default publication date, got %s", created.PublicationDate)
	}
	if created.Comments == nil || len(created.Comments) != 0 {
		t.Fatalf("expected empty, non-nil comments: %#v", created.Comments)
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.EventPostCreated {
		t.Fatalf("expected post.created event, got %+v", pub.events)
	}
}

func TestUpdateAppliesOnlySetFields(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, CreateInput{Title: strPtr("Hello"), Content: strPtr("World")})

	updated, err := svc.Update(ctx, created.ID, UpdateInput{Content: strPtr("Gophers")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Hello" || updated.Content != "Gophers" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	same, err := svc.Update(ctx, created.ID, UpdateInput{})
	if err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if same.Content != "Gophers" {
		t.Fatalf("empty update should not change post: %+v", same)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected create + one update event, got %d", len(pub.events))
	}
}

func TestMissingPostReturnsNotFound(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Get(ctx, 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, 99, UpdateInput{Title: strPtr("x")}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Update: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestGetIncludesComments(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, CreateInput{Title: strPtr("Hello"), Content: strPtr("World")})
	_ = repo.CreateComment(ctx, &domain.Comment{PostID: created.ID, Content: "first"})

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Content != "first" {
		t.Fatalf("unexpected comments: %+v", got.Comments)
	}
}

func TestListRejectsNegativeSkip(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.List(context.Background(), -1, 10)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
