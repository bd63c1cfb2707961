package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
)

// Publisher receives change events.
type Publisher interface {
	Publish(domain.ChangeEvent)
}

// CreateInput encapsulates post creation attributes. Nil means absent.
type CreateInput struct {
	Title           *string    `json:"title"`
	Content         *string    `json:"content"`
	PublicationDate *time.Time `json:"publication_date"`
}

// UpdateInput holds the fields of a partial update.
type UpdateInput struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Service orchestrates post management.
type Service struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	events   Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a post service.
func New(posts repository.PostRepository, comments repository.CommentRepository, events Publisher, logger *slog.Logger) Service {
	return Service{posts: posts, comments: comments, events: events, logger: logger, now: time.Now}
}

// Create stores a post and returns it with its comments.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.PostPublic, error) {
	var verr domain.ValidationError
	if input.Title == nil {
		verr.Add(domain.MissingField("body", "title"))
	}
	if input.Content == nil {
		verr.Add(domain.MissingField("body", "content"))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	published := s.now().UTC()
	if input.PublicationDate != nil {
		published = input.PublicationDate.UTC()
	}
	post := &domain.Post{
		Title:           *input.Title,
		Content:         *input.Content,
		PublicationDate: published,
	}
	s.logger.Info("creating post", "title", post.Title)
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.publish(domain.EventPostCreated, post.ID)
	return s.Get(ctx, post.ID)
}

// List returns a validated page of posts.
func (s Service) List(ctx context.Context, skip, limit int) ([]domain.Post, error) {
	skip, limit, err := Page(skip, limit)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListPosts(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	s.logger.Debug("listed posts", "skip", skip, "limit", limit, "count", len(posts))
	return posts, nil
}

// ListAll returns every post.
func (s Service) ListAll(ctx context.Context) ([]domain.Post, error) {
	posts, err := s.posts.ListPosts(ctx, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Get returns a post with its comments or repository.ErrNotFound.
func (s Service) Get(ctx context.Context, id int64) (*domain.PostPublic, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListCommentsByPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", id, err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return &domain.PostPublic{Post: *post, Comments: comments}, nil
}

// Update applies the provided fields and returns the refreshed post.
func (s Service) Update(ctx context.Context, id int64, input UpdateInput) (*domain.PostPublic, error) {
	if _, err := s.posts.GetPost(ctx, id); err != nil {
		return nil, err
	}
	update := domain.PostUpdate{Title: input.Title, Content: input.Content}
	s.logger.Info("patching post", "post_id", id, "fields", updatedFields(update))
	if !update.Empty() {
		if err := s.posts.UpdatePost(ctx, id, update); err != nil {
			return nil, err
		}
		s.publish(domain.EventPostUpdated, id)
	}
	return s.Get(ctx, id)
}

// Delete removes a post and its comments.
func (s Service) Delete(ctx context.Context, id int64) error {
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", "post_id", id)
	s.publish(domain.EventPostDeleted, id)
	return nil
}

func (s Service) publish(kind string, postID int64) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.ChangeEvent{Type: kind, PostID: postID, OccurredAt: s.now().UTC()})
}

func updatedFields(u domain.PostUpdate) []string {
	fields := make([]string, 0, 2)
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Content != nil {
		fields = append(fields, "content")
	}
	return fields
}
