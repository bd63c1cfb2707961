package comment

import (
	"context"
	"errors"
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

// CreateInput encapsulates comment creation attributes. Nil means absent.
type CreateInput struct {
	PostID          *int64     `json:"post_id"`
	Content         *string    `json:"content"`
	PublicationDate *time.Time `json:"publication_date"`
}

// Service orchestrates comment management.
type Service struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	events   Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a comment service.
func New(comments repository.CommentRepository, posts repository.PostRepository, events Publisher, logger *slog.Logger) Service {
	return Service{comments: comments, posts: posts, events: events, logger: logger, now: time.Now}
}

// Create stores a comment on an existing post. A missing post yields *domain.MissingPostError.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Comment, error) {
	var verr domain.ValidationError
	if input.PostID == nil {
		verr.Add(domain.MissingField("body", "post_id"))
	}
	if input.Content == nil {
		verr.Add(domain.MissingField("body", "content"))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	postID := *input.PostID
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &domain.MissingPostError{PostID: postID}
		}
		return nil, fmt.Errorf("lookup post %d: %w", postID, err)
	}
	published := s.now().UTC()
	if input.PublicationDate != nil {
		published = input.PublicationDate.UTC()
	}
	comment := &domain.Comment{PostID: postID, Content: *input.Content, PublicationDate: published}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	stored, err := s.comments.GetComment(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("reload comment %d: %w", comment.ID, err)
	}
	s.logger.Info("comment created", "comment_id", stored.ID, "post_id", stored.PostID)
	if s.events != nil {
		s.events.Publish(domain.ChangeEvent{
			Type:       domain.EventCommentCreated,
			PostID:     stored.PostID,
			CommentID:  stored.ID,
			OccurredAt: s.now().UTC(),
		})
	}
	return stored, nil
}

// List returns every comment.
func (s Service) List(ctx context.Context) ([]domain.Comment, error) {
	comments, err := s.comments.ListComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	s.logger.Debug("listed comments", "count", len(comments))
	return comments, nil
}
