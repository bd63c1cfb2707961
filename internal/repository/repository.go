package repository

import (
	"context"

	"github.com/Camiloez/postboard/internal/domain"
)

// PostRepository persists posts.
type PostRepository interface {
	// CreatePost assigns the post ID.
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	// ListPosts returns posts ordered by id. A negative limit returns everything after skip.
	ListPosts(ctx context.Context, skip, limit int) ([]domain.Post, error)
	UpdatePost(ctx context.Context, id int64, update domain.PostUpdate) error
	// DeletePost removes the post and its comments.
	DeletePost(ctx context.Context, id int64) error
}

// CommentRepository persists comments.
type CommentRepository interface {
	// CreateComment assigns the comment ID.
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id int64) (*domain.Comment, error)
	ListComments(ctx context.Context) ([]domain.Comment, error)
	ListCommentsByPost(ctx context.Context, postID int64) ([]domain.Comment, error)
}

// Store bundles the repositories of one database backend.
type Store interface {
	PostRepository
	CommentRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
