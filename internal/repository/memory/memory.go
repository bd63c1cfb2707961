// Package memory keeps posts and comments in process memory. It backs the
// memory:// database URL and the HTTP tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
)

// Repository is a mutex-guarded in-memory store.
type Repository struct {
	mu            sync.RWMutex
	posts         map[int64]domain.Post
	comments      map[int64]domain.Comment
	nextPostID    int64
	nextCommentID int64
}

var _ repository.Store = (*Repository)(nil)

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		posts:    make(map[int64]domain.Post),
		comments: make(map[int64]domain.Comment),
	}
}

func (r *Repository) CreatePost(_ context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPostID++
	post.ID = r.nextPostID
	r.posts[post.ID] = *post
	return nil
}

func (r *Repository) GetPost(_ context.Context, id int64) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &post, nil
}

func (r *Repository) ListPosts(_ context.Context, skip, limit int) ([]domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.posts))
	for id := range r.posts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	posts := make([]domain.Post, 0)
	for i, id := range ids {
		if i < skip {
			continue
		}
		if limit >= 0 && len(posts) >= limit {
			break
		}
		posts = append(posts, r.posts[id])
	}
	return posts, nil
}

func (r *Repository) UpdatePost(_ context.Context, id int64, update domain.PostUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Title != nil {
		post.Title = *update.Title
	}
	if update.Content != nil {
		post.Content = *update.Content
	}
	r.posts[id] = post
	return nil
}

func (r *Repository) DeletePost(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.posts, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r *Repository) CreateComment(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCommentID++
	comment.ID = r.nextCommentID
	r.comments[comment.ID] = *comment
	return nil
}

func (r *Repository) GetComment(_ context.Context, id int64) (*domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comment, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &comment, nil
}

func (r *Repository) ListComments(_ context.Context) ([]domain.Comment, error) {
	return r.filterComments(func(domain.Comment) bool { return true }), nil
}

func (r *Repository) ListCommentsByPost(_ context.Context, postID int64) ([]domain.Comment, error) {
	return r.filterComments(func(c domain.Comment) bool { return c.PostID == postID }), nil
}

func (r *Repository) filterComments(keep func(domain.Comment) bool) []domain.Comment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comments := make([]domain.Comment, 0)
	for _, c := range r.comments {
		if keep(c) {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments
}

func (r *Repository) Ping(context.Context) error  { return nil }
func (r *Repository) Close(context.Context) error { return nil }
