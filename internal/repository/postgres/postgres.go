package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.PostRepository    = (*Repository)(nil)
	_ repository.CommentRepository = (*Repository)(nil)
	_ repository.Store             = (*Repository)(nil)
)

// CreatePost inserts a post and stores the generated id on it.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	const query = `INSERT INTO posts (title, content, publication_date)
		VALUES ($1, $2, $3) RETURNING id`
	row := r.pool.QueryRow(ctx, query, post.Title, post.Content, post.PublicationDate)
	return row.Scan(&post.ID)
}

// GetPost fetches a post by id.
func (r *Repository) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	const query = `SELECT id, title, content, publication_date FROM posts WHERE id = $1`
	var p domain.Post
	if err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Title, &p.Content, &p.PublicationDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p.PublicationDate = p.PublicationDate.UTC()
	return &p, nil
}

// ListPosts returns a page of posts ordered by id.
func (r *Repository) ListPosts(ctx context.Context, skip, limit int) ([]domain.Post, error) {
	query := `SELECT id, title, content, publication_date FROM posts ORDER BY id OFFSET $1`
	args := []any{skip}
	if limit >= 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.PublicationDate); err != nil {
			return nil, err
		}
		p.PublicationDate = p.PublicationDate.UTC()
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// UpdatePost applies the set fields of update.
func (r *Repository) UpdatePost(ctx context.Context, id int64, update domain.PostUpdate) error {
	if update.Empty() {
		return nil
	}
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if update.Title != nil {
		args = append(args, *update.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Content != nil {
		args = append(args, *update.Content)
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeletePost removes a post; comments follow through ON DELETE CASCADE.
func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateComment inserts a comment and stores the generated id on it.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `INSERT INTO comments (post_id, content, publication_date)
		VALUES ($1, $2, $3) RETURNING id`
	row := r.pool.QueryRow(ctx, query, comment.PostID, comment.Content, comment.PublicationDate)
	return row.Scan(&comment.ID)
}

// GetComment fetches a comment by id.
func (r *Repository) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	const query = `SELECT id, post_id, content, publication_date FROM comments WHERE id = $1`
	var c domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.PostID, &c.Content, &c.PublicationDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.PublicationDate = c.PublicationDate.UTC()
	return &c, nil
}

// ListComments returns every comment ordered by id.
func (r *Repository) ListComments(ctx context.Context) ([]domain.Comment, error) {
	return r.queryComments(ctx, `SELECT id, post_id, content, publication_date FROM comments ORDER BY id`)
}

// ListCommentsByPost returns the comments of a post ordered by id.
func (r *Repository) ListCommentsByPost(ctx context.Context, postID int64) ([]domain.Comment, error) {
	return r.queryComments(ctx, `SELECT id, post_id, content, publication_date FROM comments WHERE post_id = $1 ORDER BY id`, postID)
}

func (r *Repository) queryComments(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Content, &c.PublicationDate); err != nil {
			return nil, err
		}
		c.PublicationDate = c.PublicationDate.UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Ping checks the pool.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close(context.Context) error {
	r.pool.Close()
	return nil
}
