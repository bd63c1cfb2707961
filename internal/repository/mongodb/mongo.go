package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
)

const (
	postsCollection    = "posts"
	commentsCollection = "comments"
	countersCollection = "counters"
)

// Repository implements persistence interfaces on MongoDB.
type Repository struct {
	client   *mongo.Client
	posts    *mongo.Collection
	comments *mongo.Collection
	counters *mongo.Collection
}

var (
	_ repository.PostRepository    = (*Repository)(nil)
	_ repository.CommentRepository = (*Repository)(nil)
	_ repository.Store             = (*Repository)(nil)
)

// Connect opens a client for uri. The database named in the uri path wins over fallbackDB.
func Connect(ctx context.Context, uri, fallbackDB string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	return New(client, DatabaseName(uri, fallbackDB)), nil
}

// New constructs a Repository on an existing client.
func New(client *mongo.Client, database string) *Repository {
	db := client.Database(database)
	return &Repository{
		client:   client,
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
		counters: db.Collection(countersCollection),
	}
}

// DatabaseName extracts the database from a mongodb:// uri path.
func DatabaseName(uri, fallback string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fallback
	}
	name := strings.Trim(parsed.Path, "/")
	if name == "" {
		return fallback
	}
	return name
}

// EnsureIndexes creates the secondary indexes used by comment lookups.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create comments index: %w", err)
	}
	return nil
}

// nextID atomically increments the named sequence.
func (r *Repository) nextID(ctx context.Context, sequence string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter counterDocument
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": sequence}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", sequence, err)
	}
	return counter.Seq, nil
}

// CreatePost inserts a post and stores the generated id on it.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	id, err := r.nextID(ctx, postsCollection)
	if err != nil {
		return err
	}
	post.ID = id
	_, err = r.posts.InsertOne(ctx, postToDocument(*post))
	return err
}

// GetPost fetches a post by id.
func (r *Repository) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	var doc postDocument
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	post := doc.domain()
	return &post, nil
}

// ListPosts returns a page of posts ordered by id.
func (r *Repository) ListPosts(ctx context.Context, skip, limit int) ([]domain.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(skip))
	if limit >= 0 {
		if limit == 0 {
			// Mongo treats limit 0 as unbounded.
			return []domain.Post{}, nil
		}
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.domain())
	}
	return posts, nil
}

// UpdatePost applies the set fields of update.
func (r *Repository) UpdatePost(ctx context.Context, id int64, update domain.PostUpdate) error {
	if update.Empty() {
		return nil
	}
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": id}, updateDocument(update))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its comments.
func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	if _, err := r.comments.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return fmt.Errorf("delete comments of post %d: %w", id, err)
	}
	return nil
}

// CreateComment inserts a comment and stores the generated id on it.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	id, err := r.nextID(ctx, commentsCollection)
	if err != nil {
		return err
	}
	comment.ID = id
	_, err = r.comments.InsertOne(ctx, commentToDocument(*comment))
	return err
}

// GetComment fetches a comment by id.
func (r *Repository) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	var doc commentDocument
	if err := r.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	comment := doc.domain()
	return &comment, nil
}

// ListComments returns every comment ordered by id.
func (r *Repository) ListComments(ctx context.Context) ([]domain.Comment, error) {
	return r.findComments(ctx, bson.M{})
}

// ListCommentsByPost returns the comments of a post ordered by id.
func (r *Repository) ListCommentsByPost(ctx context.Context, postID int64) ([]domain.Comment, error) {
	return r.findComments(ctx, bson.M{"post_id": postID})
}

func (r *Repository) findComments(ctx context.Context, filter bson.M) ([]domain.Comment, error) {
	cursor, err := r.comments.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	comments := make([]domain.Comment, 0, len(docs))
	for _, doc := range docs {
		comments = append(comments, doc.domain())
	}
	return comments, nil
}

// Ping checks the primary is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
