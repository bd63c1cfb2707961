package domain

import "time"

// Event kinds published on the change stream.
const (
	EventPostCreated    = "post.created"
	EventPostUpdated    = "post.updated"
	EventPostDeleted    = "post.deleted"
	EventCommentCreated = "comment.created"
)

// ChangeEvent describes a mutation of posts or comments.
type ChangeEvent struct {
	Type       string    `json:"type"`
	PostID     int64     `json:"post_id"`
	CommentID  int64     `json:"comment_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Topic returns the stream the event is published on.
func (e ChangeEvent) Topic() string {
	if e.CommentID != 0 {
		return "comments"
	}
	return "posts"
}
