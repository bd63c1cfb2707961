package domain

import "time"

// Post is a published article.
type Post struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	PublicationDate time.Time `json:"publication_date"`
}

// PostPublic is a post together with its comments.
type PostPublic struct {
	Post
	Comments []Comment `json:"comments"`
}

// PostUpdate carries the fields of a partial update. Nil fields are left untouched.
type PostUpdate struct {
	Title   *string
	Content *string
}

// Empty reports whether the update sets no field.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil
}
