package domain

import "time"

// Comment belongs to a post and is removed with it.
type Comment struct {
	ID              int64     `json:"id"`
	PostID          int64     `json:"post_id"`
	Content         string    `json:"content"`
	PublicationDate time.Time `json:"publication_date"`
}
