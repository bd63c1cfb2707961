package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Camiloez/postboard/internal/domain"
)

type postDocument struct {
	ID              int64     `bson:"_id"`
	Title           string    `bson:"title"`
	Content         string    `bson:"content"`
	PublicationDate time.Time `bson:"publication_date"`
}

type commentDocument struct {
	ID              int64     `bson:"_id"`
	PostID          int64     `bson:"post_id"`
	Content         string    `bson:"content"`
	PublicationDate time.Time `bson:"publication_date"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func postToDocument(p domain.Post) postDocument {
	return postDocument{ID: p.ID, Title: p.Title, Content: p.Content, PublicationDate: p.PublicationDate.UTC()}
}

func (d postDocument) domain() domain.Post {
	return domain.Post{ID: d.ID, Title: d.Title, Content: d.Content, PublicationDate: d.PublicationDate.UTC()}
}

func commentToDocument(c domain.Comment) commentDocument {
	return commentDocument{ID: c.ID, PostID: c.PostID, Content: c.Content, PublicationDate: c.PublicationDate.UTC()}
}

func (d commentDocument) domain() domain.Comment {
	return domain.Comment{ID: d.ID, PostID: d.PostID, Content: d.Content, PublicationDate: d.PublicationDate.UTC()}
}

// updateDocument translates a partial update into a $set document.
func updateDocument(update domain.PostUpdate) bson.M {
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	return bson.M{"$set": set}
}
