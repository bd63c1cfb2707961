package mongodb

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Camiloez/postboard/internal/domain"
)

func TestDatabaseName(t *testing.T) {
	cases := map[string]string{
		"mongodb://db:27017":                       "fallback",
		"mongodb://db:27017/":                      "fallback",
		"mongodb://db:27017/postboard":             "postboard",
		"mongodb://user:pw@db:27017/blog?tls=true": "blog",
	}
	for uri, want := range cases {
		if got := DatabaseName(uri, "fallback"); got != want {
			t.Fatalf("DatabaseName(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestUpdateDocumentOnlySetsProvidedFields(t *testing.T) {
	title := "renamed"
	doc := updateDocument(domain.PostUpdate{Title: &title})
	set, ok := doc["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected $set document, got %T", doc["$set"])
	}
	if len(set) != 1 || set["title"] != "renamed" {
		t.Fatalf("unexpected $set: %v", set)
	}
}

func TestDocumentsNormalizeToUTC(t *testing.T) {
	local := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	doc := postToDocument(domain.Post{ID: 3, Title: "t", Content: "c", PublicationDate: local})
	if doc.PublicationDate.Location() != time.UTC {
		t.Fatalf("expected UTC publication date, got %s", doc.PublicationDate.Location())
	}
	back := doc.domain()
	if !back.PublicationDate.Equal(local) || back.ID != 3 {
		t.Fatalf("unexpected round trip: %+v", back)
	}

	comment := commentToDocument(domain.Comment{ID: 1, PostID: 3, Content: "c", PublicationDate: local}).domain()
	if comment.PostID != 3 || !comment.PublicationDate.Equal(local) {
		t.Fatalf("unexpected comment: %+v", comment)
	}
}
