package domain

import "testing"

func TestPostUpdateEmpty(t *testing.T) {
	if !(PostUpdate{}).Empty() {
		t.Fatalf("zero update should be empty")
	}
	title := "new"
	if (PostUpdate{Title: &title}).Empty() {
		t.Fatalf("update with title should not be empty")
	}
}

func TestChangeEventTopic(t *testing.T) {
	if got := (ChangeEvent{Type: EventPostCreated, PostID: 1}).Topic(); got != "posts" {
		t.Fatalf("expected posts topic, got %q", got)
	}
	if got := (ChangeEvent{Type: EventCommentCreated, PostID: 1, CommentID: 2}).Topic(); got != "comments" {
		t.Fatalf("expected comments topic, got %q", got)
	}
}

func TestValidationErrorOrNil(t *testing.T) {
	var verr ValidationError
	if verr.OrNil() != nil {
		t.Fatalf("expected nil for empty validation error")
	}
	verr.Add(MissingField("body", "title"))
	err := verr.OrNil()
	if err == nil {
		t.Fatalf("expected error after Add")
	}
	if got := err.Error(); got != "validation failed: body.title: Field required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMissingPostErrorMessage(t *testing.T) {
	err := &MissingPostError{PostID: 42}
	if err.Error() != "Post 42 does not exist" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
