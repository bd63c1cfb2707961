package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreatePostSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		var in NewPost
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Post{ID: 3, Title: in.Title, Content: in.Content, Comments: []Comment{}})
	}))
	defer srv.Close()

	cli, err := New(srv.URL, WithToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := cli.CreatePost(context.Background(), NewPost{Title: "a", Content: "b"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.ID != 3 || p.Title != "a" {
		t.Fatalf("unexpected post %+v", p)
	}
}

func TestErrorsCarryDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/comments":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Post 9 does not exist"}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"loc":["query","skip"],"msg":"Input should be greater than or equal to 0"}],"body":null}`))
		}
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.CreateComment(context.Background(), 9, "hi")
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Post 9 does not exist" {
		t.Fatalf("unexpected error %v", err)
	}
	_, err = cli.ListPosts(context.Background(), -1, 10)
	if !errors.As(err, &apiErr) || apiErr.Message != "query.skip: Input should be greater than or equal to 0" {
		t.Fatalf("unexpected validation error %v", err)
	}
}

func TestCheckAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	if code, err := cli.Check(context.Background(), "/"); err != nil || code != http.StatusOK {
		t.Fatalf("Check /: %d %v", code, err)
	}
	if code, err := cli.Check(context.Background(), "healthz"); err == nil || code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 failure, got %d %v", code, err)
	}
	if err := cli.DeletePost(context.Background(), 1); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
}
