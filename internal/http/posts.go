package httpx

import (
	"net/http"
	"strings"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/service/post"
)

func (r *Router) handlePosts(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.read("/posts", r.listPosts)(w, req)
	case http.MethodPost:
		r.write("/posts", r.createPost)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handlePost(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/posts/")
	if rest == "" || strings.Contains(rest, "/") {
		r.notFound(w)
		return
	}
	id, err := pathID(rest)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	switch req.Method {
	case http.MethodGet:
		r.read("/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
			r.getPost(w, req, id)
		})(w, req)
	case http.MethodPatch:
		r.write("/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
			r.updatePost(w, req, id)
		})(w, req)
	case http.MethodDelete:
		r.write("/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
			r.deletePost(w, req, id)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) listPosts(w http.ResponseWriter, req *http.Request) {
	var verr domain.ValidationError
	query := req.URL.Query()
	skip := queryPage(query, "skip", 0, &verr)
	limit := queryPage(query, "limit", post.DefaultLimit, &verr)
	if err := verr.OrNil(); err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	posts, err := r.posts.List(req.Context(), skip, limit)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	r.logger.Info("got results", "count", len(posts))
	writeJSON(w, http.StatusOK, nonNil(posts))
}

// handlePostsLegacy accepts skip and limit but always returns every post.
func (r *Router) handlePostsLegacy(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	var verr domain.ValidationError
	query := req.URL.Query()
	skip := queryInt(query, "skip", 0, &verr)
	limit := queryInt(query, "limit", post.DefaultLimit, &verr)
	if err := verr.OrNil(); err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	r.logger.Info("legacy listing", "skip", skip, "limit", limit)
	posts, err := r.posts.ListAll(req.Context())
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

func (r *Router) createPost(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	var input post.CreateInput
	if err := decodeBody(body, &input); err != nil {
		r.respondError(w, req, err, body)
		return
	}
	created, err := r.posts.Create(req.Context(), input)
	if err != nil {
		r.respondError(w, req, err, body)
		return
	}
	r.recordWrite("post", "create")
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) getPost(w http.ResponseWriter, req *http.Request, id int64) {
	found, err := r.posts.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) updatePost(w http.ResponseWriter, req *http.Request, id int64) {
	body, err := readBody(req)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	var input post.UpdateInput
	if err := decodeBody(body, &input); err != nil {
		r.respondError(w, req, err, body)
		return
	}
	updated, err := r.posts.Update(req.Context(), id, input)
	if err != nil {
		r.respondError(w, req, err, body)
		return
	}
	r.recordWrite("post", "update")
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) deletePost(w http.ResponseWriter, req *http.Request, id int64) {
	if err := r.posts.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	r.recordWrite("post", "delete")
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleCommons(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	var verr domain.ValidationError
	query := req.URL.Query()
	q := "ab"
	if query.Has("q") {
		q = query.Get("q")
	}
	skip := queryInt(query, "skip", 10, &verr)
	limit := queryInt(query, "limit", 100, &verr)
	if err := verr.OrNil(); err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"q": q, "skip": skip, "limit": limit})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
