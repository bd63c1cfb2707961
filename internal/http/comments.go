package httpx

import (
	"net/http"

	"github.com/Camiloez/postboard/internal/service/comment"
)

func (r *Router) handleComments(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.read("/comments", r.listComments)(w, req)
	case http.MethodPost:
		r.write("/comments", r.createComment)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) listComments(w http.ResponseWriter, req *http.Request) {
	comments, err := r.comments.List(req.Context())
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	r.logger.Info("got results", "count", len(comments))
	writeJSON(w, http.StatusOK, nonNil(comments))
}

func (r *Router) createComment(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		r.respondError(w, req, err, nil)
		return
	}
	var input comment.CreateInput
	if err := decodeBody(body, &input); err != nil {
		r.respondError(w, req, err, body)
		return
	}
	created, err := r.comments.Create(req.Context(), input)
	if err != nil {
		r.respondError(w, req, err, body)
		return
	}
	r.recordWrite("comment", "create")
	writeJSON(w, http.StatusCreated, created)
}
