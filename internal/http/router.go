package httpx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/repository"
	"github.com/Camiloez/postboard/internal/service/comment"
	"github.com/Camiloez/postboard/internal/service/events"
	"github.com/Camiloez/postboard/internal/service/post"
	"github.com/Camiloez/postboard/internal/ws"
	jwtpkg "github.com/Camiloez/postboard/pkg/jwt"
)

const (
	rateWindow         = time.Minute
	healthCheckTimeout = 2 * time.Second

	rateClassRead  = "read"
	rateClassWrite = "write"
)

// Options tune the router's guards.
type Options struct {
	// AuthSecret enables the bearer JWT guard on mutating routes when set.
	AuthSecret string
	// WriteLimit and ReadLimit are requests per minute per client; zero disables.
	WriteLimit int
	ReadLimit  int
	// TrustForwarded takes the client address from X-Forwarded-For.
	TrustForwarded bool
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	posts      post.Service
	comments   comment.Service
	events     events.Service
	upgrader   websocket.Upgrader
	limiter    RateLimiter
	tokens     *jwtpkg.Issuer
	trustProxy bool
	writeLimit int
	readLimit  int
	dbHealth   func(context.Context) error
	metrics    *routeMetrics
}

// NewRouter assembles routes with dependencies. Writes stay open when no auth
// secret is configured.
func NewRouter(logger *slog.Logger, postSvc post.Service, commentSvc comment.Service, eventSvc events.Service, limiter RateLimiter, dbHealth func(context.Context) error, opts Options) (*Router, error) {
	tokens, err := jwtpkg.NewIssuer(opts.AuthSecret, 0)
	switch {
	case errors.Is(err, jwtpkg.ErrEmptySecret):
		tokens = nil
	case err != nil:
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		posts:    postSvc,
		comments: commentSvc,
		events:   eventSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:    limiter,
		tokens:     tokens,
		writeLimit: opts.WriteLimit,
		trustProxy: opts.TrustForwarded,
		readLimit:  opts.ReadLimit,
		dbHealth:   dbHealth,
		metrics:    initMetrics(),
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r, nil
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/posts", r.audit("/posts", r.handlePosts))
	r.mux.HandleFunc("/posts/", r.audit("/posts/{id}", r.handlePost))
	r.mux.HandleFunc("/posts2", r.audit("/posts2", r.read("/posts2", r.handlePostsLegacy)))
	r.mux.HandleFunc("/comments", r.audit("/comments", r.handleComments))
	r.mux.HandleFunc("/items", r.audit("/items", r.read("/items", r.handleCommons)))
	r.mux.HandleFunc("/users", r.audit("/users", r.read("/users", r.handleCommons)))
	r.mux.HandleFunc("/ws/events", r.audit("/ws/events", r.read("/ws/events", r.handleEventsWS)))
	r.mux.HandleFunc("/", r.audit("/", r.handleHome))
}

func (r *Router) read(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.withRateLimit(route, rateClassRead, r.readLimit, next)
}

func (r *Router) write(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.withRateLimit(route, rateClassWrite, r.writeLimit, r.requireWrite(next))
}

func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	r.logger.Debug("hello from home debug")
	r.logger.Info("hello from home info")
	writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	topic := strings.TrimSpace(req.URL.Query().Get("topic"))
	if topic == "" {
		topic = events.TopicAll
	}
	if !events.ValidTopic(topic) {
		r.validationFailed(w, req, &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:   []string{"query", "topic"},
			Msg:   "Input should be 'all', 'posts' or 'comments'",
			Type:  "enum",
			Input: topic,
		}}}, nil)
		return
	}
	hub := r.events.Hub()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub.Register(topic, client)
	r.metrics.wsConnections.Inc()
	go func() {
		client.Serve()
		hub.Unregister(topic, client)
		r.metrics.wsConnections.Dec()
	}()
}

// respondError maps service errors onto HTTP status codes.
func (r *Router) respondError(w http.ResponseWriter, req *http.Request, err error, body []byte) {
	var verr *domain.ValidationError
	var missing *domain.MissingPostError
	switch {
	case errors.As(err, &verr):
		r.validationFailed(w, req, verr, body)
	case errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, missing.Error())
	case errors.Is(err, repository.ErrNotFound):
		r.notFound(w)
	default:
		r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (r *Router) validationFailed(w http.ResponseWriter, req *http.Request, verr *domain.ValidationError, body []byte) {
	r.logger.Debug("validation error for request", "url", req.URL.String())
	r.logger.Debug("request content", "body", string(body))
	r.logger.Debug("validation error details", "error", verr.Error())
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: verr.Fields, Body: bodyForResponse(body)})
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		if ip := clientIP(req, r.trustProxy); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if subject, ok := subjectFromContext(ctx); ok {
			fields = append(fields, "subject", subject)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
	if !decision.reset.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.reset.Unix(), 10))
		if !decision.allowed {
			retry := int(math.Ceil(time.Until(decision.reset).Seconds()))
			headers.Set("Retry-After", strconv.Itoa(max(retry, 1)))
		}
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not Found")
}
