package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type authContextKey string

const contextKeyAuth authContextKey = "postboard-auth-subject"

// ScopeWrite is the token scope accepted on mutating routes.
const ScopeWrite = "write"

type contextSetter interface {
	SetContext(context.Context)
}

// requireWrite guards mutating routes with a bearer JWT when a secret is configured.
func (r *Router) requireWrite(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.tokens == nil {
			next(w, req)
			return
		}
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := r.tokens.Verify(token)
		if err != nil {
			r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !claims.HasScope(ScopeWrite) {
			r.logger.Warn("token scope rejected", "scope", claims.Scope, "subject", claims.Subject, "path", req.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+ScopeWrite+`"`)
			writeError(w, http.StatusUnauthorized, "Insufficient scope")
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyAuth, claims.Subject)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

func subjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKeyAuth).(string)
	return subject, ok && subject != ""
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	switch {
	case scheme == "":
		return "", errors.New("missing authorization header")
	case !ok || !strings.EqualFold(scheme, "Bearer"):
		return "", errors.New("authorization scheme must be Bearer")
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", errors.New("malformed bearer token")
	}
	return token, nil
}
