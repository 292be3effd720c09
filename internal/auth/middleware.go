// ABOUTME: Bearer-token guard for admin requests that change plugin state.
// ABOUTME: Read-only requests pass through; the caller identity rides on the context.

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	apierr "github.com/2389/vault/internal/errors"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Actors recorded on the request context.
const (
	ActorAdmin     = "admin"
	ActorAnonymous = "anonymous"
)

// Middleware requires "Authorization: Bearer <token>" on every request that is
// not GET, HEAD, or OPTIONS. An empty token disables the check.
func Middleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorAnonymous
			if token != "" && validToken(r.Header.Get("Authorization"), token) {
				actor = ActorAdmin
			}

			if token != "" && actor != ActorAdmin && !safeMethod(r.Method) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="vault"`)
				apierr.WriteError(w, http.StatusUnauthorized, apierr.ErrUnauthorized, "admin token required")
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns who made the request.
func ActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(actorContextKey).(string)
	if !ok || actor == "" {
		return ActorAnonymous
	}
	return actor
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func validToken(authHeader, want string) bool {
	got, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	got = strings.TrimSpace(got)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
