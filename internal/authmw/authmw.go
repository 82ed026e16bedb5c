// Package authmw provides HTTP middleware for the identity boundary.
// The triage core never issues or validates credentials; the gateway in
// front of this service authenticates callers and forwards the actor's
// identity and capability in headers.
package authmw

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kawacukennedy/civicsense/internal/report"
)

// Headers the trusted gateway sets after authenticating the caller.
const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

type actorKey struct{}

// Identity returns middleware that extracts the calling actor from the
// gateway headers into the request context. Requests without identity
// headers proceed as an anonymous citizen.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := report.Actor{
				ID:   r.Header.Get(ActorIDHeader),
				Role: report.RoleCitizen,
			}
			switch report.Role(r.Header.Get(ActorRoleHeader)) {
			case report.RoleResolver:
				actor.Role = report.RoleResolver
			case report.RoleAdmin:
				actor.Role = report.RoleAdmin
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor extracted by Identity, or an
// anonymous citizen when the middleware is not installed.
func ActorFromContext(ctx context.Context) report.Actor {
	if a, ok := ctx.Value(actorKey{}).(report.Actor); ok {
		return a
	}
	return report.Actor{Role: report.RoleCitizen}
}

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality to prevent timing side-channel attacks. Used on
// the gateway trust boundary so identity headers cannot be spoofed by
// direct callers.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
