package api

import (
	"context"
	"net/http"
	"strings"
)

// ActorHeader carries the authenticated caller's id, set by the upstream
// auth layer.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// RequireActor rejects requests that arrive without an actor identity.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			respondError(w, http.StatusUnauthorized, codeUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// ActorFromContext returns the actor stored by RequireActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
