package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/flagdex/internal/logger"
)

// ActorHeader carries the acting user id, set by the platform gateway.
const ActorHeader = "X-User-ID"

type actorKey struct{}

// ActorMiddleware places the acting user id from ActorHeader into the request context
// and onto the request logger.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		ctx := ContextWithActor(r.Context(), actor)
		if actor != "" {
			ctx = logpkg.With(ctx, zap.String("actor_id", actor))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextWithActor returns a copy of ctx carrying the actor id.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor id, empty for anonymous requests.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
