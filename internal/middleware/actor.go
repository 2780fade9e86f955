package middleware

import (
	"context"
	"net/http"

	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const actorContextKey contextKey = "actor_context"

// ActorContext middleware captures who is calling and from where. The
// X-Actor-ID header carries the authenticated user's ID (set by the
// identity layer in front of this service); IP and user agent feed audit
// metadata. A missing header is allowed; a malformed one is rejected.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := models.ActorContext{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		}

		if actorIDStr := r.Header.Get("X-Actor-ID"); actorIDStr != "" {
			actorID, err := uuid.Parse(actorIDStr)
			if err != nil {
				log.Warn().Err(err).Str("actor_id", actorIDStr).Msg("Invalid actor ID")
				http.Error(w, "Invalid X-Actor-ID format", http.StatusBadRequest)
				return
			}
			actor.ActorID = &actorID
		}

		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor extracts the actor context from a request context
func GetActor(ctx context.Context) (models.ActorContext, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.ActorContext)
	return actor, ok
}

// RequireActor extracts the actor ID, reporting whether one was supplied
func RequireActor(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := GetActor(ctx)
	if !ok || actor.ActorID == nil {
		return uuid.Nil, false
	}
	return *actor.ActorID, true
}
