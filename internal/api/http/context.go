package http

import (
	"context"

	"carrental-backend/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the identity the auth middleware attached to the
// request. Public routes carry no actor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok && actor.UserID != ""
}
