package api

import (
	"context"

	"github.com/org/dusseldorf/pkg/models"
)

type contextKey string

const (
	ctxKeyActor     contextKey = "actor"
	ctxKeyRequestID contextKey = "request_id"
)

func withActor(ctx context.Context, a *models.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

func actorFromCtx(ctx context.Context) *models.Actor {
	a, _ := ctx.Value(ctxKeyActor).(*models.Actor)
	return a
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
