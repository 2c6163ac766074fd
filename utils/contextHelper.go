package utils

import (
	"context"

	"github.com/gestaofrota/globus_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyTriggeredBy   = appctx.ContextKeyTriggeredBy
)

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func SetUserNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, name)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetTriggeredByFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTriggeredBy)
}

func SetTriggeredByInContext(ctx context.Context, triggeredBy string) context.Context {
	return appctx.Set(ctx, ContextKeyTriggeredBy, triggeredBy)
}

func CorrelationIdFromContextOrNew(ctx context.Context) string {
	if cid, ok := GetCorrelationIdFromContext(ctx); ok && cid != "" {
		return cid
	}
	return uuid.NewString()
}
