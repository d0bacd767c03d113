package grpcx

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
)

// RequestIDMetadataKey carries the request id in gRPC metadata (lowercase per
// metadata conventions).
const RequestIDMetadataKey = "x-request-id"

// RequestIDFromContext shares its context slot with httpx, so an id assigned by
// the HTTP middleware and one received over gRPC read the same way.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return httpx.ContextWithRequestID(ctx, id)
}

func NewRequestID() string {
	return uuid.NewString()
}
