package services

import "context"

type contextKey string

const (
	mediaRefKey  contextKey = "media_ref"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithMediaRef annotates context with the media reference of the item in flight.
func WithMediaRef(ctx context.Context, ref string) context.Context {
	return withString(ctx, mediaRefKey, ref)
}

// MediaRefFromContext extracts the media reference if present.
func MediaRefFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, mediaRefKey) }

// WithStage annotates context with the cycle stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, stageKey) }

// WithRequestID annotates context with the per-cycle correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, requestIDKey) }
