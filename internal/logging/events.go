package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
)

// Subscribe logs operations and failures published on the global bus. Each
// event is logged with the request logger found in its context, falling
// back to base.
func Subscribe(base *zap.Logger) (unsubscribe func()) {
	from := func(ctx context.Context) *zap.Logger {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
			return l
		}
		return base
	}
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			from(ctx).Debug("http request",
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Int("operations", e.Operations),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				zap.String("operation", e.OperationName),
				zap.String("type", e.OperationType),
				zap.Int("errors", len(e.Errors)),
				zap.Duration("duration", e.Duration),
			}
			if e.Rejected {
				fields = append(fields, zap.Bool("rejected", true))
			}
			from(ctx).Info("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.DepthRejected) {
			from(ctx).Info("query too deep",
				zap.String("operation", e.OperationName),
				zap.Int("max_depth", e.MaxDepth),
				zap.Int("violations", e.Violations),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.StoreCall) {
			if e.Err == nil {
				return
			}
			from(ctx).Warn("store call failed",
				zap.String("entity", e.Entity),
				zap.String("op", e.Op),
				zap.Int("keys", e.Keys),
				zap.Error(e.Err),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.LoaderDispatch) {
			l := from(ctx)
			if e.Err != nil {
				l.Warn("batch failed", zap.String("loader", e.Loader), zap.Int("keys", e.Keys), zap.Error(e.Err))
				return
			}
			l.Debug("batch dispatched", zap.String("loader", e.Loader), zap.Int("keys", e.Keys), zap.Duration("duration", e.Duration))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
