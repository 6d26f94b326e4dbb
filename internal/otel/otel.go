package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
	reqid "github.com/hanpama/membergraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("membergraph")}
	sub.register()

	return tp.Shutdown, nil
}

// openSpans holds the span each request currently has open at one level,
// keyed by the server-generated request key.
type openSpans struct{ m sync.Map }

func (o *openSpans) put(ctx context.Context, span trace.Span) {
	rid, _ := reqid.Key(ctx)
	o.m.Store(rid, span)
}

func (o *openSpans) take(ctx context.Context) (trace.Span, bool) {
	rid, _ := reqid.Key(ctx)
	v, ok := o.m.LoadAndDelete(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (o *openSpans) get(ctx context.Context) (trace.Span, bool) {
	rid, _ := reqid.Key(ctx)
	v, ok := o.m.Load(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

// under returns ctx carrying the request's open span as parent, if any.
func (o *openSpans) under(ctx context.Context) context.Context {
	if span, ok := o.get(ctx); ok {
		return trace.ContextWithSpan(ctx, span)
	}
	return ctx
}

// subscriber turns request events into spans: http.request, a
// graphql.operation child per operation and a dataloader.dispatch child per
// loader dispatch.
type subscriber struct {
	tracer     trace.Tracer
	requests   openSpans
	operations openSpans
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		_, span := s.tracer.Start(ctx, "http.request", trace.WithAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		))
		s.requests.put(ctx, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		if span, ok := s.requests.take(ctx); ok {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status), attribute.Int("graphql.operations", e.Operations))
			span.End()
		}
	})

	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
		_, span := s.tracer.Start(s.requests.under(ctx), "graphql.operation", trace.WithAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
		))
		s.operations.put(ctx, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		if span, ok := s.operations.take(ctx); ok {
			span.SetAttributes(
				attribute.Int("graphql.error_count", len(e.Errors)),
				attribute.Bool("graphql.rejected", e.Rejected),
			)
			span.End()
		}
	})

	// Dispatches of one window overlap, so each span is recorded after the
	// fact from the event's own timing.
	eventbus.Subscribe(func(ctx context.Context, e events.LoaderDispatch) {
		_, span := s.tracer.Start(s.operations.under(ctx), "dataloader.dispatch",
			trace.WithTimestamp(e.Start),
			trace.WithAttributes(
				attribute.String("dataloader.name", e.Loader),
				attribute.Int("dataloader.batch_size", e.Keys),
			))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End(trace.WithTimestamp(e.Start.Add(e.Duration)))
	})

	eventbus.Subscribe(func(ctx context.Context, e events.DepthRejected) {
		if span, ok := s.requests.get(ctx); ok {
			span.AddEvent("graphql.depth_rejected", trace.WithAttributes(
				attribute.Int("graphql.max_depth", e.MaxDepth),
				attribute.Int("graphql.violations", e.Violations),
			))
		}
	})
}
