package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
)

func subscribed(t *testing.T) *Metrics {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	m := New()
	t.Cleanup(m.Subscribe())
	return m
}

func TestOperationOutcomes(t *testing.T) {
	m := subscribed(t)
	ctx := context.Background()
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Errors: []error{errors.New("x")}})
	eventbus.Publish(ctx, events.GraphQLFinish{Rejected: true, Errors: []error{errors.New("deep")}})
	eventbus.Publish(ctx, events.DepthRejected{MaxDepth: 5, Violations: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("query", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("query", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("unknown", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DepthRejections))
}

func TestStoreAndLoaderCounters(t *testing.T) {
	m := subscribed(t)
	ctx := context.Background()
	eventbus.Publish(ctx, events.StoreCall{Entity: "user", Op: "findByIds", Keys: 3})
	eventbus.Publish(ctx, events.StoreCall{Entity: "user", Op: "findByIds", Err: errors.New("down")})
	eventbus.Publish(ctx, events.LoaderDispatch{Loader: "user-by-id", Keys: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreCallsTotal.WithLabelValues("user", "findByIds", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreCallsTotal.WithLabelValues("user", "findByIds", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoaderDispatchesTotal.WithLabelValues("user-by-id", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LoaderBatchSize))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := subscribed(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(context.Background(), events.HTTPFinish{Request: req, Status: 200})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `membergraph_http_requests_total{method="POST",status="200"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
