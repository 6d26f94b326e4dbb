package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hanpama/membergraph/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func query(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "type User")
	assert.Contains(t, out.String(), "subscribedToUser")
}

func TestSchemaCommand_Raw(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema", "--raw"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "query: RootQueryType")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEMBERGRAPH_GRAPHQL_MAX_DEPTH", "0")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphql.max_depth")
}

func TestApp_MemoryStore(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := query(t, a.handler, `{"query":"mutation { createUser(dto: {name: \"Ann\", balance: 5}) { name balance } }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"createUser":{"name":"Ann","balance":5}}}`, w.Body.String())

	w = query(t, a.handler, `{"query":"{ memberTypes { id } users { name } }"}`)
	assert.JSONEq(t, `{"data":{"memberTypes":[{"id":"BASIC"},{"id":"BUSINESS"}],"users":[{"name":"Ann"}]}}`, w.Body.String())
}

func TestApp_MetricsAndHealth(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	query(t, a.handler, `{"query":"{ users { id } }"}`)

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "membergraph_graphql_operations_total")
	assert.Contains(t, w.Body.String(), "membergraph_loader_dispatches_total")

	w = httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a := newTestApp(t, cfg)

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis.Addr = mr.Addr()
	a := newTestApp(t, cfg)

	w := query(t, a.handler, `{"query":"{ memberType(id: BUSINESS) { discount postsLimitPerMonth } }"}`)
	assert.JSONEq(t, `{"data":{"memberType":{"discount":7.7,"postsLimitPerMonth":100}}}`, w.Body.String())
}

func TestApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis.Addr = addr
	cfg.Store.Redis.MaxRetries = -1
	_, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}
