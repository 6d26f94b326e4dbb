package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
	executor "github.com/hanpama/membergraph/internal/executor"
	graph "github.com/hanpama/membergraph/internal/graph"
	reqid "github.com/hanpama/membergraph/internal/reqid"
	schema "github.com/hanpama/membergraph/internal/schema"
	store "github.com/hanpama/membergraph/internal/store"
)

func newTestHandler(t *testing.T, rt executor.Runtime, opts ...Option) *Handler {
	t.Helper()
	sdl := `type Query { hello: String }`
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	h, err := New(func() executor.Runtime { return rt }, sch, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func helloRuntime() *executor.MockRuntime {
	return executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// useBus installs a fresh global bus for the duration of the test.
func useBus(t *testing.T) {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
}

func TestQuery(t *testing.T) {
	h := newTestHandler(t, helloRuntime())
	w := post(t, h, `{"query":"{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	want := map[string]any{"data": map[string]any{"hello": "world"}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
}

func TestGetQuery(t *testing.T) {
	h := newTestHandler(t, helloRuntime())
	req := httptest.NewRequest("GET", "/?query="+url.QueryEscape("{ hello }"), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"hello":"world"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestSyntaxError(t *testing.T) {
	h := newTestHandler(t, helloRuntime())
	got := decode(t, post(t, h, `{"query":"{ hello"}`))
	if _, ok := got["data"]; ok {
		t.Fatalf("syntax error must not carry data: %v", got)
	}
	errs := got["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("want one error, got %v", errs)
	}
	e := errs[0].(map[string]any)
	if code := e["extensions"].(map[string]any)["code"]; code != "GRAPHQL_PARSE_FAILED" {
		t.Fatalf("code = %v", code)
	}
	if _, ok := e["locations"]; !ok {
		t.Fatalf("missing locations: %v", e)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, helloRuntime())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("PUT", "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", w.Code)
	}
	if _, ok := decode(t, w)["data"]; ok {
		t.Fatalf("request error must not carry data")
	}
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t, helloRuntime())
	w := post(t, h, `[{"query":"{ hello }"},{"query":"{ hello"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if _, ok := got[0]["data"]; !ok {
		t.Fatalf("first result should have data: %v", got[0])
	}
	if _, ok := got[1]["data"]; ok {
		t.Fatalf("second result should be errors only: %v", got[1])
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), WithCORS("*"))

	// simple request
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), WithCORS("https://app.example.com"))
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), WithMaxBodyBytes(10))
	w := post(t, h, `{"query":"1234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var captured string
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)

	w := post(t, h, `{"query":"{ hello }"}`)
	if captured == "" {
		t.Fatalf("missing request id in context")
	}
	if got := w.Header().Get(reqid.Header); got != captured {
		t.Fatalf("response header %q, context %q", got, captured)
	}

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set(reqid.Header, "caller-chosen")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if captured != "caller-chosen" {
		t.Fatalf("caller request id not kept: %q", captured)
	}
}

func TestRuntimePerOperation(t *testing.T) {
	sch, err := schema.BuildFromSDL(`type Query { hello: String }`)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	built := 0
	h, err := New(func() executor.Runtime { built++; return helloRuntime() }, sch, WithMaxDepth(1))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	post(t, h, `[{"query":"{ hello }"},{"query":"{ hello }"}]`)
	if built != 2 {
		t.Fatalf("want a runtime per operation, built %d", built)
	}
	post(t, h, `{"query":"{ hello"}`)
	if built != 2 {
		t.Fatalf("unparsable document built a runtime")
	}
}

// memberGraph serves the member schema over a seeded memory store and
// records every store call.
func memberGraph(t *testing.T, opts ...Option) (*Handler, *store.Recorder) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	for _, id := range []string{
		"6f1d1c1e-0000-4000-8000-000000000001",
		"6f1d1c1e-0000-4000-8000-000000000002",
	} {
		if _, err := mem.Users.Create(ctx, store.User{ID: id, Name: id[len(id)-1:]}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	rec := &store.Recorder{}
	svc, err := graph.New(store.Observe(mem, rec.Record))
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	h, err := New(func() executor.Runtime { return svc.NewRuntime() }, svc.Schema(), opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h, rec
}

func TestDepthLimit_RejectedBeforeStore(t *testing.T) {
	useBus(t)
	var rejected []events.DepthRejected
	var finished []events.GraphQLFinish
	eventbus.Subscribe(func(ctx context.Context, e events.DepthRejected) { rejected = append(rejected, e) })
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) { finished = append(finished, e) })

	h, rec := memberGraph(t)
	q := `{ users { userSubscribedTo { userSubscribedTo { userSubscribedTo { userSubscribedTo { userSubscribedTo { id } } } } } } }`
	body, _ := json.Marshal(map[string]any{"query": q})
	got := decode(t, post(t, h, string(body)))

	if _, ok := got["data"]; ok {
		t.Fatalf("rejected document must not carry data: %v", got)
	}
	errs := got["errors"].([]any)
	if len(errs) == 0 {
		t.Fatalf("missing errors")
	}
	ext := errs[0].(map[string]any)["extensions"].(map[string]any)
	if ext["code"] != "GRAPHQL_VALIDATION_FAILED" || ext["maxDepth"] != float64(5) {
		t.Fatalf("unexpected extensions %v", ext)
	}
	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("store was called: %v", calls)
	}
	if len(rejected) != 1 || rejected[0].MaxDepth != 5 {
		t.Fatalf("depth rejection not published: %v", rejected)
	}
	if len(finished) != 1 || !finished[0].Rejected || finished[0].OperationType != "query" {
		t.Fatalf("unexpected finish events: %+v", finished)
	}
}

func TestDepthLimit_AtLimitRuns(t *testing.T) {
	h, rec := memberGraph(t)
	q := `{ users { userSubscribedTo { userSubscribedTo { userSubscribedTo { userSubscribedTo { id } } } } } }`
	body, _ := json.Marshal(map[string]any{"query": q})
	got := decode(t, post(t, h, string(body)))
	if _, ok := got["errors"]; ok {
		t.Fatalf("unexpected errors: %v", got)
	}
	if rec.Count("user", "findMany") != 1 {
		t.Fatalf("want one users listing, got calls %v", rec.Calls())
	}
}

func TestDepthLimit_Configurable(t *testing.T) {
	h, rec := memberGraph(t, WithMaxDepth(1))
	got := decode(t, post(t, h, `{"query":"{ users { posts { id } } }"}`))
	if _, ok := got["data"]; ok {
		t.Fatalf("want rejection at depth 1: %v", got)
	}
	if len(rec.Calls()) != 0 {
		t.Fatalf("store was called: %v", rec.Calls())
	}
}

func TestEventsPublished(t *testing.T) {
	useBus(t)
	var started []events.GraphQLStart
	var finished []events.GraphQLFinish
	var served []events.HTTPFinish
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) { started = append(started, e) })
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) { finished = append(finished, e) })
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) { served = append(served, e) })

	h := newTestHandler(t, helloRuntime())
	post(t, h, `{"query":"query Greeting { hello }","operationName":"Greeting"}`)

	if len(started) != 1 || started[0].OperationName != "Greeting" || started[0].OperationType != "query" {
		t.Fatalf("unexpected start events: %+v", started)
	}
	if len(finished) != 1 || finished[0].Rejected || len(finished[0].Errors) != 0 {
		t.Fatalf("unexpected finish events: %+v", finished)
	}
	if len(served) != 1 || served[0].Status != http.StatusOK || served[0].Operations != 1 {
		t.Fatalf("unexpected http events: %+v", served)
	}
}
