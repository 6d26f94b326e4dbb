// Package server serves the GraphQL endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
	executor "github.com/hanpama/membergraph/internal/executor"
	gqlerrors "github.com/hanpama/membergraph/internal/gqlerrors"
	language "github.com/hanpama/membergraph/internal/language"
	logging "github.com/hanpama/membergraph/internal/logging"
	reqid "github.com/hanpama/membergraph/internal/reqid"
	schema "github.com/hanpama/membergraph/internal/schema"
	validation "github.com/hanpama/membergraph/internal/validation"
)

// RuntimeFactory returns the runtime for one operation. Runtimes own the
// request's loader cache, so each call must return a fresh one.
type RuntimeFactory func() executor.Runtime

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, rejects documents nested too deep, runs the executor
// and writes the result.
type Handler struct {
	runtimes RuntimeFactory
	schema   *schema.Schema
	opt      Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MaxDepth is the deepest selection nesting accepted.
	MaxDepth int

	// Logger is attached to every request context with its request id.
	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMaxDepth(n int) Option          { return func(o *Options) { o.MaxDepth = n } }
func WithLogger(l *zap.Logger) Option    { return func(o *Options) { o.Logger = l } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler serving schema with runtimes from
// runtimes.
func New(runtimes RuntimeFactory, schema *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, MaxDepth: validation.DefaultMaxDepth, Logger: zap.NewNop()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{runtimes: runtimes, schema: schema, opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	ctx = logging.NewContext(ctx, h.opt.Logger.With(zap.String("request_id", rid)))

	status, operations := http.StatusOK, 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Operations: operations, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, requestError("method not allowed"), h.opt.Pretty)
		return
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != "" {
		status = http.StatusBadRequest
		if berr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, requestError(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		operations = len(batch)
		// Operations of a batch run one after another, each with its own
		// runtime and therefore its own cache.
		results := lo.Map(batch, func(req GraphQLRequest, _ int) *executor.ExecutionResult {
			return h.executeOne(ctx, req)
		})
		writeJSON(w, status, results, h.opt.Pretty)
		return
	}

	operations = 1
	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) *executor.ExecutionResult {
	start := time.Now()
	finish := events.GraphQLFinish{Query: req.Query, OperationName: req.OperationName}
	defer func() {
		finish.Duration = time.Since(start)
		eventbus.Publish(ctx, finish)
	}()

	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName})
		finish.Rejected = true
		return reject(&finish, gqlerrors.FormatWithCode(err, gqlerrors.ParseFailed))
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	if opDef != nil {
		finish.OperationType = string(opDef.Operation)
	}
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: finish.OperationType})

	// The depth check runs before any runtime exists, so a rejected
	// document never reaches the store.
	if errs := validation.Validate(doc, validation.MaxDepth(h.opt.MaxDepth)); len(errs) > 0 {
		eventbus.Publish(ctx, events.DepthRejected{OperationName: req.OperationName, MaxDepth: h.opt.MaxDepth, Violations: len(errs)})
		finish.Rejected = true
		return reject(&finish, errs)
	}

	result := executor.NewExecutor(h.runtimes(), h.schema).ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	finish.Errors = errorValues(result.Errors)
	return result
}

func reject(finish *events.GraphQLFinish, errs gqlerrors.ErrorList) *executor.ExecutionResult {
	finish.Errors = errorValues(errs)
	return &executor.ExecutionResult{Errors: errs}
}

func errorValues(errs gqlerrors.ErrorList) []error {
	return lo.Map(errs, func(e *gqlerrors.Error, _ int) error { return e })
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// parseRequest returns either a single request or a batch, or a non-empty
// message describing why the HTTP request is unusable.
func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "invalid 'variables' JSON"
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, ""
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errBodyTooLargeMessage
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, "invalid JSON"
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, "empty batch"
		}
		return GraphQLRequest{}, arr, ""
	}
	// Single
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, "invalid JSON"
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, "missing 'query'"
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, ""
}

// ------------------ Response formatting ------------------

const errBodyTooLargeMessage = "body too large"

// requestError is the body for HTTP requests that carry no usable
// operation. It has no data entry.
func requestError(message string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: gqlerrors.ErrorList{gqlerrors.New(gqlerrors.BadRequest, message)}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if !lo.Contains(opts.AllowedOrigins, "*") && !lo.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if lo.Contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
