package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hanpama/pagegraph/internal/auth"
	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/cmsrt"
	"github.com/hanpama/pagegraph/internal/eventbus"
	"github.com/hanpama/pagegraph/internal/events"
	"github.com/hanpama/pagegraph/internal/executor"
	"github.com/hanpama/pagegraph/internal/executor/executortest"
	"github.com/hanpama/pagegraph/internal/relay"
	"github.com/hanpama/pagegraph/internal/reqid"
	"github.com/hanpama/pagegraph/internal/schema"
	"github.com/hanpama/pagegraph/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, rt executor.Runtime, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL("test.graphql", `type Query { hello: String }`)
	require.NoError(t, err)
	h, err := New(rt, sch, opts...)
	require.NoError(t, err)
	return h
}

func post(t *testing.T, h http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// useBus installs a fresh global event bus for the duration of the test.
func useBus(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
}

func TestCORSAndPreflight(t *testing.T) {
	rt := executortest.New(map[string]executortest.Resolver{
		"Query.hello": executortest.Value("world"),
	})
	h := newTestHandler(t, rt, WithCORS("*"))

	w := post(t, h, `{"query":"{ hello }"}`, "Origin", "http://example.com")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "Authorization")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	assert.Equal(t, http.StatusNoContent, pw.Code)
	assert.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Authorization", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_UnlistedOrigin(t *testing.T) {
	rt := executortest.New(map[string]executortest.Resolver{
		"Query.hello": executortest.Value("world"),
	})
	h := newTestHandler(t, rt, WithCORS("https://dashboard.example.com"))

	w := post(t, h, `{"query":"{ hello }"}`, "Origin", "https://dashboard.example.com")
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = post(t, h, `{"query":"{ hello }"}`, "Origin", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMaxBodyBytes(t *testing.T) {
	rt := executortest.New(map[string]executortest.Resolver{
		"Query.hello": executortest.Value("world"),
	})
	h := newTestHandler(t, rt, WithMaxBodyBytes(10))

	w := post(t, h, `{"query":"1234567890"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestID(t *testing.T) {
	rt := executortest.New(nil)
	var capturedID int64
	rt.Set("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		capturedID, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)

	w := post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotZero(t, capturedID)
	assert.Equal(t, reqid.String(capturedID), w.Header().Get("X-Request-Id"))
}

func TestValidationErrors_NeverReachRuntime(t *testing.T) {
	rt := executortest.New(map[string]executortest.Resolver{
		"Query.hello": executortest.Value("world"),
	})
	h := newTestHandler(t, rt)

	w := post(t, h, `{"query":"{ hello nope }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	errs := out["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Contains(t, first["message"], `Cannot query field "nope" on type "Query"`)
	assert.Equal(t, []any{map[string]any{"line": float64(1), "column": float64(9)}}, first["locations"])
	assert.Empty(t, rt.SyncCalls())
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, executortest.New(nil))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("PUT", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAuthenticator(t *testing.T) {
	authn := auth.NewAuthenticator("secret", "pagegraph")
	rt := executortest.New(nil)
	var seen *auth.Requestor
	rt.Set("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		seen = auth.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, WithAuthenticator(authn))

	t.Run("anonymous", func(t *testing.T) {
		seen = nil
		w := post(t, h, `{"query":"{ hello }"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, seen)
	})

	t.Run("bearer token", func(t *testing.T) {
		token, err := authn.Issue("staff@example.com", []auth.Permission{auth.ManagePages}, time.Minute)
		require.NoError(t, err)
		w := post(t, h, `{"query":"{ hello }"}`, "Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "staff@example.com", seen.Subject)
		assert.True(t, seen.Has(auth.ManagePages))
	})

	t.Run("invalid token", func(t *testing.T) {
		other, err := auth.NewAuthenticator("other", "pagegraph").Issue("x", nil, time.Minute)
		require.NoError(t, err)
		calls := len(rt.SyncCalls())
		w := post(t, h, `{"query":"{ hello }"}`, "Authorization", "Bearer "+other)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "invalid_token")
		assert.Len(t, rt.SyncCalls(), calls)
	})
}

// scopedRuntime counts operation scopes opened around a mock runtime.
type scopedRuntime struct {
	*executortest.Runtime
	begun, finished int
}

func (s *scopedRuntime) BeginOperation(ctx context.Context) (context.Context, func() int) {
	s.begun++
	return ctx, func() int {
		s.finished++
		return 7
	}
}

func TestOperationScope_PerBatchElement(t *testing.T) {
	useBus(t)
	var finishes []events.GraphQLFinish
	eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) { finishes = append(finishes, e) })

	rt := &scopedRuntime{Runtime: executortest.New(map[string]executortest.Resolver{
		"Query.hello": executortest.Value("world"),
	})}
	h := newTestHandler(t, rt)

	w := post(t, h, `[{"query":"{ hello }"},{"query":"query Two { hello }"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, rt.begun)
	assert.Equal(t, 2, rt.finished)
	require.Len(t, finishes, 2)
	assert.Equal(t, 7, finishes[0].Batches)
	assert.Equal(t, "query", finishes[1].OperationType)
}

func TestSchemaHandler(t *testing.T) {
	sch, err := schema.BuildFromSDL("test.graphql", `"Root." type Query { hello: String }`)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	SchemaHandler(sch).ServeHTTP(w, httptest.NewRequest("GET", "/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, schema.Render(sch), w.Body.String())
	assert.True(t, strings.Contains(w.Body.String(), "type Query"))
}

// Pattern: Result comparison
func TestPages_EndToEnd(t *testing.T) {
	useBus(t)
	var batches []int
	eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) { batches = append(batches, e.Batches) })

	sch, err := cmsrt.LoadSchema()
	require.NoError(t, err)
	rt, err := cmsrt.New(sch, memstore.New(cms.DefaultFixture()))
	require.NoError(t, err)
	authn := auth.NewAuthenticator("secret", "")
	h, err := New(rt, sch, WithAuthenticator(authn))
	require.NoError(t, err)

	body := `{"query":"query ($first: Int) { pages(first: $first) { edges { node { slug pageType { slug } } } } }","variables":{"first":2}}`
	w := post(t, h, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	want := map[string]any{"data": map[string]any{"pages": map[string]any{"edges": []any{
		map[string]any{"node": map[string]any{"slug": "about-us", "pageType": map[string]any{"slug": "about"}}},
		map[string]any{"node": map[string]any{"slug": "careers", "pageType": map[string]any{"slug": "about"}}},
	}}}}
	assert.Equal(t, want, decode(t, w))
	assert.Equal(t, []int{1}, batches)

	token, err := authn.Issue("staff", []auth.Permission{auth.ManagePages}, time.Minute)
	require.NoError(t, err)
	body = `{"query":"{ page(id: \"` + relay.ToGlobalID("Page", 4) + `\") { title } }"}`

	out := decode(t, post(t, h, body))
	assert.Equal(t, map[string]any{"data": map[string]any{"page": nil}}, out)

	out = decode(t, post(t, h, body, "Authorization", "Bearer "+token))
	assert.Equal(t, map[string]any{"data": map[string]any{"page": map[string]any{"title": "Summer sale"}}}, out)
}
