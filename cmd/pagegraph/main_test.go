package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/pagegraph/internal/auth"
	"github.com/hanpama/pagegraph/internal/cmsrt"
	"github.com/hanpama/pagegraph/internal/schema"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestHelp(t *testing.T) {
	out, err := runCmd(t, "help")
	require.NoError(t, err)
	assert.Equal(t, rootUsage, out)

	out, err = runCmd(t, "help", "serve")
	require.NoError(t, err)
	assert.Contains(t, out, "-store.driver")

	_, err = runCmd(t, "help", "migrate")
	assert.EqualError(t, err, `unknown help topic "migrate"`)
}

func TestRun_UnknownCommand(t *testing.T) {
	_, err := runCmd(t, "migrate")
	assert.EqualError(t, err, `unknown command "migrate"`)

	_, err = runCmd(t)
	assert.EqualError(t, err, "missing command")
}

func TestPrintSchema(t *testing.T) {
	sch, err := cmsrt.LoadSchema()
	require.NoError(t, err)

	out, err := runCmd(t, "print-schema")
	require.NoError(t, err)
	if diff := cmp.Diff(schema.Render(sch), out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	path := filepath.Join(t.TempDir(), "schema.graphql")
	_, err = runCmd(t, "print-schema", "-out", path)
	require.NoError(t, err)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))
}

func TestToken(t *testing.T) {
	out, err := runCmd(t, "token", "-auth.secret", "s3cret", "-subject", "editor@example.com", "-permission", "manage_pages", "-ttl", "1m")
	require.NoError(t, err)

	r, err := auth.NewAuthenticator("s3cret", "pagegraph").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "editor@example.com", r.Subject)
	assert.True(t, r.Has(auth.ManagePages))
	assert.False(t, r.Has(auth.ManagePageTypesAndAttributes))

	_, err = runCmd(t, "token", "-auth.secret", "s3cret", "-subject", "x", "-permission", "MANAGE_ORDERS")
	assert.EqualError(t, err, `unknown permission "MANAGE_ORDERS"`)

	_, err = runCmd(t, "token", "-subject", "x")
	assert.Error(t, err)
}

func TestParseServeFlags(t *testing.T) {
	cfg, err := parseServeFlags([]string{"-store.driver", "mongo", "-server.cors-origin", "a", "-server.cors-origin", "b", "-loader.max-batch", "50"})
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.driver)
	assert.Equal(t, stringListFlag{"a", "b"}, cfg.corsOrigins)
	assert.Equal(t, 50, cfg.maxBatch)
	assert.Equal(t, ":8080", cfg.addr)

	_, err = parseServeFlags([]string{"-store.driver", "postgres"})
	assert.EqualError(t, err, `unknown -store.driver "postgres"`)

	_, err = parseServeFlags([]string{"-loader.max-batch", "-1"})
	assert.Error(t, err)
}

// Pattern: Result comparison
func TestNewApp_ServesGraphQL(t *testing.T) {
	cfg := defaultServeConfig()
	cfg.authSecret = "s3cret"
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	query := func(token string) map[string]any {
		body := `{"query":"{ pages(first: 10) { totalCount edges { node { slug pageType { name } } } } }"}`
		req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		a.handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out map[string]any
		require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	anon := query("")
	staffToken, err := auth.NewAuthenticator("s3cret", "pagegraph").Issue("staff", []auth.Permission{auth.ManagePages}, time.Minute)
	require.NoError(t, err)
	staff := query(staffToken)

	total := func(out map[string]any) any {
		return out["data"].(map[string]any)["pages"].(map[string]any)["totalCount"]
	}
	assert.Equal(t, float64(3), total(anon))
	assert.Equal(t, float64(4), total(staff))

	body := `{"query":"{ __type(name: \"PageType\") { kind } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	assert.JSONEq(t, `{"data":{"__type":{"kind":"OBJECT"}}}`, w.Body.String())

	w = httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pagegraph_loader_keys_total")

	w = httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest("GET", "/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "type PageType")
}

func TestNewApp_FailureKeepsCause(t *testing.T) {
	cfg := defaultServeConfig()
	cfg.fixture = filepath.Join(t.TempDir(), "missing.json")
	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)

	var merr *multierror.Error
	assert.False(t, errors.As(err, &merr), "nothing failed to close: %v", err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAbandon(t *testing.T) {
	cause := errors.New("redis ping: refused")

	var closed []string
	a := &app{closers: []func(context.Context) error{
		func(context.Context) error { closed = append(closed, "mongo"); return nil },
		func(context.Context) error { closed = append(closed, "redis"); return nil },
	}}
	assert.Same(t, cause, a.abandon(cause))
	assert.Equal(t, []string{"redis", "mongo"}, closed)

	disconnect := errors.New("mongo disconnect: timeout")
	a = &app{closers: []func(context.Context) error{
		func(context.Context) error { return disconnect },
	}}
	err := a.abandon(cause)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, []error{cause, disconnect}, merr.Errors)
}
