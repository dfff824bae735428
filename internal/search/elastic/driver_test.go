package elastic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infoBody = `{"name":"node-1","cluster_name":"test","version":{"number":"7.17.0","build_flavor":"default"},"tagline":"You Know, for Search"}`

const aliasBody = `{
  "app-2023-01-01": {"aliases": {}},
  "app-2023-02-01": {"aliases": {}},
  ".kibana_1": {"aliases": {".kibana": {}}},
  "logs": {"aliases": {}}
}`

type pathLog struct {
	mu   sync.Mutex
	last string
}

func (p *pathLog) set(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = path
}

func (p *pathLog) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func newTestServer(t *testing.T) (*httptest.Server, *pathLog) {
	t.Helper()
	paths := &pathLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.set(r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(infoBody))
		case "/*/_alias", "/app-*/_alias":
			_, _ = w.Write([]byte(aliasBody))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"alias missing","status":404}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, paths
}

func metadataFor(t *testing.T, srv *httptest.Server, database string) connection.Metadata {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return connection.Metadata{Host: u.Hostname(), Port: port, Database: database}
}

func TestDriver_ListIndexPatterns(t *testing.T) {
	srv, _ := newTestServer(t)
	d, err := New(context.Background(), metadataFor(t, srv, ""), DefaultOptions())
	require.NoError(t, err)
	defer d.Close()

	got, err := d.ListIndexPatterns(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []search.IndexSummary{
		{IndexName: "app-2023-01-01", CleanIndexName: "app-*", TotalIndex: 1, IsIndexPattern: true},
		{IndexName: "app-2023-02-01", CleanIndexName: "app-*", TotalIndex: 2, IsIndexPattern: true},
		{IndexName: "logs", CleanIndexName: "logs", TotalIndex: 1, IsIndexPattern: false},
	}, got)
}

func TestDriver_NamespaceResolution(t *testing.T) {
	srv, paths := newTestServer(t)
	d, err := New(context.Background(), metadataFor(t, srv, "app-*"), DefaultOptions())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = d.ListIndexPatterns(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "/app-*/_alias", paths.get())

	_, err = d.ListIndexPatterns(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, "/*/_alias", paths.get())
}

func TestDriver_MissingNamespace(t *testing.T) {
	srv, _ := newTestServer(t)
	d, err := New(context.Background(), metadataFor(t, srv, ""), DefaultOptions())
	require.NoError(t, err)

	_, err = d.ListIndexPatterns(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusNotFound, respErr.StatusCode)
}

func TestDriver_AfterClose(t *testing.T) {
	srv, _ := newTestServer(t)
	d, err := New(context.Background(), metadataFor(t, srv, ""), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = d.ListIndexPatterns(context.Background(), "")
	assert.True(t, errs.IsNotConnected(err))
}

func TestNew_Unreachable(t *testing.T) {
	srv, _ := newTestServer(t)
	md := metadataFor(t, srv, "")
	srv.Close()

	_, err := New(context.Background(), md, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestNew_URIKeepsPathPrefix(t *testing.T) {
	inner, _ := newTestServer(t)
	seen := &pathLog{}
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.set(r.URL.Path)
		if !strings.HasPrefix(r.URL.Path, "/es/") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.StripPrefix("/es", inner.Config.Handler).ServeHTTP(w, r)
	}))
	t.Cleanup(proxy.Close)

	d, err := New(context.Background(), connection.Metadata{URI: proxy.URL + "/es/"}, DefaultOptions())
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, "/es/", seen.get())

	_, err = d.ListIndexPatterns(context.Background(), "app-*")
	require.NoError(t, err)
	assert.Equal(t, "/es/app-*/_alias", seen.get())
}

func TestNew_URIWithoutPortUsesSchemeDefault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, connection.Metadata{URI: "https://127.0.0.1"}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.NotContains(t, err.Error(), ":9200")
}
