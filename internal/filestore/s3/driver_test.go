package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBody = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>reports</Name>
  <Prefix></Prefix>
  <Marker></Marker>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>raw/</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"e"</ETag><Size>0</Size><StorageClass>STANDARD</StorageClass><Owner><ID>u1</ID><DisplayName>alice</DisplayName></Owner></Contents>
  <Contents><Key>raw/events.json</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"a"</ETag><Size>512</Size><StorageClass>STANDARD_IA</StorageClass><Owner><ID>u1</ID><DisplayName>alice</DisplayName></Owner></Contents>
</ListBucketResult>`

func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		switch {
		case r.Method == http.MethodHead && path == "reports":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && path == "reports":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(listBody))
		case r.Method == http.MethodHead && path == "reports/raw/events.json":
			w.Header().Set("Content-Length", "512")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T) *filestore.Adapter {
	t.Helper()
	srv := fakeS3(t)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	md := connection.Metadata{Host: u.Hostname(), Port: port, Username: "key", Password: "secret", Database: "reports"}
	d, err := New(context.Background(), md, filestore.DefaultOptions())
	require.NoError(t, err)
	return filestore.NewAdapter(d, md.Database)
}

func TestDriver_ListFilesAndFolders(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	files, err := a.ListFiles(ctx, filestore.ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "raw/events.json", files[0].Key)
	assert.Equal(t, "json", files[0].FileFormat())
	assert.Equal(t, int64(512), files[0].Size)
	assert.Equal(t, "STANDARD_IA", files[0].StorageClass)
	require.NotNil(t, files[0].Owner)
	assert.Equal(t, "alice", files[0].Owner.DisplayName)

	folders, err := a.ListFolders(ctx, filestore.ListOptions{})
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "raw/", folders[0].Key)
}

func TestDriver_CheckAccessible(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	ok, err := a.CheckAccessible(ctx, "raw/events.json", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckAccessible(ctx, "raw/missing.json", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_CloseTwice(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.Close())
	assert.True(t, errs.IsNotConnected(a.Close()))
}

func TestNew_URIKeepsPathPrefix(t *testing.T) {
	inner := fakeS3(t)
	var (
		mu    sync.Mutex
		paths []string
	)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if !strings.HasPrefix(r.URL.Path, "/s3/") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.StripPrefix("/s3", inner.Config.Handler).ServeHTTP(w, r)
	}))
	t.Cleanup(proxy.Close)

	u, err := url.Parse(proxy.URL)
	require.NoError(t, err)
	md := connection.Metadata{URI: "http://key:secret@" + u.Host + "/s3", Database: "reports"}
	d, err := New(context.Background(), md, filestore.DefaultOptions())
	require.NoError(t, err)
	a := filestore.NewAdapter(d, md.Database)
	defer a.Close()

	files, err := a.ListFiles(context.Background(), filestore.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, "/s3/reports"), p)
	}
}

func TestEndpointFor(t *testing.T) {
	target, err := connection.Metadata{URI: "http://minio.local"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local", endpointFor(target, filestore.Options{UseSSL: true}))

	target, err = connection.Metadata{URI: "https://s3.example.com"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com", endpointFor(target, filestore.DefaultOptions()))

	target, err = connection.Metadata{Host: "s3.local"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	assert.Equal(t, "http://s3.local:443", endpointFor(target, filestore.DefaultOptions()))
	assert.Equal(t, "https://s3.local:443", endpointFor(target, filestore.Options{UseSSL: true}))
}
