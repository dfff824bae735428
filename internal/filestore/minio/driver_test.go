package minio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

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
  <KeyCount>4</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>2024/</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"d41d8cd98f00b204e9800998ecf8427e"</ETag><Size>0</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>2024/sales.csv</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"a"</ETag><Size>120</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>2024/old.trashinfo</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"b"</ETag><Size>12</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>README</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"c"</ETag><Size>7</Size><StorageClass>STANDARD</StorageClass></Contents>
</ListBucketResult>`

// fakeS3 answers the handful of S3 calls the driver makes.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		switch {
		case r.Method == http.MethodHead && path == "reports":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && path == "reports":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(listBody))
		case r.Method == http.MethodHead && path == "reports/2024/sales.csv":
			w.Header().Set("Content-Length", "120")
			w.Header().Set("ETag", `"a"`)
			w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 03:04:05 GMT")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T) *filestore.Adapter {
	t.Helper()
	srv := fakeS3(t)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	md := connection.Metadata{
		Host:     u.Hostname(),
		Port:     port,
		Username: "minioadmin",
		Password: "minioadmin",
		Database: "reports",
	}
	d, err := New(context.Background(), md, filestore.DefaultOptions())
	require.NoError(t, err)
	return filestore.NewAdapter(d, md.Database)
}

func TestDriver_ListFiles(t *testing.T) {
	a := newTestAdapter(t)

	files, err := a.ListFiles(context.Background(), filestore.ListOptions{})
	require.NoError(t, err)

	keys := make([]string, len(files))
	for i, f := range files {
		keys[i] = f.Key
	}
	assert.Equal(t, []string{"2024/sales.csv", "README"}, keys)
	assert.True(t, files[0].IsDataframe())
	assert.Equal(t, "sales.csv", files[0].Name())
}

func TestDriver_ListFolders(t *testing.T) {
	a := newTestAdapter(t)

	folders, err := a.ListFolders(context.Background(), filestore.ListOptions{})
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "2024/", folders[0].Key)
	assert.True(t, folders[0].IsFolder())
}

func TestDriver_CheckAccessible(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	ok, err := a.CheckAccessible(ctx, "2024/sales.csv", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckAccessible(ctx, "missing.csv", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_AfterClose(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.Close())

	_, err := a.ListFiles(context.Background(), filestore.ListOptions{})
	assert.True(t, errs.IsNotConnected(err))
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	md := connection.Metadata{Host: "127.0.0.1", Port: 1, Username: "a", Password: "b", Database: "reports"}
	_, err := New(ctx, md, filestore.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestNew_MissingBucket(t *testing.T) {
	srv := fakeS3(t)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	md := connection.Metadata{Host: u.Hostname(), Port: port, Username: "a", Password: "b", Database: "ghost"}
	_, err = New(context.Background(), md, filestore.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Contains(t, err.Error(), `bucket "ghost" does not exist`)
}

func TestNew_URI(t *testing.T) {
	srv := fakeS3(t)
	t.Cleanup(srv.Close)

	md := connection.Metadata{URI: strings.Replace(srv.URL, "http://", "http://minioadmin:minioadmin@", 1) + "/reports"}
	d, err := New(context.Background(), md, filestore.DefaultOptions())
	require.NoError(t, err)
	a := filestore.NewAdapter(d, "reports")
	defer a.Close()

	files, err := a.ListFiles(context.Background(), filestore.ListOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestEndpointFor(t *testing.T) {
	target, err := connection.Metadata{URI: "http://minio.local"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	endpoint, secure := endpointFor(target, filestore.Options{UseSSL: true})
	assert.Equal(t, "minio.local", endpoint)
	assert.False(t, secure)

	target, err = connection.Metadata{URI: "https://minio.local:9443"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	endpoint, secure = endpointFor(target, filestore.DefaultOptions())
	assert.Equal(t, "minio.local:9443", endpoint)
	assert.True(t, secure)

	target, err = connection.Metadata{Host: "minio.local"}.Resolve("http", defaultPort)
	require.NoError(t, err)
	endpoint, secure = endpointFor(target, filestore.DefaultOptions())
	assert.Equal(t, "minio.local:9000", endpoint)
	assert.False(t, secure)
}
