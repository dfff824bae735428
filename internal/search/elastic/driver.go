// Package elastic provides an Elasticsearch implementation of search.Engine
// backed by go-elasticsearch/v7.
package elastic

import (
	"context"
	"encoding/json"
	"io"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
	"github.com/koustreak/roubi/internal/search"
)

const defaultPort = 9200

// allIndices is the namespace used when neither the call nor the metadata
// names one.
const allIndices = "*"

// Options are the client settings not carried by connection.Metadata.
type Options struct {
	// CACert is a PEM bundle trusted for https endpoints.
	CACert []byte `mapstructure:"-"`

	// CompressRequestBody gzips request bodies.
	CompressRequestBody bool `mapstructure:"compress_request_body"`
}

// DefaultOptions returns plain, uncompressed http settings.
func DefaultOptions() Options {
	return Options{}
}

// Driver is an Elasticsearch implementation of search.Engine.
type Driver struct {
	client    *elasticsearch.Client
	namespace string
	log       *logger.Logger
}

var _ search.Engine = (*Driver)(nil)

// New builds a client for md and checks the cluster answers before
// returning. md.Database is the default index namespace (alias or pattern).
func New(ctx context.Context, md connection.Metadata, opts Options) (*Driver, error) {
	target, err := md.Resolve("http", defaultPort)
	if err != nil {
		return nil, err
	}

	// An explicit URI is dialled as given, path prefix included.
	address := target.BaseURL()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:           []string{address},
		Username:            target.Username,
		Password:            target.Password,
		CACert:              opts.CACert,
		CompressRequestBody: opts.CompressRequestBody,
		DisableRetry:        true,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create elasticsearch client", err)
	}

	d := &Driver{
		client:    client,
		namespace: target.Database,
		log:       logger.FromContext(ctx).ForAdapter("elasticsearch", address),
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "elasticsearch unreachable", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "elasticsearch unreachable", responseError(res))
	}

	d.log.Debug("connected")
	return d, nil
}

// Close drops the client. The v7 client has no connection state to release.
func (d *Driver) Close() error {
	if d.client == nil {
		return errs.ErrNotConnected
	}
	d.client = nil
	d.log.Debug("closed")
	return nil
}

// ListIndexPatterns fetches the index names registered under namespace and
// folds them into families. An empty namespace falls back to the metadata
// database, then to every index.
func (d *Driver) ListIndexPatterns(ctx context.Context, namespace string) ([]search.IndexSummary, error) {
	names, err := d.indexNames(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return search.NormalizeIndices(names), nil
}

func (d *Driver) indexNames(ctx context.Context, namespace string) ([]string, error) {
	if d.client == nil {
		return nil, errs.ErrNotConnected
	}
	if namespace == "" {
		namespace = d.namespace
	}
	if namespace == "" {
		namespace = allIndices
	}

	res, err := d.client.Indices.GetAlias(
		d.client.Indices.GetAlias.WithIndex(namespace),
		d.client.Indices.GetAlias.WithContext(ctx),
	)
	if err != nil {
		return nil, mapError(err, "get alias failed")
	}
	defer drain(res)
	if res.IsError() {
		return nil, mapStatus(res.StatusCode, "get alias failed", responseError(res))
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed get alias response", err)
	}

	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}
	return names, nil
}

func drain(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
