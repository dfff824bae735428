// Package registry opens adapters for configured connections. It is the one
// place that knows which backend package serves which config.Backend.
package registry

import (
	"context"
	"fmt"

	"github.com/koustreak/roubi/internal/broker"
	"github.com/koustreak/roubi/internal/broker/rabbitmq"
	"github.com/koustreak/roubi/internal/cache"
	"github.com/koustreak/roubi/internal/cache/redis"
	"github.com/koustreak/roubi/internal/config"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/database/clickhouse"
	"github.com/koustreak/roubi/internal/database/mysql"
	"github.com/koustreak/roubi/internal/database/postgres"
	"github.com/koustreak/roubi/internal/database/sqlite"
	"github.com/koustreak/roubi/internal/docstore/mongo"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/koustreak/roubi/internal/filestore/minio"
	"github.com/koustreak/roubi/internal/filestore/s3"
	"github.com/koustreak/roubi/internal/search"
	"github.com/koustreak/roubi/internal/search/elastic"
)

func wrongBackend(c config.Connection, want string) error {
	return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("backend %q is not a %s", c.Backend, want))
}

// OpenFiles opens a minio or s3 connection wrapped in a filestore.Adapter
// whose default bucket is the connection's database.
func OpenFiles(ctx context.Context, c config.Connection) (*filestore.Adapter, error) {
	opts := filestore.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}

	var (
		store filestore.Store
		err   error
	)
	switch c.Backend {
	case config.BackendMinio:
		store, err = minio.New(ctx, c.Metadata, opts)
	case config.BackendS3:
		store, err = s3.New(ctx, c.Metadata, opts)
	default:
		return nil, wrongBackend(c, "file store")
	}
	if err != nil {
		return nil, err
	}
	return filestore.NewAdapter(store, c.Database), nil
}

// OpenSearch opens a search engine connection.
func OpenSearch(ctx context.Context, c config.Connection) (search.Engine, error) {
	if c.Backend != config.BackendElastic {
		return nil, wrongBackend(c, "search engine")
	}
	opts := elastic.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	d, err := elastic.New(ctx, c.Metadata, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenCache opens a key-value cache connection.
func OpenCache(ctx context.Context, c config.Connection) (cache.Cache, error) {
	if c.Backend != config.BackendRedis {
		return nil, wrongBackend(c, "cache")
	}
	opts := redis.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	d, err := redis.New(ctx, c.Metadata, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenBroker opens a message broker connection.
func OpenBroker(ctx context.Context, c config.Connection) (broker.Broker, error) {
	if c.Backend != config.BackendRabbitMQ {
		return nil, wrongBackend(c, "broker")
	}
	opts := rabbitmq.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	d, err := rabbitmq.New(ctx, c.Metadata, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDocuments opens a document store connection.
func OpenDocuments(ctx context.Context, c config.Connection) (*mongo.Driver, error) {
	if c.Backend != config.BackendMongo {
		return nil, wrongBackend(c, "document store")
	}
	opts := mongo.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	return mongo.New(ctx, c.Metadata, opts)
}

// OpenDatabase opens a relational or columnar connection.
func OpenDatabase(ctx context.Context, c config.Connection) (database.DB, error) {
	opts := database.DefaultOptions()
	if err := c.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	var (
		db  database.DB
		err error
	)
	// assign through the concrete type so a failed open stays a nil interface
	switch c.Backend {
	case config.BackendPostgres:
		var d *postgres.Driver
		if d, err = postgres.New(ctx, c.Metadata, opts); err == nil {
			db = d
		}
	case config.BackendMySQL:
		var d *mysql.Driver
		if d, err = mysql.New(ctx, c.Metadata, opts); err == nil {
			db = d
		}
	case config.BackendSQLite:
		var d *sqlite.Driver
		if d, err = sqlite.New(ctx, c.Metadata, opts); err == nil {
			db = d
		}
	case config.BackendClickHouse:
		var d *clickhouse.Driver
		if d, err = clickhouse.New(ctx, c.Metadata, opts); err == nil {
			db = d
		}
	default:
		return nil, wrongBackend(c, "database")
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Ping opens c with its backend and closes it again. Construction already
// verifies reachability, so a nil error means the backend answered.
func Ping(ctx context.Context, c config.Connection) error {
	var (
		closer interface{ Close() error }
		err    error
	)
	switch c.Backend {
	case config.BackendMinio, config.BackendS3:
		closer, err = OpenFiles(ctx, c)
	case config.BackendElastic:
		closer, err = OpenSearch(ctx, c)
	case config.BackendRedis:
		closer, err = OpenCache(ctx, c)
	case config.BackendRabbitMQ:
		closer, err = OpenBroker(ctx, c)
	case config.BackendMongo:
		closer, err = OpenDocuments(ctx, c)
	default:
		closer, err = OpenDatabase(ctx, c)
	}
	if err != nil {
		return err
	}
	return closer.Close()
}
