// Package mongo is the MongoDB document-store adapter.
//
// Every operation takes the collection name first and runs against the
// database named in connection.Metadata, unless InDatabase overrides it for
// that call.
//
// Usage:
//
//	d, err := mongo.New(ctx, connection.Metadata{URI: "mongodb://localhost:27017/app"}, mongo.DefaultOptions())
//	if err != nil { ... }
//	defer d.Close()
//
//	rows, page, err := d.FindPaginated(ctx, "users", mongo.PageQuery{
//	    Params: docstore.MultiFilter{Page: 2, Size: 10, OrderBy: "createdAt"},
//	})
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/docstore"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultPort = 27017

// Options are the client settings not carried by connection.Metadata.
type Options struct {
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`
	AppName                string        `mapstructure:"app_name"`
}

// DefaultOptions returns conservative client defaults.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		MaxPoolSize:            100,
		AppName:                "roubi",
	}
}

// collection is the subset of *mongo.Collection the adapter uses.
type collection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongodrv.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongodrv.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongodrv.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongodrv.InsertManyResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongodrv.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongodrv.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongodrv.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongodrv.DeleteResult, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongodrv.Cursor, error)
}

// CallOption adjusts a single operation.
type CallOption func(*callConfig)

type callConfig struct {
	database   string
	uniqueKeys []string
}

// InDatabase runs the call against name instead of the default database.
func InDatabase(name string) CallOption {
	return func(c *callConfig) { c.database = name }
}

// WithUniqueKeys makes InsertOne reject documents that share any of keys
// with an existing document.
func WithUniqueKeys(keys ...string) CallOption {
	return func(c *callConfig) { c.uniqueKeys = keys }
}

// Driver is the MongoDB adapter.
type Driver struct {
	client   *mongodrv.Client
	database string
	open     func(database, name string) collection
	log      *logger.Logger
}

// New connects to MongoDB and pings the primary before returning.
func New(ctx context.Context, md connection.Metadata, opts Options) (*Driver, error) {
	target, err := md.Resolve("mongodb", defaultPort)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().ApplyURI(target.URL())
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}
	// retries stay with the caller
	clientOpts.SetRetryReads(false).SetRetryWrites(false)

	client, err := mongodrv.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "mongo client setup failed", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "mongo unreachable", err)
	}

	d := &Driver{
		client:   client,
		database: target.Database,
		log:      logger.FromContext(ctx).ForAdapter("mongo", target.Endpoint()),
	}
	d.open = func(database, name string) collection {
		return client.Database(database).Collection(name)
	}

	d.log.Debug("connected")
	return d, nil
}

// Close disconnects the client.
func (d *Driver) Close() error {
	if d.client == nil && d.open == nil {
		return errs.ErrNotConnected
	}
	var err error
	if d.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = d.client.Disconnect(ctx)
	}
	d.client = nil
	d.open = nil
	d.log.Debug("closed")
	return mapError(err, "close failed")
}

func (d *Driver) coll(name string, opts []CallOption) (collection, callConfig, error) {
	cfg := callConfig{database: d.database}
	for _, o := range opts {
		o(&cfg)
	}
	if d.open == nil {
		return nil, cfg, errs.ErrNotConnected
	}
	if cfg.database == "" {
		return nil, cfg, errs.New(errs.ErrKindInvalidInput, "no database selected")
	}
	return d.open(cfg.database, name), cfg, nil
}

// Collection returns the native collection handle.
func (d *Driver) Collection(name string, opts ...CallOption) (*mongodrv.Collection, error) {
	if d.client == nil {
		return nil, errs.ErrNotConnected
	}
	cfg := callConfig{database: d.database}
	for _, o := range opts {
		o(&cfg)
	}
	return d.client.Database(cfg.database).Collection(name), nil
}

// ListCollections returns the collection names of the database, leaving out
// system.views and view collections.
func (d *Driver) ListCollections(ctx context.Context, opts ...CallOption) ([]string, error) {
	if d.client == nil {
		return nil, errs.ErrNotConnected
	}
	cfg := callConfig{database: d.database}
	for _, o := range opts {
		o(&cfg)
	}
	names, err := d.client.Database(cfg.database).ListCollectionNames(ctx, collectionFilter())
	if err != nil {
		return nil, mapError(err, "list collections failed")
	}
	return names, nil
}

func collectionFilter() bson.D {
	return bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: bson.A{"system.views", "*"}}}}},
		bson.D{{Key: "name", Value: bson.D{{Key: "$not", Value: primitive.Regex{Pattern: "v_*", Options: "i"}}}}},
	}}}
}

// Count returns the number of documents matching query.
func (d *Driver) Count(ctx context.Context, name string, query any, opts ...CallOption) (int64, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, orEmpty(query))
	if err != nil {
		return 0, mapError(err, "count failed")
	}
	return n, nil
}

// FindOne returns the first document matching query. found is false when
// nothing matches.
func (d *Driver) FindOne(ctx context.Context, name string, query, projection any, opts ...CallOption) (doc bson.M, found bool, err error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, false, err
	}
	findOpts := options.FindOne()
	if projection != nil {
		findOpts.SetProjection(projection)
	}
	err = c.FindOne(ctx, orEmpty(query), findOpts).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapError(err, "find one failed")
	}
	return doc, true, nil
}

// Find returns every document matching query.
func (d *Driver) Find(ctx context.Context, name string, query, projection any, opts ...CallOption) ([]bson.M, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if projection != nil {
		findOpts.SetProjection(projection)
	}
	cur, err := c.Find(ctx, orEmpty(query), findOpts)
	if err != nil {
		return nil, mapError(err, "find failed")
	}
	return drain(ctx, cur, "find failed")
}

// FindPaginated counts the documents matching q and returns one page of
// them. When nothing matches, no fetch is issued.
func (d *Driver) FindPaginated(ctx context.Context, name string, q PageQuery, opts ...CallOption) ([]bson.M, docstore.Pagination, error) {
	if err := q.Params.Validate(); err != nil {
		return nil, docstore.Pagination{}, err
	}
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, docstore.Pagination{}, err
	}

	filter := BuildFilter(q)
	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, docstore.Pagination{}, mapError(err, "count failed")
	}
	page := docstore.Paginate(total, q.Params.Size)
	if total == 0 {
		return []bson.M{}, page, nil
	}

	cur, err := c.Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, docstore.Pagination{}, mapError(err, "find failed")
	}
	records, err := drain(ctx, cur, "find failed")
	if err != nil {
		return nil, docstore.Pagination{}, err
	}
	return records, page, nil
}

// InsertOne inserts doc. With WithUniqueKeys, an existing document equal on
// any of the keys turns the insert into a no-op reported through
// InsertResult.Status.
func (d *Driver) InsertOne(ctx context.Context, name string, doc bson.M, opts ...CallOption) (docstore.InsertResult, error) {
	c, cfg, err := d.coll(name, opts)
	if err != nil {
		return docstore.InsertResult{}, err
	}

	if filter, ok := uniqueFilter(doc, cfg.uniqueKeys); ok {
		err := c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
		switch {
		case err == nil:
			return docstore.InsertResult{
				Status: false,
				Detail: docstore.DetailUniqueValidation,
				Data:   cfg.uniqueKeys,
			}, nil
		case !errors.Is(err, mongodrv.ErrNoDocuments):
			return docstore.InsertResult{}, mapError(err, "unique lookup failed")
		}
	}

	res, err := c.InsertOne(ctx, doc)
	if err != nil {
		return docstore.InsertResult{}, mapError(err, "insert failed")
	}
	return docstore.InsertResult{Status: true, Data: res}, nil
}

// InsertMany inserts docs in one batch.
func (d *Driver) InsertMany(ctx context.Context, name string, docs []any, opts ...CallOption) (*mongodrv.InsertManyResult, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "no documents to insert")
	}
	res, err := c.InsertMany(ctx, docs)
	if err != nil {
		return nil, mapError(err, "insert many failed")
	}
	return res, nil
}

// UpdateOne applies update to the first document matching query.
func (d *Driver) UpdateOne(ctx context.Context, name string, query, update any, opts ...CallOption) (*mongodrv.UpdateResult, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, err
	}
	res, err := c.UpdateOne(ctx, orEmpty(query), update)
	if err != nil {
		return nil, mapError(err, "update failed")
	}
	return res, nil
}

// UpdateMany applies update to every document matching query.
func (d *Driver) UpdateMany(ctx context.Context, name string, query, update any, opts ...CallOption) (*mongodrv.UpdateResult, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, err
	}
	res, err := c.UpdateMany(ctx, orEmpty(query), update)
	if err != nil {
		return nil, mapError(err, "update many failed")
	}
	return res, nil
}

// ArchiveOne marks the first document matching query as archived.
func (d *Driver) ArchiveOne(ctx context.Context, name string, query any, opts ...CallOption) (*mongodrv.UpdateResult, error) {
	return d.UpdateOne(ctx, name, query, archiveUpdate(), opts...)
}

// ArchiveMany marks every document matching query as archived.
func (d *Driver) ArchiveMany(ctx context.Context, name string, query any, opts ...CallOption) (*mongodrv.UpdateResult, error) {
	return d.UpdateMany(ctx, name, query, archiveUpdate(), opts...)
}

func archiveUpdate() bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: docstore.StatusField, Value: docstore.StatusArchived}}}}
}

// DeleteOne removes the first document matching query.
func (d *Driver) DeleteOne(ctx context.Context, name string, query any, opts ...CallOption) (int64, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteOne(ctx, orEmpty(query))
	if err != nil {
		return 0, mapError(err, "delete failed")
	}
	return res.DeletedCount, nil
}

// DeleteMany removes every document matching query.
func (d *Driver) DeleteMany(ctx context.Context, name string, query any, opts ...CallOption) (int64, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, orEmpty(query))
	if err != nil {
		return 0, mapError(err, "delete many failed")
	}
	return res.DeletedCount, nil
}

// Aggregate runs pipeline and returns all resulting documents.
func (d *Driver) Aggregate(ctx context.Context, name string, pipeline any, opts ...CallOption) ([]bson.M, error) {
	c, _, err := d.coll(name, opts)
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapError(err, "aggregate failed")
	}
	return drain(ctx, cur, "aggregate failed")
}

func drain(ctx context.Context, cur *mongodrv.Cursor, msg string) ([]bson.M, error) {
	records := []bson.M{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, mapError(err, msg)
	}
	return records, nil
}

// orEmpty turns a nil query into the match-all document; the driver rejects nil.
func orEmpty(query any) any {
	if query == nil {
		return bson.D{}
	}
	return query
}
