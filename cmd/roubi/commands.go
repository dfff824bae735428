package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/roubi/internal/broker"
	"github.com/koustreak/roubi/internal/config"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/docstore"
	"github.com/koustreak/roubi/internal/docstore/mongo"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/koustreak/roubi/internal/logger"
	"github.com/koustreak/roubi/internal/registry"
	"github.com/koustreak/roubi/internal/schema"
	"github.com/koustreak/roubi/internal/server"
)

// env is the state shared by every command once Before has run.
type env struct {
	out io.Writer
	cfg *config.Config
	log *logger.Logger
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	e.cfg = cfg
	e.log = logger.New(&cfg.Log)
	logger.SetGlobal(e.log)
	return nil
}

// ctx carries the logger so adapters log under it.
func (e *env) ctx(c *cli.Context) context.Context {
	return e.log.WithContext(c.Context)
}

func (e *env) conn(c *cli.Context) (config.Connection, error) {
	return e.cfg.Connection(c.String("conn"))
}

func (e *env) print(v any) error {
	enc := yaml.NewEncoder(e.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func closeQuietly(log *logger.Logger, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		log.ErrorWith("close failed", err, nil)
	}
}

func argN(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return errs.New(errs.ErrKindInvalidInput, "usage: roubi "+c.Command.FullName()+" "+usage)
	}
	return nil
}

type connectionView struct {
	Name                string         `yaml:"name"`
	Backend             config.Backend `yaml:"backend"`
	connection.Metadata `yaml:",inline"`
	Kind                string `yaml:"kind"`
}

func (e *env) connectionsCommand(*cli.Context) error {
	views := make([]connectionView, 0, len(e.cfg.Connections))
	for _, name := range e.cfg.ConnectionNames() {
		conn := e.cfg.Connections[name]
		views = append(views, connectionView{
			Name:     name,
			Backend:  conn.Backend,
			Metadata: conn.Metadata,
			Kind:     conn.Kind().String(),
		})
	}
	return e.print(views)
}

type pingResult struct {
	Name  string `yaml:"name"`
	OK    bool   `yaml:"ok"`
	Error string `yaml:"error,omitempty"`
	Kind  string `yaml:"kind,omitempty"`
}

// pingCommand checks every named connection, or all of them, and fails
// when any is unreachable.
func (e *env) pingCommand(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		names = e.cfg.ConnectionNames()
	}

	ctx := e.ctx(c)
	results := make([]pingResult, 0, len(names))
	failed := 0
	for _, name := range names {
		res := pingResult{Name: name, OK: true}
		conn, err := e.cfg.Connection(name)
		if err == nil {
			err = registry.Ping(ctx, conn)
		}
		if err != nil {
			failed++
			res.OK = false
			res.Error = err.Error()
			res.Kind = errs.KindOf(err).String()
		}
		results = append(results, res)
	}
	if err := e.print(results); err != nil {
		return err
	}
	if failed > 0 {
		return errs.New(errs.ErrKindConnectionFailed, fmt.Sprintf("%d of %d connections failed", failed, len(names)))
	}
	return nil
}

func (e *env) openFiles(c *cli.Context) (*filestore.Adapter, error) {
	conn, err := e.conn(c)
	if err != nil {
		return nil, err
	}
	return registry.OpenFiles(e.ctx(c), conn)
}

func (e *env) filesCommand(c *cli.Context) error {
	files, err := e.openFiles(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, files)

	opts := filestore.ListOptions{Bucket: c.String("bucket")}
	if c.IsSet("exclude") {
		opts.ExcludeFormats = c.StringSlice("exclude")
	}
	entries, err := files.ListFiles(e.ctx(c), opts)
	if err != nil {
		return err
	}
	return e.print(entries)
}

func (e *env) foldersCommand(c *cli.Context) error {
	files, err := e.openFiles(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, files)

	entries, err := files.ListFolders(e.ctx(c), filestore.ListOptions{Bucket: c.String("bucket")})
	if err != nil {
		return err
	}
	return e.print(entries)
}

func (e *env) existsCommand(c *cli.Context) error {
	files, err := e.openFiles(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, files)

	ok, err := files.CheckAccessible(e.ctx(c), c.String("key"), c.String("bucket"))
	if err != nil {
		return err
	}
	return e.print(map[string]any{"key": c.String("key"), "accessible": ok})
}

func (e *env) indicesCommand(c *cli.Context) error {
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	engine, err := registry.OpenSearch(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, engine)

	summaries, err := engine.ListIndexPatterns(e.ctx(c), c.String("namespace"))
	if err != nil {
		return err
	}
	return e.print(summaries)
}

func (e *env) cacheGetCommand(c *cli.Context) error {
	if err := argN(c, 1, "<key>"); err != nil {
		return err
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	kv, err := registry.OpenCache(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, kv)

	key := c.Args().First()
	val, ok, err := kv.Get(e.ctx(c), key)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.ErrKindNotFound, fmt.Sprintf("no such key %q", key))
	}
	return e.print(map[string]string{"key": key, "value": val})
}

func (e *env) cacheSetCommand(c *cli.Context) error {
	if err := argN(c, 2, "<key> <value>"); err != nil {
		return err
	}
	if c.Duration("ttl") < 0 {
		return errs.New(errs.ErrKindInvalidInput, "ttl must not be negative")
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	kv, err := registry.OpenCache(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, kv)

	return kv.Set(e.ctx(c), c.Args().Get(0), c.Args().Get(1), c.Duration("ttl"))
}

func (e *env) cacheDelCommand(c *cli.Context) error {
	if err := argN(c, 1, "<key>"); err != nil {
		return err
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	kv, err := registry.OpenCache(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, kv)

	return kv.Delete(e.ctx(c), c.Args().First())
}

func (e *env) cacheKeysCommand(c *cli.Context) error {
	if err := argN(c, 1, "<pattern>"); err != nil {
		return err
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	kv, err := registry.OpenCache(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, kv)

	keys := []string{}
	for key, err := range kv.ScanByPattern(e.ctx(c), c.Args().First()) {
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	return e.print(keys)
}

func (e *env) cachePurgeCommand(c *cli.Context) error {
	if err := argN(c, 1, "<pattern>"); err != nil {
		return err
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	kv, err := registry.OpenCache(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, kv)

	n, err := kv.DeleteByPattern(e.ctx(c), c.Args().First())
	if err != nil {
		return err
	}
	return e.print(map[string]int64{"deleted": n})
}

func (e *env) publishCommand(c *cli.Context) error {
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	ctx := e.ctx(c)
	b, err := registry.OpenBroker(ctx, conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, b)

	exchange, key := c.String("exchange"), c.String("routing-key")
	err = b.DeclareExchange(ctx, exchange, broker.ExchangeOptions{
		Kind:    c.String("kind"),
		Durable: c.Bool("durable"),
	})
	if err != nil {
		return err
	}
	if q := c.String("queue"); q != "" {
		if err := b.DeclareQueueAndBind(ctx, q, exchange, key, broker.QueueOptions{Durable: c.Bool("durable")}); err != nil {
			return err
		}
	}
	if err := b.Publish(ctx, exchange, key, []byte(c.String("body"))); err != nil {
		return err
	}
	e.log.InfoWith("published", map[string]interface{}{"exchange": exchange, "routing_key": key})
	return nil
}

func (e *env) openDocuments(c *cli.Context) (*mongo.Driver, []mongo.CallOption, error) {
	conn, err := e.conn(c)
	if err != nil {
		return nil, nil, err
	}
	var opts []mongo.CallOption
	if db := c.String("database"); db != "" {
		opts = append(opts, mongo.InDatabase(db))
	}
	d, err := registry.OpenDocuments(e.ctx(c), conn)
	if err != nil {
		return nil, nil, err
	}
	return d, opts, nil
}

func (e *env) collectionsCommand(c *cli.Context) error {
	d, opts, err := e.openDocuments(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, d)

	names, err := d.ListCollections(e.ctx(c), opts...)
	if err != nil {
		return err
	}
	return e.print(names)
}

// parseFilters turns field=value flags into filters. Values are read as
// YAML scalars, so numbers and booleans match by equality and everything
// else as a case-insensitive pattern.
func parseFilters(raw []string) ([]docstore.Filter, error) {
	filters := make([]docstore.Filter, 0, len(raw))
	for _, r := range raw {
		field, value, ok := strings.Cut(r, "=")
		if !ok || field == "" {
			return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("filter %q is not field=value", r))
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		filters = append(filters, docstore.Filter{Field: field, Value: v})
	}
	return filters, nil
}

type findOutput struct {
	Pagination docstore.Pagination `yaml:"pagination"`
	Documents  []map[string]any    `yaml:"documents"`
}

// plainDocs renders BSON documents as relaxed extended JSON values so
// ObjectIDs and dates print legibly.
func plainDocs(docs []bson.M) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "cannot render document", err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "cannot render document", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *env) findCommand(c *cli.Context) error {
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}
	q := mongo.PageQuery{
		Params: docstore.MultiFilter{
			Filters: filters,
			Page:    c.Int("page"),
			Size:    c.Int("size"),
			OrderBy: c.String("order-by"),
			Order:   strings.ToUpper(c.String("order")),
		},
		IncludeArchived: c.Bool("include-archived"),
	}
	if err := q.Params.Validate(); err != nil {
		return err
	}

	d, opts, err := e.openDocuments(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, d)

	docs, page, err := d.FindPaginated(e.ctx(c), c.String("collection"), q, opts...)
	if err != nil {
		return err
	}
	plain, err := plainDocs(docs)
	if err != nil {
		return err
	}
	return e.print(findOutput{Pagination: page, Documents: plain})
}

func (e *env) sqlCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return argN(c, 1, "<query> [arg...]")
	}
	conn, err := e.conn(c)
	if err != nil {
		return err
	}
	db, err := registry.OpenDatabase(e.ctx(c), conn)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, db)

	args := make([]any, 0, c.NArg()-1)
	for _, a := range c.Args().Tail() {
		args = append(args, a)
	}
	rows, err := db.Query(e.ctx(c), c.Args().First(), args...)
	if err != nil {
		return err
	}
	result, err := database.ScanRows(rows)
	if err != nil {
		return err
	}
	return e.print(result)
}

func (e *env) openCatalog(c *cli.Context) (*schema.Catalog, database.DB, error) {
	conn, err := e.conn(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := registry.OpenDatabase(e.ctx(c), conn)
	if err != nil {
		return nil, nil, err
	}
	cat, err := schema.For(database.Driver(conn.Backend), db)
	if err != nil {
		closeQuietly(e.log, db)
		return nil, nil, err
	}
	return cat, db, nil
}

func (e *env) tablesCommand(c *cli.Context) error {
	cat, db, err := e.openCatalog(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, db)

	tables, err := cat.ListTables(e.ctx(c), c.String("schema"))
	if err != nil {
		return err
	}
	return e.print(tables)
}

func (e *env) describeCommand(c *cli.Context) error {
	if err := argN(c, 1, "<table>"); err != nil {
		return err
	}
	cat, db, err := e.openCatalog(c)
	if err != nil {
		return err
	}
	defer closeQuietly(e.log, db)

	info, err := cat.DescribeTable(e.ctx(c), c.String("schema"), c.Args().First())
	if err != nil {
		return err
	}
	return e.print(info)
}

// serveCommand opens the connections named under server and serves until
// SIGINT or SIGTERM.
func (e *env) serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(e.ctx(c), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := e.cfg.Server
	var deps server.Deps
	if sc.Files != "" {
		files, err := registry.OpenFiles(ctx, e.cfg.Connections[sc.Files])
		if err != nil {
			return err
		}
		defer closeQuietly(e.log, files)
		deps.Files = files
	}
	if sc.Search != "" {
		engine, err := registry.OpenSearch(ctx, e.cfg.Connections[sc.Search])
		if err != nil {
			return err
		}
		defer closeQuietly(e.log, engine)
		deps.Search = engine
	}
	if sc.Cache != "" {
		kv, err := registry.OpenCache(ctx, e.cfg.Connections[sc.Cache])
		if err != nil {
			return err
		}
		defer closeQuietly(e.log, kv)
		deps.Cache = kv
	}

	addr := sc.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	e.log.InfoWith("serving", map[string]interface{}{"addr": addr})
	return server.Run(ctx, addr, server.New(deps, e.log, nil), sc.ReadTimeout, sc.WriteTimeout, sc.ShutdownTimeout)
}
