// Command roubi inspects and exercises the backends named in a roubi
// configuration file: object stores, search engines, caches, brokers,
// document stores and SQL databases. Results are printed as YAML.
//
//	roubi --config roubi.yaml files --conn lake --exclude tmp --exclude log
//	roubi --config roubi.yaml find --conn docs --collection users --filter name=ali --size 20
//	roubi --config roubi.yaml serve
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "roubi:", err)
		os.Exit(1)
	}
}

func connFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "conn",
		Aliases:  []string{"c"},
		Usage:    "Name of the connection in the config file",
		Required: true,
	}
}

func newApp(out io.Writer) *cli.App {
	e := &env{out: out}

	return &cli.App{
		Name:  "roubi",
		Usage: "Uniform access to object stores, search, cache, broker, document and SQL backends",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"f"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"ROUBI_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			{
				Name:   "connections",
				Usage:  "List the configured connections",
				Action: e.connectionsCommand,
			},
			{
				Name:      "ping",
				Usage:     "Open and close connections to check they are reachable",
				ArgsUsage: "[name...]",
				Action:    e.pingCommand,
			},
			{
				Name:   "files",
				Usage:  "List every file in a bucket, at any depth",
				Action: e.filesCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "bucket", Usage: "Bucket to list (defaults to the connection database)"},
					&cli.StringSliceFlag{Name: "exclude", Usage: "File formats to leave out (replaces the default cryptomancer,trashinfo)"},
				},
			},
			{
				Name:   "folders",
				Usage:  "List every folder marker in a bucket, at any depth",
				Action: e.foldersCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "bucket", Usage: "Bucket to list (defaults to the connection database)"},
				},
			},
			{
				Name:   "exists",
				Usage:  "Check whether an object is accessible",
				Action: e.existsCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "key", Usage: "Object key", Required: true},
					&cli.StringFlag{Name: "bucket", Usage: "Bucket (defaults to the connection database)"},
				},
			},
			{
				Name:   "indices",
				Usage:  "List search indices grouped into rotation families",
				Action: e.indicesCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "namespace", Usage: "Index pattern to restrict the listing"},
				},
			},
			{
				Name:  "cache",
				Usage: "Read and write cache entries",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						ArgsUsage: "<key>",
						Action:    e.cacheGetCommand,
						Flags:     []cli.Flag{connFlag()},
					},
					{
						Name:      "set",
						ArgsUsage: "<key> <value>",
						Action:    e.cacheSetCommand,
						Flags: []cli.Flag{
							connFlag(),
							&cli.DurationFlag{Name: "ttl", Usage: "Expiry; zero keeps the key forever"},
						},
					},
					{
						Name:      "del",
						ArgsUsage: "<key>",
						Action:    e.cacheDelCommand,
						Flags:     []cli.Flag{connFlag()},
					},
					{
						Name:      "keys",
						ArgsUsage: "<pattern>",
						Action:    e.cacheKeysCommand,
						Flags:     []cli.Flag{connFlag()},
					},
					{
						Name:      "purge",
						ArgsUsage: "<pattern>",
						Usage:     "Delete every key matching a glob pattern",
						Action:    e.cachePurgeCommand,
						Flags:     []cli.Flag{connFlag()},
					},
				},
			},
			{
				Name:   "publish",
				Usage:  "Declare an exchange, optionally bind a queue, and publish one message",
				Action: e.publishCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "exchange", Usage: "Exchange name", Required: true},
					&cli.StringFlag{Name: "kind", Usage: "Exchange kind (direct, fanout, topic, headers)", Value: "direct"},
					&cli.BoolFlag{Name: "durable", Usage: "Declare the exchange and queue durable"},
					&cli.StringFlag{Name: "queue", Usage: "Queue to declare and bind before publishing"},
					&cli.StringFlag{Name: "routing-key", Aliases: []string{"k"}, Usage: "Routing key"},
					&cli.StringFlag{Name: "body", Usage: "Message body", Required: true},
				},
			},
			{
				Name:   "collections",
				Usage:  "List the v_* collections of a document store",
				Action: e.collectionsCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "database", Usage: "Database to use instead of the connection default"},
				},
			},
			{
				Name:   "find",
				Usage:  "Run a paginated, filtered query against a collection",
				Action: e.findCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "collection", Usage: "Collection name", Required: true},
					&cli.StringFlag{Name: "database", Usage: "Database to use instead of the connection default"},
					&cli.StringSliceFlag{Name: "filter", Usage: "field=value; string values match case-insensitively"},
					&cli.IntFlag{Name: "page", Usage: "1-based page; 0 returns the first page without skipping", Value: 1},
					&cli.IntFlag{Name: "size", Usage: "Page size", Value: 10},
					&cli.StringFlag{Name: "order-by", Usage: "Sort field", Value: "_id"},
					&cli.StringFlag{Name: "order", Usage: "ASC or DESC", Value: "DESC"},
					&cli.BoolFlag{Name: "include-archived", Usage: "Also return archived documents"},
				},
			},
			{
				Name:      "sql",
				Usage:     "Run a query against a relational or columnar database",
				ArgsUsage: "<query> [arg...]",
				Action:    e.sqlCommand,
				Flags:     []cli.Flag{connFlag()},
			},
			{
				Name:   "tables",
				Usage:  "List the tables of a SQL database",
				Action: e.tablesCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "schema", Usage: "Schema or database to list (defaults to the connection's)"},
				},
			},
			{
				Name:      "describe",
				Usage:     "Describe the columns of a table",
				ArgsUsage: "<table>",
				Action:    e.describeCommand,
				Flags: []cli.Flag{
					connFlag(),
					&cli.StringFlag{Name: "schema", Usage: "Schema or database holding the table"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP inspection API",
				Action: e.serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides server.addr)"},
				},
			},
		},
	}
}
