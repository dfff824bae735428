// Package config loads roubi's configuration: logging, the HTTP inspection
// server and the named backend connections.
//
// Values come from a YAML file and may be overridden by ROUBI_* environment
// variables (ROUBI_LOG_LEVEL, ROUBI_SERVER_ADDR, ...). Secrets written as
// ${VAR} in the file are expanded from the environment after loading.
//
// Example:
//
//	log:
//	  level: info
//	server:
//	  addr: ":8080"
//	  files: lake
//	connections:
//	  lake:
//	    backend: minio
//	    host: localhost
//	    port: 9000
//	    username: minio
//	    password: ${MINIO_SECRET}
//	    database: raw-data
//	  docs:
//	    backend: mongo
//	    uri: mongodb://localhost:27017/app
//	    options:
//	      connect_timeout: 5s
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROUBI"

// Backend names the adapter a connection is opened with.
type Backend string

const (
	BackendMongo      Backend = "mongo"
	BackendElastic    Backend = "elastic"
	BackendRedis      Backend = "redis"
	BackendRabbitMQ   Backend = "rabbitmq"
	BackendMinio      Backend = "minio"
	BackendS3         Backend = "s3"
	BackendPostgres   Backend = "postgres"
	BackendMySQL      Backend = "mysql"
	BackendSQLite     Backend = "sqlite"
	BackendClickHouse Backend = "clickhouse"
)

var knownBackends = map[Backend]bool{
	BackendMongo: true, BackendElastic: true, BackendRedis: true, BackendRabbitMQ: true,
	BackendMinio: true, BackendS3: true, BackendPostgres: true, BackendMySQL: true,
	BackendSQLite: true, BackendClickHouse: true,
}

// Config is the root configuration.
type Config struct {
	Log         logger.Config         `mapstructure:"log"`
	Server      ServerConfig          `mapstructure:"server"`
	Connections map[string]Connection `mapstructure:"connections"`
}

// ServerConfig configures `roubi serve`. Files, Search and Cache name the
// connections behind the /v1 routes; an empty name disables its routes.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Files  string `mapstructure:"files"`
	Search string `mapstructure:"search"`
	Cache  string `mapstructure:"cache"`
}

// Connection is one named backend.
type Connection struct {
	Backend             Backend `mapstructure:"backend"`
	connection.Metadata `mapstructure:",squash"`

	// Options is decoded into the backend's Options struct by DecodeOptions.
	Options map[string]any `mapstructure:"options"`
}

// DecodeOptions decodes c.Options onto out, which should already hold the
// backend defaults. Durations accept "5s" style strings; unknown keys are
// an error.
func (c Connection) DecodeOptions(out any) error {
	if len(c.Options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "options decoder", err)
	}
	if err := dec.Decode(c.Options); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("invalid %s options", c.Backend), err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.time_format", "rfc3339")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot decode config", err)
	}

	expandSecrets(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandSecrets resolves ${VAR} references in credentials and URIs.
func expandSecrets(cfg *Config) {
	for name, c := range cfg.Connections {
		c.Password = expand(c.Password)
		c.Username = expand(c.Username)
		c.URI = expand(c.URI)
		cfg.Connections[name] = c
	}
}

func expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}

// Validate checks every connection names a known backend and an endpoint.
func (c *Config) Validate() error {
	for _, name := range c.ConnectionNames() {
		conn := c.Connections[name]
		if !knownBackends[conn.Backend] {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("connection %q: unknown backend %q", name, conn.Backend))
		}
		switch {
		case conn.Kind() == connection.KindURI:
		case conn.Backend == BackendSQLite:
			if conn.Database == "" {
				return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("connection %q: sqlite needs a database path", name))
			}
		case conn.Host == "":
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("connection %q: host or uri is required", name))
		}
	}
	for _, ref := range []string{c.Server.Files, c.Server.Search, c.Server.Cache} {
		if ref == "" {
			continue
		}
		if _, ok := c.Connections[ref]; !ok {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("server references unknown connection %q", ref))
		}
	}
	return nil
}

// Connection looks up a named connection.
func (c *Config) Connection(name string) (Connection, error) {
	conn, ok := c.Connections[name]
	if !ok {
		return Connection{}, errs.New(errs.ErrKindNotFound, fmt.Sprintf("no connection named %q", name))
	}
	return conn, nil
}

// ConnectionNames returns the connection names in sorted order.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
