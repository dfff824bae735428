package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/roubi/internal/docstore"
	"github.com/koustreak/roubi/internal/errs"
)

// fixture writes a config with one sqlite and one redis connection and
// returns its path.
func fixture(t *testing.T) (string, *miniredis.Miniredis) {
	t.Helper()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	dbPath := filepath.Join(dir, "app.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := fmt.Sprintf(`log:
  level: error
connections:
  lite:
    backend: sqlite
    database: %s
  kv:
    backend: redis
    host: %s
    port: %s
`, dbPath, mr.Host(), mr.Port())

	path := filepath.Join(dir, "roubi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"roubi"}, args...))
	return out.String(), err
}

func TestSQLCommand(t *testing.T) {
	cfg, _ := fixture(t)

	out, err := run(t, "--config", cfg, "sql", "--conn", "lite", "SELECT id, name FROM users WHERE id > ? ORDER BY id", "0")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]any{
		{"id": 1, "name": "alice"},
		{"id": 2, "name": "bob"},
	}, rows)
}

func TestSQLCommand_MissingQuery(t *testing.T) {
	cfg, _ := fixture(t)

	_, err := run(t, "--config", cfg, "sql", "--conn", "lite")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestUnknownConnection(t *testing.T) {
	cfg, _ := fixture(t)

	_, err := run(t, "--config", cfg, "sql", "--conn", "nope", "SELECT 1")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestWrongBackendForCommand(t *testing.T) {
	cfg, _ := fixture(t)

	_, err := run(t, "--config", cfg, "indices", "--conn", "lite")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCacheCommands(t *testing.T) {
	cfg, mr := fixture(t)

	_, err := run(t, "--config", cfg, "cache", "set", "--conn", "kv", "--ttl", "1m", "greeting", "hello")
	require.NoError(t, err)
	got, err := mr.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, time.Minute, mr.TTL("greeting"))

	out, err := run(t, "--config", cfg, "cache", "get", "--conn", "kv", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "key: greeting\nvalue: hello\n", out)

	require.NoError(t, mr.Set("greet:2", "hi"))
	out, err = run(t, "--config", cfg, "cache", "keys", "--conn", "kv", "greet*")
	require.NoError(t, err)
	var keys []string
	require.NoError(t, yaml.Unmarshal([]byte(out), &keys))
	assert.ElementsMatch(t, []string{"greeting", "greet:2"}, keys)

	out, err = run(t, "--config", cfg, "cache", "purge", "--conn", "kv", "greet*")
	require.NoError(t, err)
	assert.Equal(t, "deleted: 2\n", out)

	_, err = run(t, "--config", cfg, "cache", "get", "--conn", "kv", "greeting")
	assert.True(t, errs.IsNotFound(err))
}

func TestCacheSet_WrongArgCount(t *testing.T) {
	cfg, _ := fixture(t)

	_, err := run(t, "--config", cfg, "cache", "set", "--conn", "kv", "only-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<key> <value>")
}

func TestPingCommand(t *testing.T) {
	cfg, mr := fixture(t)

	out, err := run(t, "--config", cfg, "ping")
	require.NoError(t, err)
	assert.Equal(t, "- name: kv\n  ok: true\n- name: lite\n  ok: true\n", out)

	mr.Close()
	out, err = run(t, "--config", cfg, "ping", "kv")
	require.Error(t, err)
	assert.Contains(t, out, "ok: false")
	assert.Contains(t, out, "kind: connection_failed")
}

func TestConnectionsCommand_HidesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roubi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`connections:
  docs:
    backend: mongo
    host: db.local
    port: 27017
    username: app
    password: hunter2
    database: app
`), 0o600))

	out, err := run(t, "--config", path, "connections")
	require.NoError(t, err)
	assert.Contains(t, out, "host: db.local")
	assert.Contains(t, out, "kind: discrete")
	assert.NotContains(t, out, "hunter2")
}

func TestNoConfig(t *testing.T) {
	out, err := run(t, "connections")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"name=ali", "age=30", "active=true", "note="})
	require.NoError(t, err)
	assert.Equal(t, []docstore.Filter{
		{Field: "name", Value: "ali"},
		{Field: "age", Value: 30},
		{Field: "active", Value: true},
		{Field: "note", Value: nil},
	}, filters)

	_, err = parseFilters([]string{"novalue"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = parseFilters([]string{"=x"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFindCommand_RejectsBadPaging(t *testing.T) {
	cfg, _ := fixture(t)

	_, err := run(t, "--config", cfg, "find", "--conn", "lite", "--collection", "users", "--size", "0")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestTablesAndDescribe(t *testing.T) {
	cfg, _ := fixture(t)

	out, err := run(t, "--config", cfg, "tables", "--conn", "lite")
	require.NoError(t, err)
	assert.Equal(t, "- users\n", out)

	out, err = run(t, "--config", cfg, "describe", "--conn", "lite", "users")
	require.NoError(t, err)
	assert.Contains(t, out, "name: users\n")
	assert.Contains(t, out, "isPrimaryKey: true")

	_, err = run(t, "--config", cfg, "tables", "--conn", "kv")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestListingUsageIsRecursive(t *testing.T) {
	for _, cmd := range newApp(&bytes.Buffer{}).Commands {
		if cmd.Name == "files" || cmd.Name == "folders" {
			assert.NotContains(t, cmd.Usage, "root", cmd.Name)
			assert.Contains(t, cmd.Usage, "any depth", cmd.Name)
		}
	}
}
