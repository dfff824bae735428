package registry

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/koustreak/roubi/internal/config"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_WrongBackend(t *testing.T) {
	ctx := context.Background()
	redisConn := config.Connection{Backend: config.BackendRedis, Metadata: connection.Metadata{Host: "h"}}

	_, err := OpenFiles(ctx, redisConn)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = OpenSearch(ctx, redisConn)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = OpenBroker(ctx, redisConn)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = OpenDocuments(ctx, redisConn)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = OpenDatabase(ctx, redisConn)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = OpenCache(ctx, config.Connection{Backend: config.BackendMongo})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestOpenCache_AppliesOptions(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c := config.Connection{
		Backend:  config.BackendRedis,
		Metadata: connection.Metadata{Host: mr.Host(), Port: port},
		Options:  map[string]any{"pool_size": 3, "dial_timeout": "1s"},
	}
	kv, err := OpenCache(context.Background(), c)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "k", "v", 0))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenCache_BadOptions(t *testing.T) {
	c := config.Connection{
		Backend:  config.BackendRedis,
		Metadata: connection.Metadata{Host: "localhost"},
		Options:  map[string]any{"no_such_option": true},
	}
	_, err := OpenCache(context.Background(), c)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestPing_SQLite(t *testing.T) {
	c := config.Connection{Backend: config.BackendSQLite, Metadata: connection.Metadata{Database: ":memory:"}}
	assert.NoError(t, Ping(context.Background(), c))
}

func TestPing_Unreachable(t *testing.T) {
	c := config.Connection{
		Backend:  config.BackendRedis,
		Metadata: connection.Metadata{Host: "127.0.0.1", Port: 1},
		Options:  map[string]any{"dial_timeout": "200ms"},
	}
	err := Ping(context.Background(), c)
	assert.True(t, errs.IsConnectionFailed(err))
}
