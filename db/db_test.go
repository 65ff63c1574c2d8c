package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Migrate(path))

	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func newTestRedisBucket(t *testing.T, opts ...RedisOption) (*RedisBucket, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisBucket(rdb, opts...), mr
}

// bucketContract runs the behaviour every Bucket implementation shares
func bucketContract(t *testing.T, bucket Bucket) {
	ctx := context.Background()

	_, _, err := bucket.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	before := time.Now().Add(-time.Second)
	require.NoError(t, bucket.Set(ctx, "cache:a", []byte(`{"a":1}`)))
	require.NoError(t, bucket.Set(ctx, "cache:b", []byte(`{"b":2}`)))
	require.NoError(t, bucket.Set(ctx, "settings", []byte(`{}`)))

	value, updatedAt, err := bucket.Get(ctx, "cache:a")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(value))
	assert.True(t, updatedAt.After(before))

	// Overwrite replaces the value
	require.NoError(t, bucket.Set(ctx, "cache:a", []byte(`{"a":3}`)))
	value, _, err = bucket.Get(ctx, "cache:a")
	require.NoError(t, err)
	assert.Equal(t, `{"a":3}`, string(value))

	keys, err := bucket.Keys(ctx, "cache:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache:a", "cache:b"}, keys)

	require.NoError(t, bucket.Delete(ctx, "cache:a"))
	_, _, err = bucket.Get(ctx, "cache:a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, bucket.Delete(ctx, "cache:a"))
}

func TestSQLiteBucket(t *testing.T) {
	database := openTestDB(t)
	bucketContract(t, database.Local())
}

func TestRedisBucket(t *testing.T) {
	bucket, _ := newTestRedisBucket(t)
	bucketContract(t, bucket)
}

func TestPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	require.NoError(t, database.Sync().Set(ctx, "layout", []byte("sync")))
	require.NoError(t, database.Local().Set(ctx, "layout", []byte("local")))

	value, _, err := database.Sync().Get(ctx, "layout")
	require.NoError(t, err)
	assert.Equal(t, "sync", string(value))

	value, _, err = database.Local().Get(ctx, "layout")
	require.NoError(t, err)
	assert.Equal(t, "local", string(value))
}

func TestSyncQuota(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	big := []byte(strings.Repeat("x", SyncQuotaBytesPerItem))
	err := database.Sync().Set(ctx, "settings", big)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The local partition has no per-item quota
	assert.NoError(t, database.Local().Set(ctx, "customWallpaper", big))
}

func TestTidySQLite(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	local := database.Local()

	local.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, local.Set(ctx, "cache:old", []byte("old")))
	require.NoError(t, local.Set(ctx, "customWallpaper", []byte("data:image/png;base64,AAAA")))

	local.now = time.Now
	require.NoError(t, local.Set(ctx, "cache:fresh", []byte("fresh")))

	removed, err := Tidy(ctx, local, "cache:", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	keys, err := local.Keys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache:fresh", "customWallpaper"}, keys)
}

func TestTidyRedis(t *testing.T) {
	ctx := context.Background()
	bucket, _ := newTestRedisBucket(t, WithRedisPrefix("test:"))

	bucket.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, bucket.Set(ctx, "cache:old", []byte("old")))
	bucket.now = time.Now
	require.NoError(t, bucket.Set(ctx, "cache:fresh", []byte("fresh")))

	removed, err := Tidy(ctx, bucket, "cache:", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	keys, err := bucket.Keys(ctx, "cache:")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache:fresh"}, keys)
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	bucket, mr := newTestRedisBucket(t, WithRedisExpiry(time.Minute))

	require.NoError(t, bucket.Set(ctx, "cache:a", []byte("a")))
	mr.FastForward(2 * time.Minute)

	_, _, err := bucket.Get(ctx, "cache:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Migrate(path))
	require.NoError(t, Rollback(path))

	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	_, _, err = database.Local().Get(context.Background(), "anything")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
