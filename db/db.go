package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// DB owns the SQLite connection backing both storage partitions
type DB struct {
	db *sql.DB
}

// Open connects to the SQLite database at path. Migrations are not applied.
func Open(database string) (*DB, error) {
	conn, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &DB{db: conn}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Sync returns the quota limited preferences partition
func (d *DB) Sync() *SQLiteBucket {
	return &SQLiteBucket{db: d.db, area: PartitionSync, maxItemBytes: SyncQuotaBytesPerItem, now: time.Now}
}

// Local returns the unbounded cache partition
func (d *DB) Local() *SQLiteBucket {
	return &SQLiteBucket{db: d.db, area: PartitionLocal, now: time.Now}
}

// SQLiteBucket stores one partition in the kv table
type SQLiteBucket struct {
	db           *sql.DB
	area         Partition
	maxItemBytes int
	now          func() time.Time
}

func (b *SQLiteBucket) Partition() Partition {
	return b.area
}

func (b *SQLiteBucket) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("item_value", "updated_at").From("kv").Where(
		sb.Equal("area", string(b.area)),
		sb.Equal("item_key", key),
	)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var value []byte
	var updatedAt int64
	err := b.db.QueryRowContext(ctx, query, args...).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query error: %w", err)
	}

	return value, time.UnixMilli(updatedAt), nil
}

func (b *SQLiteBucket) Set(ctx context.Context, key string, value []byte) error {
	if b.maxItemBytes > 0 && len(key)+len(value) > b.maxItemBytes {
		log.WithFields(log.Fields{
			"partition": b.area,
			"key":       key,
			"size":      len(key) + len(value),
		}).Warn("Rejecting write over quota")
		return fmt.Errorf("%s/%s: %w", b.area, key, ErrQuotaExceeded)
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("kv").
		Cols("area", "item_key", "item_value", "updated_at").
		Values(string(b.area), key, value, b.now().UnixMilli())
	ib.SQL("ON CONFLICT (area, item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at")
	query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func (b *SQLiteBucket) Delete(ctx context.Context, key string) error {
	del := sqlbuilder.NewDeleteBuilder()
	del.DeleteFrom("kv").Where(
		del.Equal("area", string(b.area)),
		del.Equal("item_key", key),
	)
	query, args := del.BuildWithFlavor(sqlbuilder.SQLite)

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

func (b *SQLiteBucket) Keys(ctx context.Context, prefix string) ([]string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("item_key").From("kv").Where(sb.Equal("area", string(b.area)))
	if prefix != "" {
		sb.Where(sb.Like("item_key", prefix+"%"))
	}
	sb.OrderBy("item_key").Asc()
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteBefore removes keys under prefix that were last written before cutoff
func (b *SQLiteBucket) DeleteBefore(ctx context.Context, prefix string, cutoff time.Time) (int64, error) {
	del := sqlbuilder.NewDeleteBuilder()
	del.DeleteFrom("kv").Where(
		del.Equal("area", string(b.area)),
		del.LessThan("updated_at", cutoff.UnixMilli()),
	)
	if prefix != "" {
		del.Where(del.Like("item_key", prefix+"%"))
	}
	query, args := del.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}

var _ Bucket = (*SQLiteBucket)(nil)
var _ Expirer = (*SQLiteBucket)(nil)
