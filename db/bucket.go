package db

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("item exceeds storage quota")
)

// Partition names one of the two storage areas
type Partition string

const (
	// PartitionSync holds small user preferences: settings and layout
	PartitionSync Partition = "sync"
	// PartitionLocal holds cached feed payloads and the custom wallpaper
	PartitionLocal Partition = "local"
)

// SyncQuotaBytesPerItem caps key+value size in the sync partition
const SyncQuotaBytesPerItem = 8192

// Bucket is an opaque key-value store. Values are stored as given and
// returned together with the time they were last written.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Expirer is implemented by buckets that can drop stale keys in one call
type Expirer interface {
	DeleteBefore(ctx context.Context, prefix string, cutoff time.Time) (int64, error)
}
