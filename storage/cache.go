package storage

import (
	"context"
	"encoding/json"
	"errors"

	"newtab/db"
	"newtab/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newtab_cache_lookups_total",
	Help: "Feed cache lookups by key and result",
}, []string{"key", "result"})

// GetCached returns the value stored under key when it was written less
// than the cache TTL ago. Expired, missing and undecodable entries are
// reported as a miss.
func GetCached[T any](ctx context.Context, s *Storage, key string) (T, bool) {
	var zero T

	raw, _, err := s.local.Get(ctx, CachePrefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithFields(log.Fields{"key": key, "error": err}).Warn("Cache read failed")
		}
		cacheLookups.WithLabelValues(key, "miss").Inc()
		return zero, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		cacheLookups.WithLabelValues(key, "miss").Inc()
		return zero, false
	}

	if s.now().UnixMilli()-entry.Timestamp >= s.ttl.Milliseconds() {
		cacheLookups.WithLabelValues(key, "expired").Inc()
		return zero, false
	}

	var value T
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		cacheLookups.WithLabelValues(key, "miss").Inc()
		return zero, false
	}

	cacheLookups.WithLabelValues(key, "hit").Inc()
	return value, true
}

// SetCached stores value under key stamped with the current time
func SetCached[T any](ctx context.Context, s *Storage, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(models.CacheEntry{Data: data, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	return s.local.Set(ctx, CachePrefix+key, raw)
}

// Cached returns the cached value for key unless force is set, otherwise
// it calls fetch and caches the result when keep reports it worth keeping.
// Cache write failures are logged, never returned.
func Cached[T any](ctx context.Context, s *Storage, key string, force bool, fetch func(context.Context) (T, error), keep func(T) bool) (T, error) {
	if !force {
		if cached, ok := GetCached[T](ctx, s, key); ok {
			log.WithField("key", key).Debug("Using cached data")
			return cached, nil
		}
	}

	log.WithFields(log.Fields{"key": key, "force": force}).Debug("Fetching from network")
	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if keep == nil || keep(value) {
		if err := SetCached(ctx, s, key, value); err != nil {
			log.WithFields(log.Fields{"key": key, "error": err}).Warn("Failed to cache data")
		}
	}
	return value, nil
}
