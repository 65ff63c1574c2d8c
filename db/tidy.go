package db

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Tidy removes keys under prefix that were last written more than maxAge ago
func Tidy(ctx context.Context, bucket Bucket, prefix string, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	if expirer, ok := bucket.(Expirer); ok {
		removed, err := expirer.DeleteBefore(ctx, prefix, cutoff)
		if err != nil {
			return 0, err
		}
		log.WithFields(log.Fields{
			"prefix":  prefix,
			"removed": removed,
		}).Info("Tidied storage")
		return removed, nil
	}

	keys, err := bucket.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, key := range keys {
		_, updatedAt, err := bucket.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if updatedAt.Before(cutoff) {
			if err := bucket.Delete(ctx, key); err != nil {
				return removed, err
			}
			removed++
		}
	}

	log.WithFields(log.Fields{
		"prefix":  prefix,
		"removed": removed,
	}).Info("Tidied storage")
	return removed, nil
}

// StartJanitor tidies bucket every interval until ctx is done
func StartJanitor(ctx context.Context, bucket Bucket, prefix string, maxAge, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		// Tidy immediately
		if _, err := Tidy(ctx, bucket, prefix, maxAge); err != nil {
			log.Error("Error tidying storage: ", err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := Tidy(ctx, bucket, prefix, maxAge); err != nil {
					log.Error("Error tidying storage: ", err)
				}
			}
		}
	}()
}
