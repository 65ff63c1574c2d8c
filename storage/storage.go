// Package storage provides typed access to the sync and local partitions
// and the TTL cache used by every feed.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newtab/db"
	"newtab/models"

	log "github.com/sirupsen/logrus"
)

const (
	keySettings        = "settings"
	keyLayout          = "layout"
	keyLocation        = "location"
	keyCustomWallpaper = "customWallpaper"

	// CachePrefix marks local keys holding cached feed payloads
	CachePrefix = "cache:"

	DefaultTTL = 30 * time.Minute
)

// DefaultSettings are applied under whatever the user saved
var DefaultSettings = models.Settings{
	WallpaperType:   models.WallpaperBing,
	CustomWallpaper: nil,
	SearchEngine:    "baidu",
	Language:        models.LanguageChinese,
	ShowClock:       true,
	ShowDate:        true,
}

type Storage struct {
	sync          db.Bucket
	local         db.Bucket
	ttl           time.Duration
	defaultLayout models.LayoutConfig
	now           func() time.Time
}

type Option func(*Storage)

func WithTTL(ttl time.Duration) Option {
	return func(s *Storage) { s.ttl = ttl }
}

func WithDefaultLayout(layout models.LayoutConfig) Option {
	return func(s *Storage) { s.defaultLayout = layout.Clone() }
}

// WithClock replaces time.Now for cache timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func New(sync, local db.Bucket, opts ...Option) *Storage {
	s := &Storage{
		sync:  sync,
		local: local,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) TTL() time.Duration {
	return s.ttl
}

func (s *Storage) Local() db.Bucket {
	return s.local
}

func (s *Storage) getJSON(ctx context.Context, bucket db.Bucket, key string, out interface{}) error {
	raw, _, err := bucket.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Storage) setJSON(ctx context.Context, bucket db.Bucket, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return bucket.Set(ctx, key, raw)
}

// GetSettings returns the saved settings merged over the defaults.
// Any storage or decode failure yields the defaults.
func (s *Storage) GetSettings(ctx context.Context) models.Settings {
	saved := DefaultSettings
	if err := s.getJSON(ctx, s.sync, keySettings, &saved); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Warn("Failed to read settings, using defaults")
		}
		return DefaultSettings
	}
	return saved
}

func (s *Storage) SetSettings(ctx context.Context, settings models.Settings) error {
	return s.setJSON(ctx, s.sync, keySettings, settings)
}

// storedLayout keeps track of which fields were actually saved
type storedLayout struct {
	Widgets       json.RawMessage `json:"widgets"`
	GridCols      *int            `json:"gridCols"`
	GridRowHeight *int            `json:"gridRowHeight"`
	Gap           *int            `json:"gap"`
	WidgetOpacity *float64        `json:"widgetOpacity"`
}

// GetLayout returns the saved layout with missing fields taken from the
// default layout. Saved widgets are used as-is when they decode as an
// array, otherwise the default widgets are used. Reconciling individual
// widgets is left to the caller.
func (s *Storage) GetLayout(ctx context.Context) models.LayoutConfig {
	layout := s.defaultLayout.Clone()

	var saved storedLayout
	if err := s.getJSON(ctx, s.sync, keyLayout, &saved); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Warn("Failed to read layout, using defaults")
		}
		return layout
	}

	if saved.GridCols != nil {
		layout.GridCols = *saved.GridCols
	}
	if saved.GridRowHeight != nil {
		layout.GridRowHeight = *saved.GridRowHeight
	}
	if saved.Gap != nil {
		layout.Gap = *saved.Gap
	}
	if saved.WidgetOpacity != nil {
		layout.WidgetOpacity = *saved.WidgetOpacity
	}

	var widgets []models.Widget
	if len(saved.Widgets) > 0 && json.Unmarshal(saved.Widgets, &widgets) == nil && widgets != nil {
		layout.Widgets = widgets
	}

	return layout
}

func (s *Storage) SetLayout(ctx context.Context, layout models.LayoutConfig) error {
	return s.setJSON(ctx, s.sync, keyLayout, layout)
}

// GetWallpaper returns the user supplied wallpaper data URL or ""
func (s *Storage) GetWallpaper(ctx context.Context) string {
	raw, _, err := s.local.Get(ctx, keyCustomWallpaper)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Warn("Failed to read custom wallpaper")
		}
		return ""
	}
	return string(raw)
}

func (s *Storage) SetWallpaper(ctx context.Context, dataURL string) error {
	return s.local.Set(ctx, keyCustomWallpaper, []byte(dataURL))
}

// GetLocation returns the saved weather location, if any
func (s *Storage) GetLocation(ctx context.Context) (*models.LocationData, error) {
	var location models.LocationData
	if err := s.getJSON(ctx, s.sync, keyLocation, &location); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &location, nil
}

func (s *Storage) SetLocation(ctx context.Context, location models.LocationData) error {
	return s.setJSON(ctx, s.sync, keyLocation, location)
}
