package config

import (
	"fmt"
	"os"
	"time"

	"newtab/models"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so it can be written as "30m" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// TomlServer holds HTTP server settings
type TomlServer struct {
	Port         int      `toml:"port"`
	AllowOrigins []string `toml:"allow_origins"`
	// Largest accepted request body in bytes; custom wallpapers are sent as data URLs
	BodyLimit int `toml:"body_limit"`
}

// TomlStorage holds persistence settings
type TomlStorage struct {
	Database      string   `toml:"database"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	RedisPrefix   string   `toml:"redis_prefix"`
	CacheTTL      Duration `toml:"cache_ttl"`
	TidyInterval  Duration `toml:"tidy_interval"`
}

// TomlEndpoints holds the upstream API locations
type TomlEndpoints struct {
	Bing        string `toml:"bing"`
	BingBase    string `toml:"bing_base"`
	GitHub      string `toml:"github"`
	Zhihu       string `toml:"zhihu"`
	V2exPrimary string `toml:"v2ex_primary"`
	V2exBackup  string `toml:"v2ex_backup"`
	Geocoding   string `toml:"geocoding"`
	Forecast    string `toml:"forecast"`
}

// TomlFeeds holds upstream client behaviour
type TomlFeeds struct {
	UserAgent      string        `toml:"user_agent"`
	Timeout        Duration      `toml:"timeout"`
	RequestsPerSec float64       `toml:"requests_per_second"`
	Burst          int           `toml:"burst"`
	ForecastDays   int           `toml:"forecast_days"`
	Endpoints      TomlEndpoints `toml:"endpoints"`
}

// TomlLayout overrides the default dashboard layout
type TomlLayout struct {
	GridCols      int             `toml:"grid_cols"`
	GridRowHeight int             `toml:"grid_row_height"`
	Gap           int             `toml:"gap"`
	WidgetOpacity float64         `toml:"widget_opacity"`
	Widgets       []models.Widget `toml:"widgets"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Server  TomlServer  `toml:"server"`
	Storage TomlStorage `toml:"storage"`
	Feeds   TomlFeeds   `toml:"feeds"`
	Layout  TomlLayout  `toml:"layout"`
}

const DefaultBodyLimit = 16 * 1024 * 1024

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Default returns the configuration used when no file is given
func Default() *TomlConfig {
	return &TomlConfig{
		Server: TomlServer{
			Port:         3000,
			AllowOrigins: []string{"chrome-extension://*", "http://localhost:5173"},
			BodyLimit:    DefaultBodyLimit,
		},
		Storage: TomlStorage{
			Database:     "newtab.db",
			RedisPrefix:  "newtab",
			CacheTTL:     Duration{30 * time.Minute},
			TidyInterval: Duration{5 * time.Minute},
		},
		Feeds: TomlFeeds{
			UserAgent:      DefaultUserAgent,
			Timeout:        Duration{10 * time.Second},
			RequestsPerSec: 2,
			Burst:          4,
			ForecastDays:   1,
			Endpoints: TomlEndpoints{
				Bing:        "https://www.bing.com/HPImageArchive.aspx?format=js&idx=0&n=1&mkt=zh-CN",
				BingBase:    "https://www.bing.com",
				GitHub:      "https://api.github.com/search/repositories",
				Zhihu:       "https://www.zhihu.com/api/v3/feed/topstory/hot-lists/total",
				V2exPrimary: "https://www.v2ex.com/api/topics/hot.json",
				V2exBackup:  "https://v2ex.com/api/topics/hot.json",
				Geocoding:   "https://geocoding-api.open-meteo.com/v1/search",
				Forecast:    "https://api.open-meteo.com/v1/forecast",
			},
		},
		Layout: TomlLayout{
			GridCols:      12,
			GridRowHeight: 45,
			Gap:           16,
			WidgetOpacity: 0.85,
			Widgets: []models.Widget{
				{ID: "search", Type: models.WidgetSearch, Title: "搜索", X: 2, Y: 2, W: 8, H: 5, Visible: true},
				{ID: "navigation", Type: models.WidgetNavigation, Title: "快速导航", X: 2, Y: 8, W: 8, H: 3, Visible: true},
				{ID: "github", Type: models.WidgetGitHub, Title: "GitHub趋势", X: 0, Y: 12, W: 4, H: 8, Visible: true},
				{ID: "zhihu", Type: models.WidgetZhihu, Title: "知乎热榜", X: 4, Y: 12, W: 4, H: 8, Visible: true},
				{ID: "v2ex", Type: models.WidgetV2ex, Title: "V2EX热议", X: 8, Y: 12, W: 4, H: 8, Visible: true},
			},
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. Keys missing from
// the file keep their default values.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// A widgets list in the file replaces the default one entirely
	config.Layout.Widgets = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(config.Layout.Widgets) == 0 {
		config.Layout.Widgets = Default().Layout.Widgets
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *TomlConfig) Validate() error {
	if c.Storage.CacheTTL.Duration <= 0 {
		return fmt.Errorf("storage.cache_ttl must be positive")
	}
	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("server.body_limit must be positive")
	}
	if c.Layout.GridCols <= 0 {
		return fmt.Errorf("layout.grid_cols must be positive")
	}
	if c.Feeds.RequestsPerSec <= 0 {
		return fmt.Errorf("feeds.requests_per_second must be positive")
	}
	seen := map[string]bool{}
	for _, w := range c.Layout.Widgets {
		if w.ID == "" {
			return fmt.Errorf("layout widget without id")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate layout widget id %q", w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}

// DefaultLayout converts the layout section into the dashboard default layout
func (c *TomlConfig) DefaultLayout() models.LayoutConfig {
	return models.LayoutConfig{
		Widgets:       c.Layout.Widgets,
		GridCols:      c.Layout.GridCols,
		GridRowHeight: c.Layout.GridRowHeight,
		Gap:           c.Layout.Gap,
		WidgetOpacity: c.Layout.WidgetOpacity,
	}.Clone()
}
