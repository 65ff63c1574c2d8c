package models

import "encoding/json"

// Bing image of the day
type BingImage struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Copyright string `json:"copyright"`
}

type GitHubRepo struct {
	Name        string `json:"name"`
	FullName    string `json:"fullName"`
	Description string `json:"description"`
	Stars       int    `json:"stars"`
	URL         string `json:"url"`
	Language    string `json:"language"`
}

// ZhihuItem is one entry of the Zhihu hot list. Hot is the human readable
// heat text as returned upstream, e.g. "1234 万热度".
type ZhihuItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Hot   string `json:"hot"`
}

type V2exTopic struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Replies int    `json:"replies"`
	Node    string `json:"node"`
}

type LocationData struct {
	Name      string  `json:"name" validate:"required"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type DailyForecast struct {
	Date        string  `json:"date"`
	MaxTemp     float64 `json:"maxTemp"`
	MinTemp     float64 `json:"minTemp"`
	WeatherCode int     `json:"weatherCode"`
}

type WeatherData struct {
	Temperature int             `json:"temperature"`
	Humidity    float64         `json:"humidity"`
	WeatherCode int             `json:"weatherCode"`
	WindSpeed   float64         `json:"windSpeed"`
	Location    string          `json:"location"`
	Forecast    []DailyForecast `json:"forecast"`
}

type WeatherInfo struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type WidgetType string

const (
	WidgetSearch     WidgetType = "search"
	WidgetGitHub     WidgetType = "github"
	WidgetZhihu      WidgetType = "zhihu"
	WidgetV2ex       WidgetType = "v2ex"
	WidgetNavigation WidgetType = "navigation"
	WidgetWeather    WidgetType = "weather"
)

// Widget is a positioned panel on the dashboard grid
type Widget struct {
	ID      string     `json:"id" toml:"id" validate:"required"`
	Type    WidgetType `json:"type" toml:"type" validate:"required,oneof=search github zhihu v2ex navigation weather"`
	Title   string     `json:"title" toml:"title"`
	X       int        `json:"x" toml:"x" validate:"min=0"`
	Y       int        `json:"y" toml:"y" validate:"min=0"`
	W       int        `json:"w" toml:"w" validate:"min=1"`
	H       int        `json:"h" toml:"h" validate:"min=1"`
	Visible bool       `json:"visible" toml:"visible"`
}

type LayoutConfig struct {
	Widgets       []Widget `json:"widgets" validate:"required,unique=ID,dive"`
	GridCols      int      `json:"gridCols" validate:"min=1"`
	GridRowHeight int      `json:"gridRowHeight" validate:"min=1"`
	Gap           int      `json:"gap" validate:"min=0"`
	WidgetOpacity float64  `json:"widgetOpacity" validate:"gte=0,lte=1"`
}

// Clone returns a deep copy so callers can mutate widgets freely
func (l LayoutConfig) Clone() LayoutConfig {
	widgets := make([]Widget, len(l.Widgets))
	copy(widgets, l.Widgets)
	l.Widgets = widgets
	return l
}

type WallpaperType string

const (
	WallpaperBing   WallpaperType = "bing"
	WallpaperCustom WallpaperType = "custom"
)

type Language string

const (
	LanguageChinese Language = "zh_CN"
	LanguageEnglish Language = "en"
)

type Settings struct {
	WallpaperType   WallpaperType `json:"wallpaperType"`
	CustomWallpaper *string       `json:"customWallpaper"`
	SearchEngine    string        `json:"searchEngine"`
	Language        Language      `json:"language"`
	ShowClock       bool          `json:"showClock"`
	ShowDate        bool          `json:"showDate"`
}

type SearchEngine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`
}

type AIPlatform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`
}

// CacheEntry is the envelope written for every cached feed payload.
// Timestamp is in unix milliseconds.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Event pushed to dashboard clients over SSE
type ChangeEvent struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}
