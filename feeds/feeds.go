// Package feeds adapts the public JSON APIs shown on the dashboard.
//
// Every feed has a Fetch method that talks to the network and reports
// errors, and a Get method that goes through the TTL cache, logs failures
// and answers with the feed's fallback instead.
package feeds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"newtab/storage"
)

// Endpoints are the upstream API locations
type Endpoints struct {
	Bing        string
	BingBase    string
	GitHub      string
	Zhihu       string
	V2exPrimary string
	V2exBackup  string
	Geocoding   string
	Forecast    string
}

type Service struct {
	client       *Client
	storage      *storage.Storage
	endpoints    Endpoints
	forecastDays int
	now          func() time.Time
}

type Option func(*Service)

func WithForecastDays(days int) Option {
	return func(s *Service) { s.forecastDays = days }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(client *Client, store *storage.Storage, endpoints Endpoints, opts ...Option) *Service {
	s := &Service{
		client:       client,
		storage:      store,
		endpoints:    endpoints,
		forecastDays: 1,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.forecastDays < 1 {
		s.forecastDays = 1
	}
	return s
}

// Fetcher fetches one named feed through the cache
type Fetcher func(ctx context.Context, s *Service, force bool) interface{}

var fetchers = map[string]Fetcher{
	"bing": func(ctx context.Context, s *Service, force bool) interface{} {
		return s.GetWallpaper(ctx, force)
	},
	"github": func(ctx context.Context, s *Service, force bool) interface{} {
		return s.GetGitHubTrending(ctx, PeriodDay, force)
	},
	"zhihu": func(ctx context.Context, s *Service, force bool) interface{} {
		return s.GetZhihuHot(ctx, force)
	},
	"v2ex": func(ctx context.Context, s *Service, force bool) interface{} {
		return s.GetV2exHot(ctx, force)
	},
}

// Names lists the feeds accepted by Fetch
func Names() []string {
	names := make([]string, 0, len(fetchers))
	for name := range fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch returns the named feed's payload, going through the cache
func (s *Service) Fetch(ctx context.Context, name string, force bool) (interface{}, error) {
	fetcher, ok := fetchers[name]
	if !ok {
		return nil, fmt.Errorf("unknown feed %q, expected one of %v", name, Names())
	}
	return fetcher(ctx, s, force), nil
}
