package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newtab_feed_requests_total",
		Help: "Upstream feed requests by feed and outcome",
	}, []string{"feed", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newtab_feed_request_duration_seconds",
		Help:    "Latency of upstream feed requests",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
	}, []string{"feed"})
)

// ErrNoData is returned when an upstream answers without the expected payload
var ErrNoData = errors.New("no data in response")

// StatusError reports a non-2xx upstream response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d (%s)", e.Code, e.URL)
}

type ClientConfig struct {
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// Client performs rate limited JSON GET requests against the feed APIs
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
	}
}

// getJSON fetches rawURL and decodes the body into out
func (c *Client) getJSON(ctx context.Context, feed string, rawURL string, headers map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	fetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	if err != nil {
		fetchRequests.WithLabelValues(feed, "network_error").Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		fetchRequests.WithLabelValues(feed, "status_error").Inc()
		return &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fetchRequests.WithLabelValues(feed, "decode_error").Inc()
		return fmt.Errorf("decode %s response: %w", feed, err)
	}

	fetchRequests.WithLabelValues(feed, "ok").Inc()
	log.WithFields(log.Fields{
		"feed":    feed,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Fetched feed")
	return nil
}
