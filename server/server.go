package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cfgpkg "newtab/config"
	"newtab/dashboard"
	"newtab/feeds"
	"newtab/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "newtab_http_request_duration_seconds",
	Help:    "Latency of API requests",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// FeedService is satisfied by *feeds.Service
type FeedService interface {
	dashboard.HotListSource
	dashboard.WallpaperSource
	GetWeather(ctx context.Context, lat, lon float64, force bool) *models.WeatherData
	FetchLocations(ctx context.Context, query string) ([]models.LocationData, error)
}

// LocationStore is satisfied by *storage.Storage
type LocationStore interface {
	GetLocation(ctx context.Context) (*models.LocationData, error)
	SetLocation(ctx context.Context, location models.LocationData) error
}

type ServerConfig struct {

	// Origins allowed to call the API. Entries ending in * match by prefix.
	AllowOrigins []string

	// Largest accepted request body in bytes, defaults to config.DefaultBodyLimit
	BodyLimit int

	// How long location search responses are cached in memory
	LocationCacheExpiry time.Duration

	// Interval between keep-alive pings on the event stream
	PingInterval time.Duration

	Feeds     FeedService
	Locations LocationStore
	Settings  *dashboard.Settings
	Layout    *dashboard.Layout
	HotList   *dashboard.HotList

	// Broadcast channel to pass change events to SSE clients
	Broadcaster *Broadcaster
}

// errorHandler renders every error as {"error": "..."}
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func corsConfig(origins []string) cors.Config {
	exact := []string{}
	prefixes := []string{}
	for _, origin := range origins {
		if strings.HasSuffix(origin, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(origin, "*"))
		} else {
			exact = append(exact, origin)
		}
	}

	cfg := cors.Config{
		AllowOrigins: strings.Join(exact, ","),
		AllowHeaders: "Cache-Control, Content-Type",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}
	if len(prefixes) > 0 {
		cfg.AllowOriginsFunc = func(origin string) bool {
			return lo.ContainsBy(prefixes, func(prefix string) bool { return strings.HasPrefix(origin, prefix) })
		}
	}
	return cfg
}

// Returns a fiber.App serving the dashboard API
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster
	if config.PingInterval <= 0 {
		config.PingInterval = 5 * time.Second
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = cfgpkg.DefaultBodyLimit
	}
	if config.LocationCacheExpiry <= 0 {
		config.LocationCacheExpiry = 10 * time.Minute
	}

	config.HotList.OnChange(func(snapshot dashboard.HotListSnapshot) {
		bc.Broadcast(models.ChangeEvent{Kind: EventHotList, Data: snapshot})
	})
	config.Layout.OnChange(func(layout models.LayoutConfig) {
		bc.Broadcast(models.ChangeEvent{Kind: EventLayout, Data: layout})
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		route := routeLabel(c)
		requestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Observe(latency.Seconds())

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   route,
			"status":  status,
			"latency": latency,
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(corsConfig(config.AllowOrigins)))

	// Location search results hardly change, cache them in memory
	app.Use(cache.New(cache.Config{
		// Next runs again after the handler; only successful searches are stored
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet || c.Path() != "/api/locations" {
				return true
			}
			return c.Response().StatusCode() != fiber.StatusOK
		},
		Expiration: config.LocationCacheExpiry,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Request().URI().String()
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	registerWallpaperRoutes(api, config)
	registerSettingsRoutes(api, config)
	registerHotListRoutes(api, config)
	registerWeatherRoutes(api, config)
	registerLayoutRoutes(api, config)
	registerSearchRoutes(api, config)

	api.Get("/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan models.ChangeEvent, 10)
		aliveChan := time.NewTicker(config.PingInterval)

		bc.AddClient(key, events)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer aliveChan.Stop()
			defer func() {
				log.Infof("Cleaning up SSE stream for client: %s", key)
				bc.RemoveClient(key)
			}()

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-events:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}
					data, err := json.Marshal(event.Data)
					if err != nil {
						log.Errorf("Error marshalling %s event for client %s: %v", event.Kind, key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
						log.Warnf("Failed to send %s event to client %s: %v", event.Kind, key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush %s event for client %s: %v", event.Kind, key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	api.Delete("/events", func(c *fiber.Ctx) error {
		bc.RemoveClient(c.Query("key", ""))
		return c.SendStatus(fiber.StatusNoContent)
	})

	return app
}

// routeLabel names the matched route. Cache hits never reach the router,
// so they are labelled with the request path.
func routeLabel(c *fiber.Ctx) string {
	if c.GetRespHeader(cache.ConfigDefault.CacheHeader) == "hit" {
		return c.Path()
	}
	return c.Route().Path
}

func queryFloat(c *fiber.Ctx, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parsePeriod(c *fiber.Ctx) feeds.Period {
	return feeds.ParsePeriod(c.Query("period", string(feeds.PeriodDay)))
}
