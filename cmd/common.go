package cmd

import (
	"fmt"

	"newtab/config"
	"newtab/db"
	"newtab/feeds"
	"newtab/storage"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to TOML configuration file",
		EnvVars: []string{"NEWTAB_CONFIG"},
	}
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Usage:   "SQLite database file location",
		EnvVars: []string{"NEWTAB_DATABASE"},
	}
}

func redisAddrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "redis-addr",
		Usage:   "Redis address for the local partition, e.g. localhost:6379",
		EnvVars: []string{"NEWTAB_REDIS_ADDR"},
	}
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if ctx.IsSet("database") {
		cfg.Storage.Database = ctx.String("database")
	}
	if ctx.IsSet("redis-addr") {
		cfg.Storage.RedisAddr = ctx.String("redis-addr")
	}
	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}
	return cfg, nil
}

// stores bundles everything opened for a command run
type stores struct {
	database *db.DB
	redis    *redis.Client
	local    db.Bucket
	storage  *storage.Storage
}

func (s *stores) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	s.database.Close()
}

// openStores migrates and opens the SQLite database and picks the backend
// for the local partition
func openStores(cfg *config.TomlConfig) (*stores, error) {
	if err := db.Migrate(cfg.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database, err := db.Open(cfg.Storage.Database)
	if err != nil {
		return nil, err
	}

	s := &stores{database: database, local: database.Local()}
	if cfg.Storage.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		s.local = db.NewRedisBucket(s.redis, db.WithRedisPrefix(cfg.Storage.RedisPrefix))
		log.WithFields(log.Fields{
			"addr":   cfg.Storage.RedisAddr,
			"prefix": cfg.Storage.RedisPrefix,
		}).Info("Using Redis for local storage")
	}

	log.WithField("database", cfg.Storage.Database).Info("Database configured")

	s.storage = storage.New(database.Sync(), s.local,
		storage.WithTTL(cfg.Storage.CacheTTL.Duration),
		storage.WithDefaultLayout(cfg.DefaultLayout()),
	)
	return s, nil
}

func newFeedService(cfg *config.TomlConfig, store *storage.Storage) *feeds.Service {
	client := feeds.NewClient(feeds.ClientConfig{
		UserAgent:      cfg.Feeds.UserAgent,
		Timeout:        cfg.Feeds.Timeout.Duration,
		RequestsPerSec: cfg.Feeds.RequestsPerSec,
		Burst:          cfg.Feeds.Burst,
	})
	e := cfg.Feeds.Endpoints
	return feeds.NewService(client, store, feeds.Endpoints{
		Bing:        e.Bing,
		BingBase:    e.BingBase,
		GitHub:      e.GitHub,
		Zhihu:       e.Zhihu,
		V2exPrimary: e.V2exPrimary,
		V2exBackup:  e.V2exBackup,
		Geocoding:   e.Geocoding,
		Forecast:    e.Forecast,
	}, feeds.WithForecastDays(cfg.Feeds.ForecastDays))
}
