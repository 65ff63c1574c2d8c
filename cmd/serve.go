package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newtab/dashboard"
	"newtab/db"
	"newtab/server"
	"newtab/storage"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard API",
		Description: `Starts the dashboard HTTP API on the specified or default port.

Loads the hot lists on startup and force-refreshes them every refresh interval.
Expired cache entries are removed from the local partition in the background.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			redisAddrFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"NEWTAB_PORT"},
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "How often the hot lists are force-refreshed, 0 disables",
				Value:   30 * time.Minute,
				EnvVars: []string{"NEWTAB_REFRESH_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			s, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			service := newFeedService(cfg, s.storage)
			settings := dashboard.NewSettings(s.storage, service, storage.DefaultSettings)
			layout := dashboard.NewLayout(s.storage, cfg.DefaultLayout())
			hotList := dashboard.NewHotList(service)
			bc := server.NewBroadcaster()

			app := server.Server(&server.ServerConfig{
				AllowOrigins: cfg.Server.AllowOrigins,
				BodyLimit:    cfg.Server.BodyLimit,
				Feeds:        service,
				Locations:    s.storage,
				Settings:     settings,
				Layout:       layout,
				HotList:      hotList,
				Broadcaster:  bc,
			})

			settings.Load(runCtx)
			layout.Load(runCtx)
			go hotList.LoadAll(runCtx)

			db.StartJanitor(runCtx, s.local, storage.CachePrefix, cfg.Storage.CacheTTL.Duration, cfg.Storage.TidyInterval.Duration)

			if interval := ctx.Duration("refresh-interval"); interval > 0 {
				go func() {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-runCtx.Done():
							return
						case <-ticker.C:
							log.Info("Refreshing hot lists")
							<-hotList.RefreshAll(runCtx)
						}
					}
				}()
			}

			// Graceful shutdown
			go func() {
				<-runCtx.Done()
				log.Info("Gracefully shutting down...")
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Error("Error shutting down server: ", err)
				}
			}()

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			log.WithField("addr", addr).Info("Starting server")
			if err := app.Listen(addr); err != nil {
				return err
			}

			log.Info("Done!")
			return nil
		},
	}
}
