package cmd

import (
	"fmt"

	"newtab/db"
	"newtab/storage"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Remove expired cache entries",
		Description: `Removes cached feed responses older than the cache TTL from
		the local partition.

		Can be run as a cron job when the server runs with the janitor disabled.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			redisAddrFlag(),
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

			removed, err := db.Tidy(ctx.Context, s.local, storage.CachePrefix, cfg.Storage.CacheTTL.Duration)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries\n", removed)
			return nil
		},
	}
}
