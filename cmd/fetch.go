package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"newtab/feeds"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch one feed and print it as JSON",
		ArgsUsage: "<" + strings.Join(feeds.Names(), "|") + ">",
		Description: `Fetches a feed through the cache and prints the result as JSON on stdout.

Useful for checking upstream connectivity. Use --force to bypass the cache.
Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			redisAddrFlag(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip the cache and fetch from upstream",
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the payload
			log.SetOutput(os.Stderr)

			name := ctx.Args().First()
			if name == "" {
				return fmt.Errorf("please name a feed, one of %v", feeds.Names())
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			s, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			payload, err := newFeedService(cfg, s.storage).Fetch(ctx.Context, name, ctx.Bool("force"))
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(payload)
		},
	}
}
