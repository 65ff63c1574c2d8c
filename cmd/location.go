package cmd

import (
	"errors"
	"fmt"
	"strings"

	"newtab/models"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func describeLocation(l models.LocationData) string {
	parts := lo.Compact([]string{l.Name, l.Region, l.Country})
	return fmt.Sprintf("%s (%.2f, %.2f)", strings.Join(parts, ", "), l.Latitude, l.Longitude)
}

func locationCmd() *cli.Command {
	return &cli.Command{
		Name:  "location",
		Usage: "Pick the location used for the weather widget",
		Description: `Searches Open-Meteo for a place name and saves the chosen
result as the weather location.`,
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

			if current, err := s.storage.GetLocation(ctx.Context); err == nil && current != nil {
				fmt.Println("Current location:", describeLocation(*current))
			}

			query, err := prompt.New().Ask("City:").Input("北京")
			if err != nil {
				return err
			}

			results, err := newFeedService(cfg, s.storage).FetchLocations(ctx.Context, query)
			if err != nil {
				return fmt.Errorf("could not search locations: %w", err)
			}
			if len(results) == 0 {
				return errors.New("no matching locations found")
			}

			choices := lo.Map(results, func(l models.LocationData, _ int) string { return describeLocation(l) })
			choice, err := prompt.New().Ask("Location:").Choose(choices)
			if err != nil {
				return err
			}

			_, index, _ := lo.FindIndexOf(choices, func(c string) bool { return c == choice })
			location := results[index]
			if err := s.storage.SetLocation(ctx.Context, location); err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"name":      location.Name,
				"latitude":  location.Latitude,
				"longitude": location.Longitude,
			}).Info("Saved weather location")
			return nil
		},
	}
}
