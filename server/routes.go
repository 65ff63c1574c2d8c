package server

import (
	"context"
	"strconv"

	"newtab/dashboard"
	"newtab/feeds"
	"newtab/models"
	"newtab/search"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type customWallpaperRequest struct {
	DataURL string `json:"dataUrl" validate:"required,datauri"`
}

type wallpaperTypeRequest struct {
	Type models.WallpaperType `json:"type" validate:"required,oneof=bing custom"`
}

type settingsPatch struct {
	SearchEngine *string          `json:"searchEngine" validate:"omitempty,engine"`
	Language     *models.Language `json:"language" validate:"omitempty,oneof=zh_CN en"`
	ShowClock    *bool            `json:"showClock"`
	ShowDate     *bool            `json:"showDate"`
}

type widgetPatch struct {
	X *int `json:"x" validate:"required_with=Y,omitempty,min=0"`
	Y *int `json:"y" validate:"required_with=X,omitempty,min=0"`
	W *int `json:"w" validate:"required_with=H,omitempty,min=1"`
	H *int `json:"h" validate:"required_with=W,omitempty,min=1"`
}

type opacityRequest struct {
	Opacity *float64 `json:"opacity" validate:"required"`
}

type containerRequest struct {
	Width int `json:"width" validate:"min=1"`
}

func registerWallpaperRoutes(api fiber.Router, config *ServerConfig) {
	api.Get("/wallpaper", func(c *fiber.Ctx) error {
		image := config.Feeds.GetWallpaper(c.UserContext(), c.QueryBool("force"))
		if image == nil {
			return fiber.NewError(fiber.StatusBadGateway, "wallpaper unavailable")
		}
		return c.JSON(image)
	})

	api.Get("/wallpaper/current", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"type": config.Settings.Get().WallpaperType,
			"url":  config.Settings.CurrentWallpaper(),
		})
	})

	api.Put("/wallpaper/custom", func(c *fiber.Ctx) error {
		var req customWallpaperRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		if err := config.Settings.SetCustomWallpaper(c.UserContext(), req.DataURL); err != nil {
			return err
		}
		config.Broadcaster.Broadcast(models.ChangeEvent{Kind: EventSettings, Data: config.Settings.Get()})
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerSettingsRoutes(api fiber.Router, config *ServerConfig) {
	api.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(config.Settings.Get())
	})

	api.Patch("/settings", func(c *fiber.Ctx) error {
		var patch settingsPatch
		if err := bindJSON(c, &patch); err != nil {
			return err
		}

		ctx := c.UserContext()
		s := config.Settings
		if patch.SearchEngine != nil {
			if err := s.SetSearchEngine(ctx, *patch.SearchEngine); err != nil {
				return err
			}
		}
		if patch.Language != nil {
			if err := s.SetLanguage(ctx, *patch.Language); err != nil {
				return err
			}
		}
		if patch.ShowClock != nil {
			if err := s.ToggleClock(ctx, *patch.ShowClock); err != nil {
				return err
			}
		}
		if patch.ShowDate != nil {
			if err := s.ToggleDate(ctx, *patch.ShowDate); err != nil {
				return err
			}
		}

		settings := s.Get()
		config.Broadcaster.Broadcast(models.ChangeEvent{Kind: EventSettings, Data: settings})
		return c.JSON(settings)
	})

	api.Put("/settings/wallpaper-type", func(c *fiber.Ctx) error {
		var req wallpaperTypeRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		if err := config.Settings.SetWallpaperType(c.UserContext(), req.Type); err != nil {
			return err
		}
		settings := config.Settings.Get()
		config.Broadcaster.Broadcast(models.ChangeEvent{Kind: EventSettings, Data: settings})
		return c.JSON(settings)
	})
}

func registerHotListRoutes(api fiber.Router, config *ServerConfig) {
	api.Get("/hotlist", func(c *fiber.Ctx) error {
		return c.JSON(config.HotList.Snapshot())
	})

	// The refresh outlives the request; fasthttp recycles the request context
	api.Post("/hotlist/refresh", func(c *fiber.Ctx) error {
		config.HotList.RefreshAll(context.Background())
		return c.SendStatus(fiber.StatusAccepted)
	})

	api.Post("/hotlist/:feed", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		force := c.QueryBool("force")

		var started bool
		switch c.Params("feed") {
		case string(dashboard.FeedGitHub):
			started = config.HotList.LoadGitHubTrending(ctx, parsePeriod(c), force)
		case string(dashboard.FeedZhihu):
			started = config.HotList.LoadZhihuHot(ctx, force)
		case string(dashboard.FeedV2ex):
			started = config.HotList.LoadV2exHot(ctx, force)
		default:
			return fiber.NewError(fiber.StatusNotFound, "unknown feed "+c.Params("feed"))
		}
		if !started {
			return c.Status(fiber.StatusConflict).JSON(config.HotList.Snapshot())
		}
		return c.JSON(config.HotList.Snapshot())
	})

	api.Get("/github", func(c *fiber.Ctx) error {
		return c.JSON(config.Feeds.GetGitHubTrending(c.UserContext(), parsePeriod(c), c.QueryBool("force")))
	})

	api.Get("/zhihu", func(c *fiber.Ctx) error {
		return c.JSON(config.Feeds.GetZhihuHot(c.UserContext(), c.QueryBool("force")))
	})

	api.Get("/v2ex", func(c *fiber.Ctx) error {
		return c.JSON(config.Feeds.GetV2exHot(c.UserContext(), c.QueryBool("force")))
	})
}

func registerWeatherRoutes(api fiber.Router, config *ServerConfig) {
	api.Get("/weather", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		lat, latOK := queryFloat(c, "lat")
		lon, lonOK := queryFloat(c, "lon")
		if !latOK || !lonOK {
			location, err := config.Locations.GetLocation(ctx)
			if err != nil {
				return err
			}
			if location == nil {
				return fiber.NewError(fiber.StatusBadRequest, "lat and lon are required when no location is saved")
			}
			lat, lon = location.Latitude, location.Longitude
		}

		weather := config.Feeds.GetWeather(ctx, lat, lon, c.QueryBool("force"))
		if weather == nil {
			return fiber.NewError(fiber.StatusBadGateway, "weather unavailable")
		}
		return c.JSON(fiber.Map{
			"weather": weather,
			"info":    feeds.WeatherInfoFor(weather.WeatherCode, config.Settings.Get().Language),
		})
	})

	api.Get("/weather/codes/:code", func(c *fiber.Ctx) error {
		code, err := strconv.Atoi(c.Params("code"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid weather code")
		}
		lang := models.Language(c.Query("lang", string(config.Settings.Get().Language)))
		return c.JSON(feeds.WeatherInfoFor(code, lang))
	})

	api.Get("/locations", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q is required")
		}
		locations, err := config.Feeds.FetchLocations(c.UserContext(), query)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "location search unavailable: "+err.Error())
		}
		return c.JSON(locations)
	})

	api.Get("/location", func(c *fiber.Ctx) error {
		location, err := config.Locations.GetLocation(c.UserContext())
		if err != nil {
			return err
		}
		if location == nil {
			return fiber.NewError(fiber.StatusNotFound, "no location saved")
		}
		return c.JSON(location)
	})

	api.Put("/location", func(c *fiber.Ctx) error {
		var location models.LocationData
		if err := bindJSON(c, &location); err != nil {
			return err
		}
		if err := config.Locations.SetLocation(c.UserContext(), location); err != nil {
			return err
		}
		return c.JSON(location)
	})
}

func registerLayoutRoutes(api fiber.Router, config *ServerConfig) {
	layout := config.Layout

	// Outside of edit mode every change is saved right away
	saveUnlessEditing := func(c *fiber.Ctx) error {
		if layout.IsEditing() {
			return c.JSON(layout.Get())
		}
		if err := layout.Save(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(layout.Get())
	}

	api.Get("/layout", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"layout":    layout.Get(),
			"editing":   layout.IsEditing(),
			"gridWidth": layout.GridWidth(),
		})
	})

	api.Get("/layout/visible", func(c *fiber.Ctx) error {
		return c.JSON(layout.VisibleWidgets())
	})

	api.Put("/layout", func(c *fiber.Ctx) error {
		var req models.LayoutConfig
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		if err := layout.Replace(c.UserContext(), req); err != nil {
			return err
		}
		return c.JSON(layout.Get())
	})

	api.Post("/layout/reset", func(c *fiber.Ctx) error {
		if err := layout.Reset(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(layout.Get())
	})

	api.Patch("/layout/widgets/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		var patch widgetPatch
		if err := bindJSON(c, &patch); err != nil {
			return err
		}

		if !lo.ContainsBy(layout.Get().Widgets, func(w models.Widget) bool { return w.ID == id }) {
			return fiber.NewError(fiber.StatusNotFound, "unknown widget "+id)
		}
		if patch.X != nil && patch.Y != nil {
			layout.UpdateWidgetPosition(id, *patch.X, *patch.Y)
		}
		if patch.W != nil && patch.H != nil {
			layout.UpdateWidgetSize(id, *patch.W, *patch.H)
		}
		return saveUnlessEditing(c)
	})

	api.Post("/layout/widgets/:id/toggle", func(c *fiber.Ctx) error {
		if !layout.ToggleWidgetVisibility(c.Params("id")) {
			return fiber.NewError(fiber.StatusNotFound, "unknown widget "+c.Params("id"))
		}
		return saveUnlessEditing(c)
	})

	api.Post("/layout/edit", func(c *fiber.Ctx) error {
		layout.StartEditing()
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Delete("/layout/edit", func(c *fiber.Ctx) error {
		if err := layout.StopEditing(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(layout.Get())
	})

	api.Put("/layout/opacity", func(c *fiber.Ctx) error {
		var req opacityRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		layout.UpdateWidgetOpacity(*req.Opacity)
		return saveUnlessEditing(c)
	})

	api.Put("/layout/container", func(c *fiber.Ctx) error {
		var req containerRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		layout.SetContainerWidth(req.Width)
		return c.JSON(fiber.Map{"gridWidth": layout.GridWidth()})
	})
}

func registerSearchRoutes(api fiber.Router, config *ServerConfig) {
	api.Get("/search/engines", func(c *fiber.Ctx) error {
		return c.JSON(search.Engines)
	})

	api.Get("/ai/platforms", func(c *fiber.Ctx) error {
		return c.JSON(search.AIPlatforms)
	})

	api.Get("/search", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q is required")
		}
		engine := c.Query("engine", config.Settings.Get().SearchEngine)
		return c.Redirect(search.BuildSearchURL(engine, query), fiber.StatusFound)
	})

	api.Get("/ai", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q is required")
		}
		return c.Redirect(search.BuildAIURL(c.Query("platform"), query), fiber.StatusFound)
	})
}
