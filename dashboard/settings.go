package dashboard

import (
	"context"
	"sync"

	"newtab/models"
)

// SettingsStore is satisfied by *storage.Storage
type SettingsStore interface {
	GetSettings(ctx context.Context) models.Settings
	SetSettings(ctx context.Context, settings models.Settings) error
	GetWallpaper(ctx context.Context) string
	SetWallpaper(ctx context.Context, dataURL string) error
}

// WallpaperSource is satisfied by *feeds.Service
type WallpaperSource interface {
	GetWallpaper(ctx context.Context, force bool) *models.BingImage
}

// Settings holds the user preferences and the wallpaper currently in use.
// The custom wallpaper data URL lives in the local partition only; it is
// far too large for the sync quota.
type Settings struct {
	mu         sync.RWMutex
	store      SettingsStore
	wallpapers WallpaperSource
	settings   models.Settings
	bing       *models.BingImage
	customData string
}

func NewSettings(store SettingsStore, wallpapers WallpaperSource, defaults models.Settings) *Settings {
	return &Settings{
		store:      store,
		wallpapers: wallpapers,
		settings:   defaults,
	}
}

// Load reads the saved settings, the Bing wallpaper when it is in use and
// the custom wallpaper data
func (s *Settings) Load(ctx context.Context) models.Settings {
	saved := s.store.GetSettings(ctx)

	s.mu.Lock()
	s.settings = saved
	s.mu.Unlock()

	if saved.WallpaperType == models.WallpaperBing {
		s.LoadBingWallpaper(ctx)
	}

	customData := s.store.GetWallpaper(ctx)
	s.mu.Lock()
	s.customData = customData
	s.mu.Unlock()

	return saved
}

func (s *Settings) LoadBingWallpaper(ctx context.Context) *models.BingImage {
	image := s.wallpapers.GetWallpaper(ctx, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bing = image
	return image
}

func (s *Settings) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Settings) BingWallpaper() *models.BingImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bing
}

func (s *Settings) Save(ctx context.Context) error {
	return s.store.SetSettings(ctx, s.Get())
}

func (s *Settings) update(ctx context.Context, fn func(*models.Settings)) error {
	s.mu.Lock()
	fn(&s.settings)
	s.mu.Unlock()
	return s.Save(ctx)
}

func (s *Settings) SetWallpaperType(ctx context.Context, wallpaperType models.WallpaperType) error {
	if err := s.update(ctx, func(settings *models.Settings) { settings.WallpaperType = wallpaperType }); err != nil {
		return err
	}
	if wallpaperType == models.WallpaperBing {
		s.LoadBingWallpaper(ctx)
	}
	return nil
}

// SetCustomWallpaper stores the image data and switches to it
func (s *Settings) SetCustomWallpaper(ctx context.Context, dataURL string) error {
	if err := s.store.SetWallpaper(ctx, dataURL); err != nil {
		return err
	}
	s.mu.Lock()
	s.customData = dataURL
	s.mu.Unlock()

	return s.update(ctx, func(settings *models.Settings) { settings.WallpaperType = models.WallpaperCustom })
}

func (s *Settings) SetSearchEngine(ctx context.Context, engine string) error {
	return s.update(ctx, func(settings *models.Settings) { settings.SearchEngine = engine })
}

func (s *Settings) SetLanguage(ctx context.Context, lang models.Language) error {
	return s.update(ctx, func(settings *models.Settings) { settings.Language = lang })
}

func (s *Settings) ToggleClock(ctx context.Context, show bool) error {
	return s.update(ctx, func(settings *models.Settings) { settings.ShowClock = show })
}

func (s *Settings) ToggleDate(ctx context.Context, show bool) error {
	return s.update(ctx, func(settings *models.Settings) { settings.ShowDate = show })
}

// CurrentWallpaper is the custom image when selected and present,
// otherwise the Bing image URL, otherwise ""
func (s *Settings) CurrentWallpaper() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.WallpaperType == models.WallpaperCustom && s.customData != "" {
		return s.customData
	}
	if s.bing != nil {
		return s.bing.URL
	}
	return ""
}
