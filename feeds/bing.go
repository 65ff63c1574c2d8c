package feeds

import (
	"context"

	"newtab/models"
	"newtab/storage"

	log "github.com/sirupsen/logrus"
)

const bingCacheKey = "bingWallpaper"

type bingResponse struct {
	Images []struct {
		URL       string `json:"url"`
		Title     string `json:"title"`
		Copyright string `json:"copyright"`
	} `json:"images"`
}

// FetchBingWallpaper returns today's image, or nil when the archive is empty
func (s *Service) FetchBingWallpaper(ctx context.Context) (*models.BingImage, error) {
	var data bingResponse
	if err := s.client.getJSON(ctx, "bing", s.endpoints.Bing, nil, &data); err != nil {
		return nil, err
	}

	if len(data.Images) == 0 {
		return nil, nil
	}

	image := data.Images[0]
	return &models.BingImage{
		URL:       s.endpoints.BingBase + image.URL,
		Title:     image.Title,
		Copyright: image.Copyright,
	}, nil
}

// GetWallpaper returns the cached wallpaper or fetches it. Failures yield nil.
func (s *Service) GetWallpaper(ctx context.Context, force bool) *models.BingImage {
	image, err := storage.Cached(ctx, s.storage, bingCacheKey, force, s.FetchBingWallpaper, func(img *models.BingImage) bool {
		return img != nil
	})
	if err != nil {
		log.WithFields(log.Fields{"feed": "bing", "error": err}).Error("Failed to fetch Bing wallpaper")
		return nil
	}
	return image
}
