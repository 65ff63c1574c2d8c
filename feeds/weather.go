package feeds

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"newtab/models"
	"newtab/storage"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const locationResultCount = 5

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current *struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily *struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weather_code"`
		MaxTemp     []float64 `json:"temperature_2m_max"`
		MinTemp     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FetchLocations looks up places matching query
func (s *Service) FetchLocations(ctx context.Context, query string) ([]models.LocationData, error) {
	q := url.Values{}
	q.Set("name", query)
	q.Set("count", strconv.Itoa(locationResultCount))
	q.Set("language", "zh")
	q.Set("format", "json")

	var data geocodingResponse
	if err := s.client.getJSON(ctx, "geocoding", s.endpoints.Geocoding+"?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}

	locations := make([]models.LocationData, 0, len(data.Results))
	for _, r := range data.Results {
		locations = append(locations, models.LocationData{
			Name:      r.Name,
			Region:    r.Admin1,
			Country:   r.Country,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return locations, nil
}

// SearchLocation is FetchLocations with failures answered by an empty list
func (s *Service) SearchLocation(ctx context.Context, query string) []models.LocationData {
	locations, err := s.FetchLocations(ctx, query)
	if err != nil {
		log.WithFields(log.Fields{"feed": "geocoding", "query": query, "error": err}).Error("Failed to search location")
		return []models.LocationData{}
	}
	return locations
}

// FetchWeather returns current conditions and the daily forecast at lat/lon
func (s *Service) FetchWeather(ctx context.Context, lat, lon float64) (*models.WeatherData, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(s.forecastDays))

	var data forecastResponse
	if err := s.client.getJSON(ctx, "weather", s.endpoints.Forecast+"?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	if data.Current == nil {
		return nil, nil
	}

	weather := &models.WeatherData{
		Temperature: int(math.Round(data.Current.Temperature)),
		Humidity:    data.Current.Humidity,
		WeatherCode: data.Current.WeatherCode,
		WindSpeed:   data.Current.WindSpeed,
		Location:    fmt.Sprintf("%.2f, %.2f", lat, lon),
		Forecast:    []models.DailyForecast{},
	}

	if daily := data.Daily; daily != nil {
		n := lo.Min([]int{len(daily.Time), len(daily.WeatherCode), len(daily.MaxTemp), len(daily.MinTemp)})
		for i := 0; i < n; i++ {
			weather.Forecast = append(weather.Forecast, models.DailyForecast{
				Date:        daily.Time[i],
				MaxTemp:     daily.MaxTemp[i],
				MinTemp:     daily.MinTemp[i],
				WeatherCode: daily.WeatherCode[i],
			})
		}
	}

	return weather, nil
}

// GetWeather returns cached or fresh weather for lat/lon. Failures yield nil.
func (s *Service) GetWeather(ctx context.Context, lat, lon float64, force bool) *models.WeatherData {
	key := fmt.Sprintf("weather_%.2f_%.2f", lat, lon)
	fetch := func(ctx context.Context) (*models.WeatherData, error) {
		return s.FetchWeather(ctx, lat, lon)
	}

	weather, err := storage.Cached(ctx, s.storage, key, force, fetch, func(w *models.WeatherData) bool {
		return w != nil
	})
	if err != nil {
		log.WithFields(log.Fields{"feed": "weather", "lat": lat, "lon": lon, "error": err}).Error("Failed to fetch weather")
		return nil
	}
	return weather
}
