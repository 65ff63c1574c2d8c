package feeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"newtab/db"
	"newtab/feeds"
	"newtab/models"
	"newtab/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service *feeds.Service
	storage *storage.Storage
	server  *httptest.Server
	hits    map[string]*int32
}

// newFixture serves handlers keyed by path from one httptest server and
// points every endpoint at it
func newFixture(t *testing.T, handlers map[string]http.HandlerFunc) *fixture {
	t.Helper()

	hits := map[string]*int32{}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		counter := new(int32)
		hits[path] = counter
		h := handler
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(counter, 1)
			h(w, r)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "feeds.db")
	require.NoError(t, db.Migrate(dbPath))
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := storage.New(database.Sync(), database.Local())
	client := feeds.NewClient(feeds.ClientConfig{UserAgent: "newtab-test", Timeout: 2 * time.Second})
	service := feeds.NewService(client, store, feeds.Endpoints{
		Bing:        server.URL + "/bing",
		BingBase:    "https://www.bing.com",
		GitHub:      server.URL + "/github",
		Zhihu:       server.URL + "/zhihu",
		V2exPrimary: server.URL + "/v2ex-primary",
		V2exBackup:  server.URL + "/v2ex-backup",
		Geocoding:   server.URL + "/geocoding",
		Forecast:    server.URL + "/forecast",
	}, feeds.WithClock(func() time.Time { return fixedNow }), feeds.WithForecastDays(2))

	return &fixture{service: service, storage: store, server: server, hits: hits}
}

func (f *fixture) count(path string) int32 {
	if c, ok := f.hits[path]; ok {
		return atomic.LoadInt32(c)
	}
	return 0
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func statusHandler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func TestBingWallpaper(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/bing": jsonHandler(`{"images":[{"url":"/th?id=OHR.Test.jpg","title":"Test","copyright":"© Someone"}]}`),
	})

	image := f.service.GetWallpaper(context.Background(), false)
	require.NotNil(t, image)
	assert.Equal(t, models.BingImage{
		URL:       "https://www.bing.com/th?id=OHR.Test.jpg",
		Title:     "Test",
		Copyright: "© Someone",
	}, *image)

	// Second call is served from the cache
	image = f.service.GetWallpaper(context.Background(), false)
	require.NotNil(t, image)
	assert.Equal(t, int32(1), f.count("/bing"))
}

func TestBingWallpaperFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "no images", handler: jsonHandler(`{"images":[]}`)},
		{name: "server error", handler: statusHandler(http.StatusInternalServerError)},
		{name: "invalid json", handler: jsonHandler(`<html>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]http.HandlerFunc{"/bing": tt.handler})
			assert.Nil(t, f.service.GetWallpaper(context.Background(), false))
		})
	}
}

func TestGitHubTrending(t *testing.T) {
	var query string
	f := newFixture(t, map[string]http.HandlerFunc{
		"/github": func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("q")
			assert.Equal(t, "stars", r.URL.Query().Get("sort"))
			assert.Equal(t, "desc", r.URL.Query().Get("order"))
			assert.Equal(t, "10", r.URL.Query().Get("per_page"))
			jsonHandler(`{"items":[
				{"name":"go","full_name":"golang/go","description":"The Go language","stargazers_count":120,"html_url":"https://github.com/golang/go","language":"Go"},
				{"name":"empty","full_name":"someone/empty","description":null,"stargazers_count":3,"html_url":"https://github.com/someone/empty","language":null}
			]}`)(w, r)
		},
	})

	repos := f.service.GetGitHubTrending(context.Background(), feeds.PeriodDay, false)
	assert.Equal(t, "created:>2026-10-18", query)
	assert.Equal(t, []models.GitHubRepo{
		{Name: "go", FullName: "golang/go", Description: "The Go language", Stars: 120, URL: "https://github.com/golang/go", Language: "Go"},
		{Name: "empty", FullName: "someone/empty", Description: "", Stars: 3, URL: "https://github.com/someone/empty", Language: "Unknown"},
	}, repos)

	// Cached per period
	f.service.GetGitHubTrending(context.Background(), feeds.PeriodDay, false)
	assert.Equal(t, int32(1), f.count("/github"))

	f.service.GetGitHubTrending(context.Background(), feeds.PeriodMonth, false)
	assert.Equal(t, "created:>2026-09-19", query)
	assert.Equal(t, int32(2), f.count("/github"))

	// force bypasses the cache
	f.service.GetGitHubTrending(context.Background(), feeds.PeriodDay, true)
	assert.Equal(t, int32(3), f.count("/github"))
}

func TestGitHubTrendingFailure(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/github": statusHandler(http.StatusForbidden),
	})

	repos := f.service.GetGitHubTrending(context.Background(), feeds.PeriodWeek, false)
	assert.NotNil(t, repos)
	assert.Empty(t, repos)

	_, err := f.service.FetchGitHubTrending(context.Background(), feeds.PeriodWeek)
	var statusErr *feeds.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		value    string
		expected feeds.Period
	}{
		{"day", feeds.PeriodDay},
		{"week", feeds.PeriodWeek},
		{"month", feeds.PeriodMonth},
		{"", feeds.PeriodDay},
		{"year", feeds.PeriodDay},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, feeds.ParsePeriod(tt.value))
		})
	}

	assert.Equal(t, "2026-10-12", feeds.PeriodWeek.Since(fixedNow).Format("2006-01-02"))
}

func TestZhihuHot(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/zhihu": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "newtab-test", r.Header.Get("User-Agent"))
			jsonHandler(`{"data":[
				{"target":{"id":123456,"title":"Question one"},"detail_text":"1024 万热度"},
				{"target":{"id":"654321","title":"Question two"}}
			]}`)(w, r)
		},
	})

	items := f.service.GetZhihuHot(context.Background(), false)
	assert.Equal(t, []models.ZhihuItem{
		{Title: "Question one", URL: "https://www.zhihu.com/question/123456", Hot: "1024 万热度"},
		{Title: "Question two", URL: "https://www.zhihu.com/question/654321", Hot: "0"},
	}, items)
}

func TestZhihuHotFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "missing data", handler: jsonHandler(`{"error":"unauthorized"}`)},
		{name: "server error", handler: statusHandler(http.StatusUnauthorized)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]http.HandlerFunc{"/zhihu": tt.handler})
			items := f.service.GetZhihuHot(context.Background(), false)
			assert.NotNil(t, items)
			assert.Empty(t, items)
		})
	}
}

func TestZhihuHotTruncatesToTen(t *testing.T) {
	body := `{"data":[`
	for i := 0; i < 15; i++ {
		if i > 0 {
			body += ","
		}
		body += `{"target":{"id":1,"title":"q"},"detail_text":"1"}`
	}
	body += `]}`

	f := newFixture(t, map[string]http.HandlerFunc{"/zhihu": jsonHandler(body)})
	assert.Len(t, f.service.GetZhihuHot(context.Background(), false), 10)
}

const v2exBody = `[
	{"title":"Topic one","url":"https://www.v2ex.com/t/1","replies":42,"node":{"title":"程序员"}},
	{"title":"Topic two","url":"https://www.v2ex.com/t/2","replies":7}
]`

func TestV2exHotPrimary(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/v2ex-primary": func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.URL.Query().Get("t"))
			assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
			jsonHandler(v2exBody)(w, r)
		},
		"/v2ex-backup": jsonHandler(`[]`),
	})

	topics := f.service.GetV2exHot(context.Background(), false)
	assert.Equal(t, []models.V2exTopic{
		{Title: "Topic one", URL: "https://www.v2ex.com/t/1", Replies: 42, Node: "程序员"},
		{Title: "Topic two", URL: "https://www.v2ex.com/t/2", Replies: 7, Node: "V2EX"},
	}, topics)
	assert.Equal(t, int32(0), f.count("/v2ex-backup"))
}

func TestV2exHotFallsBackToMirrorOnce(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/v2ex-primary": statusHandler(http.StatusBadGateway),
		"/v2ex-backup":  jsonHandler(v2exBody),
	})

	topics := f.service.GetV2exHot(context.Background(), false)
	require.Len(t, topics, 2)
	assert.Equal(t, "Topic one", topics[0].Title)
	assert.Equal(t, int32(1), f.count("/v2ex-primary"))
	assert.Equal(t, int32(1), f.count("/v2ex-backup"))

	// Mirror results are cached like any other
	f.service.GetV2exHot(context.Background(), false)
	assert.Equal(t, int32(1), f.count("/v2ex-primary"))
}

func TestV2exHotFallbackIsNotCached(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/v2ex-primary": statusHandler(http.StatusBadGateway),
		"/v2ex-backup":  statusHandler(http.StatusServiceUnavailable),
	})

	topics := f.service.GetV2exHot(context.Background(), false)
	assert.Equal(t, feeds.V2exFallback, topics)
	assert.Equal(t, int32(1), f.count("/v2ex-primary"))
	assert.Equal(t, int32(1), f.count("/v2ex-backup"))

	_, ok := storage.GetCached[[]models.V2exTopic](context.Background(), f.storage, "v2exHot")
	assert.False(t, ok)

	f.service.GetV2exHot(context.Background(), false)
	assert.Equal(t, int32(2), f.count("/v2ex-primary"))
}

func TestSearchLocation(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/geocoding": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "北京", r.URL.Query().Get("name"))
			assert.Equal(t, "5", r.URL.Query().Get("count"))
			assert.Equal(t, "zh", r.URL.Query().Get("language"))
			jsonHandler(`{"results":[{"name":"北京","admin1":"北京市","country":"中国","latitude":39.9075,"longitude":116.39723},{"name":"北京路","latitude":1,"longitude":2}]}`)(w, r)
		},
	})

	locations := f.service.SearchLocation(context.Background(), "北京")
	assert.Equal(t, []models.LocationData{
		{Name: "北京", Region: "北京市", Country: "中国", Latitude: 39.9075, Longitude: 116.39723},
		{Name: "北京路", Region: "", Country: "", Latitude: 1, Longitude: 2},
	}, locations)
}

func TestSearchLocationEmptyAndFailure(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/geocoding": jsonHandler(`{"generationtime_ms":0.5}`)})
	assert.Empty(t, f.service.SearchLocation(context.Background(), "nowhere"))

	f = newFixture(t, map[string]http.HandlerFunc{"/geocoding": statusHandler(http.StatusInternalServerError)})
	locations := f.service.SearchLocation(context.Background(), "nowhere")
	assert.NotNil(t, locations)
	assert.Empty(t, locations)
}

func TestWeather(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/forecast": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "39.9", r.URL.Query().Get("latitude"))
			assert.Equal(t, "116.4", r.URL.Query().Get("longitude"))
			assert.Equal(t, "2", r.URL.Query().Get("forecast_days"))
			jsonHandler(`{
				"current":{"temperature_2m":21.6,"relative_humidity_2m":40,"weather_code":2,"wind_speed_10m":11.5},
				"daily":{"time":["2026-10-19","2026-10-20"],"weather_code":[2,61],"temperature_2m_max":[23.1,19.0],"temperature_2m_min":[12.4,10.2]}
			}`)(w, r)
		},
	})

	weather := f.service.GetWeather(context.Background(), 39.9, 116.4, false)
	require.NotNil(t, weather)
	assert.Equal(t, models.WeatherData{
		Temperature: 22,
		Humidity:    40,
		WeatherCode: 2,
		WindSpeed:   11.5,
		Location:    "39.90, 116.40",
		Forecast: []models.DailyForecast{
			{Date: "2026-10-19", MaxTemp: 23.1, MinTemp: 12.4, WeatherCode: 2},
			{Date: "2026-10-20", MaxTemp: 19.0, MinTemp: 10.2, WeatherCode: 61},
		},
	}, *weather)

	f.service.GetWeather(context.Background(), 39.9, 116.4, false)
	assert.Equal(t, int32(1), f.count("/forecast"))
}

func TestWeatherFailure(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/forecast": jsonHandler(`{"latitude":1}`)})
	assert.Nil(t, f.service.GetWeather(context.Background(), 1, 2, false))

	f = newFixture(t, map[string]http.HandlerFunc{"/forecast": statusHandler(http.StatusBadRequest)})
	assert.Nil(t, f.service.GetWeather(context.Background(), 1, 2, false))
}

func TestWeatherInfoFor(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		lang     models.Language
		expected models.WeatherInfo
	}{
		{"clear zh", 0, models.LanguageChinese, models.WeatherInfo{Description: "晴朗", Icon: "☀️"}},
		{"clear en", 0, models.LanguageEnglish, models.WeatherInfo{Description: "Clear sky", Icon: "☀️"}},
		{"thunderstorm", 95, models.LanguageChinese, models.WeatherInfo{Description: "雷雨", Icon: "⛈️"}},
		{"unknown zh", 42, models.LanguageChinese, models.WeatherInfo{Description: "未知", Icon: "❓"}},
		{"unknown en", 42, models.LanguageEnglish, models.WeatherInfo{Description: "Unknown", Icon: "❓"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, feeds.WeatherInfoFor(tt.code, tt.lang))
		})
	}
}

func TestFetchByName(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/zhihu": jsonHandler(`{"data":[]}`)})

	assert.Equal(t, []string{"bing", "github", "v2ex", "zhihu"}, feeds.Names())

	payload, err := f.service.Fetch(context.Background(), "zhihu", false)
	require.NoError(t, err)
	assert.Equal(t, []models.ZhihuItem{}, payload)

	_, err = f.service.Fetch(context.Background(), "weibo", false)
	assert.Error(t, err)
}
