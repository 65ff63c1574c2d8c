package feeds

import (
	"context"
	"net/url"
	"time"

	"newtab/models"
	"newtab/storage"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const githubCacheKey = "githubTrending"

// Period is the creation window for trending repositories
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps unknown values to PeriodDay
func ParsePeriod(value string) Period {
	switch Period(value) {
	case PeriodWeek, PeriodMonth:
		return Period(value)
	default:
		return PeriodDay
	}
}

// Since returns the start of the window ending at now
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -1)
	}
}

type githubSearchResponse struct {
	Items []githubItem `json:"items"`
}

type githubItem struct {
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Description     *string `json:"description"`
	StargazersCount int     `json:"stargazers_count"`
	HTMLURL         string  `json:"html_url"`
	Language        *string `json:"language"`
}

// FetchGitHubTrending searches for the most starred repositories created
// within period
func (s *Service) FetchGitHubTrending(ctx context.Context, period Period) ([]models.GitHubRepo, error) {
	created := "created:>" + period.Since(s.now().UTC()).Format("2006-01-02")

	q := url.Values{}
	q.Set("q", created)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", "10")

	var data githubSearchResponse
	if err := s.client.getJSON(ctx, "github", s.endpoints.GitHub+"?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	if data.Items == nil {
		return nil, ErrNoData
	}

	return lo.Map(data.Items, func(item githubItem, _ int) models.GitHubRepo {
		language := lo.FromPtrOr(item.Language, "")
		if language == "" {
			language = "Unknown"
		}
		return models.GitHubRepo{
			Name:        item.Name,
			FullName:    item.FullName,
			Description: lo.FromPtrOr(item.Description, ""),
			Stars:       item.StargazersCount,
			URL:         item.HTMLURL,
			Language:    language,
		}
	}), nil
}

// GetGitHubTrending returns cached or fresh trending repositories. Failures
// yield an empty list.
func (s *Service) GetGitHubTrending(ctx context.Context, period Period, force bool) []models.GitHubRepo {
	key := githubCacheKey + "_" + string(period)
	fetch := func(ctx context.Context) ([]models.GitHubRepo, error) {
		return s.FetchGitHubTrending(ctx, period)
	}

	repos, err := storage.Cached(ctx, s.storage, key, force, fetch, nonEmpty[models.GitHubRepo])
	if err != nil {
		log.WithFields(log.Fields{"feed": "github", "period": period, "error": err}).Error("Failed to fetch GitHub trending")
		return []models.GitHubRepo{}
	}
	return repos
}

func nonEmpty[T any](items []T) bool {
	return len(items) > 0
}
