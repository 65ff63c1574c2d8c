package feeds

import (
	"context"
	"strconv"

	"newtab/models"
	"newtab/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const v2exCacheKey = "v2exHot"

// V2exFallback is shown when neither the primary API nor the mirror answers.
// It is never cached.
var V2exFallback = []models.V2exTopic{
	{Title: "V2EX 热门话题 - 当前无法访问", URL: "https://v2ex.com", Replies: 0, Node: "公告"},
	{Title: "请检查网络连接或稍后重试", URL: "https://v2ex.com", Replies: 0, Node: "提示"},
}

type v2exTopic struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Replies int    `json:"replies"`
	Node    *struct {
		Title string `json:"title"`
	} `json:"node"`
}

func (s *Service) fetchV2exFrom(ctx context.Context, endpoint string, primary bool) ([]models.V2exTopic, error) {
	headers := map[string]string{}
	if primary {
		headers["Cache-Control"] = "no-cache"
		headers["Pragma"] = "no-cache"
	}

	// Timestamp defeats intermediate caches
	rawURL := endpoint + "?t=" + strconv.FormatInt(s.now().UnixMilli(), 10)

	var data []v2exTopic
	if err := s.client.getJSON(ctx, "v2ex", rawURL, headers, &data); err != nil {
		return nil, err
	}

	if len(data) > hotListSize {
		data = data[:hotListSize]
	}

	return lo.Map(data, func(topic v2exTopic, _ int) models.V2exTopic {
		node := "V2EX"
		if topic.Node != nil && topic.Node.Title != "" {
			node = topic.Node.Title
		}
		return models.V2exTopic{
			Title:   topic.Title,
			URL:     topic.URL,
			Replies: topic.Replies,
			Node:    node,
		}
	}), nil
}

// FetchV2exHot tries the primary API and, on any failure, the mirror once
func (s *Service) FetchV2exHot(ctx context.Context) ([]models.V2exTopic, error) {
	endpoints := lo.Compact([]string{s.endpoints.V2exPrimary, s.endpoints.V2exBackup})
	if len(endpoints) == 0 {
		return nil, ErrNoData
	}

	var topics []models.V2exTopic
	attempt := 0
	operation := func() error {
		endpoint := endpoints[attempt]
		primary := attempt == 0
		attempt++

		result, err := s.fetchV2exFrom(ctx, endpoint, primary)
		if err != nil {
			if attempt < len(endpoints) {
				log.WithFields(log.Fields{
					"feed":  "v2ex",
					"error": err,
					"next":  endpoints[attempt],
				}).Warn("V2EX primary API failed, trying backup")
			}
			return err
		}
		topics = result
		return nil
	}

	// One attempt per endpoint, no delay between them
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(len(endpoints)-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return topics, nil
}

// GetV2exHot returns cached or fresh hot topics. When every endpoint fails
// the fallback records are returned.
func (s *Service) GetV2exHot(ctx context.Context, force bool) []models.V2exTopic {
	topics, err := storage.Cached(ctx, s.storage, v2exCacheKey, force, s.FetchV2exHot, nonEmpty[models.V2exTopic])
	if err != nil {
		log.WithFields(log.Fields{"feed": "v2ex", "error": err}).Error("All V2EX APIs failed, using fallback data")
		return append([]models.V2exTopic(nil), V2exFallback...)
	}
	return topics
}
