package feeds

import (
	"context"
	"encoding/json"
	"strings"

	"newtab/models"
	"newtab/storage"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	zhihuCacheKey    = "zhihuHot"
	zhihuQuestionURL = "https://www.zhihu.com/question/"
	hotListSize      = 10
)

// zhihuID accepts both numeric and string ids
type zhihuID string

func (id *zhihuID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	*id = zhihuID(strings.Trim(string(data), `"`))
	return nil
}

type zhihuResponse struct {
	Data []zhihuEntry `json:"data"`
}

type zhihuEntry struct {
	Target struct {
		ID    zhihuID `json:"id"`
		Title string  `json:"title"`
	} `json:"target"`
	DetailText string `json:"detail_text"`
}

var _ json.Unmarshaler = (*zhihuID)(nil)

func (s *Service) FetchZhihuHot(ctx context.Context) ([]models.ZhihuItem, error) {
	var data zhihuResponse
	if err := s.client.getJSON(ctx, "zhihu", s.endpoints.Zhihu, nil, &data); err != nil {
		return nil, err
	}
	if data.Data == nil {
		return nil, ErrNoData
	}

	entries := data.Data
	if len(entries) > hotListSize {
		entries = entries[:hotListSize]
	}

	return lo.Map(entries, func(entry zhihuEntry, _ int) models.ZhihuItem {
		hot := entry.DetailText
		if hot == "" {
			hot = "0"
		}
		return models.ZhihuItem{
			Title: entry.Target.Title,
			URL:   zhihuQuestionURL + string(entry.Target.ID),
			Hot:   hot,
		}
	}), nil
}

// GetZhihuHot returns cached or fresh hot questions. Failures yield an
// empty list.
func (s *Service) GetZhihuHot(ctx context.Context, force bool) []models.ZhihuItem {
	items, err := storage.Cached(ctx, s.storage, zhihuCacheKey, force, s.FetchZhihuHot, nonEmpty[models.ZhihuItem])
	if err != nil {
		log.WithFields(log.Fields{"feed": "zhihu", "error": err}).Error("Failed to fetch Zhihu hot")
		return []models.ZhihuItem{}
	}
	return items
}
