package dashboard

import (
	"context"
	"sync"

	"newtab/feeds"
	"newtab/models"

	log "github.com/sirupsen/logrus"
)

// RetryLaterMessage is shown for any feed that came back empty
const RetryLaterMessage = "获取失败，请稍后重试"

type Feed string

const (
	FeedGitHub Feed = "github"
	FeedZhihu  Feed = "zhihu"
	FeedV2ex   Feed = "v2ex"
)

// HotListSource is satisfied by *feeds.Service
type HotListSource interface {
	GetGitHubTrending(ctx context.Context, period feeds.Period, force bool) []models.GitHubRepo
	GetZhihuHot(ctx context.Context, force bool) []models.ZhihuItem
	GetV2exHot(ctx context.Context, force bool) []models.V2exTopic
}

type HotListSnapshot struct {
	GitHubRepos []models.GitHubRepo `json:"githubRepos"`
	ZhihuItems  []models.ZhihuItem  `json:"zhihuItems"`
	V2exTopics  []models.V2exTopic  `json:"v2exTopics"`
	Loading     map[Feed]bool       `json:"loading"`
	Error       map[Feed]string     `json:"error"`
}

// HotList holds the latest hot list of every feed together with its
// loading and error state
type HotList struct {
	mu       sync.RWMutex
	source   HotListSource
	repos    []models.GitHubRepo
	zhihu    []models.ZhihuItem
	v2ex     []models.V2exTopic
	loading  map[Feed]bool
	errors   map[Feed]string
	onChange func(HotListSnapshot)
}

func NewHotList(source HotListSource) *HotList {
	return &HotList{
		source:  source,
		repos:   []models.GitHubRepo{},
		zhihu:   []models.ZhihuItem{},
		v2ex:    []models.V2exTopic{},
		loading: map[Feed]bool{FeedGitHub: false, FeedZhihu: false, FeedV2ex: false},
		errors:  map[Feed]string{FeedGitHub: "", FeedZhihu: "", FeedV2ex: ""},
	}
}

// OnChange registers fn to be called after every finished load
func (h *HotList) OnChange(fn func(HotListSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

func (h *HotList) Snapshot() HotListSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *HotList) snapshotLocked() HotListSnapshot {
	loading := make(map[Feed]bool, len(h.loading))
	for k, v := range h.loading {
		loading[k] = v
	}
	errs := make(map[Feed]string, len(h.errors))
	for k, v := range h.errors {
		errs[k] = v
	}
	return HotListSnapshot{
		GitHubRepos: append([]models.GitHubRepo{}, h.repos...),
		ZhihuItems:  append([]models.ZhihuItem{}, h.zhihu...),
		V2exTopics:  append([]models.V2exTopic{}, h.v2ex...),
		Loading:     loading,
		Error:       errs,
	}
}

// loadFeed runs fetch unless a load of feed is already in flight. An empty
// result of a normal load keeps the previous list and records the
// retry-later error; a forced load always replaces the list.
// Returns false when the call was skipped.
func loadFeed[T any](ctx context.Context, h *HotList, feed Feed, force bool, fetch func(context.Context) []T, assign func([]T)) bool {
	h.mu.Lock()
	if h.loading[feed] {
		h.mu.Unlock()
		return false
	}
	h.loading[feed] = true
	h.errors[feed] = ""
	h.mu.Unlock()

	items := fetch(ctx)

	h.mu.Lock()
	if len(items) == 0 && !force {
		h.errors[feed] = RetryLaterMessage
		log.WithField("feed", feed).Warn("Hot list came back empty")
	} else {
		if items == nil {
			items = []T{}
		}
		assign(items)
	}
	h.loading[feed] = false
	snapshot := h.snapshotLocked()
	onChange := h.onChange
	h.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	return true
}

func (h *HotList) LoadGitHubTrending(ctx context.Context, period feeds.Period, force bool) bool {
	return loadFeed(ctx, h, FeedGitHub, force, func(ctx context.Context) []models.GitHubRepo {
		return h.source.GetGitHubTrending(ctx, period, force)
	}, func(repos []models.GitHubRepo) { h.repos = repos })
}

func (h *HotList) LoadZhihuHot(ctx context.Context, force bool) bool {
	return loadFeed(ctx, h, FeedZhihu, force, func(ctx context.Context) []models.ZhihuItem {
		return h.source.GetZhihuHot(ctx, force)
	}, func(items []models.ZhihuItem) { h.zhihu = items })
}

func (h *HotList) LoadV2exHot(ctx context.Context, force bool) bool {
	return loadFeed(ctx, h, FeedV2ex, force, func(ctx context.Context) []models.V2exTopic {
		return h.source.GetV2exHot(ctx, force)
	}, func(topics []models.V2exTopic) { h.v2ex = topics })
}

func (h *HotList) loadAll(ctx context.Context, force bool) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		h.LoadGitHubTrending(ctx, feeds.PeriodDay, force)
	}()
	go func() {
		defer wg.Done()
		h.LoadZhihuHot(ctx, force)
	}()
	go func() {
		defer wg.Done()
		h.LoadV2exHot(ctx, force)
	}()
	wg.Wait()
}

// LoadAll loads every feed concurrently and waits for all of them
func (h *HotList) LoadAll(ctx context.Context) {
	h.loadAll(ctx, false)
}

// RefreshAll force-loads every feed in the background. The returned channel
// is closed once all loads have finished.
func (h *HotList) RefreshAll(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		h.loadAll(ctx, true)
	}()
	return done
}
