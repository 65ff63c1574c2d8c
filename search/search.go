// Package search builds outbound search and AI assistant URLs
package search

import (
	"net/url"
	"strings"

	"newtab/models"

	"github.com/samber/lo"
)

const placeholder = "{query}"

var Engines = []models.SearchEngine{
	{ID: "baidu", Name: "百度", URL: "https://www.baidu.com/s?wd={query}", Icon: "🔍"},
	{ID: "google", Name: "Google", URL: "https://www.google.com/search?q={query}", Icon: "🔍"},
	{ID: "bing", Name: "必应", URL: "https://www.bing.com/search?q={query}", Icon: "🔍"},
	{ID: "duckduckgo", Name: "DuckDuckGo", URL: "https://duckduckgo.com/?q={query}", Icon: "🔍"},
}

var AIPlatforms = []models.AIPlatform{
	{ID: "qwen", Name: "通义千问", URL: "https://tongyi.aliyun.com/qianwen/?chatId={query}", Icon: "🤖"},
	{ID: "gemini", Name: "Gemini", URL: "https://gemini.google.com/app?q={query}", Icon: "✨"},
	{ID: "chatgpt", Name: "ChatGPT", URL: "https://chat.openai.com/?q={query}", Icon: "💬"},
	{ID: "claude", Name: "Claude", URL: "https://claude.ai/new?q={query}", Icon: "🧠"},
	{ID: "kimi", Name: "Kimi", URL: "https://kimi.moonshot.cn/?q={query}", Icon: "🌙"},
}

// componentMarks undoes the escapes url.QueryEscape applies to characters
// encodeURIComponent leaves alone, and spells spaces as %20
var componentMarks = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// escape encodes query the way encodeURIComponent does
func escape(query string) string {
	return componentMarks.Replace(url.QueryEscape(query))
}

// IsEngine reports whether id names a known search engine
func IsEngine(id string) bool {
	_, ok := lo.Find(Engines, func(e models.SearchEngine) bool { return e.ID == id })
	return ok
}

// BuildSearchURL fills query into the engine's template. Unknown engines
// fall back to the first one.
func BuildSearchURL(engineID, query string) string {
	engine, ok := lo.Find(Engines, func(e models.SearchEngine) bool { return e.ID == engineID })
	if !ok {
		engine = Engines[0]
	}
	return strings.Replace(engine.URL, placeholder, escape(query), 1)
}

// BuildAIURL fills query into the platform's template. Unknown platforms
// fall back to the first one.
func BuildAIURL(platformID, query string) string {
	platform, ok := lo.Find(AIPlatforms, func(p models.AIPlatform) bool { return p.ID == platformID })
	if !ok {
		platform = AIPlatforms[0]
	}
	return strings.Replace(platform.URL, placeholder, escape(query), 1)
}
