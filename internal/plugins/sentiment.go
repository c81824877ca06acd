package plugins

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

const sentimentEntryPoint = "tubedigest/processors/sentiment"

func init() {
	plugin.Register(sentimentEntryPoint, newSentimentProcessor)
}

var defaultPositiveWords = []string{
	"good", "great", "excellent", "amazing", "wonderful", "fantastic",
	"love", "best", "awesome", "helpful", "clear", "insightful",
}

var defaultNegativeWords = []string{
	"bad", "terrible", "awful", "horrible", "worst", "hate",
	"boring", "confusing", "useless", "wrong", "poor", "disappointing",
}

// SentimentResult 是对一段文本的粗粒度情感判定。
type SentimentResult struct {
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
}

// SentimentProcessor 对转录与摘要文本做基于关键词的情感分析，
// 结果按视频 ID 缓存并写入日志。
type SentimentProcessor struct {
	plugin.Base
	mu       sync.Mutex
	results  map[string]SentimentResult
	positive map[string]struct{}
	negative map[string]struct{}
}

var _ plugin.Processor = (*SentimentProcessor)(nil)

func newSentimentProcessor(_ *event.Bus, cfg map[string]any) (plugin.Plugin, error) {
	info := plugin.Info{
		Name:        "sentiment_analyzer",
		Version:     "1.0.0",
		Description: "基于关键词的转录与摘要情感分析",
		Author:      "TubeDigest",
		Kind:        plugin.KindProcessor,
		EntryPoint:  sentimentEntryPoint,
	}
	p := &SentimentProcessor{
		Base:     plugin.NewBase(info, cfg),
		results:  make(map[string]SentimentResult),
		positive: wordSet(configWords(cfg, "positive_words", defaultPositiveWords)),
		negative: wordSet(configWords(cfg, "negative_words", defaultNegativeWords)),
	}
	return p, nil
}

// EventKinds 返回处理器订阅的事件类型。
func (p *SentimentProcessor) EventKinds() []event.Kind {
	return []event.Kind{event.KindTranscriptGenerated, event.KindSummaryCreated}
}

// Handle 实现 plugin.Processor。
func (p *SentimentProcessor) Handle(_ context.Context, evt event.Event) error {
	var videoID, text, source string
	switch e := evt.(type) {
	case *event.TranscriptGenerated:
		videoID, text, source = e.VideoID, e.Text, "transcript"
	case *event.SummaryCreated:
		videoID, text, source = e.VideoID, e.Text, "summary"
	default:
		return nil
	}

	result := p.analyze(text)
	p.mu.Lock()
	p.results[videoID] = result
	p.mu.Unlock()

	slog.Info("情感分析完成",
		"video_id", videoID,
		"source", source,
		"label", result.Label,
		"score", result.Score,
	)
	return nil
}

// Result 返回指定视频最近一次的情感判定。
func (p *SentimentProcessor) Result(videoID string) (SentimentResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	result, ok := p.results[videoID]
	return result, ok
}

func (p *SentimentProcessor) analyze(text string) SentimentResult {
	var positive, negative int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if _, ok := p.positive[word]; ok {
			positive++
			continue
		}
		if _, ok := p.negative[word]; ok {
			negative++
		}
	}

	result := SentimentResult{Positive: positive, Negative: negative, Label: "neutral"}
	total := positive + negative
	if total == 0 {
		return result
	}
	result.Score = float64(positive-negative) / float64(total)
	switch {
	case result.Score > 0.2:
		result.Label = "positive"
	case result.Score < -0.2:
		result.Label = "negative"
	}
	return result
}

func configWords(cfg map[string]any, key string, fallback []string) []string {
	raw, ok := cfg[key]
	if !ok {
		return fallback
	}
	items, ok := raw.([]any)
	if !ok {
		return fallback
	}
	words := make([]string, 0, len(items))
	for _, item := range items {
		if word, ok := item.(string); ok && word != "" {
			words = append(words, word)
		}
	}
	if len(words) == 0 {
		return fallback
	}
	return words
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[strings.ToLower(word)] = struct{}{}
	}
	return set
}
