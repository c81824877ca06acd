package downloader

import (
	"context"
	"regexp"

	"TubeDigest/internal/event"
)

var youtubeURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/(?:watch\?v=|embed/)|youtu\.be/)`)

// YouTube 是基于 yt-dlp 的 YouTube 下载后端。
type YouTube struct {
	runner *Runner
}

// NewYouTube 创建 YouTube 后端。
func NewYouTube(runner *Runner) *YouTube {
	return &YouTube{runner: runner}
}

var _ Backend = (*YouTube)(nil)

// Name 返回后端标识。
func (b *YouTube) Name() string { return "youtube" }

// CanHandle 判断 URL 是否属于 YouTube。
func (b *YouTube) CanHandle(url string) bool {
	return youtubeURLPattern.MatchString(url)
}

// Info 探测视频元信息。
func (b *YouTube) Info(ctx context.Context, url string) (event.VideoInfo, error) {
	meta, err := b.runner.probe(ctx, url)
	if err != nil {
		return event.VideoInfo{}, err
	}
	return meta.videoInfo(), nil
}

// DownloadAudio 下载音频并返回产物路径。
func (b *YouTube) DownloadAudio(ctx context.Context, url string) (string, error) {
	return b.runner.downloadAudio(ctx, url, ExtractVideoID(url))
}

// DownloadCaptions 下载指定语言字幕，缺失时 found=false。
func (b *YouTube) DownloadCaptions(ctx context.Context, url, lang string, preferManual bool) (string, bool, error) {
	return b.runner.downloadCaptions(ctx, url, ExtractVideoID(url), lang, preferManual)
}

// ListCaptions 列出可用字幕语言。
func (b *YouTube) ListCaptions(ctx context.Context, url string) (Captions, error) {
	return b.runner.listCaptions(ctx, url)
}
