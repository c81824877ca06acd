package downloader

import (
	"context"
	"regexp"

	"TubeDigest/internal/event"
)

var vimeoURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?vimeo\.com/\d+`)

// Vimeo 是基于 yt-dlp 的 Vimeo 下载后端。
type Vimeo struct {
	runner *Runner
}

// NewVimeo 创建 Vimeo 后端。
func NewVimeo(runner *Runner) *Vimeo {
	return &Vimeo{runner: runner}
}

var _ Backend = (*Vimeo)(nil)

// Name 返回后端标识。
func (b *Vimeo) Name() string { return "vimeo" }

// CanHandle 判断 URL 是否属于 Vimeo。
func (b *Vimeo) CanHandle(url string) bool {
	return vimeoURLPattern.MatchString(url)
}

// Info 探测视频元信息。
func (b *Vimeo) Info(ctx context.Context, url string) (event.VideoInfo, error) {
	meta, err := b.runner.probe(ctx, url)
	if err != nil {
		return event.VideoInfo{}, err
	}
	return meta.videoInfo(), nil
}

// DownloadAudio 下载音频并返回产物路径。
func (b *Vimeo) DownloadAudio(ctx context.Context, url string) (string, error) {
	return b.runner.downloadAudio(ctx, url, ExtractVideoID(url))
}

// DownloadCaptions 下载指定语言字幕，缺失时 found=false。
func (b *Vimeo) DownloadCaptions(ctx context.Context, url, lang string, preferManual bool) (string, bool, error) {
	return b.runner.downloadCaptions(ctx, url, ExtractVideoID(url), lang, preferManual)
}

// ListCaptions 列出可用字幕语言。
func (b *Vimeo) ListCaptions(ctx context.Context, url string) (Captions, error) {
	return b.runner.listCaptions(ctx, url)
}
