package plugins

import (
	"context"
	"log/slog"
	"time"

	"TubeDigest/internal/downloader"
	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

const youtubeEntryPoint = "tubedigest/providers/youtube"

func init() {
	plugin.Register(youtubeEntryPoint, newYouTubeProvider)
}

// YouTubeProvider 处理 YouTube 视频 URL。Process 先探测视频元数据，
// 再发布发现事件驱动下游管道。
type YouTubeProvider struct {
	plugin.Base
	bus     *event.Bus
	backend *downloader.YouTube
}

var _ plugin.Provider = (*YouTubeProvider)(nil)

func newYouTubeProvider(bus *event.Bus, cfg map[string]any) (plugin.Plugin, error) {
	info := plugin.Info{
		Name:        "youtube_provider",
		Version:     "1.0.0",
		Description: "通过 yt-dlp 下载 YouTube 视频的音频与字幕",
		Author:      "TubeDigest",
		Kind:        plugin.KindProvider,
		EntryPoint:  youtubeEntryPoint,
	}
	p := &YouTubeProvider{Base: plugin.NewBase(info, cfg)}
	p.bus = bus
	p.backend = downloader.NewYouTube(downloader.NewRunner(runnerOptions(&p.Base)...))
	return p, nil
}

// Backend 返回底层下载后端，供管道的转录阶段获取字幕。
func (p *YouTubeProvider) Backend() downloader.Backend { return p.backend }

// SupportedURLPatterns 返回提供者声明的 URL 模式。
func (p *YouTubeProvider) SupportedURLPatterns() []string {
	return []string{`youtube\.com/watch`, `youtu\.be/`, `youtube\.com/embed/`}
}

// CanHandle 判断该 URL 是否为 YouTube 视频。
func (p *YouTubeProvider) CanHandle(url string) bool {
	return p.backend.CanHandle(url)
}

// Process 发布发现事件，同步事件总线保证返回时整条管道已执行完毕。
func (p *YouTubeProvider) Process(ctx context.Context, url string) error {
	info, err := p.backend.Info(ctx, url)
	if err != nil {
		slog.Warn("探测视频元数据失败，继续使用空元数据", "url", url, "error", err)
		p.bus.Publish(ctx, event.NewVideoDiscovered(url, "", p.Info().Name, nil))
		return nil
	}
	p.bus.Publish(ctx, event.NewVideoDiscovered(url, info.Title, p.Info().Name, &info))
	return nil
}

// runnerOptions 从插件配置读取 yt-dlp 的可调参数。
func runnerOptions(base *plugin.Base) []downloader.RunnerOption {
	opts := make([]downloader.RunnerOption, 0, 3)
	if binary := base.ConfigString("binary", ""); binary != "" {
		opts = append(opts, downloader.WithBinary(binary))
	}
	if dir := base.ConfigString("download_dir", ""); dir != "" {
		opts = append(opts, downloader.WithDestDir(dir))
	}
	if seconds := base.ConfigInt("timeout_seconds", 0); seconds > 0 {
		opts = append(opts, downloader.WithTimeout(time.Duration(seconds)*time.Second))
	}
	return opts
}
