package plugins

import (
	"context"
	"log/slog"

	"TubeDigest/internal/downloader"
	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

const vimeoEntryPoint = "tubedigest/providers/vimeo"

func init() {
	plugin.Register(vimeoEntryPoint, newVimeoProvider)
}

// VimeoProvider 处理 Vimeo 视频 URL。
type VimeoProvider struct {
	plugin.Base
	bus     *event.Bus
	backend *downloader.Vimeo
}

var _ plugin.Provider = (*VimeoProvider)(nil)

func newVimeoProvider(bus *event.Bus, cfg map[string]any) (plugin.Plugin, error) {
	info := plugin.Info{
		Name:        "vimeo_provider",
		Version:     "1.0.0",
		Description: "通过 yt-dlp 下载 Vimeo 视频的音频与字幕",
		Author:      "TubeDigest",
		Kind:        plugin.KindProvider,
		EntryPoint:  vimeoEntryPoint,
	}
	p := &VimeoProvider{Base: plugin.NewBase(info, cfg)}
	p.bus = bus
	p.backend = downloader.NewVimeo(downloader.NewRunner(runnerOptions(&p.Base)...))
	return p, nil
}

// Backend 返回底层下载后端。
func (p *VimeoProvider) Backend() downloader.Backend { return p.backend }

// SupportedURLPatterns 返回提供者声明的 URL 模式。
func (p *VimeoProvider) SupportedURLPatterns() []string {
	return []string{`vimeo\.com/\d+`}
}

// CanHandle 判断该 URL 是否为 Vimeo 视频。
func (p *VimeoProvider) CanHandle(url string) bool {
	return p.backend.CanHandle(url)
}

// Process 发布发现事件，驱动下游管道。
func (p *VimeoProvider) Process(ctx context.Context, url string) error {
	info, err := p.backend.Info(ctx, url)
	if err != nil {
		slog.Warn("探测视频元数据失败，继续使用空元数据", "url", url, "error", err)
		p.bus.Publish(ctx, event.NewVideoDiscovered(url, "", p.Info().Name, nil))
		return nil
	}
	p.bus.Publish(ctx, event.NewVideoDiscovered(url, info.Title, p.Info().Name, &info))
	return nil
}
