package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"TubeDigest/internal/event"
)

// Captions 描述一个视频可用的字幕语言集合。
type Captions struct {
	Manual []string
	Auto   []string
}

// Backend 定义单个平台的下载后端契约。字幕缺失是显式结果
// (found=false)，不作为错误返回。
type Backend interface {
	Name() string
	CanHandle(url string) bool
	Info(ctx context.Context, url string) (event.VideoInfo, error)
	DownloadAudio(ctx context.Context, url string) (string, error)
	DownloadCaptions(ctx context.Context, url, lang string, preferManual bool) (path string, found bool, err error)
	ListCaptions(ctx context.Context, url string) (Captions, error)
}

// Registry 按注册顺序维护下载后端，解析时取第一个匹配项。
type Registry struct {
	backends []Backend
}

// NewRegistry 创建空的后端注册表。
func NewRegistry(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// Register 追加一个后端。
func (r *Registry) Register(backend Backend) {
	if backend != nil {
		r.backends = append(r.backends, backend)
	}
}

// Resolve 返回第一个声明可处理该 URL 的后端。
func (r *Registry) Resolve(url string) (Backend, bool) {
	for _, backend := range r.backends {
		if backend.CanHandle(url) {
			return backend, true
		}
	}
	return nil, false
}

var (
	youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]+)`)
	vimeoIDPattern   = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// ExtractVideoID 从 URL 提取平台规范 ID，无法识别时退化为
// URL 内容哈希的前缀，保证事件链仍有稳定的关联键。
func ExtractVideoID(url string) string {
	if m := youtubeIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := vimeoIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}
