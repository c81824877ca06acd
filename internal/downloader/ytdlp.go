package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"TubeDigest/internal/event"
)

// Runner 通过调用 yt-dlp 可执行文件完成元信息探测、音频下载与
// 字幕获取。所有平台后端共享同一个 Runner。
type Runner struct {
	binary  string
	destDir string
	timeout time.Duration
}

// RunnerOption 定义 Runner 的可选配置。
type RunnerOption func(*Runner)

// WithBinary 指定 yt-dlp 可执行文件路径。
func WithBinary(binary string) RunnerOption {
	return func(r *Runner) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithDestDir 指定下载产物目录。
func WithDestDir(dir string) RunnerOption {
	return func(r *Runner) {
		if dir != "" {
			r.destDir = dir
		}
	}
}

// WithTimeout 指定单次调用超时。
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewRunner 创建 yt-dlp 运行器。
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		binary:  "yt-dlp",
		destDir: "downloads",
		timeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// metadata 是 yt-dlp -J 输出中本系统关心的字段。
type metadata struct {
	ID                string                       `json:"id"`
	Title             string                       `json:"title"`
	Uploader          string                       `json:"uploader"`
	Duration          float64                      `json:"duration"`
	ViewCount         int64                        `json:"view_count"`
	Description       string                       `json:"description"`
	Language          string                       `json:"language"`
	Tags              []string                     `json:"tags"`
	Subtitles         map[string][]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string][]json.RawMessage `json:"automatic_captions"`
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	command := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("执行 yt-dlp 失败: %v, stderr=%s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// probe 获取视频元信息，不做任何下载。
func (r *Runner) probe(ctx context.Context, url string) (*metadata, error) {
	out, err := r.run(ctx, "-J", "--no-download", "--no-warnings", url)
	if err != nil {
		return nil, err
	}
	var meta metadata
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		return nil, fmt.Errorf("解析 yt-dlp 元信息失败: %w", err)
	}
	return &meta, nil
}

// downloadAudio 抽取音频并返回产物路径。
func (r *Runner) downloadAudio(ctx context.Context, url, videoID string) (string, error) {
	if err := os.MkdirAll(r.destDir, 0o755); err != nil {
		return "", fmt.Errorf("创建下载目录失败: %w", err)
	}
	target := filepath.Join(r.destDir, videoID+".mp3")
	_, err := r.run(ctx,
		"-x", "--audio-format", "mp3",
		"--no-playlist", "--no-warnings",
		"-o", filepath.Join(r.destDir, videoID+".%(ext)s"),
		url,
	)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("音频产物缺失 %s: %w", target, err)
	}
	return target, nil
}

// downloadCaptions 下载指定语言的字幕，manual 与 auto 各尝试一次。
// 字幕不存在返回 found=false 而不是错误。
func (r *Runner) downloadCaptions(ctx context.Context, url, videoID, lang string, preferManual bool) (string, bool, error) {
	if err := os.MkdirAll(r.destDir, 0o755); err != nil {
		return "", false, fmt.Errorf("创建下载目录失败: %w", err)
	}

	attempts := []string{"--write-subs", "--write-auto-subs"}
	if !preferManual {
		attempts = []string{"--write-auto-subs", "--write-subs"}
	}
	for _, flag := range attempts {
		_, err := r.run(ctx,
			flag,
			"--sub-langs", lang,
			"--sub-format", "srt",
			"--convert-subs", "srt",
			"--skip-download", "--no-warnings",
			"-o", filepath.Join(r.destDir, videoID+".%(ext)s"),
			url,
		)
		if err != nil {
			return "", false, err
		}
		path := filepath.Join(r.destDir, fmt.Sprintf("%s.%s.srt", videoID, lang))
		if _, err := os.Stat(path); err == nil {
			return path, true, nil
		}
	}
	return "", false, nil
}

// listCaptions 返回可用的人工与自动字幕语言集合。
func (r *Runner) listCaptions(ctx context.Context, url string) (Captions, error) {
	meta, err := r.probe(ctx, url)
	if err != nil {
		return Captions{}, err
	}
	return Captions{
		Manual: sortedKeys(meta.Subtitles),
		Auto:   sortedKeys(meta.AutomaticCaptions),
	}, nil
}

func sortedKeys(m map[string][]json.RawMessage) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *metadata) videoInfo() event.VideoInfo {
	return event.VideoInfo{
		Title:       m.Title,
		Duration:    time.Duration(m.Duration * float64(time.Second)),
		Uploader:    m.Uploader,
		ViewCount:   m.ViewCount,
		Description: m.Description,
		Language:    m.Language,
		Tags:        m.Tags,
	}
}
