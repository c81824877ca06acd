package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TubeDigest/internal/event"
)

// 支持的产物格式。
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatPDF      = "pdf"
)

// Artifact 是一次完整摘要的落盘内容。
type Artifact struct {
	VideoID     string
	Style       string
	Length      string
	Summary     string
	Info        event.VideoInfo
	GeneratedAt time.Time
}

// Writer 把摘要产物写入目录，文件名由 video-id、风格、篇幅与
// 格式决定。
type Writer struct {
	dir string
}

// NewWriter 创建产物写入器。
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "summaries"
	}
	return &Writer{dir: dir}
}

// ValidateFormat 校验格式标签。
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatMarkdown, FormatJSON, FormatPDF:
		return nil
	}
	return fmt.Errorf("未知输出格式: %s", format)
}

// Write 按指定格式写出产物并返回文件路径。
func (w *Writer) Write(artifact Artifact, format string) (string, error) {
	if err := ValidateFormat(format); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	if artifact.GeneratedAt.IsZero() {
		artifact.GeneratedAt = time.Now().UTC()
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s_%s.%s",
		artifact.VideoID, artifact.Style, artifact.Length, extension(format)))

	switch format {
	case FormatText:
		if err := os.WriteFile(path, []byte(renderText(artifact)), 0o644); err != nil {
			return "", fmt.Errorf("写入文本产物失败: %w", err)
		}
	case FormatMarkdown:
		if err := os.WriteFile(path, []byte(renderMarkdown(artifact)), 0o644); err != nil {
			return "", fmt.Errorf("写入 Markdown 产物失败: %w", err)
		}
	case FormatJSON:
		raw, err := renderJSON(artifact)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return "", fmt.Errorf("写入 JSON 产物失败: %w", err)
		}
	case FormatPDF:
		if err := renderPDF([]byte(renderMarkdown(artifact)), path); err != nil {
			return "", fmt.Errorf("写入 PDF 产物失败: %w", err)
		}
	}
	return path, nil
}

func extension(format string) string {
	switch format {
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "pdf"
	}
}

func renderText(a Artifact) string {
	var b strings.Builder
	b.WriteString("Video Summary\n")
	b.WriteString("=============\n\n")
	b.WriteString(fmt.Sprintf("Title: %s\n", a.Info.Title))
	b.WriteString(fmt.Sprintf("Uploader: %s\n", a.Info.Uploader))
	b.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(a.Info.Duration)))
	b.WriteString(fmt.Sprintf("Language: %s\n", a.Info.Language))
	b.WriteString(fmt.Sprintf("Summary length: %s\n\n", a.Length))
	b.WriteString(a.Summary)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n", a.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

func renderMarkdown(a Artifact) string {
	var b strings.Builder
	b.WriteString("# Video Summary\n\n")
	b.WriteString(fmt.Sprintf("**Title:** %s\n\n", a.Info.Title))
	b.WriteString(fmt.Sprintf("**Uploader:** %s\n\n", a.Info.Uploader))
	b.WriteString(fmt.Sprintf("**Duration:** %s\n\n", formatDuration(a.Info.Duration)))
	b.WriteString(fmt.Sprintf("**Language:** %s\n\n", a.Info.Language))
	b.WriteString(fmt.Sprintf("**Summary length:** %s\n\n", a.Length))
	b.WriteString(a.Summary)
	b.WriteString("\n\n---\n\n")
	b.WriteString(fmt.Sprintf("*Generated: %s*\n", a.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

func renderJSON(a Artifact) ([]byte, error) {
	doc := map[string]any{
		"video_id":       a.VideoID,
		"title":          a.Info.Title,
		"uploader":       a.Info.Uploader,
		"duration":       formatDuration(a.Info.Duration),
		"language":       a.Info.Language,
		"summary_style":  a.Style,
		"summary_length": a.Length,
		"summary":        a.Summary,
		"generated_at":   a.GeneratedAt.Format(time.RFC3339),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化 JSON 产物失败: %w", err)
	}
	return raw, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
