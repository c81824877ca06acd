package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"TubeDigest/internal/event"
)

// CLIClient 通过调用本地 whisper 命令行完成转录，适用于无 API Key
// 的离线场景。
type CLIClient struct {
	binary    string
	model     string
	outputDir string
	timeout   time.Duration
}

var _ Backend = (*CLIClient)(nil)

// CLIOption 定义 CLIClient 的可选配置。
type CLIOption func(*CLIClient)

// WithCLIBinary 指定 whisper 可执行文件。
func WithCLIBinary(binary string) CLIOption {
	return func(c *CLIClient) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithCLIModel 指定模型规格。
func WithCLIModel(model string) CLIOption {
	return func(c *CLIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithCLIOutputDir 指定转录中间产物目录。
func WithCLIOutputDir(dir string) CLIOption {
	return func(c *CLIClient) {
		if dir != "" {
			c.outputDir = dir
		}
	}
}

// WithCLITimeout 指定单次转录超时。
func WithCLITimeout(timeout time.Duration) CLIOption {
	return func(c *CLIClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewCLIClient 创建本地 whisper 客户端。
func NewCLIClient(opts ...CLIOption) *CLIClient {
	c := &CLIClient{
		binary:    "whisper",
		model:     "base",
		outputDir: "transcripts",
		timeout:   30 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name 返回后端标识。
func (c *CLIClient) Name() string { return "whisper_cli" }

// Transcribe 调用外部命令并解析 JSON 产物。
func (c *CLIClient) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建转录目录失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	command := exec.CommandContext(ctx, c.binary,
		audioPath,
		"--model", c.model,
		"--output_format", "json",
		"--output_dir", c.outputDir,
	)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("执行 whisper 失败: %v, stderr=%s", err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(c.outputDir, base+".json")
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("读取转录产物失败: %w", err)
	}

	var decoded struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Text       string  `json:"text"`
			AvgLogprob float64 `json:"avg_logprob"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("解析转录产物失败: %w", err)
	}

	segments := make([]event.TranscriptSegment, 0, len(decoded.Segments))
	for _, seg := range decoded.Segments {
		segments = append(segments, event.TranscriptSegment{
			Start:      time.Duration(seg.Start * float64(time.Second)),
			End:        time.Duration(seg.End * float64(time.Second)),
			Text:       strings.TrimSpace(seg.Text),
			Confidence: logprobConfidence(seg.AvgLogprob),
		})
	}

	return &Transcript{
		Text:     strings.TrimSpace(decoded.Text),
		Language: decoded.Language,
		Segments: segments,
	}, nil
}
