package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TubeDigest/internal/event"
)

const (
	defaultAPIBaseURL = "https://api.openai.com/v1"
	defaultAPIModel   = "whisper-1"
	defaultAPITimeout = 5 * time.Minute
)

// APIConfig 描述调用 OpenAI Audio Transcriptions API 所需的信息。
type APIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// APIClient 通过 HTTP 调用 Whisper API 完成转录。
type APIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Backend = (*APIClient)(nil)

// NewAPIClient 根据配置创建 Whisper API 客户端。
func NewAPIClient(cfg APIConfig) (*APIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAPIModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	return &APIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name 返回后端标识。
func (c *APIClient) Name() string { return "whisper_api" }

// Transcribe 上传音频文件并解析 verbose_json 响应。
func (c *APIClient) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("构建上传表单失败: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("写入音频数据失败: %w", err)
	}
	_ = writer.WriteField("model", c.model)
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭上传表单失败: %w", err)
	}

	endpoint := c.baseURL + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("构建 Whisper 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求 Whisper API 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("Whisper API 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
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
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析 Whisper 响应失败: %w", err)
	}
	if strings.TrimSpace(decoded.Text) == "" {
		return nil, errors.New("Whisper 响应文本为空")
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

// logprobConfidence 把平均对数概率映射到 (0,1] 区间。
func logprobConfidence(avgLogprob float64) float64 {
	if avgLogprob >= 0 {
		return 1
	}
	return math.Exp(avgLogprob)
}
