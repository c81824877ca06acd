package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	xerrors "TubeDigest/internal/errors"
	"TubeDigest/internal/event"
	"TubeDigest/pkg/plugin"
)

const webhookEntryPoint = "tubedigest/processors/webhook"

func init() {
	plugin.Register(webhookEntryPoint, newWebhookProcessor)
}

// WebhookProcessor 在摘要生成后把结果 POST 到外部地址，用于
// 推送到聊天机器人或归档服务。
type WebhookProcessor struct {
	plugin.Base
	url        string
	authHeader string
	httpClient *http.Client
}

var _ plugin.Processor = (*WebhookProcessor)(nil)

func newWebhookProcessor(_ *event.Bus, cfg map[string]any) (plugin.Plugin, error) {
	info := plugin.Info{
		Name:        "webhook_uploader",
		Version:     "1.0.0",
		Description: "把生成的摘要推送到配置的 webhook 地址",
		Author:      "TubeDigest",
		Kind:        plugin.KindProcessor,
		EntryPoint:  webhookEntryPoint,
		ConfigSchema: map[string]any{
			"url":             "webhook 目标地址，必填",
			"auth_header":     "可选的 Authorization 头",
			"timeout_seconds": "HTTP 超时，默认 30",
		},
	}
	p := &WebhookProcessor{Base: plugin.NewBase(info, cfg)}
	p.url = p.ConfigString("url", "")
	p.authHeader = p.ConfigString("auth_header", "")
	timeout := time.Duration(p.ConfigInt("timeout_seconds", 30)) * time.Second
	p.httpClient = &http.Client{Timeout: timeout}
	return p, nil
}

// Initialize 校验必填配置。
func (p *WebhookProcessor) Initialize() error {
	if p.url == "" {
		return xerrors.New(xerrors.CodeInitializationFailure, "webhook 插件缺少 url 配置")
	}
	return nil
}

// EventKinds 返回处理器订阅的事件类型。
func (p *WebhookProcessor) EventKinds() []event.Kind {
	return []event.Kind{event.KindSummaryCreated}
}

// Handle 实现 plugin.Processor。
func (p *WebhookProcessor) Handle(ctx context.Context, evt event.Event) error {
	summary, ok := evt.(*event.SummaryCreated)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"video_id":      summary.VideoID,
		"title":         summary.Info.Title,
		"uploader":      summary.Info.Uploader,
		"summary":       summary.Text,
		"style":         summary.Style,
		"length":        summary.Length,
		"word_count":    summary.WordCount,
		"artifact_path": summary.ArtifactPath,
		"generated_at":  summary.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodePluginFailure, err, "编码 webhook 负载失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return xerrors.Wrap(xerrors.CodePluginFailure, err, "构造 webhook 请求失败")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodePluginFailure, err, "调用 webhook 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodePluginFailure,
			fmt.Sprintf("webhook 返回非预期状态 %d: %s", resp.StatusCode, string(body)))
	}

	slog.Info("摘要已推送到 webhook", "video_id", summary.VideoID, "status", resp.StatusCode)
	return nil
}
