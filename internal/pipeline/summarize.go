package pipeline

import (
	"context"
	"log/slog"
	"time"

	"TubeDigest/internal/errors"
	"TubeDigest/internal/event"
	"TubeDigest/internal/output"
	"TubeDigest/internal/summarizer"
)

const summarizationStageName = "summarization_stage"

// SummaryConfig 描述摘要阶段的风格、篇幅与产物格式。
type SummaryConfig struct {
	Style  string
	Length string
	Format string
}

// SummarizationStage 监听转录完成事件，生成摘要并落盘产物。
// PDF 产物固定使用 structured 风格以保证可渲染的章节结构。
type SummarizationStage struct {
	bus     *event.Bus
	backend summarizer.Backend
	writer  *output.Writer
	cfg     SummaryConfig
	logger  *slog.Logger
}

var _ Stage = (*SummarizationStage)(nil)

// NewSummarizationStage 创建摘要阶段。
func NewSummarizationStage(bus *event.Bus, backend summarizer.Backend, writer *output.Writer, cfg SummaryConfig, logger *slog.Logger) *SummarizationStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Style == "" {
		cfg.Style = summarizer.StyleComprehensive
	}
	if cfg.Length == "" {
		cfg.Length = summarizer.LengthMedium
	}
	if cfg.Format == "" {
		cfg.Format = output.FormatMarkdown
	}
	if cfg.Format == output.FormatPDF && cfg.Style != summarizer.StyleStructured {
		logger.Info("PDF 产物强制使用 structured 风格", "requested_style", cfg.Style)
		cfg.Style = summarizer.StyleStructured
	}
	return &SummarizationStage{bus: bus, backend: backend, writer: writer, cfg: cfg, logger: logger}
}

// Name 返回阶段标识。
func (s *SummarizationStage) Name() string { return summarizationStageName }

// EventKinds 返回阶段订阅的事件类型。
func (s *SummarizationStage) EventKinds() []event.Kind {
	return []event.Kind{event.KindTranscriptGenerated}
}

// Handle 处理一条转录完成事件。
func (s *SummarizationStage) Handle(ctx context.Context, evt event.Event) error {
	transcript, ok := evt.(*event.TranscriptGenerated)
	if !ok {
		return nil
	}
	start := time.Now()

	result, err := s.backend.Summarize(ctx, transcript.Text, s.cfg.Style, s.cfg.Length)
	if err != nil {
		return s.fail(ctx, transcript.VideoID, errors.Wrap(errors.CodeSummaryFailure, err, "生成摘要失败"))
	}

	artifactPath, err := s.writer.Write(output.Artifact{
		VideoID:     transcript.VideoID,
		Style:       s.cfg.Style,
		Length:      s.cfg.Length,
		Summary:     result.Text,
		Info:        transcript.Info,
		GeneratedAt: time.Now().UTC(),
	}, s.cfg.Format)
	if err != nil {
		return s.fail(ctx, transcript.VideoID, errors.Wrap(errors.CodeArtifactFailure, err, "写入摘要产物失败"))
	}

	s.logger.Info("摘要生成完成",
		"video_id", transcript.VideoID,
		"style", s.cfg.Style,
		"length", s.cfg.Length,
		"artifact", artifactPath,
	)
	s.bus.Publish(ctx, event.NewSummaryCreated(
		transcript.VideoID, result.Text, s.cfg.Format, s.cfg.Style, s.cfg.Length,
		result.WordCount, result.Model, result.TokensUsed, artifactPath,
		transcript.Info, time.Since(start),
		event.WithSource(summarizationStageName),
	))
	return nil
}

func (s *SummarizationStage) fail(ctx context.Context, videoID string, err *errors.Error) error {
	s.logger.Warn("摘要阶段失败", "video_id", videoID, "error", err)
	s.bus.Publish(ctx, event.NewSummaryProcessingError(
		videoID, string(err.Code()), err.Error(),
		event.WithSource(summarizationStageName),
	))
	return err
}
