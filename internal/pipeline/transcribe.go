package pipeline

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"TubeDigest/internal/downloader"
	"TubeDigest/internal/errors"
	"TubeDigest/internal/event"
	"TubeDigest/internal/transcriber"
)

const transcriptionStageName = "transcription_stage"

// 转录方式。
const (
	MethodWhisper  = "whisper"
	MethodCaptions = "captions"
)

// TranscriptionConfig 描述转录阶段的行为。
type TranscriptionConfig struct {
	// Method 为 whisper 或 captions。
	Method string
	// Language 是 captions 方式下请求的字幕语言。
	Language string
	// PreferManual 为真时优先人工字幕，失败再回退自动字幕。
	PreferManual bool
}

// TranscriptionStage 监听下载完成事件，按配置走语音识别或平台
// 字幕。字幕不存在是显式结果而非异常：发布 TranscriptProcessingError
// 后正常返回。
type TranscriptionStage struct {
	bus      *event.Bus
	speech   transcriber.Backend
	backends *downloader.Registry
	cfg      TranscriptionConfig
	logger   *slog.Logger
}

var _ Stage = (*TranscriptionStage)(nil)

// NewTranscriptionStage 创建转录阶段。speech 在 captions 方式下可以为 nil。
func NewTranscriptionStage(bus *event.Bus, speech transcriber.Backend, backends *downloader.Registry, cfg TranscriptionConfig, logger *slog.Logger) *TranscriptionStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Method == "" {
		cfg.Method = MethodWhisper
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &TranscriptionStage{bus: bus, speech: speech, backends: backends, cfg: cfg, logger: logger}
}

// Name 返回阶段标识。
func (s *TranscriptionStage) Name() string { return transcriptionStageName }

// EventKinds 返回阶段订阅的事件类型。
func (s *TranscriptionStage) EventKinds() []event.Kind {
	return []event.Kind{event.KindVideoDownloaded}
}

// Handle 处理一条下载完成事件。
func (s *TranscriptionStage) Handle(ctx context.Context, evt event.Event) error {
	downloaded, ok := evt.(*event.VideoDownloaded)
	if !ok {
		return nil
	}
	start := time.Now()

	var result *transcriber.Transcript
	var err error
	switch s.cfg.Method {
	case MethodCaptions:
		result, err = s.fromCaptions(ctx, downloaded)
		if err == nil && result == nil {
			// 字幕缺失已作为显式结果发布过错误事件
			return nil
		}
	default:
		result, err = s.fromSpeech(ctx, downloaded)
	}
	if err != nil {
		return s.fail(ctx, downloaded.VideoID, errors.Wrap(errors.CodeTranscriptionFailure, err, "转录失败"))
	}
	if strings.TrimSpace(result.Text) == "" {
		return s.fail(ctx, downloaded.VideoID, errors.New(errors.CodeTranscriptionFailure, "转录结果为空"))
	}

	s.logger.Info("转录完成",
		"video_id", downloaded.VideoID,
		"method", s.cfg.Method,
		"language", result.Language,
		"segments", len(result.Segments),
	)
	s.bus.Publish(ctx, event.NewTranscriptGenerated(
		downloaded.VideoID, result.Text, result.Language, result.LanguageConfidence,
		result.Segments, s.cfg.Method, downloaded.Info, time.Since(start),
		event.WithSource(transcriptionStageName),
	))
	return nil
}

func (s *TranscriptionStage) fromSpeech(ctx context.Context, downloaded *event.VideoDownloaded) (*transcriber.Transcript, error) {
	if s.speech == nil {
		return nil, errors.New(errors.CodeInitializationFailure, "未配置语音识别后端")
	}
	return s.speech.Transcribe(ctx, downloaded.AudioPath)
}

// fromCaptions 返回 (nil, nil) 表示字幕缺失且已发布显式错误事件。
func (s *TranscriptionStage) fromCaptions(ctx context.Context, downloaded *event.VideoDownloaded) (*transcriber.Transcript, error) {
	backend, found := s.backends.Resolve(downloaded.URL)
	if !found {
		return nil, errors.New(errors.CodeTranscriptionFailure, "没有可获取字幕的下载后端")
	}

	path, found, err := backend.DownloadCaptions(ctx, downloaded.URL, s.cfg.Language, s.cfg.PreferManual)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Info("字幕不可用", "video_id", downloaded.VideoID, "language", s.cfg.Language)
		s.bus.Publish(ctx, event.NewTranscriptProcessingError(
			downloaded.VideoID, string(errors.CodeNoCaptions),
			"请求的语言没有可用字幕: "+s.cfg.Language,
			event.WithSource(transcriptionStageName),
		))
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, segments := transcriber.ParseSRT(string(raw))
	return &transcriber.Transcript{
		Text:               text,
		Language:           s.cfg.Language,
		LanguageConfidence: 1,
		Segments:           segments,
	}, nil
}

func (s *TranscriptionStage) fail(ctx context.Context, videoID string, err *errors.Error) error {
	s.logger.Warn("转录阶段失败", "video_id", videoID, "error", err)
	s.bus.Publish(ctx, event.NewTranscriptProcessingError(
		videoID, string(err.Code()), err.Error(),
		event.WithSource(transcriptionStageName),
	))
	return err
}
