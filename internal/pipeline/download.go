package pipeline

import (
	"context"
	"log/slog"
	"time"

	"TubeDigest/internal/downloader"
	"TubeDigest/internal/errors"
	"TubeDigest/internal/event"
)

const downloadStageName = "download_stage"

// DownloadStage 监听发现事件：解析下载后端、抽取音频、推导
// video-id，成功发布 VideoDownloaded，失败发布 VideoProcessingError
// 并终止该条目的管道。
type DownloadStage struct {
	bus      *event.Bus
	backends *downloader.Registry
	logger   *slog.Logger
}

var _ Stage = (*DownloadStage)(nil)

// NewDownloadStage 创建下载阶段。
func NewDownloadStage(bus *event.Bus, backends *downloader.Registry, logger *slog.Logger) *DownloadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadStage{bus: bus, backends: backends, logger: logger}
}

// Name 返回阶段标识。
func (s *DownloadStage) Name() string { return downloadStageName }

// EventKinds 返回阶段订阅的事件类型。
func (s *DownloadStage) EventKinds() []event.Kind {
	return []event.Kind{event.KindVideoDiscovered}
}

// Handle 处理一条发现事件。
func (s *DownloadStage) Handle(ctx context.Context, evt event.Event) error {
	discovered, ok := evt.(*event.VideoDiscovered)
	if !ok {
		return nil
	}

	videoID := downloader.ExtractVideoID(discovered.URL)
	start := time.Now()

	backend, found := s.backends.Resolve(discovered.URL)
	if !found {
		return s.fail(ctx, videoID, discovered.URL,
			errors.New(errors.CodeDownloadFailure, "没有可处理该 URL 的下载后端",
				errors.WithMetadata("url", discovered.URL)))
	}

	info := event.VideoInfo{}
	if discovered.Info != nil {
		info = *discovered.Info
	} else {
		probed, err := backend.Info(ctx, discovered.URL)
		if err != nil {
			return s.fail(ctx, videoID, discovered.URL,
				errors.Wrap(errors.CodeDownloadFailure, err, "探测视频元信息失败"))
		}
		info = probed
	}

	audioPath, err := backend.DownloadAudio(ctx, discovered.URL)
	if err != nil {
		return s.fail(ctx, videoID, discovered.URL,
			errors.Wrap(errors.CodeDownloadFailure, err, "下载音频失败"))
	}

	s.logger.Info("音频下载完成",
		"video_id", videoID,
		"backend", backend.Name(),
		"path", audioPath,
	)
	s.bus.Publish(ctx, event.NewVideoDownloaded(
		videoID, discovered.URL, audioPath, info, time.Since(start),
		event.WithSource(downloadStageName),
	))
	return nil
}

func (s *DownloadStage) fail(ctx context.Context, videoID, url string, err *errors.Error) error {
	s.logger.Warn("下载阶段失败", "video_id", videoID, "url", url, "error", err)
	s.bus.Publish(ctx, event.NewVideoProcessingError(
		videoID, url, string(err.Code()), err.Error(),
		event.WithSource(downloadStageName),
	))
	return err
}
