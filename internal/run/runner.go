package run

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"

	"TubeDigest/internal/downloader"
	xerrors "TubeDigest/internal/errors"
	"TubeDigest/pkg/plugin"
)

// Runner 消费队列中的运行 ID，认领后驱动插件管道处理对应的 URL。
// 同步事件总线上的阶段不是并发安全的共享体，单个 Runner 内部
// 串行执行管道，队列层的多个 worker 只是在等锁。
type Runner struct {
	store   Store
	manager *plugin.Manager
	tracker *Tracker
	logger  *slog.Logger

	mu sync.Mutex
}

// NewRunner 创建执行器。
func NewRunner(store Store, manager *plugin.Manager, tracker *Tracker, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, manager: manager, tracker: tracker, logger: logger}
}

// Handler 返回可注册到队列消费者的处理函数。
func (r *Runner) Handler() Handler {
	return r.process
}

// process 处理一条运行。队列层不重试，所有错误都落到存储的终态。
func (r *Runner) process(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claimed, err := r.store.Claim(ctx, runID)
	if err != nil {
		if stdErrors.Is(err, ErrRunCompleted) || stdErrors.Is(err, ErrRunConflict) {
			r.logger.Info("跳过不可认领的运行", "run_id", runID, "error", err)
			return nil
		}
		r.logger.Error("认领运行失败", "run_id", runID, "error", err)
		return err
	}

	provider, err := r.manager.SelectProvider(claimed.URL)
	if err != nil {
		if stdErrors.Is(err, plugin.ErrNoProvider) {
			r.logger.Warn("没有可处理该 URL 的提供者插件", "run_id", runID, "url", claimed.URL)
			return r.store.MarkFailed(ctx, runID, xerrors.CodeNoProvider, "", err.Error())
		}
		return r.store.MarkFailed(ctx, runID, xerrors.CodePluginFailure, "", err.Error())
	}

	videoID := claimed.VideoID
	if videoID == "" {
		videoID = downloader.ExtractVideoID(claimed.URL)
	}
	r.tracker.Reset(videoID)

	r.logger.Info("开始处理运行",
		"run_id", runID,
		"url", claimed.URL,
		"video_id", videoID,
		"provider", provider.Info().Name,
	)
	if err := provider.Process(ctx, claimed.URL); err != nil {
		return r.store.MarkFailed(ctx, runID, xerrors.CodePluginFailure, "", err.Error())
	}

	outcome, ok := r.tracker.Outcome(videoID)
	if !ok {
		r.logger.Warn("管道未产生终态事件", "run_id", runID, "video_id", videoID)
		return r.store.MarkFailed(ctx, runID, CodeRunIncomplete, "", "管道未产生终态事件")
	}
	if !outcome.Succeeded {
		return r.store.MarkFailed(ctx, runID, xerrors.Code(outcome.Code), outcome.Stage, outcome.Message)
	}
	return r.store.MarkSucceeded(ctx, runID, outcome.Outcome)
}
