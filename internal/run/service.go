package run

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TubeDigest/internal/downloader"
	xerrors "TubeDigest/internal/errors"
	"TubeDigest/pkg/logger"
)

// SubmitRequest 描述一次运行提交。ID 为空时自动生成。
type SubmitRequest struct {
	ID       string
	URL      string
	Metadata map[string]any
}

// BatchReport 汇总一批 URL 的处理结局。
type BatchReport struct {
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	FailedURLs []string `json:"failed_urls,omitempty"`
}

// Service 负责运行的创建与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造运行服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 创建一个新的运行并推送到队列。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Run, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, xerrors.New(CodeRunValidation, "运行 URL 不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "运行服务未初始化")
	}

	runID := strings.TrimSpace(req.ID)
	if runID != "" {
		run, err := s.store.Get(ctx, runID)
		if err == nil {
			return run, nil
		}
		if !stdErrors.Is(err, ErrRunNotFound) {
			return nil, err
		}
	} else {
		runID = uuid.NewString()
	}

	run := &Run{
		ID:       runID,
		URL:      req.URL,
		VideoID:  downloader.ExtractVideoID(req.URL),
		Metadata: cloneMetadata(req.Metadata),
		Status:   StatusPending,
	}
	if err := s.store.Create(ctx, run); err != nil {
		if stdErrors.Is(err, ErrRunConflict) {
			existing, getErr := s.store.Get(ctx, runID)
			if getErr == nil {
				return existing, nil
			}
			if !stdErrors.Is(getErr, ErrRunNotFound) {
				return nil, getErr
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, runID); err != nil {
		logger.L().Error("运行入队失败", slog.Any("error", err), slog.String("run_id", runID))
		wrapped := xerrors.Wrap(CodeRunPublish, err, "发布运行到队列失败")
		_ = s.store.MarkFailed(ctx, runID, CodeRunPublish, "", wrapped.Error())
		return nil, wrapped
	}
	logger.Audit().Info("运行入队成功",
		slog.String("run_id", runID),
		slog.String("url", run.URL),
		slog.String("video_id", run.VideoID),
	)
	return run, nil
}

// SubmitAll 依次提交一批 URL 并等待全部完成，返回批处理报表。
// 单个 URL 的失败不会中断批次。
func (s *Service) SubmitAll(ctx context.Context, urls []string, interval time.Duration) (BatchReport, error) {
	report := BatchReport{Total: len(urls)}
	for _, url := range urls {
		run, err := s.Submit(ctx, SubmitRequest{URL: url})
		if err != nil {
			report.Failed++
			report.FailedURLs = append(report.FailedURLs, url)
			continue
		}
		final, err := s.WaitUntilCompleted(ctx, run.ID, interval)
		if err != nil {
			return report, err
		}
		if final.Status == StatusSucceeded {
			report.Succeeded++
		} else {
			report.Failed++
			report.FailedURLs = append(report.FailedURLs, url)
		}
	}
	return report, nil
}

// Get 返回指定运行的状态。
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "运行存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的运行列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "运行存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.List(ctx, options)
}

// Stats 返回符合过滤条件的运行统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (RunStats, error) {
	if s.store == nil {
		return RunStats{}, xerrors.New(xerrors.CodeInitializationFailure, "运行存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.Stats(ctx, options)
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WaitUntilCompleted 在指定超时时间内轮询运行状态。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Run, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.Status == StatusSucceeded || run.Status == StatusFailed {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
