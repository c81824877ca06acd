package run

import (
	"context"

	xerrors "TubeDigest/internal/errors"
)

// Store 抽象了运行状态的持久化接口。
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Claim(ctx context.Context, id string) (*Run, error)
	MarkSucceeded(ctx context.Context, id string, outcome Outcome) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, stage, lastError string) error
	List(ctx context.Context, opts ListOptions) ([]*Run, error)
	Stats(ctx context.Context, opts ListOptions) (RunStats, error)
	Close() error
}
