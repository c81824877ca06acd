package run

import (
	xerrors "TubeDigest/internal/errors"
)

// Status 表示一次管道运行在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome 保存一次成功运行的摘要产物信息。
type Outcome struct {
	ArtifactPath string `json:"artifact_path"`
	WordCount    int    `json:"word_count"`
	Model        string `json:"model"`
	Style        string `json:"style"`
}

// Run 描述一个输入 URL 的完整管道处理过程。失败是终态：
// 系统不做任何自动重试。
type Run struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	VideoID   string         `json:"video_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    Status         `json:"status"`
	Stage     string         `json:"stage,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Result    *Outcome       `json:"result,omitempty"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

var (
	// ErrRunNotFound 表示指定的运行记录不存在。
	ErrRunNotFound = xerrors.New(CodeRunNotFound, "run not found")
	// ErrRunConflict 表示运行记录在当前状态下无法进行所请求的操作。
	ErrRunConflict = xerrors.New(CodeRunConflict, "run conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrRunCompleted 表示运行已经成功完成。
	ErrRunCompleted = xerrors.New(CodeRunCompleted, "run already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
)

const (
	CodeRunNotFound   xerrors.Code = "RUN_NOT_FOUND"
	CodeRunConflict   xerrors.Code = "RUN_CONFLICT"
	CodeRunCompleted  xerrors.Code = "RUN_COMPLETED"
	CodeRunValidation xerrors.Code = "RUN_VALIDATION_FAILED"
	CodeRunPublish    xerrors.Code = "RUN_PUBLISH_FAILED"
	CodeRunIncomplete xerrors.Code = "RUN_INCOMPLETE"
)

func init() {
	xerrors.Register(CodeRunNotFound, xerrors.Attributes{
		Message:   "run not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunConflict, xerrors.Attributes{
		Message:   "run conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunCompleted, xerrors.Attributes{
		Message:   "run already completed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunValidation, xerrors.Attributes{
		Message:   "run validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRunPublish, xerrors.Attributes{
		Message:   "failed to publish run",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeRunIncomplete, xerrors.Attributes{
		Message:   "pipeline produced no terminal event",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
}

// IsValidStatus 检查给定的状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}

func cloneRun(r *Run) *Run {
	clone := *r
	if r.Result != nil {
		resultCopy := *r.Result
		clone.Result = &resultCopy
	}
	clone.Metadata = cloneMetadata(r.Metadata)
	return &clone
}

func outcomePresent(r *Run) bool {
	if r == nil || r.Result == nil {
		return false
	}
	result := r.Result
	return result.ArtifactPath != "" || result.Model != "" || result.Style != "" || result.WordCount > 0
}
