package transcriber

import (
	"context"

	"TubeDigest/internal/event"
)

// Transcript 是转录后端的统一输出。
type Transcript struct {
	Text               string
	Language           string
	LanguageConfidence float64
	Segments           []event.TranscriptSegment
}

// Backend 定义语音转文字后端契约。
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}
