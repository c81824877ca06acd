package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind 表示事件类型标签，用于订阅与分发。
type Kind string

const (
	KindVideoDiscovered           Kind = "video_discovered"
	KindVideoDownloaded           Kind = "video_downloaded"
	KindTranscriptGenerated       Kind = "transcript_generated"
	KindSummaryCreated            Kind = "summary_created"
	KindVideoProcessingError      Kind = "video_processing_error"
	KindTranscriptProcessingError Kind = "transcript_processing_error"
	KindSummaryProcessingError    Kind = "summary_processing_error"
)

// Envelope 是所有事件共享的信封：唯一 ID、创建时间、来源标签与扩展元数据。
// 构造完成后不应再修改其中任何字段。
type Envelope struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Meta 返回信封本身，使所有嵌入 Envelope 的事件满足 Event 接口。
func (e Envelope) Meta() Envelope {
	return e
}

// EnvelopeOption 定义信封的可选配置。
type EnvelopeOption func(*Envelope)

// WithSource 设置事件来源标签。
func WithSource(source string) EnvelopeOption {
	return func(e *Envelope) {
		e.Source = source
	}
}

// WithMetadata 附加一条扩展元数据。
func WithMetadata(key string, value any) EnvelopeOption {
	return func(e *Envelope) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// NewEnvelope 生成一个带唯一 ID 和当前时间戳的信封。
func NewEnvelope(opts ...EnvelopeOption) Envelope {
	env := Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env
}

// Event 是所有管道事件的统一契约。
type Event interface {
	Kind() Kind
	Meta() Envelope
}

// VideoInfo 描述一个视频的结构化元信息。
type VideoInfo struct {
	Title       string        `json:"title,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Uploader    string        `json:"uploader,omitempty"`
	ViewCount   int64         `json:"view_count,omitempty"`
	Description string        `json:"description,omitempty"`
	Language    string        `json:"language,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// TranscriptSegment 表示转录文本中的一个定时片段。
type TranscriptSegment struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
}

// VideoDiscovered 表示 Provider 从 URL 识别出一个待处理视频。
type VideoDiscovered struct {
	Envelope
	URL      string     `json:"url"`
	Title    string     `json:"title,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Info     *VideoInfo `json:"video_info,omitempty"`
}

// NewVideoDiscovered 构造发现事件。
func NewVideoDiscovered(url, title, provider string, info *VideoInfo, opts ...EnvelopeOption) *VideoDiscovered {
	return &VideoDiscovered{
		Envelope: NewEnvelope(opts...),
		URL:      url,
		Title:    title,
		Provider: provider,
		Info:     info,
	}
}

// Kind 实现 Event 接口。
func (*VideoDiscovered) Kind() Kind { return KindVideoDiscovered }

// VideoDownloaded 表示音频下载完成。
type VideoDownloaded struct {
	Envelope
	VideoID          string        `json:"video_id"`
	URL              string        `json:"url"`
	AudioPath        string        `json:"audio_path"`
	Info             VideoInfo     `json:"video_info"`
	DownloadDuration time.Duration `json:"download_duration,omitempty"`
}

// NewVideoDownloaded 构造下载完成事件。
func NewVideoDownloaded(videoID, url, audioPath string, info VideoInfo, downloadDuration time.Duration, opts ...EnvelopeOption) *VideoDownloaded {
	return &VideoDownloaded{
		Envelope:         NewEnvelope(opts...),
		VideoID:          videoID,
		URL:              url,
		AudioPath:        audioPath,
		Info:             info,
		DownloadDuration: downloadDuration,
	}
}

// Kind 实现 Event 接口。
func (*VideoDownloaded) Kind() Kind { return KindVideoDownloaded }

// TranscriptGenerated 表示转录完成。Info 随事件向下游传递，
// 供摘要阶段写入产物文件头部。
type TranscriptGenerated struct {
	Envelope
	VideoID            string              `json:"video_id"`
	Text               string              `json:"text"`
	Language           string              `json:"language,omitempty"`
	LanguageConfidence float64             `json:"language_confidence,omitempty"`
	Segments           []TranscriptSegment `json:"segments,omitempty"`
	Method             string              `json:"method,omitempty"`
	Info               VideoInfo           `json:"video_info"`
	ProcessingDuration time.Duration       `json:"processing_duration,omitempty"`
}

// NewTranscriptGenerated 构造转录完成事件。
func NewTranscriptGenerated(videoID, text, language string, confidence float64, segments []TranscriptSegment, method string, info VideoInfo, processingDuration time.Duration, opts ...EnvelopeOption) *TranscriptGenerated {
	return &TranscriptGenerated{
		Envelope:           NewEnvelope(opts...),
		VideoID:            videoID,
		Text:               text,
		Language:           language,
		LanguageConfidence: confidence,
		Segments:           segments,
		Method:             method,
		Info:               info,
		ProcessingDuration: processingDuration,
	}
}

// Kind 实现 Event 接口。
func (*TranscriptGenerated) Kind() Kind { return KindTranscriptGenerated }

// SummaryCreated 表示摘要生成并落盘完成。
type SummaryCreated struct {
	Envelope
	VideoID            string        `json:"video_id"`
	Text               string        `json:"text"`
	Format             string        `json:"format,omitempty"`
	Style              string        `json:"style,omitempty"`
	Length             string        `json:"length,omitempty"`
	WordCount          int           `json:"word_count"`
	Model              string        `json:"model,omitempty"`
	TokensUsed         int           `json:"tokens_used,omitempty"`
	ArtifactPath       string        `json:"artifact_path,omitempty"`
	Info               VideoInfo     `json:"video_info"`
	ProcessingDuration time.Duration `json:"processing_duration,omitempty"`
}

// NewSummaryCreated 构造摘要事件。wordCount 传 0 时按摘要文本的
// 空白分词数量推导。
func NewSummaryCreated(videoID, text, format, style, length string, wordCount int, model string, tokensUsed int, artifactPath string, info VideoInfo, processingDuration time.Duration, opts ...EnvelopeOption) *SummaryCreated {
	if wordCount <= 0 {
		wordCount = len(strings.Fields(text))
	}
	return &SummaryCreated{
		Envelope:           NewEnvelope(opts...),
		VideoID:            videoID,
		Text:               text,
		Format:             format,
		Style:              style,
		Length:             length,
		WordCount:          wordCount,
		Model:              model,
		TokensUsed:         tokensUsed,
		ArtifactPath:       artifactPath,
		Info:               info,
		ProcessingDuration: processingDuration,
	}
}

// Kind 实现 Event 接口。
func (*SummaryCreated) Kind() Kind { return KindSummaryCreated }

// StageError 是三类阶段错误事件共享的负载。
type StageError struct {
	Envelope
	VideoID string `json:"video_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Stage   string `json:"stage"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// VideoProcessingError 表示下载阶段失败，该条目的管道终止。
type VideoProcessingError struct {
	StageError
}

// NewVideoProcessingError 构造下载阶段错误事件。
func NewVideoProcessingError(videoID, url, code, message string, opts ...EnvelopeOption) *VideoProcessingError {
	return &VideoProcessingError{StageError: StageError{
		Envelope: NewEnvelope(opts...),
		VideoID:  videoID,
		URL:      url,
		Stage:    StageDownload,
		Code:     code,
		Message:  message,
	}}
}

// Kind 实现 Event 接口。
func (*VideoProcessingError) Kind() Kind { return KindVideoProcessingError }

// TranscriptProcessingError 表示转录阶段失败。
type TranscriptProcessingError struct {
	StageError
}

// NewTranscriptProcessingError 构造转录阶段错误事件。
func NewTranscriptProcessingError(videoID, code, message string, opts ...EnvelopeOption) *TranscriptProcessingError {
	return &TranscriptProcessingError{StageError: StageError{
		Envelope: NewEnvelope(opts...),
		VideoID:  videoID,
		Stage:    StageTranscription,
		Code:     code,
		Message:  message,
	}}
}

// Kind 实现 Event 接口。
func (*TranscriptProcessingError) Kind() Kind { return KindTranscriptProcessingError }

// SummaryProcessingError 表示摘要阶段失败。
type SummaryProcessingError struct {
	StageError
}

// NewSummaryProcessingError 构造摘要阶段错误事件。
func NewSummaryProcessingError(videoID, code, message string, opts ...EnvelopeOption) *SummaryProcessingError {
	return &SummaryProcessingError{StageError: StageError{
		Envelope: NewEnvelope(opts...),
		VideoID:  videoID,
		Stage:    StageSummarization,
		Code:     code,
		Message:  message,
	}}
}

// Kind 实现 Event 接口。
func (*SummaryProcessingError) Kind() Kind { return KindSummaryProcessingError }

// 阶段标签，错误事件以此标注失败发生的位置。
const (
	StageDownload      = "download"
	StageTranscription = "transcription"
	StageSummarization = "summarization"
)

// ErrorKinds 列出全部阶段错误事件类型，便于统一订阅。
func ErrorKinds() []Kind {
	return []Kind{
		KindVideoProcessingError,
		KindTranscriptProcessingError,
		KindSummaryProcessingError,
	}
}
