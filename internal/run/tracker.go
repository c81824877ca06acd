package run

import (
	"context"
	"sync"

	"TubeDigest/internal/event"
)

// TerminalOutcome 是追踪器从终态事件中提取的结果。
type TerminalOutcome struct {
	Succeeded bool
	Stage     string
	Code      string
	Message   string
	Outcome   Outcome
}

// Tracker 订阅管道的终态事件，按视频 ID 归档每次运行的结局。
// 同步事件总线保证 Publish 返回时所有阶段已执行完毕，因此
// 执行器可以在发布发现事件之后立即读取结果。
type Tracker struct {
	mu       sync.Mutex
	outcomes map[string]TerminalOutcome
}

// NewTracker 创建追踪器并订阅总线上的终态事件。
func NewTracker(bus *event.Bus) *Tracker {
	t := &Tracker{outcomes: make(map[string]TerminalOutcome)}
	bus.Subscribe(event.KindSummaryCreated, t)
	for _, kind := range event.ErrorKinds() {
		bus.Subscribe(kind, t)
	}
	return t
}

// Name 返回追踪器在总线上的标识。
func (t *Tracker) Name() string { return "run_tracker" }

// Handle 实现 event.Handler。
func (t *Tracker) Handle(_ context.Context, evt event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := evt.(type) {
	case *event.SummaryCreated:
		t.outcomes[e.VideoID] = TerminalOutcome{
			Succeeded: true,
			Outcome: Outcome{
				ArtifactPath: e.ArtifactPath,
				WordCount:    e.WordCount,
				Model:        e.Model,
				Style:        e.Style,
			},
		}
	case *event.VideoProcessingError:
		t.record(e.StageError)
	case *event.TranscriptProcessingError:
		t.record(e.StageError)
	case *event.SummaryProcessingError:
		t.record(e.StageError)
	}
	return nil
}

func (t *Tracker) record(se event.StageError) {
	// 第一个失败事件胜出，后续阶段不会再执行
	if existing, ok := t.outcomes[se.VideoID]; ok && !existing.Succeeded {
		return
	}
	t.outcomes[se.VideoID] = TerminalOutcome{
		Succeeded: false,
		Stage:     se.Stage,
		Code:      se.Code,
		Message:   se.Message,
	}
}

// Reset 清除指定视频的历史结局，在每次运行开始前调用。
func (t *Tracker) Reset(videoID string) {
	t.mu.Lock()
	delete(t.outcomes, videoID)
	t.mu.Unlock()
}

// Outcome 返回指定视频最近一次运行的结局。
func (t *Tracker) Outcome(videoID string) (TerminalOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	outcome, ok := t.outcomes[videoID]
	return outcome, ok
}

var _ event.Handler = (*Tracker)(nil)
