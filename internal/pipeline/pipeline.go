package pipeline

import (
	"context"

	"TubeDigest/internal/event"
)

// Stage 是内置管道阶段的统一契约，与 Processor 插件共享
// "按事件类型分发" 的形态，但不参与插件生命周期管理。
type Stage interface {
	Name() string
	EventKinds() []event.Kind
	Handle(ctx context.Context, evt event.Event) error
}

// Attach 在启动时把各阶段订阅到总线上，订阅顺序即分发顺序。
func Attach(bus *event.Bus, stages ...Stage) {
	for _, stage := range stages {
		for _, kind := range stage.EventKinds() {
			bus.Subscribe(kind, stage)
		}
	}
}
