package event

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

const defaultHistoryCapacity = 1000

// Handler 定义事件处理器契约。
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc 允许普通函数作为处理器注册。
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle 实现 Handler 接口。
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

var _ Handler = HandlerFunc(nil)

// Bus 是进程内同步发布/订阅总线：发布方线程按注册顺序依次调用
// 处理器，单个处理器的错误或 panic 被记录后吞掉，不影响兄弟
// 处理器，也不会传播给发布方。总线独占持有订阅表和有界历史缓冲。
type Bus struct {
	mu       sync.Mutex
	handlers map[Kind][]Handler
	history  []Event
	capacity int
	logger   *slog.Logger
}

// Option 定义总线的可选配置。
type Option func(*Bus)

// WithLogger 注入结构化日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithHistoryCapacity 设置历史缓冲容量，超出时淘汰最旧事件。
func WithHistoryCapacity(capacity int) Option {
	return func(b *Bus) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}

// NewBus 创建事件总线。
func NewBus(opts ...Option) *Bus {
	bus := &Bus{
		handlers: make(map[Kind][]Handler),
		capacity: defaultHistoryCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(bus)
		}
	}
	return bus
}

// Subscribe 为指定事件类型注册处理器，注册顺序即分发顺序。
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Unsubscribe 移除一条注册，未找到时静默返回。
func (b *Bus) Unsubscribe(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	chain := b.handlers[kind]
	for i, registered := range chain {
		if sameHandler(registered, handler) {
			b.handlers[kind] = append(chain[:i:i], chain[i+1:]...)
			if len(b.handlers[kind]) == 0 {
				delete(b.handlers, kind)
			}
			return
		}
	}
}

// sameHandler 判断两个处理器是否为同一条注册。函数类型不可比较，
// 退化为函数指针比较。
func sameHandler(a, b Handler) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Kind() == reflect.Func || bv.Kind() == reflect.Func {
		return av.Kind() == bv.Kind() && av.Pointer() == bv.Pointer()
	}
	return a == b
}

// Publish 将事件写入历史后同步分发给全部订阅者。分发在发布方
// goroutine 上按注册顺序执行，处理器内继续 Publish 形成管道链，
// 下游处理器全部完成后上游调用才返回。
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.history = append(b.history, evt)
	if len(b.history) > b.capacity {
		b.history = b.history[len(b.history)-b.capacity:]
	}
	chain := make([]Handler, len(b.handlers[evt.Kind()]))
	copy(chain, b.handlers[evt.Kind()])
	b.mu.Unlock()

	for _, handler := range chain {
		b.dispatch(ctx, evt, handler)
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("事件处理器 panic",
				"kind", string(evt.Kind()),
				"event_id", evt.Meta().ID,
				"handler", HandlerName(handler),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := handler.Handle(ctx, evt); err != nil {
		b.logger.Warn("事件处理器执行失败",
			"kind", string(evt.Kind()),
			"event_id", evt.Meta().ID,
			"handler", HandlerName(handler),
			"error", err,
		)
	}
}

// History 返回留存事件的快照，可按类型过滤；不暴露内部缓冲。
func (b *Bus) History(kinds ...Kind) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(kinds) == 0 {
		snapshot := make([]Event, len(b.history))
		copy(snapshot, b.history)
		return snapshot
	}
	want := make(map[Kind]struct{}, len(kinds))
	for _, kind := range kinds {
		want[kind] = struct{}{}
	}
	var snapshot []Event
	for _, evt := range b.history {
		if _, ok := want[evt.Kind()]; ok {
			snapshot = append(snapshot, evt)
		}
	}
	return snapshot
}

// SubscriberCount 返回指定类型当前的订阅数量。
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[kind])
}

// Subscribers 返回各事件类型的订阅者名称列表，仅用于自省。
func (b *Bus) Subscribers() map[Kind][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make(map[Kind][]string, len(b.handlers))
	for kind, chain := range b.handlers {
		names := make([]string, len(chain))
		for i, handler := range chain {
			names[i] = HandlerName(handler)
		}
		result[kind] = names
	}
	return result
}

// HandlerName 返回处理器的可读名称，优先使用其自报名称。
func HandlerName(handler Handler) string {
	if named, ok := handler.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", handler)
}
