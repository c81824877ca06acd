package plugin

import (
	"context"
	"sync"

	"TubeDigest/internal/event"
)

// Plugin defines the lifecycle hooks that every plugin implementation must satisfy.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Initialize prepares the plugin for use. It is called once after
	// construction; a failure aborts loading this plugin only.
	Initialize() error
	// Cleanup releases resources on unload, best effort.
	Cleanup() error
	// Enable marks the plugin active.
	Enable()
	// Disable marks the plugin inactive. A disabled Processor stays
	// subscribed on the bus but must no-op in Handle.
	Disable()
	// Enabled reports the current state.
	Enabled() bool
	// ConfigValue returns the raw configuration value for a key.
	ConfigValue(key string) (any, bool)
	// ConfigString returns a string configuration value or the fallback.
	ConfigString(key, fallback string) string
	// ConfigBool returns a boolean configuration value or the fallback.
	ConfigBool(key string, fallback bool) bool
	// ConfigInt returns an integer configuration value or the fallback.
	ConfigInt(key string, fallback int) int
}

// Provider is a plugin that turns a URL into exactly one discovery event per
// Process call. It never performs pipeline stages beyond discovery.
type Provider interface {
	Plugin
	SupportedURLPatterns() []string
	CanHandle(url string) bool
	Process(ctx context.Context, url string) error
}

// Processor is a plugin invoked by the bus for each of its interested kinds.
type Processor interface {
	Plugin
	EventKinds() []event.Kind
	Handle(ctx context.Context, evt event.Event) error
}

// Base carries the enabled flag and scoped configuration shared by all
// plugins. Embed it and override the lifecycle hooks as needed; plugins load
// in the enabled state.
type Base struct {
	info Info

	mu      sync.RWMutex
	enabled bool
	config  map[string]any
}

// NewBase builds the embeddable plugin core from metadata and merged config.
func NewBase(info Info, cfg map[string]any) Base {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return Base{info: info, enabled: true, config: cfg}
}

// Info implements Plugin.
func (b *Base) Info() Info { return b.info }

// Initialize implements Plugin with a no-op default.
func (b *Base) Initialize() error { return nil }

// Cleanup implements Plugin with a no-op default.
func (b *Base) Cleanup() error { return nil }

// Enable implements Plugin.
func (b *Base) Enable() {
	b.mu.Lock()
	b.enabled = true
	b.mu.Unlock()
}

// Disable implements Plugin.
func (b *Base) Disable() {
	b.mu.Lock()
	b.enabled = false
	b.mu.Unlock()
}

// Enabled implements Plugin.
func (b *Base) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// ConfigValue implements Plugin.
func (b *Base) ConfigValue(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.config[key]
	return value, ok
}

// ConfigString implements Plugin.
func (b *Base) ConfigString(key, fallback string) string {
	if value, ok := b.ConfigValue(key); ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return fallback
}

// ConfigBool implements Plugin.
func (b *Base) ConfigBool(key string, fallback bool) bool {
	if value, ok := b.ConfigValue(key); ok {
		if v, ok := value.(bool); ok {
			return v
		}
	}
	return fallback
}

// ConfigInt implements Plugin.
func (b *Base) ConfigInt(key string, fallback int) int {
	if value, ok := b.ConfigValue(key); ok {
		switch v := value.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return fallback
}
