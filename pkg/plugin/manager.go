package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"TubeDigest/internal/event"
)

// ErrNoProvider is returned by SelectProvider when no loaded, enabled
// provider claims the URL.
var ErrNoProvider = errors.New("no provider can handle url")

// Manager exclusively owns the set of loaded plugin instances and their
// enabled flags. It discovers plugin definitions from manifests, builds them
// through the registry, wires Processors to the bus and persists per-plugin
// configuration through an explicit save call.
type Manager struct {
	mu         sync.RWMutex
	bus        *event.Bus
	registry   *Registry
	dir        string
	configPath string
	logger     *slog.Logger
	config     ConfigDocument
	discovered map[string]manifestEntry
	instances  map[string]*instance
	order      []string
}

type instance struct {
	plugin Plugin
	info   Info
	subs   []subscription
}

type subscription struct {
	kind    event.Kind
	handler event.Handler
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithDirectory sets the directory scanned for plugin manifests.
func WithDirectory(dir string) Option {
	return func(m *Manager) {
		m.dir = dir
	}
}

// WithRegistry overrides the default factory registry.
func WithRegistry(registry *Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithLogger injects the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfigPath sets the YAML configuration document location.
func WithConfigPath(path string) Option {
	return func(m *Manager) {
		m.configPath = path
	}
}

// NewManager constructs a manager bound to the bus. The configuration
// document is read here and never re-read afterwards.
func NewManager(bus *event.Bus, opts ...Option) (*Manager, error) {
	if bus == nil {
		return nil, errors.New("event bus cannot be nil")
	}
	m := &Manager{
		bus:        bus,
		registry:   DefaultRegistry(),
		logger:     slog.Default(),
		discovered: make(map[string]manifestEntry),
		instances:  make(map[string]*instance),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	cfg, err := LoadConfigDocument(m.configPath)
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

// Discover scans the plugin directory and returns the metadata of every
// valid candidate. A unit that fails to parse, resolve or probe is logged
// and skipped without stopping discovery of the remaining units.
func (m *Manager) Discover() []Info {
	entries, failures := readManifests(m.dir)
	for _, failure := range failures {
		m.logger.Warn("plugin discovery failed for unit", "error", failure)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovered = make(map[string]manifestEntry, len(entries))

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var infos []Info
	for _, name := range names {
		entry := entries[name]
		factory, ok := m.registry.Lookup(entry.EntryPoint)
		if !ok {
			m.logger.Warn("plugin entry point not registered",
				"plugin", name, "entry_point", entry.EntryPoint)
			continue
		}
		// Disposable probe: construct and discard to verify the factory
		// produces a plugin matching the declared capability kind.
		probe, err := factory(m.bus, map[string]any{})
		if err != nil {
			m.logger.Warn("plugin probe instantiation failed", "plugin", name, "error", err)
			continue
		}
		if err := checkKind(probe, entry.info().Kind); err != nil {
			m.logger.Warn("plugin capability mismatch", "plugin", name, "error", err)
			continue
		}
		m.discovered[name] = entry
		infos = append(infos, entry.info())
	}
	return infos
}

func checkKind(p Plugin, kind Kind) error {
	switch kind {
	case KindProvider:
		if _, ok := p.(Provider); !ok {
			return fmt.Errorf("declared provider does not implement Provider")
		}
	case KindProcessor:
		if _, ok := p.(Processor); !ok {
			return fmt.Errorf("declared processor does not implement Processor")
		}
	}
	return nil
}

// Load resolves a discovered definition, merges the supplied config over the
// persisted per-plugin config, builds and initialises the instance, and, for
// a Processor, subscribes it to the bus for each interested kind. A failure
// never leaves a partially registered plugin visible.
func (m *Manager) Load(name string, cfg map[string]any) error {
	m.mu.Lock()
	entry, known := m.discovered[name]
	m.mu.Unlock()
	if !known {
		m.Discover()
		m.mu.Lock()
		entry, known = m.discovered[name]
		m.mu.Unlock()
		if !known {
			return fmt.Errorf("plugin %s not discovered", name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[name]; exists {
		return fmt.Errorf("plugin %s already loaded", name)
	}

	merged := mergeConfig(m.config.configFor(name), cfg)
	factory, ok := m.registry.Lookup(entry.EntryPoint)
	if !ok {
		return fmt.Errorf("entry point %s not registered", entry.EntryPoint)
	}
	built, err := factory(m.bus, merged)
	if err != nil {
		return fmt.Errorf("construct plugin %s: %w", name, err)
	}
	if err := built.Initialize(); err != nil {
		return fmt.Errorf("initialize plugin %s: %w", name, err)
	}

	inst := &instance{plugin: built, info: entry.info()}
	if processor, ok := built.(Processor); ok {
		for _, kind := range processor.EventKinds() {
			handler := processorHandler{name: name, processor: processor}
			m.bus.Subscribe(kind, handler)
			inst.subs = append(inst.subs, subscription{kind: kind, handler: handler})
		}
	}
	m.instances[name] = inst
	m.order = append(m.order, name)
	return nil
}

// LoadAll discovers then loads every candidate in the enabled set, or every
// candidate when the set is empty and load-all-by-default is on. Returns the
// per-plugin outcome table; successes join the enabled set.
func (m *Manager) LoadAll() map[string]bool {
	infos := m.Discover()
	results := make(map[string]bool)

	m.mu.RLock()
	enabledSet := len(m.config.EnabledPlugins) > 0
	loadAll := m.config.LoadAllByDefault
	m.mu.RUnlock()

	for _, info := range infos {
		if enabledSet {
			if !m.enabledInConfig(info.Name) {
				continue
			}
		} else if !loadAll {
			continue
		}
		err := m.Load(info.Name, nil)
		if err != nil {
			m.logger.Warn("plugin load failed", "plugin", info.Name, "error", err)
		}
		results[info.Name] = err == nil
		if err == nil {
			m.rememberEnabled(info.Name)
		}
	}
	return results
}

// Unload calls Cleanup, removes the instance and its bus registrations.
// Returns false when the plugin is not currently loaded.
func (m *Manager) Unload(name string) bool {
	m.mu.Lock()
	inst, ok := m.instances[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.instances, name)
	for i, loaded := range m.order {
		if loaded == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	for _, sub := range inst.subs {
		m.bus.Unsubscribe(sub.kind, sub.handler)
	}
	if err := inst.plugin.Cleanup(); err != nil {
		m.logger.Warn("plugin cleanup failed", "plugin", name, "error", err)
	}
	return true
}

// Enable marks a loaded plugin active and records it in the enabled set.
func (m *Manager) Enable(name string) bool {
	m.mu.RLock()
	inst, ok := m.instances[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	inst.plugin.Enable()
	m.rememberEnabled(name)
	return true
}

// Disable marks a loaded plugin inactive and drops it from the enabled set.
// Bus subscriptions stay in place; a disabled Processor no-ops on dispatch.
func (m *Manager) Disable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[name]
	if !ok {
		return false
	}
	inst.plugin.Disable()
	for i, enabled := range m.config.EnabledPlugins {
		if enabled == name {
			m.config.EnabledPlugins = append(m.config.EnabledPlugins[:i:i], m.config.EnabledPlugins[i+1:]...)
			break
		}
	}
	return true
}

func (m *Manager) enabledInConfig(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.isEnabled(name)
}

func (m *Manager) rememberEnabled(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.config.isEnabled(name) {
		m.config.EnabledPlugins = append(m.config.EnabledPlugins, name)
	}
}

// ByName returns a loaded plugin.
func (m *Manager) ByName(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	if !ok {
		return nil, false
	}
	return inst.plugin, true
}

// ByKind returns loaded plugins of one capability kind, in load order.
func (m *Manager) ByKind(kind Kind) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var plugins []Plugin
	for _, name := range m.order {
		inst := m.instances[name]
		if inst.info.Kind == kind {
			plugins = append(plugins, inst.plugin)
		}
	}
	return plugins
}

// Status returns a snapshot of the current load set.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := Status{Plugins: make(map[string]PluginStatus, len(m.instances))}
	for name, inst := range m.instances {
		status.Total++
		switch inst.info.Kind {
		case KindProvider:
			status.Providers++
		case KindProcessor:
			status.Processors++
		}
		status.Plugins[name] = PluginStatus{
			Kind:    inst.info.Kind,
			Version: inst.info.Version,
			Enabled: inst.plugin.Enabled(),
		}
	}
	return status
}

// SelectProvider returns the first loaded, enabled provider in load order
// whose CanHandle accepts the URL.
func (m *Manager) SelectProvider(url string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		inst := m.instances[name]
		provider, ok := inst.plugin.(Provider)
		if !ok {
			continue
		}
		if provider.Enabled() && provider.CanHandle(url) {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvider, url)
}

// SaveConfigs writes the configuration document back to disk.
func (m *Manager) SaveConfigs() error {
	m.mu.RLock()
	doc := m.config
	m.mu.RUnlock()
	return doc.Save(m.configPath)
}

// processorHandler adapts a Processor to the bus handler contract and
// enforces the disabled no-op rule centrally.
type processorHandler struct {
	name      string
	processor Processor
}

// Name reports the plugin name for bus introspection.
func (h processorHandler) Name() string { return h.name }

// Handle implements event.Handler.
func (h processorHandler) Handle(ctx context.Context, evt event.Event) error {
	if !h.processor.Enabled() {
		return nil
	}
	return h.processor.Handle(ctx, evt)
}

func mergeConfig(persisted, supplied map[string]any) map[string]any {
	merged := make(map[string]any, len(persisted)+len(supplied))
	for k, v := range persisted {
		merged[k] = v
	}
	for k, v := range supplied {
		merged[k] = v
	}
	return merged
}
