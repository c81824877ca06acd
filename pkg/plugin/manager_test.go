package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"TubeDigest/internal/event"
)

type fakeProvider struct {
	Base
	bus     *event.Bus
	pattern string
}

func (p *fakeProvider) SupportedURLPatterns() []string { return []string{p.pattern} }

func (p *fakeProvider) CanHandle(url string) bool { return strings.Contains(url, p.pattern) }

func (p *fakeProvider) Process(ctx context.Context, url string) error {
	p.bus.Publish(ctx, event.NewVideoDiscovered(url, "", p.Info().Name, nil))
	return nil
}

type fakeProcessor struct {
	Base
	handled *int
}

func (p *fakeProcessor) EventKinds() []event.Kind {
	return []event.Kind{event.KindVideoDiscovered}
}

func (p *fakeProcessor) Handle(ctx context.Context, evt event.Event) error {
	*p.handled++
	return nil
}

var (
	_ Provider  = (*fakeProvider)(nil)
	_ Processor = (*fakeProcessor)(nil)
)

func providerFactory(name, pattern string) Factory {
	return func(bus *event.Bus, cfg map[string]any) (Plugin, error) {
		info := Info{Name: name, Version: "1.0.0", Kind: KindProvider, EntryPoint: "test/" + name}
		return &fakeProvider{Base: NewBase(info, cfg), bus: bus, pattern: pattern}, nil
	}
}

func processorFactory(name string, handled *int) Factory {
	return func(bus *event.Bus, cfg map[string]any) (Plugin, error) {
		info := Info{Name: name, Version: "1.0.0", Kind: KindProcessor, EntryPoint: "test/" + name}
		return &fakeProcessor{Base: NewBase(info, cfg), handled: handled}, nil
	}
}

func writeManifest(t *testing.T, dir, file, name string, kind Kind) {
	t.Helper()
	doc := fmt.Sprintf(`plugins:
  - name: %s
    version: "1.0.0"
    kind: %s
    entry_point: test/%s
`, name, kind, name)
	if err := os.WriteFile(filepath.Join(dir, file), []byte(doc), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func newTestManager(t *testing.T, dir string, registry *Registry, opts ...Option) (*Manager, *event.Bus) {
	t.Helper()
	bus := event.NewBus(event.WithLogger(slog.New(slog.DiscardHandler)))
	opts = append([]Option{
		WithDirectory(dir),
		WithRegistry(registry),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	m, err := NewManager(bus, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, bus
}

func TestDiscoverIsolatesInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	if err := registry.Register("test/alpha", providerFactory("alpha", "youtube.com")); err != nil {
		t.Fatalf("register: %v", err)
	}

	writeManifest(t, dir, "alpha.yaml", "alpha", KindProvider)
	// a unit declaring two plugins is invalid and must not stop discovery
	broken := `plugins:
  - name: twin_one
    kind: provider
    entry_point: test/twin
  - name: twin_two
    kind: provider
    entry_point: test/twin
`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	writeManifest(t, dir, "_hidden.yaml", "hidden", KindProvider)

	m, _ := newTestManager(t, dir, registry)
	infos := m.Discover()
	if len(infos) != 1 {
		t.Fatalf("expected exactly one discovered plugin, got %d", len(infos))
	}
	if infos[0].Name != "alpha" {
		t.Fatalf("expected alpha discovered, got %s", infos[0].Name)
	}
	if err := m.Load("alpha", nil); err != nil {
		t.Fatalf("load alpha: %v", err)
	}
}

func TestSelectProviderFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	if err := registry.Register("test/first", providerFactory("first", "youtube.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("test/second", providerFactory("second", "youtube.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeManifest(t, dir, "first.yaml", "first", KindProvider)
	writeManifest(t, dir, "second.yaml", "second", KindProvider)

	m, _ := newTestManager(t, dir, registry)
	results := m.LoadAll()
	if !results["first"] || !results["second"] {
		t.Fatalf("expected both providers loaded, got %v", results)
	}

	provider, err := m.SelectProvider("https://youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("select provider: %v", err)
	}
	if provider.Info().Name != "first" {
		t.Fatalf("expected first registered provider selected, got %s", provider.Info().Name)
	}

	// a disabled provider is excluded from selection
	if !m.Disable("first") {
		t.Fatalf("disable first")
	}
	provider, err = m.SelectProvider("https://youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("select provider after disable: %v", err)
	}
	if provider.Info().Name != "second" {
		t.Fatalf("expected fallback to second provider, got %s", provider.Info().Name)
	}

	if _, err := m.SelectProvider("https://example.org/clip"); err == nil {
		t.Fatalf("expected no-provider error for unmatched url")
	}
}

func TestDisabledProcessorIsNoOp(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	var handled int
	if err := registry.Register("test/counter", processorFactory("counter", &handled)); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeManifest(t, dir, "counter.yaml", "counter", KindProcessor)

	m, bus := newTestManager(t, dir, registry)
	if err := m.Load("counter", nil); err != nil {
		t.Fatalf("load: %v", err)
	}

	bus.Publish(context.Background(), event.NewVideoDiscovered("https://example.com/a", "", "test", nil))
	if handled != 1 {
		t.Fatalf("expected one handled event, got %d", handled)
	}

	if !m.Disable("counter") {
		t.Fatalf("disable counter")
	}
	bus.Publish(context.Background(), event.NewVideoDiscovered("https://example.com/b", "", "test", nil))
	if handled != 1 {
		t.Fatalf("disabled processor must not handle events, got %d", handled)
	}
	// still subscribed while disabled
	if got := bus.SubscriberCount(event.KindVideoDiscovered); got != 1 {
		t.Fatalf("expected subscription kept, got %d", got)
	}

	if !m.Enable("counter") {
		t.Fatalf("enable counter")
	}
	bus.Publish(context.Background(), event.NewVideoDiscovered("https://example.com/c", "", "test", nil))
	if handled != 2 {
		t.Fatalf("re-enabled processor should handle again, got %d", handled)
	}
}

func TestLoadAllHonoursEnabledSet(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	if err := registry.Register("test/alpha", providerFactory("alpha", "youtube.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("test/beta", providerFactory("beta", "vimeo.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeManifest(t, dir, "alpha.yaml", "alpha", KindProvider)
	writeManifest(t, dir, "beta.yaml", "beta", KindProvider)

	configPath := filepath.Join(dir, "config.yaml")
	doc := `plugins: {}
enabled_plugins:
  - alpha
load_all_plugins_by_default: true
`
	if err := os.WriteFile(configPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m, _ := newTestManager(t, dir, registry, WithConfigPath(configPath))
	results := m.LoadAll()
	if len(results) != 1 || !results["alpha"] {
		t.Fatalf("expected only alpha loaded, got %v", results)
	}
	if _, ok := m.ByName("beta"); ok {
		t.Fatalf("beta should not be loaded")
	}
}

func TestLoadMergesSuppliedConfigOverPersisted(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	if err := registry.Register("test/alpha", providerFactory("alpha", "youtube.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeManifest(t, dir, "alpha.yaml", "alpha", KindProvider)

	configPath := filepath.Join(dir, "config.yaml")
	doc := `plugins:
  alpha:
    greeting: persisted
    keep: "yes"
`
	if err := os.WriteFile(configPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m, _ := newTestManager(t, dir, registry, WithConfigPath(configPath))
	if err := m.Load("alpha", map[string]any{"greeting": "override"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, ok := m.ByName("alpha")
	if !ok {
		t.Fatalf("alpha not loaded")
	}
	if got := p.ConfigString("greeting", ""); got != "override" {
		t.Fatalf("supplied config should win, got %q", got)
	}
	if got := p.ConfigString("keep", ""); got != "yes" {
		t.Fatalf("persisted config should survive merge, got %q", got)
	}
}

func TestUnloadRemovesInstanceAndSubscriptions(t *testing.T) {
	dir := t.TempDir()
	registry := NewRegistry()
	var handled int
	if err := registry.Register("test/counter", processorFactory("counter", &handled)); err != nil {
		t.Fatalf("register: %v", err)
	}
	writeManifest(t, dir, "counter.yaml", "counter", KindProcessor)

	m, bus := newTestManager(t, dir, registry)
	if err := m.Load("counter", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.Unload("counter") {
		t.Fatalf("unload should succeed")
	}
	if m.Unload("counter") {
		t.Fatalf("second unload should report not loaded")
	}
	if got := bus.SubscriberCount(event.KindVideoDiscovered); got != 0 {
		t.Fatalf("expected subscriptions removed, got %d", got)
	}
	if status := m.Status(); status.Total != 0 {
		t.Fatalf("expected empty status, got %+v", status)
	}
}
