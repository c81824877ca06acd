package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigDocument holds per-plugin configuration blocks and the enabled set.
// It is read once at manager construction and written back only by an
// explicit SaveConfigs call.
type ConfigDocument struct {
	Plugins          map[string]map[string]any `yaml:"plugins"`
	EnabledPlugins   []string                  `yaml:"enabled_plugins"`
	LoadAllByDefault bool                      `yaml:"load_all_plugins_by_default"`
}

// DefaultConfigDocument returns the policy used when no document exists:
// empty configs and load-all-by-default.
func DefaultConfigDocument() ConfigDocument {
	return ConfigDocument{
		Plugins:          map[string]map[string]any{},
		LoadAllByDefault: true,
	}
}

// LoadConfigDocument reads a YAML config document. An absent file yields the
// defaults without error.
func LoadConfigDocument(path string) (ConfigDocument, error) {
	cfg := DefaultConfigDocument()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read plugin config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal plugin config %s: %w", path, err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]map[string]any{}
	}
	return cfg, nil
}

// Save writes the document back to disk.
func (c ConfigDocument) Save(path string) error {
	if path == "" {
		return fmt.Errorf("plugin config path cannot be empty")
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal plugin config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plugin config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write plugin config %s: %w", path, err)
	}
	return nil
}

func (c ConfigDocument) configFor(name string) map[string]any {
	if c.Plugins == nil {
		return nil
	}
	return c.Plugins[name]
}

func (c ConfigDocument) isEnabled(name string) bool {
	for _, enabled := range c.EnabledPlugins {
		if enabled == name {
			return true
		}
	}
	return false
}
