package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestDocument is the YAML shape of one plugin unit on disk.
type manifestDocument struct {
	Plugins []manifestEntry `yaml:"plugins"`
}

type manifestEntry struct {
	Name         string         `yaml:"name"`
	Version      string         `yaml:"version"`
	Description  string         `yaml:"description"`
	Author       string         `yaml:"author"`
	Kind         string         `yaml:"kind"`
	EntryPoint   string         `yaml:"entry_point"`
	ConfigSchema map[string]any `yaml:"config_schema"`
	Dependencies []string       `yaml:"dependencies"`
}

func (e manifestEntry) info() Info {
	return Info{
		Name:         e.Name,
		Version:      e.Version,
		Description:  e.Description,
		Author:       e.Author,
		Kind:         Kind(e.Kind),
		EntryPoint:   e.EntryPoint,
		ConfigSchema: e.ConfigSchema,
		Dependencies: e.Dependencies,
	}
}

func (e manifestEntry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if e.EntryPoint == "" {
		return fmt.Errorf("plugin %s entry_point cannot be empty", e.Name)
	}
	switch Kind(e.Kind) {
	case KindProvider, KindProcessor:
		return nil
	default:
		return fmt.Errorf("plugin %s has unknown kind %q", e.Name, e.Kind)
	}
}

// readManifests scans a directory for plugin manifests. Each unit is one YAML
// file declaring exactly one plugin; files prefixed with an underscore are
// private and skipped. A malformed unit is reported without stopping the scan
// of the remaining units.
func readManifests(dir string) (map[string]manifestEntry, []error) {
	entries := make(map[string]manifestEntry)
	var failures []error

	items, err := os.ReadDir(dir)
	if err != nil {
		return entries, []error{fmt.Errorf("read plugin directory %s: %w", dir, err)}
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		name := item.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		entry, err := readManifest(path)
		if err != nil {
			failures = append(failures, fmt.Errorf("manifest %s: %w", name, err))
			continue
		}
		if _, exists := entries[entry.Name]; exists {
			failures = append(failures, fmt.Errorf("manifest %s: duplicate plugin name %s", name, entry.Name))
			continue
		}
		entries[entry.Name] = entry
	}
	return entries, failures
}

func readManifest(path string) (manifestEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifestEntry{}, err
	}
	var doc manifestDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return manifestEntry{}, fmt.Errorf("unmarshal: %w", err)
	}
	if len(doc.Plugins) != 1 {
		return manifestEntry{}, fmt.Errorf("expected exactly one plugin definition, found %d", len(doc.Plugins))
	}
	entry := doc.Plugins[0]
	if err := entry.validate(); err != nil {
		return manifestEntry{}, err
	}
	return entry, nil
}
