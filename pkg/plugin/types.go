package plugin

// Kind represents the capability variant of a plugin.
type Kind string

const (
	// KindProvider plugins turn a URL into a discovery event.
	KindProvider Kind = "provider"
	// KindProcessor plugins react to one or more event kinds.
	KindProcessor Kind = "processor"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	// Name is the unique key of the plugin across the load set.
	Name        string
	Version     string
	Description string
	Author      string
	Kind        Kind
	// EntryPoint identifies the registered factory that builds the plugin.
	EntryPoint string
	// ConfigSchema optionally documents the accepted configuration keys.
	ConfigSchema map[string]any
	// Dependencies lists external requirements declared by the plugin.
	Dependencies []string
}

// Status is a point-in-time snapshot of the manager's load set.
type Status struct {
	Total      int
	Providers  int
	Processors int
	Plugins    map[string]PluginStatus
}

// PluginStatus describes one loaded plugin.
type PluginStatus struct {
	Kind    Kind
	Version string
	Enabled bool
}
