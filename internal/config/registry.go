package config

import "sync"

// Registry manages a set of named Settings presets, mirroring trajognize's
// project.py PROJECT_2011/PROJECT_MAZE/PROJECT_FISH/PROJECT_ANTS/
// PROJECT_ANTS_2019/PROJECT_STORKS table: instead of a single compiled-in
// "current project" constant, an operator selects a preset by name.
type Registry struct {
	mu       sync.RWMutex
	presets  map[string]Settings
}

var defaultRegistry = NewRegistry()

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]Settings)}
}

// Register adds s to the default registry under name.
func Register(name string, s Settings) { defaultRegistry.Register(name, s) }

// Get retrieves a preset by name from the default registry.
func Get(name string) (Settings, error) { return defaultRegistry.Get(name) }

// List returns every registered preset name from the default registry.
func List() []string { return defaultRegistry.List() }

// Register adds s under name, overwriting any previous preset of that name.
func (r *Registry) Register(name string, s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = s
}

// Get retrieves a preset by name.
func (r *Registry) Get(name string) (Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.presets[name]
	if !ok {
		return Settings{}, ErrPresetNotFound
	}
	return s, nil
}

// List returns every registered preset name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	return names
}
