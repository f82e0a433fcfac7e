package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/transform"
)

// ErrPluginNotFound is returned when no plugin is registered for a name.
var ErrPluginNotFound = errors.New("plugin not found")

// Registry holds every loaded plugin in one name-keyed table. Load swaps
// the whole table atomically: a run holding a plugin obtained from Get
// keeps using that instance until its run ends, and cleanup only touches
// instances not carried into the new table. Definition edits therefore
// apply to a source's next run, never mid-run.
type Registry struct {
	transforms *transform.Registry
	logger     logger.Interface

	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(transforms *transform.Registry, log logger.Interface) *Registry {
	return &Registry{
		transforms: transforms,
		logger:     log.WithComponent("plugin-registry"),
		plugins:    make(map[string]Plugin),
	}
}

// Load compiles every declarative config and registers it alongside the
// native plugins. On a name collision the declarative definition wins and
// the collision is logged. Loading the same inputs twice reproduces the
// same table.
func (r *Registry) Load(configs []*sources.Config, native ...Plugin) error {
	table := make(map[string]Plugin, len(configs)+len(native))

	for _, p := range native {
		name := p.Meta().Name
		if name == "" {
			return errors.New("native plugin with empty name")
		}
		table[name] = p
	}

	for _, cfg := range configs {
		compiled, err := CompileConfig(cfg, r.transforms, r.logger)
		if err != nil {
			return fmt.Errorf("failed to compile source %s: %w", cfg.Site.Name, err)
		}

		name := compiled.Meta().Name
		if _, collision := table[name]; collision {
			r.logger.Warn("Declarative source overrides native plugin",
				"name", name,
			)
		}
		table[name] = compiled
	}

	r.mu.Lock()
	old := r.plugins
	r.plugins = table
	r.mu.Unlock()

	r.cleanup(old, table)

	r.logger.Info("Plugin table loaded",
		"declarative", len(configs),
		"native", len(native),
		"total", len(table),
	)
	return nil
}

// Reload clears the table and loads from the given inputs. Idempotent:
// the same inputs reproduce the same table.
func (r *Registry) Reload(configs []*sources.Config, native ...Plugin) error {
	return r.Load(configs, native...)
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metas returns metadata for every registered plugin, sorted by name.
func (r *Registry) Metas() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Metadata, 0, len(r.plugins))
	for _, p := range r.plugins {
		metas = append(metas, p.Meta())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// cleanup releases resources held by plugins displaced from the table.
// An instance carried over into the new table is still live and is left
// alone.
func (r *Registry) cleanup(old, current map[string]Plugin) {
	for name, p := range old {
		if current[name] == p {
			continue
		}
		cleaner, ok := p.(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(); err != nil {
			r.logger.Warn("Plugin cleanup failed",
				"name", name,
				"error", err,
			)
		}
	}
}
