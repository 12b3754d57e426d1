package directory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"berth/internal/config"
	"berth/internal/downloads"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterType registers a client constructor under a type name used in
// the [[clients]] config blocks. Adapters register themselves in init,
// database/sql driver style.
func RegisterType(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		panic("directory: RegisterType requires a name and factory")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("directory: client type %q registered twice", key))
	}
	registry[key] = factory
}

// RegisteredTypes returns the sorted names of registered client types.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFactory constructs clients by looking up the config type in the
// registry.
func DefaultFactory(cfg config.Client) (downloads.Client, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	registryMu.RLock()
	factory, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown client type %q for client %s (registered: %s)",
			cfg.Type, cfg.ID, strings.Join(RegisteredTypes(), ", "))
	}
	return factory(cfg)
}
