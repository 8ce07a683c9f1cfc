package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an engine. Engines register themselves from init (or
// behind build tags) and are opened by name from configuration.
type Factory func(opts InitOptions) (Engine, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register makes an engine factory available under name. Registering the
// same name twice panics; it indicates two engines fighting over an id.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("backend: duplicate engine registration: " + name)
	}
	registry[name] = f
}

// Open initializes the engine registered under name.
func Open(name string, opts InitOptions) (Engine, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("backend: unknown engine %q (registered: %v)", name, Names())
	}
	return f(opts)
}

// Names lists the registered engine names, sorted.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
