package remote

import (
	"sort"
	"sync"

	"github.com/stackline-io/stackctl/pkg/errors"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Provider{}
)

// Register makes a provider available by name. Provider packages call this
// from init so a blank import is enough to enable them.
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// Get returns the named provider.
func Get(name string) (Provider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeProvider, "unknown provider: "+name)
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
