// Package backend defines the storage interface that stack state is
// persisted through, plus a registry of available implementations.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when the requested path has no stored object.
	ErrNotFound = errors.New("state not found")
	// ErrLocked is returned when a lock is already held on the path.
	ErrLocked = errors.New("state is locked")
)

// StaleLockAge is how old a lock must be before another process may break it.
const StaleLockAge = time.Hour

// Backend is a flat blob store keyed by slash-separated paths. Writes must be
// atomic at the object level: readers see either the old or the new content.
type Backend interface {
	Type() string
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, data io.Reader) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Lock(ctx context.Context, path string, info LockInfo) (Lock, error)
}

// Lock is a held advisory lock on a state path.
type Lock interface {
	ID() string
	Unlock(ctx context.Context) error
	Info() LockInfo
}

// LockInfo describes who holds a lock and why.
type LockInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Who       string    `json:"who"`
	Operation string    `json:"operation"`
	Created   time.Time `json:"created"`
}

// LockError reports a failed lock attempt along with the holder's info.
type LockError struct {
	Info LockInfo
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("locked by %s (operation %q, acquired %s): %v",
		e.Info.Who, e.Info.Operation, e.Info.Created.Format(time.RFC3339), e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// Factory builds a backend from its string configuration.
type Factory func(config map[string]string) (Backend, error)

// Config selects a backend type and its settings.
type Config struct {
	Type     string
	Settings map[string]string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend factory available under the given type name.
// Backend packages call this from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the backend named by the config.
func Create(config Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (available: %v)", config.Type, Types())
	}
	return factory(config.Settings)
}

// Types lists the registered backend types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
