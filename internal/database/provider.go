package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-gate/internal/config"
)

// Backend bundles the repositories of one storage engine.
type Backend struct {
	Name        string
	Enrollments EnrollmentWriter
	Locations   LocationWriter
	Close       func() error
}

// BackendOpener connects to a storage engine described by cfg and applies
// pending migrations before returning.
type BackendOpener func(cfg *config.DatabaseConfig) (*Backend, error)

var (
	openers   = make(map[string]BackendOpener)
	openersMu sync.RWMutex
)

// RegisterBackend registers a storage engine under a driver name.
// This is called from cmd to avoid import cycles between the backends and this package.
func RegisterBackend(driver string, open BackendOpener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// RegisteredBackends returns the sorted driver names that can be opened.
func RegisteredBackends() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenBackend opens the backend selected by cfg.ResolveDriver().
func OpenBackend(cfg *config.DatabaseConfig) (*Backend, error) {
	driver := cfg.ResolveDriver()

	openersMu.RLock()
	open, ok := openers[driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for driver %q (available: %v)", driver, RegisteredBackends())
	}

	backend, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", driver, err)
	}
	if backend.Name == "" {
		backend.Name = driver
	}
	return backend, nil
}
