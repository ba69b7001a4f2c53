package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Adapter sabe abrir Handles para un driver.
type Adapter interface {
	// Name retorna el nombre del driver ("sqlite", "postgres", "mysql").
	Name() string
	Open(ctx context.Context, cfg AdapterConfig) (Handle, error)
}

// AdapterConfig configuración para abrir un Handle.
type AdapterConfig struct {
	// Driver nombre del adapter.
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var (
	adaptersMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter. Los adapters lo llaman en init().
// Un nombre repetido reemplaza al anterior.
func RegisterAdapter(a Adapter) {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()
	adapters[a.Name()] = a
}

// GetAdapter busca un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	a, ok := adapters[canonicalDriver(name)]
	return a, ok
}

// Adapters lista los nombres registrados, ordenados.
func Adapters() []string {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	names := make([]string, 0, len(adapters))
	for n := range adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre un Handle con el adapter indicado en cfg.Driver.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (Handle, error) {
	a, ok := GetAdapter(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrAdapterNotFound, cfg.Driver, Adapters())
	}
	return a.Open(ctx, cfg)
}

func canonicalDriver(name string) string {
	d, err := DialectFor(name)
	if err != nil {
		return name
	}
	return d.Name()
}
