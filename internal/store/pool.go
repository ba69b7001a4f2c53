package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ConnectionPool mantiene un Handle por tenant.
// Construcciones concurrentes para el mismo tenant se colapsan en una sola
// (singleflight); una construcción fallida no se guarda y el siguiente Get
// reintenta.
type ConnectionPool struct {
	handles sync.Map // tenantID → *poolEntry
	sf      singleflight.Group
	factory HandleFactory
	cfg     PoolConfig

	stopOnce sync.Once
	stop     chan struct{}
}

// HandleFactory construye el Handle de un tenant.
type HandleFactory func(ctx context.Context, tenantID string) (Handle, error)

// PoolConfig configuración del pool. Ceros desactivan el barrido.
type PoolConfig struct {
	// MaxIdleTime cierra handles sin uso por más de este tiempo.
	MaxIdleTime time.Duration
	// HealthCheckInterval periodo del barrido (ping + idle).
	HealthCheckInterval time.Duration

	OnOpen  func(tenantID string, h Handle)
	OnClose func(tenantID string)
}

type poolEntry struct {
	handle    Handle
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func (e *poolEntry) touch() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

// NewConnectionPool crea el pool y, si corresponde, arranca el barrido.
func NewConnectionPool(factory HandleFactory, cfg PoolConfig) *ConnectionPool {
	p := &ConnectionPool{
		factory: factory,
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		go p.healthCheckLoop(cfg.HealthCheckInterval)
	}
	return p
}

// Get retorna el Handle del tenant, construyéndolo si hace falta.
func (p *ConnectionPool) Get(ctx context.Context, tenantID string) (Handle, error) {
	if v, ok := p.handles.Load(tenantID); ok {
		e := v.(*poolEntry)
		e.touch()
		return e.handle, nil
	}

	v, err, _ := p.sf.Do(tenantID, func() (any, error) {
		// double-check: otro vuelo pudo haber terminado entre Load y Do
		if v, ok := p.handles.Load(tenantID); ok {
			return v.(*poolEntry).handle, nil
		}
		// la construcción no depende de la cancelación del primer llamador
		h, err := p.factory(context.WithoutCancel(ctx), tenantID)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		p.handles.Store(tenantID, &poolEntry{handle: h, createdAt: now, lastUsed: now})
		if p.cfg.OnOpen != nil {
			p.cfg.OnOpen(tenantID, h)
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

// Has indica si el tenant tiene un Handle abierto.
func (p *ConnectionPool) Has(tenantID string) bool {
	_, ok := p.handles.Load(tenantID)
	return ok
}

// Evict cierra y descarta el Handle de un tenant.
func (p *ConnectionPool) Evict(tenantID string) error {
	v, ok := p.handles.LoadAndDelete(tenantID)
	if !ok {
		return nil
	}
	if p.cfg.OnClose != nil {
		p.cfg.OnClose(tenantID)
	}
	return v.(*poolEntry).handle.Close()
}

// Close detiene el barrido y cierra todos los handles.
func (p *ConnectionPool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })

	var errs []error
	p.handles.Range(func(key, _ any) bool {
		id := key.(string)
		if err := p.Evict(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// PoolStats estadísticas del pool.
type PoolStats struct {
	TotalActive int
	Handles     map[string]HandleStats
}

// HandleStats estadísticas de un Handle de tenant.
type HandleStats struct {
	Driver    string
	CreatedAt time.Time
	LastUsed  time.Time
}

// Stats retorna una foto del pool.
func (p *ConnectionPool) Stats() PoolStats {
	st := PoolStats{Handles: make(map[string]HandleStats)}
	p.handles.Range(func(key, value any) bool {
		e := value.(*poolEntry)
		e.mu.Lock()
		st.Handles[key.(string)] = HandleStats{
			Driver:    e.handle.Name(),
			CreatedAt: e.createdAt,
			LastUsed:  e.lastUsed,
		}
		e.mu.Unlock()
		st.TotalActive++
		return true
	})
	return st
}

func (p *ConnectionPool) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *ConnectionPool) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stale []string
	p.handles.Range(func(key, value any) bool {
		e := value.(*poolEntry)
		if err := e.handle.Ping(ctx); err != nil {
			stale = append(stale, key.(string))
			return true
		}
		e.mu.Lock()
		idle := time.Since(e.lastUsed)
		e.mu.Unlock()
		if p.cfg.MaxIdleTime > 0 && idle > p.cfg.MaxIdleTime {
			stale = append(stale, key.(string))
		}
		return true
	})
	for _, id := range stale {
		_ = p.Evict(id)
	}
}
