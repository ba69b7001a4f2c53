package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/krapi-cms/krapi-core/internal/cache"
	"github.com/krapi-cms/krapi-core/internal/metrics"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

const controlPlaneStore = "control-plane"

// SchemaInit prepara el esquema del control plane. Debe ser idempotente.
type SchemaInit func(ctx context.Context, h Handle) error

// ManagerConfig configuración del Manager.
type ManagerConfig struct {
	ControlPlane AdapterConfig
	Tenants      TenantConfig
	Pool         PoolConfig

	// SchemaInit default: migraciones embebidas del dialecto del control plane.
	SchemaInit SchemaInit
	// Cache memoriza la resolución de proyectos. Default: cache en memoria.
	Cache  cache.Client
	Logger *zap.Logger
}

// Manager es el punto único de acceso a los stores físicos: un Handle de
// control plane (con esquema inicializado una sola vez) y un Handle por tenant,
// construido de forma perezosa y reutilizado.
type Manager struct {
	cfg     ManagerConfig
	control Handle
	tenants *ConnectionPool
	log     *zap.Logger

	// cache guarda sólo resoluciones negativas; resolved las positivas, que
	// nunca salen del proceso.
	cache    cache.Client
	resolved cache.Client

	ready  atomic.Bool
	initSF singleflight.Group

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewManager abre el Handle del control plane con el adapter configurado.
// No inicializa el esquema: eso ocurre en el primer EnsureReady.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Tenants.validate(); err != nil {
		return nil, err
	}
	h, err := OpenAdapter(ctx, cfg.ControlPlane)
	if err != nil {
		return nil, wrapErr("open", controlPlaneStore, err)
	}
	return newManager(h, cfg), nil
}

// NewManagerWithHandle crea un Manager sobre un Handle de control plane ya
// abierto. El Manager pasa a ser dueño del Handle.
func NewManagerWithHandle(control Handle, cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Tenants.validate(); err != nil {
		return nil, err
	}
	return newManager(control, cfg), nil
}

func newManager(control Handle, cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg:      cfg,
		control:  control,
		cache:    cfg.Cache,
		resolved: cache.NewMemory("", 0),
		log:      logger.Or(cfg.Logger, "store"),
	}
	if m.cache == nil {
		m.cache = cache.NewMemory("krapi", 0)
	}
	if m.cfg.SchemaInit == nil {
		mig := ControlPlaneMigrator(control.Dialect())
		m.cfg.SchemaInit = func(ctx context.Context, h Handle) error {
			res, err := mig.Run(ctx, h)
			if err != nil {
				return err
			}
			if len(res.Applied) > 0 {
				m.log.Info("control plane migrations applied",
					zap.Ints("versions", res.Applied), logger.Duration(res.Duration))
			}
			return nil
		}
	}

	poolCfg := cfg.Pool
	userOpen, userClose := poolCfg.OnOpen, poolCfg.OnClose
	poolCfg.OnOpen = func(id string, h Handle) {
		metrics.TenantHandlesOpened.WithLabelValues(h.Name()).Inc()
		metrics.TenantHandlesActive.Inc()
		m.log.Info("tenant handle opened", logger.ProjectID(id), logger.Driver(h.Name()))
		if userOpen != nil {
			userOpen(id, h)
		}
	}
	poolCfg.OnClose = func(id string) {
		metrics.TenantHandlesActive.Dec()
		m.log.Info("tenant handle closed", logger.ProjectID(id))
		if userClose != nil {
			userClose(id)
		}
	}
	m.tenants = NewConnectionPool(m.openTenant, poolCfg)
	return m
}

// EnsureReady inicializa el esquema del control plane una sola vez por
// proceso. Llamadas concurrentes esperan la misma inicialización; si falla,
// todas reciben el error y la siguiente llamada reintenta.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}
	if m.closed.Load() {
		return ErrClosed
	}

	ch := m.initSF.DoChan(controlPlaneStore, func() (any, error) {
		if m.ready.Load() {
			return nil, nil
		}
		start := time.Now()
		// no se aborta a mitad si el llamador que disparó el vuelo cancela
		err := m.cfg.SchemaInit(context.WithoutCancel(ctx), m.control)
		if err != nil {
			metrics.SchemaInitializations.WithLabelValues("error").Inc()
			m.log.Error("control plane init failed", logger.Err(err))
			return nil, wrapErr("init", controlPlaneStore, err)
		}
		m.ready.Store(true)
		metrics.SchemaInitializations.WithLabelValues("ok").Inc()
		m.log.Info("control plane ready",
			logger.Driver(m.control.Name()), logger.Duration(time.Since(start)))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

// PendingMigrations lista las versiones embebidas que el control plane todavía
// no registró. No aplica nada.
func (m *Manager) PendingMigrations(ctx context.Context) ([]int, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	pending, err := ControlPlaneMigrator(m.control.Dialect()).Pending(ctx, m.control)
	return pending, wrapErr("migrations", controlPlaneStore, err)
}

// Ready indica si el control plane ya fue inicializado.
func (m *Manager) Ready() bool { return m.ready.Load() }

// ControlPlaneDialect dialecto del control plane.
func (m *Manager) ControlPlaneDialect() Dialect { return m.control.Dialect() }

// QueryControlPlane ejecuta una consulta en el control plane.
func (m *Manager) QueryControlPlane(ctx context.Context, query string, params ...any) (*Result, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}
	res, err := m.control.Query(ctx, query, params...)
	return res, wrapErr("query", controlPlaneStore, err)
}

// ExecuteControlPlane ejecuta una sentencia de escritura en el control plane.
func (m *Manager) ExecuteControlPlane(ctx context.Context, query string, params ...any) (*Result, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}
	res, err := m.control.Execute(ctx, query, params...)
	return res, wrapErr("execute", controlPlaneStore, err)
}

// HandleFor retorna el Handle del tenant. Dos llamadas con el mismo id
// retornan el mismo Handle; ids distintos nunca comparten Handle.
func (m *Manager) HandleFor(ctx context.Context, tenantID string) (Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	h, err := m.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, wrapErr("open", tenantStore(tenantID), err)
	}
	return scoped{Handle: h, store: tenantStore(tenantID)}, nil
}

// QueryTenant ejecuta una consulta en la base del tenant.
func (m *Manager) QueryTenant(ctx context.Context, tenantID, query string, params ...any) (*Result, error) {
	h, err := m.HandleFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return h.Query(ctx, query, params...)
}

// ExecuteTenant ejecuta una sentencia de escritura en la base del tenant.
func (m *Manager) ExecuteTenant(ctx context.Context, tenantID, query string, params ...any) (*Result, error) {
	h, err := m.HandleFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, query, params...)
}

// RefreshTenant descarta el Handle del tenant y su resolución cacheada. El
// próximo acceso lo reconstruye.
func (m *Manager) RefreshTenant(ctx context.Context, tenantID string) error {
	_ = m.cache.Delete(ctx, resolveKey(tenantID))
	_ = m.resolved.Delete(ctx, resolveKey(tenantID))
	return m.tenants.Evict(tenantID)
}

// Stats foto del pool de tenants.
func (m *Manager) Stats() PoolStats { return m.tenants.Stats() }

// Ping verifica el control plane.
func (m *Manager) Ping(ctx context.Context) error {
	return wrapErr("ping", controlPlaneStore, m.control.Ping(ctx))
}

// Close cierra todos los handles. Operaciones posteriores retornan ErrClosed.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		err = errors.Join(m.tenants.Close(), m.control.Close(), m.resolved.Close())
	})
	return err
}

func tenantStore(id string) string { return "tenant:" + id }

// scoped clasifica los errores de un Handle con el nombre de su store.
type scoped struct {
	Handle
	store string
}

func (s scoped) Query(ctx context.Context, query string, params ...any) (*Result, error) {
	res, err := s.Handle.Query(ctx, query, params...)
	return res, wrapErr("query", s.store, err)
}

func (s scoped) Execute(ctx context.Context, query string, params ...any) (*Result, error) {
	res, err := s.Handle.Execute(ctx, query, params...)
	return res, wrapErr("execute", s.store, err)
}

// Close no cierra el Handle subyacente: su ciclo de vida es del pool.
func (s scoped) Close() error { return nil }
