package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/cache"
	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/store"
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/sqlite"
)

func newManager(t *testing.T, cfg store.ManagerConfig) *store.Manager {
	t.Helper()
	if cfg.ControlPlane.Driver == "" {
		cfg.ControlPlane = store.AdapterConfig{Driver: "sqlite", DSN: ":memory:"}
	}
	if cfg.Tenants.DSNTemplate == "" && cfg.Tenants.Registry != store.RegistryRequired {
		cfg.Tenants.DSNTemplate = ":memory:"
	}
	cfg.Logger = zap.NewNop()
	m, err := store.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestEnsureReady_ConcurrentCallersInitOnce(t *testing.T) {
	var calls atomic.Int32
	m := newManager(t, store.ManagerConfig{
		SchemaInit: func(ctx context.Context, h store.Handle) error {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return nil
		},
	})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.EnsureReady(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), calls.Load())
	require.True(t, m.Ready())

	require.NoError(t, m.EnsureReady(context.Background()))
	require.Equal(t, int32(1), calls.Load())
}

func TestEnsureReady_FailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	m := newManager(t, store.ManagerConfig{
		SchemaInit: func(ctx context.Context, h store.Handle) error {
			if calls.Add(1) == 1 {
				return errors.New("disk full")
			}
			return nil
		},
	})

	err := m.EnsureReady(context.Background())
	require.Error(t, err)
	require.True(t, repository.IsStoreUnavailable(err))
	require.False(t, m.Ready())

	require.NoError(t, m.EnsureReady(context.Background()))
	require.Equal(t, int32(2), calls.Load())
}

func TestEnsureReady_DefaultMigrationsCreateControlPlane(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.ManagerConfig{})

	for _, table := range []string{"admin_users", "sessions", "projects", "activity_logs"} {
		res, err := m.QueryControlPlane(ctx, "SELECT COUNT(*) AS n FROM "+table)
		require.NoError(t, err, table)
		require.EqualValues(t, 0, res.Rows[0]["n"])
	}

	res, err := m.QueryControlPlane(ctx, "SELECT version FROM _migrations")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
}

func TestControlPlane_ErrorsAreClassified(t *testing.T) {
	m := newManager(t, store.ManagerConfig{})

	_, err := m.QueryControlPlane(context.Background(), "SELECT * FROM no_such_table")
	require.Error(t, err)
	require.True(t, repository.IsStoreUnavailable(err))

	var se *store.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, "control-plane", se.Store)
	require.Equal(t, "query", se.Op)
}

func TestHandleFor_SameTenantSameHandle(t *testing.T) {
	ctx := context.Background()
	var opened atomic.Int32
	m := newManager(t, store.ManagerConfig{
		Tenants: store.TenantConfig{Registry: store.RegistryOff},
		Pool: store.PoolConfig{
			OnOpen: func(string, store.Handle) { opened.Add(1) },
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.HandleFor(ctx, "proj_1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), opened.Load())

	// el mismo handle físico: una tabla creada por una vía es visible por la otra
	_, err := m.ExecuteTenant(ctx, "proj_1", "CREATE TABLE items (id TEXT)")
	require.NoError(t, err)
	_, err = m.QueryTenant(ctx, "proj_1", "SELECT * FROM items")
	require.NoError(t, err)

	st := m.Stats()
	require.Equal(t, 1, st.TotalActive)
	require.Equal(t, "sqlite", st.Handles["proj_1"].Driver)
}

func TestTenantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.ManagerConfig{Tenants: store.TenantConfig{Registry: store.RegistryOff}})

	// mismo SQL, mismas tablas, distintos tenants
	for _, id := range []string{"proj_a", "proj_b"} {
		_, err := m.ExecuteTenant(ctx, id, "CREATE TABLE items (id TEXT)")
		require.NoError(t, err)
		_, err = m.ExecuteTenant(ctx, id, "INSERT INTO items (id) VALUES (?)", "row-of-"+id)
		require.NoError(t, err)
	}

	for _, id := range []string{"proj_a", "proj_b"} {
		res, err := m.QueryTenant(ctx, id, "SELECT id FROM items")
		require.NoError(t, err)
		require.Len(t, res.Rows, 1, id)
		assert.Equal(t, "row-of-"+id, res.Rows[0]["id"])
	}

	_, err := m.QueryTenant(ctx, "proj_c", "SELECT * FROM items")
	require.Error(t, err)
	var se *store.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, "tenant:proj_c", se.Store)

	// ni el control plane ve las tablas del tenant
	_, err = m.QueryControlPlane(ctx, "SELECT * FROM items")
	require.Error(t, err)
}

func TestNewManager_RejectsSharedMemoryTemplate(t *testing.T) {
	_, err := store.NewManager(context.Background(), store.ManagerConfig{
		ControlPlane: store.AdapterConfig{Driver: "sqlite", DSN: ":memory:"},
		Tenants: store.TenantConfig{
			DSNTemplate: "file:tenants?mode=memory&cache=shared",
			Registry:    store.RegistryOff,
		},
	})
	require.ErrorContains(t, err, "{project}")
}

// recordingCache registra todo lo que se escribe en el cache compartido.
type recordingCache struct {
	cache.Client
	mu     sync.Mutex
	values []string
}

func (c *recordingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.values = append(c.values, value)
	c.mu.Unlock()
	return c.Client.Set(ctx, key, value, ttl)
}

func (c *recordingCache) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

func TestRegistry_ProjectDSNNeverReachesSharedCache(t *testing.T) {
	ctx := context.Background()
	shared := &recordingCache{Client: cache.NewMemory("t", 0)}
	m := newManager(t, store.ManagerConfig{
		Cache: shared,
		Tenants: store.TenantConfig{
			Registry:    store.RegistryRequired,
			Driver:      "sqlite",
			DSNTemplate: ":memory:",
		},
	})

	dsn := "file:" + filepath.Join(t.TempDir(), "registered", "proj_reg.db")
	_, err := m.ExecuteControlPlane(ctx,
		"INSERT INTO projects (id, name, active, db_driver, db_dsn, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		"proj_reg", "Registered", 1, "sqlite", dsn, store.SQLite.Time(time.Now()))
	require.NoError(t, err)

	_, err = m.ExecuteTenant(ctx, "proj_reg", "CREATE TABLE items (id TEXT)")
	require.NoError(t, err)
	_, err = os.Stat(strings.TrimPrefix(dsn, "file:"))
	require.NoError(t, err, "the registered DSN is used")

	// tras un refresh la resolución se repite y sigue sin escribirse
	require.NoError(t, m.RefreshTenant(ctx, "proj_reg"))
	_, err = m.QueryTenant(ctx, "proj_reg", "SELECT * FROM items")
	require.NoError(t, err)

	_, err = m.HandleFor(ctx, "proj_missing")
	require.ErrorIs(t, err, store.ErrTenantNotFound)

	written := shared.written()
	require.NotEmpty(t, written, "negative resolutions are cached")
	for _, v := range written {
		assert.NotContains(t, v, "proj_reg.db")
	}
}

func TestHandleFor_InvalidTenantID(t *testing.T) {
	m := newManager(t, store.ManagerConfig{})
	_, err := m.HandleFor(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, store.ErrInvalidTenantID)
}

func TestRegistryRequired(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.ManagerConfig{
		Tenants: store.TenantConfig{
			Registry:    store.RegistryRequired,
			Driver:      "sqlite",
			DSNTemplate: ":memory:",
		},
	})

	_, err := m.HandleFor(ctx, "proj_x")
	require.ErrorIs(t, err, store.ErrTenantNotFound)

	_, err = m.ExecuteControlPlane(ctx,
		"INSERT INTO projects (id, name, active, db_driver, db_dsn, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		"proj_x", "X", 1, "", "", store.SQLite.Time(time.Now()))
	require.NoError(t, err)

	// la resolución negativa queda cacheada hasta el refresh
	_, err = m.HandleFor(ctx, "proj_x")
	require.ErrorIs(t, err, store.ErrTenantNotFound)

	require.NoError(t, m.RefreshTenant(ctx, "proj_x"))
	_, err = m.HandleFor(ctx, "proj_x")
	require.NoError(t, err)

	_, err = m.ExecuteControlPlane(ctx, "UPDATE projects SET active = 0 WHERE id = ?", "proj_x")
	require.NoError(t, err)
	require.NoError(t, m.RefreshTenant(ctx, "proj_x"))
	_, err = m.HandleFor(ctx, "proj_x")
	require.ErrorIs(t, err, store.ErrTenantNotFound)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.ManagerConfig{Tenants: store.TenantConfig{Registry: store.RegistryOff}})
	_, err := m.HandleFor(ctx, "proj_1")
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.HandleFor(ctx, "proj_1")
	require.ErrorIs(t, err, store.ErrClosed)
	require.Equal(t, 0, m.Stats().TotalActive)
}

func TestNewManager_UnknownAdapter(t *testing.T) {
	_, err := store.NewManager(context.Background(), store.ManagerConfig{
		ControlPlane: store.AdapterConfig{Driver: "oracle", DSN: "x"},
		Tenants:      store.TenantConfig{DSNTemplate: ":memory:"},
	})
	require.ErrorIs(t, err, store.ErrAdapterNotFound)
}
