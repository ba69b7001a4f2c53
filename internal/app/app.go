// Package app arma el proceso a partir de la configuración: cache, store,
// servicios, janitor de sesiones y router de operaciones.
package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/cache"
	"github.com/krapi-cms/krapi-core/internal/config"
	"github.com/krapi-cms/krapi-core/internal/http/ops"
	"github.com/krapi-cms/krapi-core/internal/metrics"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
	"github.com/krapi-cms/krapi-core/internal/security/password"
	"github.com/krapi-cms/krapi-core/internal/services"
	"github.com/krapi-cms/krapi-core/internal/services/admin"
	"github.com/krapi-cms/krapi-core/internal/services/session"
	"github.com/krapi-cms/krapi-core/internal/store"
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/dal"
)

// Container agrupa las piezas vivas del proceso.
type Container struct {
	Config   *config.Config
	Cache    cache.Client
	Store    *store.Manager
	Services *services.Services
	Janitor  *session.Janitor
	Ops      http.Handler
}

// Options ajustes que no vienen de la configuración.
type Options struct {
	Logger  *zap.Logger
	Version string
}

// New construye el Container. No inicializa el esquema: eso lo hace el primer
// EnsureReady (o `krapi migrate`).
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	log := logger.Or(opts.Logger, "app")

	if err := metrics.Register(nil); err != nil {
		return nil, err
	}

	cc, err := cache.New(cache.Config{
		Kind:            cfg.Cache.Kind,
		Prefix:          cfg.Cache.Redis.Prefix,
		Addr:            cfg.Cache.Redis.Addr,
		Password:        cfg.Cache.Redis.Password,
		DB:              cfg.Cache.Redis.DB,
		CleanupInterval: config.Duration(cfg.Cache.Memory.CleanupInterval),
	})
	if err != nil {
		return nil, err
	}

	mgr, err := store.NewManager(ctx, store.ManagerConfig{
		ControlPlane: store.AdapterConfig{
			Driver:          cfg.ControlPlane.Driver,
			DSN:             cfg.ControlPlane.DSN,
			MaxOpenConns:    cfg.ControlPlane.MaxOpenConns,
			MaxIdleConns:    cfg.ControlPlane.MaxIdleConns,
			ConnMaxLifetime: config.Duration(cfg.ControlPlane.ConnMaxLifetime),
		},
		Tenants: store.TenantConfig{
			Driver:          cfg.Tenants.Driver,
			DSNTemplate:     cfg.Tenants.DSNTemplate,
			Registry:        cfg.Tenants.Registry,
			ResolveCacheTTL: config.Duration(cfg.Tenants.ResolveCacheTTL),
			MaxOpenConns:    cfg.Tenants.MaxOpenConns,
			MaxIdleConns:    cfg.Tenants.MaxIdleConns,
			ConnMaxLifetime: config.Duration(cfg.Tenants.ConnMaxLifetime),
		},
		Pool: store.PoolConfig{
			MaxIdleTime:         config.Duration(cfg.Tenants.MaxIdleTime),
			HealthCheckInterval: config.Duration(cfg.Tenants.HealthCheckInterval),
		},
		Cache:  cc,
		Logger: log.Named("store"),
	})
	if err != nil {
		_ = cc.Close()
		return nil, err
	}

	hasher := password.Argon2id{Params: password.Default}
	if a := cfg.Security.Argon2; a.MemoryKiB > 0 {
		hasher.Params.Memory = a.MemoryKiB
		if a.Time > 0 {
			hasher.Params.Time = a.Time
		}
		if a.Parallelism > 0 {
			hasher.Params.Parallelism = a.Parallelism
		}
	}
	pp := cfg.Security.PasswordPolicy
	policy := password.Policy{
		MinLength:     pp.MinLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
	}

	svcs := services.New(services.Deps{
		Store:  mgr,
		Hasher: hasher,
		Policy: &policy,
		DefaultAdmin: admin.DefaultAdmin{
			Username: cfg.DefaultAdmin.Username,
			Email:    cfg.DefaultAdmin.Email,
			Password: cfg.DefaultAdmin.Password,
		},
		SessionTTL:           config.Duration(cfg.Sessions.TTL),
		SessionTokenBytes:    cfg.Sessions.TokenBytes,
		ActivityTimeout:      config.Duration(cfg.Activity.QueryTimeout),
		ActivityDefaultLimit: cfg.Activity.DefaultLimit,
		ActivityMaxLimit:     cfg.Activity.MaxLimit,
	})

	janitor := session.NewJanitor(svcs.Sessions, session.JanitorConfig{
		Interval:          config.Duration(cfg.Sessions.CleanupInterval),
		RetentionInterval: config.Duration(cfg.Sessions.RetentionInterval),
		RetentionDays:     cfg.Sessions.RetentionDays,
	}, log.Named("janitor"))

	opsHandler, err := ops.NewRouter(ops.Deps{
		Store:   mgr,
		Pools:   mgr,
		Logger:  log.Named("ops"),
		Version: opts.Version,
	})
	if err != nil {
		_ = mgr.Close()
		_ = cc.Close()
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Cache:    cc,
		Store:    mgr,
		Services: svcs,
		Janitor:  janitor,
		Ops:      opsHandler,
	}, nil
}

// Close libera store y cache.
func (c *Container) Close() error {
	return errors.Join(c.Store.Close(), c.Cache.Close())
}
