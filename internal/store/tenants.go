package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/krapi-cms/krapi-core/internal/cache"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
	"github.com/krapi-cms/krapi-core/internal/rowmap"
)

// Modos del registro de proyectos.
const (
	RegistryOff      = "off"      // sólo template
	RegistryOptional = "optional" // la fila de projects pisa el template; sin fila → template
	RegistryRequired = "required" // sin fila activa → ErrTenantNotFound
)

// DSNPlaceholder se reemplaza por el id del proyecto en TenantConfig.DSNTemplate.
const DSNPlaceholder = "{project}"

// TenantConfig define cómo se resuelve la base de cada proyecto.
type TenantConfig struct {
	Driver      string
	DSNTemplate string
	Registry    string
	// ResolveCacheTTL vida de una resolución cacheada (positiva o negativa).
	ResolveCacheTTL time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c TenantConfig) registryMode() string {
	if c.Registry == "" {
		return RegistryOptional
	}
	return c.Registry
}

func (c TenantConfig) validate() error {
	switch c.registryMode() {
	case RegistryOff, RegistryOptional, RegistryRequired:
	default:
		return fmt.Errorf("store: unknown tenant registry mode %q", c.Registry)
	}
	if c.registryMode() == RegistryOff && c.DSNTemplate == "" {
		return errors.New("store: tenant registry is off and no DSN template is set")
	}
	// un template sin placeholder haría que todos los proyectos compartan base
	if c.DSNTemplate != "" && !strings.Contains(c.DSNTemplate, DSNPlaceholder) && !isPrivateMemoryDSN(c.DSNTemplate) {
		return fmt.Errorf("store: tenant DSN template must contain %s", DSNPlaceholder)
	}
	return nil
}

// isPrivateMemoryDSN sólo acepta ":memory:", que abre una base distinta por
// Handle. "mode=memory" con cache=shared es una sola base para todos.
func isPrivateMemoryDSN(dsn string) bool { return dsn == ":memory:" }

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidTenantID indica si id es un identificador de proyecto aceptable. El id
// termina dentro de DSNs y nombres de archivo, así que el alfabeto es cerrado.
func ValidTenantID(id string) bool { return tenantIDPattern.MatchString(id) }

type resolution struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// missingMarker es lo único que se escribe en el cache compartido: las
// resoluciones positivas llevan credenciales y quedan en memoria del proceso.
const missingMarker = "missing"

func resolveKey(tenantID string) string { return "tenant-resolve:" + tenantID }

func (m *Manager) openTenant(ctx context.Context, tenantID string) (Handle, error) {
	r, err := m.resolveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	t := m.cfg.Tenants
	h, err := OpenAdapter(ctx, AdapterConfig{
		Driver:          r.Driver,
		DSN:             r.DSN,
		MaxOpenConns:    t.MaxOpenConns,
		MaxIdleConns:    t.MaxIdleConns,
		ConnMaxLifetime: t.ConnMaxLifetime,
	})
	if err != nil {
		m.log.Warn("tenant handle open failed", logger.ProjectID(tenantID), logger.Driver(r.Driver), logger.Err(err))
		return nil, err
	}
	return h, nil
}

func (m *Manager) resolveTenant(ctx context.Context, tenantID string) (resolution, error) {
	t := m.cfg.Tenants
	mode := t.registryMode()
	if mode == RegistryOff {
		return m.fromTemplate(tenantID)
	}

	key := resolveKey(tenantID)
	if raw, err := m.resolved.Get(ctx, key); err == nil {
		var r resolution
		if json.Unmarshal([]byte(raw), &r) == nil {
			return r, nil
		}
	}
	if _, err := m.cache.Get(ctx, key); err == nil {
		return resolution{}, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	} else if !cache.IsNotFound(err) {
		m.log.Warn("tenant resolve cache read failed", logger.ProjectID(tenantID), logger.Err(err))
	}

	r, err := m.lookupProject(ctx, tenantID, mode)
	if errors.Is(err, ErrTenantNotFound) {
		if cerr := m.cache.Set(ctx, key, missingMarker, t.resolveTTL()); cerr != nil {
			m.log.Warn("tenant resolve cache write failed", logger.ProjectID(tenantID), logger.Err(cerr))
		}
		return resolution{}, err
	}
	if err != nil {
		return resolution{}, err
	}
	if raw, jerr := json.Marshal(r); jerr == nil {
		_ = m.resolved.Set(ctx, key, string(raw), t.resolveTTL())
	}
	return r, nil
}

func (m *Manager) lookupProject(ctx context.Context, tenantID, mode string) (resolution, error) {
	res, err := m.QueryControlPlane(ctx,
		"SELECT id, name, active, db_driver, db_dsn, created_at FROM projects WHERE id = ?", tenantID)
	if err != nil {
		return resolution{}, err
	}
	row := res.First()
	if row == nil {
		if mode == RegistryRequired {
			return resolution{}, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return m.fromTemplate(tenantID)
	}
	p := rowmap.Project(row)
	if !p.Active {
		return resolution{}, fmt.Errorf("%w: %s (disabled)", ErrTenantNotFound, tenantID)
	}

	r := resolution{Driver: m.defaultTenantDriver()}
	if tpl, err := m.fromTemplate(tenantID); err == nil {
		r = tpl
	}
	if d := strings.TrimSpace(p.DBDriver); d != "" {
		r.Driver = d
	}
	if dsn := strings.TrimSpace(p.DBDSN); dsn != "" {
		r.DSN = dsn
	}
	if r.DSN == "" {
		return resolution{}, fmt.Errorf("store: no DSN for tenant %s", tenantID)
	}
	return r, nil
}

func (m *Manager) fromTemplate(tenantID string) (resolution, error) {
	t := m.cfg.Tenants
	if t.DSNTemplate == "" {
		return resolution{}, fmt.Errorf("store: no DSN for tenant %s", tenantID)
	}
	return resolution{
		Driver: m.defaultTenantDriver(),
		DSN:    strings.ReplaceAll(t.DSNTemplate, DSNPlaceholder, tenantID),
	}, nil
}

func (m *Manager) defaultTenantDriver() string {
	if m.cfg.Tenants.Driver != "" {
		return m.cfg.Tenants.Driver
	}
	return m.control.Name()
}

func (c TenantConfig) resolveTTL() time.Duration {
	if c.ResolveCacheTTL > 0 {
		return c.ResolveCacheTTL
	}
	return time.Minute
}
