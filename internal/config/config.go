package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod | test
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Ops expone /healthz, /readyz y /metrics.
	Ops struct {
		Addr string `yaml:"addr"`
	} `yaml:"ops"`

	ControlPlane struct {
		Driver          string `yaml:"driver"` // sqlite | postgres | mysql
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"control_plane"`

	Tenants struct {
		Driver string `yaml:"driver"` // vacío = mismo driver del control plane
		// DSNTemplate con placeholder {project}
		DSNTemplate         string `yaml:"dsn_template"`
		Registry            string `yaml:"registry"` // off | optional | required
		ResolveCacheTTL     string `yaml:"resolve_cache_ttl"`
		MaxOpenConns        int    `yaml:"max_open_conns"`
		MaxIdleConns        int    `yaml:"max_idle_conns"`
		ConnMaxLifetime     string `yaml:"conn_max_lifetime"`
		MaxIdleTime         string `yaml:"max_idle_time"` // vacío = nunca se desaloja
		HealthCheckInterval string `yaml:"health_check_interval"`
	} `yaml:"tenants"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			CleanupInterval string `yaml:"cleanup_interval"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Sessions struct {
		TTL               string `yaml:"ttl"`
		TokenBytes        int    `yaml:"token_bytes"`
		CleanupInterval   string `yaml:"cleanup_interval"`
		RetentionInterval string `yaml:"retention_interval"`
		RetentionDays     int    `yaml:"retention_days"`
	} `yaml:"sessions"`

	Activity struct {
		QueryTimeout string `yaml:"query_timeout"`
		DefaultLimit int    `yaml:"default_limit"`
		MaxLimit     int    `yaml:"max_limit"`
	} `yaml:"activity"`

	Security struct {
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		Argon2 struct {
			MemoryKiB   uint32 `yaml:"memory_kib"`
			Time        uint32 `yaml:"time"`
			Parallelism uint8  `yaml:"parallelism"`
		} `yaml:"argon2"`
	} `yaml:"security"`

	DefaultAdmin struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"default_admin"`
}

// Default retorna la configuración de desarrollo: SQLite local, cache en
// memoria, tenants en archivos ./data/tenants/<project>.db.
func Default() *Config {
	var c Config
	c.applyEnvOverrides()
	c.setDefaults()
	return &c
}

// Load lee un YAML, aplica overrides por env y defaults, y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	// env antes que defaults: CONTROL_PLANE_DRIVER decide el DSN por defecto
	c.applyEnvOverrides()
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9464"
	}

	if c.ControlPlane.Driver == "" {
		c.ControlPlane.Driver = "sqlite"
	}
	if c.ControlPlane.DSN == "" && c.ControlPlane.Driver == "sqlite" {
		c.ControlPlane.DSN = "file:./data/krapi.db"
	}

	if c.Tenants.DSNTemplate == "" && c.ControlPlane.Driver == "sqlite" {
		c.Tenants.DSNTemplate = "file:./data/tenants/{project}.db"
	}
	if c.Tenants.Registry == "" {
		c.Tenants.Registry = "optional"
	}
	if c.Tenants.ResolveCacheTTL == "" {
		c.Tenants.ResolveCacheTTL = "1m"
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "krapi"
	}
	if c.Cache.Memory.CleanupInterval == "" {
		c.Cache.Memory.CleanupInterval = "5m"
	}

	if c.Sessions.TTL == "" {
		c.Sessions.TTL = "24h"
	}
	if c.Sessions.CleanupInterval == "" {
		c.Sessions.CleanupInterval = "1h"
	}
	if c.Sessions.RetentionInterval == "" {
		c.Sessions.RetentionInterval = "24h"
	}
	if c.Sessions.RetentionDays == 0 {
		c.Sessions.RetentionDays = 30
	}

	if c.Activity.QueryTimeout == "" {
		c.Activity.QueryTimeout = "5s"
	}
	if c.Activity.DefaultLimit == 0 {
		c.Activity.DefaultLimit = 100
	}
	if c.Activity.MaxLimit == 0 {
		c.Activity.MaxLimit = 1000
	}

	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}

	if c.DefaultAdmin.Username == "" {
		c.DefaultAdmin.Username = "admin"
	}
	if c.DefaultAdmin.Email == "" {
		c.DefaultAdmin.Email = "admin@localhost"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("OPS_ADDR"); ok {
		c.Ops.Addr = v
	}

	// CONTROL PLANE
	if v, ok := getEnvStr("CONTROL_PLANE_DRIVER"); ok {
		c.ControlPlane.Driver = v
	}
	if v, ok := getEnvStr("CONTROL_PLANE_DSN"); ok {
		c.ControlPlane.DSN = v
	}
	if v, ok := getEnvInt("CONTROL_PLANE_MAX_OPEN_CONNS"); ok {
		c.ControlPlane.MaxOpenConns = v
	}
	if v, ok := getEnvInt("CONTROL_PLANE_MAX_IDLE_CONNS"); ok {
		c.ControlPlane.MaxIdleConns = v
	}
	if v, ok := getEnvStr("CONTROL_PLANE_CONN_MAX_LIFETIME"); ok {
		c.ControlPlane.ConnMaxLifetime = v
	}

	// TENANTS
	if v, ok := getEnvStr("TENANT_DRIVER"); ok {
		c.Tenants.Driver = v
	}
	if v, ok := getEnvStr("TENANT_DSN_TEMPLATE"); ok {
		c.Tenants.DSNTemplate = v
	}
	if v, ok := getEnvStr("TENANT_REGISTRY"); ok {
		c.Tenants.Registry = strings.ToLower(v)
	}
	if v, ok := getEnvStr("TENANT_RESOLVE_CACHE_TTL"); ok {
		c.Tenants.ResolveCacheTTL = v
	}
	if v, ok := getEnvStr("TENANT_MAX_IDLE_TIME"); ok {
		c.Tenants.MaxIdleTime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// SESSIONS
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Sessions.TTL = v
	}
	if v, ok := getEnvStr("SESSION_CLEANUP_INTERVAL"); ok {
		c.Sessions.CleanupInterval = v
	}
	if v, ok := getEnvInt("SESSION_RETENTION_DAYS"); ok {
		c.Sessions.RetentionDays = v
	}

	// ACTIVITY
	if v, ok := getEnvStr("ACTIVITY_QUERY_TIMEOUT"); ok {
		c.Activity.QueryTimeout = v
	}

	// SECURITY
	if v, ok := getEnvInt("SECURITY_PASSWORD_POLICY_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_UPPER"); ok {
		c.Security.PasswordPolicy.RequireUpper = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_DIGIT"); ok {
		c.Security.PasswordPolicy.RequireDigit = v
	}
	if v, ok := getEnvBool("SECURITY_PASSWORD_POLICY_REQUIRE_SYMBOL"); ok {
		c.Security.PasswordPolicy.RequireSymbol = v
	}

	// DEFAULT ADMIN
	if v, ok := getEnvStr("DEFAULT_ADMIN_USERNAME"); ok {
		c.DefaultAdmin.Username = v
	}
	if v, ok := getEnvStr("DEFAULT_ADMIN_EMAIL"); ok {
		c.DefaultAdmin.Email = v
	}
	if v, ok := getEnvStr("DEFAULT_ADMIN_PASSWORD"); ok {
		c.DefaultAdmin.Password = v
	}
}

var knownDrivers = map[string]bool{
	"sqlite": true, "sqlite3": true,
	"postgres": true, "postgresql": true, "pg": true, "pgx": true,
	"mysql": true, "mariadb": true,
}

// Validate revisa drivers, modos y duraciones.
func (c *Config) Validate() error {
	if !knownDrivers[strings.ToLower(c.ControlPlane.Driver)] {
		return fmt.Errorf("config: control_plane.driver %q not supported", c.ControlPlane.Driver)
	}
	if strings.TrimSpace(c.ControlPlane.DSN) == "" {
		return fmt.Errorf("config: control_plane.dsn is required")
	}
	if d := c.Tenants.Driver; d != "" && !knownDrivers[strings.ToLower(d)] {
		return fmt.Errorf("config: tenants.driver %q not supported", d)
	}
	switch c.Tenants.Registry {
	case "off", "optional", "required":
	default:
		return fmt.Errorf("config: tenants.registry must be off, optional or required (got %q)", c.Tenants.Registry)
	}
	switch strings.ToLower(c.Cache.Kind) {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: cache.redis.addr is required for cache.kind=redis")
		}
	default:
		return fmt.Errorf("config: cache.kind %q not supported", c.Cache.Kind)
	}

	durations := map[string]string{
		"control_plane.conn_max_lifetime": c.ControlPlane.ConnMaxLifetime,
		"tenants.resolve_cache_ttl":       c.Tenants.ResolveCacheTTL,
		"tenants.conn_max_lifetime":       c.Tenants.ConnMaxLifetime,
		"tenants.max_idle_time":           c.Tenants.MaxIdleTime,
		"tenants.health_check_interval":   c.Tenants.HealthCheckInterval,
		"cache.memory.cleanup_interval":   c.Cache.Memory.CleanupInterval,
		"sessions.ttl":                    c.Sessions.TTL,
		"sessions.cleanup_interval":       c.Sessions.CleanupInterval,
		"sessions.retention_interval":     c.Sessions.RetentionInterval,
		"activity.query_timeout":          c.Activity.QueryTimeout,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	if c.Sessions.RetentionDays < 0 {
		return fmt.Errorf("config: sessions.retention_days must be >= 0")
	}
	if c.Activity.MaxLimit < c.Activity.DefaultLimit {
		return fmt.Errorf("config: activity.max_limit must be >= activity.default_limit")
	}
	return nil
}

// Duration parsea un campo ya validado. Vacío o inválido → 0.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}
