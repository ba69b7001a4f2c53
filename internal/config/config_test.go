package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "krapi.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "sqlite", c.ControlPlane.Driver)
	assert.Contains(t, c.Tenants.DSNTemplate, "{project}")
	assert.Equal(t, "optional", c.Tenants.Registry)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, 24*time.Hour, Duration(c.Sessions.TTL))
	assert.Equal(t, 5*time.Second, Duration(c.Activity.QueryTimeout))
	assert.Equal(t, 30, c.Sessions.RetentionDays)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	p := writeYAML(t, `
control_plane:
  driver: postgres
  dsn: postgres://localhost/krapi
tenants:
  dsn_template: postgres://localhost/krapi_{project}
  registry: required
sessions:
  ttl: 2h
`)
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.ControlPlane.Driver)
	assert.Equal(t, "required", c.Tenants.Registry)
	assert.Equal(t, "30m", c.Sessions.TTL)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, "krapi", c.Cache.Redis.Prefix)
}

func TestLoad_EnvDriverSkipsSQLiteDefaults(t *testing.T) {
	t.Setenv("CONTROL_PLANE_DRIVER", "mysql")
	_, err := Load(writeYAML(t, "app:\n  app_env: prod\n"))
	require.ErrorContains(t, err, "control_plane.dsn is required")
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "control_plane:\n  driver: oracle\n  dsn: x\n",
		"registry": "tenants:\n  registry: sometimes\n",
		"duration": "sessions:\n  ttl: forever\n",
		"cache":    "cache:\n  kind: memcached\n",
		"redis":    "cache:\n  kind: redis\n",
		"limits":   "activity:\n  default_limit: 500\n  max_limit: 10\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
