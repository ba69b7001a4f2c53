package store

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (
    id TEXT
);

-- comment between
CREATE INDEX idx_a ON a (id);
INSERT INTO a (id) VALUES ('x')`

	got := SplitStatements(script)
	require.Len(t, got, 3)
	require.Contains(t, got[0], "CREATE TABLE a")
	require.NotContains(t, got[0], ";")
	require.Equal(t, "CREATE INDEX idx_a ON a (id)", got[1])
	require.Equal(t, "INSERT INTO a (id) VALUES ('x')", got[2])
}

func TestMigrator_ParseOrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2;")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":       {Data: []byte("ignored")},
	}
	migs, err := NewMigrator(fsys, "m").Parse()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	require.Equal(t, 1, migs[0].Version)
	require.Equal(t, "first", migs[0].Name)
	require.Equal(t, 2, migs[1].Version)
}

func TestControlPlaneMigrations_EveryDialect(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres, MySQL} {
		migs, err := ControlPlaneMigrator(d).Parse()
		require.NoError(t, err, d.Name())
		require.NotEmpty(t, migs, d.Name())
		require.Equal(t, 1, migs[0].Version)
		for _, table := range []string{"admin_users", "sessions", "projects", "activity_logs"} {
			require.Contains(t, migs[0].SQL, table, d.Name())
		}
	}
}

func TestDialects(t *testing.T) {
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Postgres.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	require.Equal(t, "SELECT * FROM t WHERE a = ?", SQLite.Rebind("SELECT * FROM t WHERE a = ?"))
	require.Equal(t, "SELECT * FROM t WHERE a = ?", MySQL.Rebind("SELECT * FROM t WHERE a = ?"))

	d, err := DialectFor("pgx")
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())
	_, err = DialectFor("oracle")
	require.Error(t, err)
}

func TestTenantConfigValidate(t *testing.T) {
	require.NoError(t, TenantConfig{DSNTemplate: "/data/{project}.db"}.validate())
	require.NoError(t, TenantConfig{DSNTemplate: ":memory:", Registry: RegistryOff}.validate())
	require.NoError(t, TenantConfig{Registry: RegistryRequired}.validate())

	require.Error(t, TenantConfig{DSNTemplate: "postgres://db/shared"}.validate())
	require.Error(t, TenantConfig{Registry: RegistryOff}.validate())
	require.Error(t, TenantConfig{Registry: "sometimes"}.validate())

	// bases en memoria compartidas: todos los tenants verían la misma
	for _, shared := range []string{
		"file:tenants?mode=memory&cache=shared",
		"file::memory:?cache=shared",
		"file:tenants?mode=memory",
	} {
		require.Error(t, TenantConfig{DSNTemplate: shared, Registry: RegistryOff}.validate(), shared)
	}
	require.NoError(t, TenantConfig{DSNTemplate: "file:{project}?mode=memory&cache=shared", Registry: RegistryOff}.validate())
}

func TestValidTenantID(t *testing.T) {
	for _, ok := range []string{"proj_1", "a", "Project-42"} {
		require.True(t, ValidTenantID(ok), ok)
	}
	for _, bad := range []string{"", "../etc", "a b", "_lead", "x;DROP"} {
		require.False(t, ValidTenantID(bad), bad)
	}
}
