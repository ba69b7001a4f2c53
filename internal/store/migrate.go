package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// controlPlaneFS migraciones del control plane, una carpeta por dialecto.
// Formato de archivo: {version}_{name}.sql (ej: 0001_control_plane.sql).
//
//go:embed migrations
var controlPlaneFS embed.FS

// Migrator aplica migraciones SQL sobre un Handle. La tabla _migrations
// registra las versiones aplicadas; re-ejecutar es seguro.
type Migrator struct {
	fsys fs.FS
	dir  string
}

// NewMigrator crea un Migrator que lee dir dentro de fsys.
func NewMigrator(fsys fs.FS, dir string) *Migrator {
	return &Migrator{fsys: fsys, dir: dir}
}

// ControlPlaneMigrator retorna el Migrator embebido para el dialecto dado.
func ControlPlaneMigrator(d Dialect) *Migrator {
	return NewMigrator(controlPlaneFS, path.Join("migrations", d.Name()))
}

// Migration una migración individual.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationResult resultado de Run.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// Parse lee las migraciones ordenadas por versión.
func (m *Migrator) Parse() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir %s: %w", m.dir, err)
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		version, _ := strconv.Atoi(match[1])
		content, err := fs.ReadFile(m.fsys, path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: match[2], SQL: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run aplica las migraciones pendientes en orden. Se detiene en la primera
// que falla; las anteriores quedan registradas.
func (m *Migrator) Run(ctx context.Context, h Handle) (*MigrationResult, error) {
	start := time.Now()
	res := &MigrationResult{}

	if err := m.ensureTable(ctx, h); err != nil {
		return res, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := m.appliedVersions(ctx, h)
	if err != nil {
		return res, fmt.Errorf("reading applied migrations: %w", err)
	}
	migrations, err := m.Parse()
	if err != nil {
		return res, err
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			res.Skipped = append(res.Skipped, mig.Version)
			continue
		}
		for _, stmt := range SplitStatements(mig.SQL) {
			if _, err := h.Execute(ctx, stmt); err != nil {
				return res, fmt.Errorf("applying migration %04d_%s: %w", mig.Version, mig.Name, err)
			}
		}
		if _, err := h.Execute(ctx,
			"INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Name, h.Dialect().Time(time.Now()),
		); err != nil {
			return res, fmt.Errorf("recording migration %04d: %w", mig.Version, err)
		}
		res.Applied = append(res.Applied, mig.Version)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// Pending retorna las versiones aún no aplicadas.
func (m *Migrator) Pending(ctx context.Context, h Handle) ([]int, error) {
	if err := m.ensureTable(ctx, h); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx, h)
	if err != nil {
		return nil, err
	}
	migrations, err := m.Parse()
	if err != nil {
		return nil, err
	}
	var pending []int
	for _, mig := range migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig.Version)
		}
	}
	return pending, nil
}

func (m *Migrator) ensureTable(ctx context.Context, h Handle) error {
	var ddl string
	switch h.Dialect().Name() {
	case "postgres":
		ddl = `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)`
	case "mysql":
		ddl = `CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at DATETIME(3) NOT NULL
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`
	}
	_, err := h.Execute(ctx, ddl)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context, h Handle) (map[int]bool, error) {
	res, err := h.Query(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(res.Rows))
	for _, row := range res.Rows {
		switch v := row["version"].(type) {
		case int64:
			applied[int(v)] = true
		case int32:
			applied[int(v)] = true
		case int:
			applied[v] = true
		case string:
			n, _ := strconv.Atoi(v)
			applied[n] = true
		}
	}
	return applied, nil
}

// SplitStatements separa un script en sentencias terminadas en ";" a fin de
// línea. Ignora líneas de comentario "--".
func SplitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			if stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
