// Package sqlite registra el adapter "sqlite" (modernc.org/sqlite, sin cgo).
//
// DSN: ruta de archivo o ":memory:". Cada Handle usa una sola conexión: con
// ":memory:" eso hace que cada Handle sea su propia base, y con archivos evita
// SQLITE_BUSY entre escritores del mismo proceso.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/krapi-cms/krapi-core/internal/store"
	"github.com/krapi-cms/krapi-core/internal/store/adapters/sqldb"
)

func init() {
	store.RegisterAdapter(adapter{})
}

type adapter struct{}

func (adapter) Name() string { return "sqlite" }

func (adapter) Open(ctx context.Context, cfg store.AdapterConfig) (store.Handle, error) {
	if err := ensureDir(cfg.DSN); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	h, err := sqldb.Open(ctx, "sqlite", cfg.DSN, store.SQLite, sqldb.PoolSettings{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := h.Execute(ctx, pragma); err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return h, nil
}

// ensureDir crea el directorio del archivo de la base. Las bases en memoria no
// tocan el disco.
func ensureDir(dsn string) error {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		if strings.Contains(p[i:], "mode=memory") {
			return nil
		}
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." || dir == "/" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
