// Package sqldb implementa store.Handle sobre database/sql (vía sqlx). Lo
// comparten los adapters sqlite, pg y mysql: cada uno sólo aporta el driver,
// el dialecto y los ajustes de pool.
package sqldb

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/krapi-cms/krapi-core/internal/store"
)

// Handle es un store.Handle respaldado por un *sqlx.DB.
type Handle struct {
	db      *sqlx.DB
	name    string
	dialect store.Dialect
}

var _ store.Handle = (*Handle)(nil)

// PoolSettings ajustes del pool de database/sql. Ceros dejan el default.
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open abre y verifica la conexión.
func Open(ctx context.Context, driverName, dsn string, d store.Dialect, ps PoolSettings) (*Handle, error) {
	if dsn == "" {
		return nil, errors.New(d.Name() + ": empty DSN")
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if ps.MaxOpenConns > 0 {
		db.SetMaxOpenConns(ps.MaxOpenConns)
	}
	if ps.MaxIdleConns > 0 {
		db.SetMaxIdleConns(ps.MaxIdleConns)
	}
	if ps.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(ps.ConnMaxLifetime)
	}
	if ps.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(ps.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, d), nil
}

// New envuelve un *sqlx.DB ya abierto.
func New(db *sqlx.DB, d store.Dialect) *Handle {
	return &Handle{db: db, name: d.Name(), dialect: d}
}

func (h *Handle) Name() string { return h.name }
func (h *Handle) Dialect() store.Dialect { return h.dialect }

// DB expone la conexión subyacente (migraciones externas, tests).
func (h *Handle) DB() *sqlx.DB { return h.db }

// Query ejecuta una consulta y materializa todas las filas.
func (h *Handle) Query(ctx context.Context, query string, params ...any) (*store.Result, error) {
	rows, err := h.db.QueryxContext(ctx, h.dialect.Rebind(query), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.Row, 0)
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			// algunos drivers entregan texto como []byte
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &store.Result{Rows: out, RowCount: len(out)}, nil
}

// Execute ejecuta una sentencia sin filas de salida.
func (h *Handle) Execute(ctx context.Context, query string, params ...any) (*store.Result, error) {
	res, err := h.db.ExecContext(ctx, h.dialect.Rebind(query), params...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	return &store.Result{Rows: []store.Row{}, RowCount: int(n)}, nil
}

func (h *Handle) Ping(ctx context.Context) error { return h.db.PingContext(ctx) }

func (h *Handle) Close() error { return h.db.Close() }
