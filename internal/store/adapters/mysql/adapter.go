// Package mysql registra el adapter "mysql" (github.com/go-sql-driver/mysql).
//
// DSN: user:password@tcp(host:3306)/db. El adapter fuerza parseTime=true y
// loc=UTC: las columnas DATETIME se comparan contra UTC_TIMESTAMP().
package mysql

import (
	"context"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/krapi-cms/krapi-core/internal/store"
	"github.com/krapi-cms/krapi-core/internal/store/adapters/sqldb"
)

func init() {
	store.RegisterAdapter(adapter{})
}

type adapter struct{}

func (adapter) Name() string { return "mysql" }

func (adapter) Open(ctx context.Context, cfg store.AdapterConfig) (store.Handle, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	ps := sqldb.PoolSettings{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if ps.MaxOpenConns == 0 {
		ps.MaxOpenConns = 10
	}
	if ps.MaxIdleConns == 0 {
		ps.MaxIdleConns = 2
	}
	if ps.ConnMaxLifetime == 0 {
		ps.ConnMaxLifetime = 30 * time.Minute
	}
	h, err := sqldb.Open(ctx, "mysql", dsn, store.MySQL, ps)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	return h, nil
}

// NormalizeDSN valida el DSN y fuerza parseTime=true y loc=UTC.
func NormalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("mysql: empty DSN")
	}
	c, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse DSN: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}
