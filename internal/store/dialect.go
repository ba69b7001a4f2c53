package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dialect encapsula lo que cambia entre motores SQL.
type Dialect interface {
	Name() string
	// Now es la expresión SQL del reloj del store.
	Now() string
	// Time codifica un instante como parámetro comparable con Now().
	Time(t time.Time) any
	// Rebind convierte placeholders "?" al estilo del driver.
	Rebind(query string) string
}

const sqliteTimeLayout = "2006-01-02 15:04:05.000"

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

// Los timestamps de SQLite son TEXT en UTC con milisegundos: el orden
// lexicográfico coincide con el cronológico.
func (sqliteDialect) Now() string           { return "strftime('%Y-%m-%d %H:%M:%f','now')" }
func (sqliteDialect) Time(t time.Time) any   { return t.UTC().Format(sqliteTimeLayout) }
func (sqliteDialect) Rebind(q string) string { return q }

type postgresDialect struct{}

func (postgresDialect) Name() string           { return "postgres" }
func (postgresDialect) Now() string            { return "NOW()" }
func (postgresDialect) Time(t time.Time) any   { return t.UTC() }
func (postgresDialect) Rebind(q string) string { return sqlx.Rebind(sqlx.DOLLAR, q) }

type mysqlDialect struct{}

func (mysqlDialect) Name() string           { return "mysql" }
func (mysqlDialect) Now() string            { return "UTC_TIMESTAMP(3)" }
func (mysqlDialect) Time(t time.Time) any   { return t.UTC() }
func (mysqlDialect) Rebind(q string) string { return q }

var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
	MySQL    Dialect = mysqlDialect{}
)

// DialectFor retorna el dialecto de un driver registrado.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return nil, fmt.Errorf("store: no dialect for driver %q", driver)
}
