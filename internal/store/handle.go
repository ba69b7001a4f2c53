// Package store enruta consultas al control plane y a las bases de cada tenant.
//
// Todo acceso físico pasa por un Handle. Los adapters (adapters/sqlite,
// adapters/pg, adapters/mysql) se registran en init() y el Manager los abre
// por nombre de driver:
//
//	import _ "github.com/krapi-cms/krapi-core/internal/store/adapters/dal"
//
//	mgr, err := store.NewManager(ctx, store.ManagerConfig{...})
//	res, err := mgr.QueryTenant(ctx, "proj_1", "SELECT * FROM items WHERE id = ?", id)
//
// El SQL se escribe siempre con placeholders "?"; cada Handle lo re-enlaza
// al estilo de su driver. Las expresiones dependientes del motor (reloj,
// parámetros de tiempo) salen de Handle.Dialect().
package store

import "context"

// Row es una fila cruda: columna → valor sin tipo. Sólo internal/rowmap la
// interpreta.
type Row = map[string]any

// Result es la salida de Query y Execute.
// En Query, RowCount == len(Rows). En Execute, Rows puede venir vacío y
// RowCount es el número de filas afectadas según el driver.
type Result struct {
	Rows     []Row
	RowCount int
}

// First retorna la primera fila o nil.
func (r *Result) First() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Handle es una conexión lógica a un store físico. Es seguro para uso
// concurrente.
type Handle interface {
	// Name retorna el driver: "sqlite", "postgres", "mysql".
	Name() string
	Dialect() Dialect

	Query(ctx context.Context, query string, params ...any) (*Result, error)
	Execute(ctx context.Context, query string, params ...any) (*Result, error)

	Ping(ctx context.Context) error
	Close() error
}

// ControlPlane es la vista del control plane que usan los servicios.
// *Manager la implementa.
type ControlPlane interface {
	QueryControlPlane(ctx context.Context, query string, params ...any) (*Result, error)
	ExecuteControlPlane(ctx context.Context, query string, params ...any) (*Result, error)
	ControlPlaneDialect() Dialect
}

var _ ControlPlane = (*Manager)(nil)
