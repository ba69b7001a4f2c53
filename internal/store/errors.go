package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
)

var (
	// ErrTenantNotFound el proyecto no existe o está deshabilitado.
	ErrTenantNotFound = errors.New("store: tenant not found")
	// ErrInvalidTenantID el identificador no cumple el formato de proyecto.
	ErrInvalidTenantID = errors.New("store: invalid tenant id")
	// ErrClosed el Manager ya fue cerrado.
	ErrClosed = errors.New("store: manager closed")
	// ErrAdapterNotFound no hay adapter registrado con ese nombre.
	ErrAdapterNotFound = errors.New("store: adapter not found")
)

// Error envuelve un fallo del store físico. Se clasifica como
// repository.ErrStoreUnavailable sin ocultar el error del driver:
// errors.Is/As funcionan contra ambos.
type Error struct {
	Op    string // "query", "execute", "open", "init"
	Store string // "control-plane" | "tenant:<id>"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Store, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{repository.ErrStoreUnavailable, e.Err}
}

func wrapErr(op, storeName string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Store: storeName, Err: err}
}

// IsUniqueViolation detecta violaciones de índice único en cualquiera de los
// drivers soportados.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
