package repository

import "errors"

var (
	// ErrNotFound indica que el recurso no existe o fue filtrado por un predicado
	// de estado (expirado, revocado, inactivo). Los callers no pueden distinguir
	// entre esos casos.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (username/email ya registrados).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indica que una consulta acotada superó su tiempo máximo.
	ErrTimeout = errors.New("timeout")

	// ErrStoreUnavailable clasifica cualquier fallo del almacenamiento subyacente.
	// No se reintenta internamente: la política de reintento es del caller.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrVerificationFailed indica que un INSERT fue aceptado pero la lectura de
	// verificación posterior no encontró la fila.
	ErrVerificationFailed = errors.New("insert succeeded but verification read failed")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTimeout verifica si el error es ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsStoreUnavailable verifica si el error proviene del almacenamiento.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsVerificationFailed verifica si el error es ErrVerificationFailed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
