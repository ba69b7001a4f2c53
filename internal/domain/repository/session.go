package repository

import (
	"context"
	"time"
)

// SessionType distingue sesiones de admin de sesiones de proyecto (tenant).
type SessionType string

const (
	SessionTypeAdmin   SessionType = "admin"
	SessionTypeProject SessionType = "project"
)

// Valid indica si el tipo es uno de los conocidos.
func (t SessionType) Valid() bool {
	return t == SessionTypeAdmin || t == SessionTypeProject
}

// Session representa un token de autorización revocable y acotado en el tiempo.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ProjectID *string // sólo para sesiones de proyecto
	Type      SessionType
	Scopes    []string       // nunca nil
	Metadata  map[string]any // nunca nil

	// Metadata de cliente
	IPAddress *string
	UserAgent *string

	// Estado
	IsActive   bool
	Consumed   bool
	ConsumedAt *time.Time

	// Timestamps
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity *time.Time
}

// CreateSessionInput contiene los datos para crear una sesión.
type CreateSessionInput struct {
	UserID    string
	Type      SessionType
	ProjectID string // requerido si Type == project
	Scopes    []string
	Metadata  map[string]any
	IPAddress string
	UserAgent string

	// ExpiresAt opcional; si es cero se usa now + TTL configurado.
	ExpiresAt time.Time
}

// SessionRepository define el ciclo de vida de sesiones en el control plane.
type SessionRepository interface {
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// GetByToken retorna la sesión sólo si está activa y no expirada
	// (comparación hecha con el reloj del store). Toca last_activity.
	GetByToken(ctx context.Context, token string, opts ...LookupOption) (*Session, error)

	// Consume marca la sesión como consumida. Idempotente.
	Consume(ctx context.Context, token string) (*Session, error)

	// Invalidate desactiva una sesión. Retorna si alguna fila cambió.
	Invalidate(ctx context.Context, token string) (bool, error)

	// InvalidateAllForUser desactiva todas las sesiones del usuario.
	InvalidateAllForUser(ctx context.Context, userID string) (int, error)

	// CleanupExpired desactiva (no elimina) sesiones expiradas.
	CleanupExpired(ctx context.Context) (int, error)

	// CleanupOld elimina físicamente filas más antiguas que daysOld días.
	CleanupOld(ctx context.Context, daysOld int) (int, error)

	// ListActive retorna sesiones activas y vigentes, más nuevas primero.
	ListActive(ctx context.Context) ([]Session, error)

	// ListForUser como ListActive, filtrado por usuario.
	ListForUser(ctx context.Context, userID string) ([]Session, error)
}

// LookupOptions ajustan GetByToken.
type LookupOptions struct {
	// RejectConsumed trata una sesión consumida como inexistente, para
	// protocolos donde el consumo es terminal (tokens de un solo uso).
	RejectConsumed bool
}

// LookupOption modifica LookupOptions.
type LookupOption func(*LookupOptions)

// RejectConsumed ver LookupOptions.RejectConsumed.
func RejectConsumed() LookupOption {
	return func(o *LookupOptions) { o.RejectConsumed = true }
}

// ApplyLookupOptions resuelve las opciones.
func ApplyLookupOptions(opts []LookupOption) LookupOptions {
	var o LookupOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
