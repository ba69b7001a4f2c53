package repository

import (
	"context"
	"time"
)

// ActivityLogEntry es una entrada del audit trail. El core sólo la lee; la
// escritura pertenece a colaboradores externos.
type ActivityLogEntry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	ProjectID    *string        `json:"project_id,omitempty"`
	Action       string         `json:"action"`        // "session.create", "admin.disable"
	ResourceType string         `json:"resource_type"` // "session", "admin_user", "project"
	ResourceID   *string        `json:"resource_id,omitempty"`
	Severity     *string        `json:"severity,omitempty"` // info | warning | error | critical
	Details      map[string]any `json:"details"`            // nunca nil
	IPAddress    *string        `json:"ip_address,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ActivityFilter define filtros opcionales para consultar el audit trail.
type ActivityFilter struct {
	UserID       *string
	ProjectID    *string
	Action       *string
	ResourceType *string
	ResourceID   *string
	Severity     *string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int // 0 = default
	Offset       int
}

// ActivityReader consulta el audit trail con latencia acotada.
type ActivityReader interface {
	// Query retorna siempre un slice (vacío, nunca nil) o ErrTimeout.
	Query(ctx context.Context, filter ActivityFilter) ([]ActivityLogEntry, error)
}
