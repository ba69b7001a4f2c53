package repository

import (
	"context"
	"time"
)

// AdminRole representa el rol de un usuario administrador.
type AdminRole string

const (
	AdminRoleOperator AdminRole = "operator"
	AdminRoleAdmin    AdminRole = "admin"
	AdminRoleMaster   AdminRole = "master" // acceso total, usado por el admin por defecto
)

// Valid indica si el rol es uno de los conocidos.
func (r AdminRole) Valid() bool {
	switch r {
	case AdminRoleOperator, AdminRoleAdmin, AdminRoleMaster:
		return true
	}
	return false
}

// AccessLevel representa el nivel de acceso de un admin.
type AccessLevel string

const (
	AccessLevelFull      AccessLevel = "full"
	AccessLevelReadWrite AccessLevel = "read_write"
	AccessLevelReadOnly  AccessLevel = "read_only"
)

// Valid indica si el nivel de acceso es uno de los conocidos.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessLevelFull, AccessLevelReadWrite, AccessLevelReadOnly:
		return true
	}
	return false
}

// AdminUser representa un operador/administrador del control plane.
type AdminUser struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"` // único en el control plane
	Email        string      `json:"email"`    // único en el control plane
	PasswordHash string      `json:"-"`        // nunca se expone
	Role         AdminRole   `json:"role"`
	AccessLevel  AccessLevel `json:"access_level"`
	Permissions  []string    `json:"permissions"` // nunca nil
	Active       bool        `json:"active"`
	APIKey       *string     `json:"-"`

	LastLogin  *time.Time `json:"last_login,omitempty"`
	LoginCount int        `json:"login_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreateAdminInput define los datos para crear un admin.
type CreateAdminInput struct {
	Username    string      // Requerido
	Email       string      // Requerido
	Password    string      // Requerido (texto plano, se hashea en el service)
	Role        AdminRole   // Default: admin
	AccessLevel AccessLevel // Default: full
	Permissions []string    // Opcional
	Active      *bool       // Default: true
	APIKey      *string     // Opcional
}

// UpdateAdminInput define los campos actualizables de un admin.
// Sólo se modifican los campos no-nil.
type UpdateAdminInput struct {
	Username    *string
	Email       *string
	Password    *string // texto plano
	Role        *AdminRole
	AccessLevel *AccessLevel
	Permissions *[]string
	Active      *bool
	APIKey      *string // "" limpia la API key
}

// Empty indica si el input no contiene ningún campo.
func (in UpdateAdminInput) Empty() bool {
	return in.Username == nil && in.Email == nil && in.Password == nil &&
		in.Role == nil && in.AccessLevel == nil && in.Permissions == nil &&
		in.Active == nil && in.APIKey == nil
}

// AdminUserRepository maneja los administradores del control plane.
type AdminUserRepository interface {
	// ─── Read Operations ───

	GetByID(ctx context.Context, id string) (*AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*AdminUser, error)

	// GetByAPIKey sólo retorna admins activos.
	GetByAPIKey(ctx context.Context, apiKey string) (*AdminUser, error)

	ListAll(ctx context.Context) ([]AdminUser, error)

	// ─── Write Operations ───

	// Create retorna ErrConflict si username o email ya existen.
	Create(ctx context.Context, input CreateAdminInput) (*AdminUser, error)

	Update(ctx context.Context, id string, input UpdateAdminInput) (*AdminUser, error)

	// UpdateLoginInfo incrementa login_count y fija last_login de forma atómica.
	UpdateLoginInfo(ctx context.Context, id string) error

	// Enable/Disable son idempotentes; retornan false si el id no existe.
	Enable(ctx context.Context, id string) (bool, error)
	Disable(ctx context.Context, id string) (bool, error)

	Delete(ctx context.Context, id string) (bool, error)

	// ─── Auth Operations ───

	// VerifyPassword retorna ErrNotFound ante cualquier fallo, sin distinguir motivo.
	VerifyPassword(ctx context.Context, username, password string) (*AdminUser, error)

	// CreateDefaultAdmin es idempotente.
	CreateDefaultAdmin(ctx context.Context) error
}
