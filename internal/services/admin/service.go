// Package admin implementa la gestión de administradores del control plane.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
	"github.com/krapi-cms/krapi-core/internal/rowmap"
	"github.com/krapi-cms/krapi-core/internal/security/password"
	"github.com/krapi-cms/krapi-core/internal/security/token"
	"github.com/krapi-cms/krapi-core/internal/store"
)

const columns = `id, username, email, password_hash, role, access_level, permissions, active,
	api_key, last_login, login_count, created_at, updated_at`

// Service gestiona administradores.
type Service interface {
	repository.AdminUserRepository

	// RegenerateAPIKey emite una API key nueva y la retorna. La anterior deja
	// de funcionar.
	RegenerateAPIKey(ctx context.Context, id string) (string, error)
}

// SessionRevoker revoca las sesiones de un usuario. Lo usan Disable y Delete.
type SessionRevoker interface {
	InvalidateAllForUser(ctx context.Context, userID string) (int, error)
}

// DefaultAdmin credenciales del administrador inicial.
type DefaultAdmin struct {
	Username string
	Email    string
	Password string
}

// Deps dependencias del servicio. Sólo Store es obligatorio.
type Deps struct {
	Store    store.ControlPlane
	Hasher   password.Hasher
	Policy   *password.Policy
	Sessions SessionRevoker
	Default  DefaultAdmin

	Now   func() time.Time
	NewID func() string
}

type service struct {
	deps Deps

	dummyOnce sync.Once
	dummyHash string
}

// NewService crea el servicio de administradores.
func NewService(d Deps) Service {
	if d.Hasher == nil {
		d.Hasher = password.Argon2id{Params: password.Default}
	}
	if d.Policy == nil {
		p := password.DefaultPolicy
		d.Policy = &p
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Default.Username == "" {
		d.Default.Username = "admin"
	}
	if d.Default.Email == "" {
		d.Default.Email = "admin@localhost"
	}
	return &service{deps: d}
}

func (s *service) dialect() store.Dialect { return s.deps.Store.ControlPlaneDialect() }

func (s *service) now() time.Time { return s.deps.Now().UTC().Truncate(time.Millisecond) }

// ─── Lecturas ───

func (s *service) getOne(ctx context.Context, where string, arg any) (*repository.AdminUser, error) {
	res, err := s.deps.Store.QueryControlPlane(ctx, "SELECT "+columns+" FROM admin_users WHERE "+where, arg)
	if err != nil {
		return nil, err
	}
	row := res.First()
	if row == nil {
		return nil, repository.ErrNotFound
	}
	u := rowmap.AdminUser(row)
	return &u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*repository.AdminUser, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return s.getOne(ctx, "id = ?", id)
}

func (s *service) GetByUsername(ctx context.Context, username string) (*repository.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, repository.ErrNotFound
	}
	return s.getOne(ctx, "username = ?", username)
}

func (s *service) GetByEmail(ctx context.Context, email string) (*repository.AdminUser, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, repository.ErrNotFound
	}
	return s.getOne(ctx, "email = ?", email)
}

func (s *service) GetByAPIKey(ctx context.Context, apiKey string) (*repository.AdminUser, error) {
	if apiKey == "" {
		return nil, repository.ErrNotFound
	}
	return s.getOne(ctx, "api_key = ? AND active = 1", apiKey)
}

func (s *service) ListAll(ctx context.Context) ([]repository.AdminUser, error) {
	res, err := s.deps.Store.QueryControlPlane(ctx,
		"SELECT "+columns+" FROM admin_users ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, err
	}
	out := make([]repository.AdminUser, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, rowmap.AdminUser(row))
	}
	return out, nil
}

// ─── Escrituras ───

func (s *service) Create(ctx context.Context, in repository.CreateAdminInput) (*repository.AdminUser, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("admin"), logger.Op("Create"))

	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", repository.ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: malformed email", repository.ErrInvalidInput)
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = repository.AdminRoleAdmin
	}
	access := in.AccessLevel
	if access == "" {
		access = repository.AccessLevelFull
	}
	if !role.Valid() || !access.Valid() {
		return nil, fmt.Errorf("%w: unknown role or access level", repository.ErrInvalidInput)
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	// chequeo previo para un error claro; el índice único cubre la carrera
	res, err := s.deps.Store.QueryControlPlane(ctx,
		"SELECT id FROM admin_users WHERE username = ? OR email = ?", username, email)
	if err != nil {
		return nil, err
	}
	if res.RowCount > 0 {
		return nil, fmt.Errorf("%w: username or email already registered", repository.ErrConflict)
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	id := s.deps.NewID()
	now := s.dialect().Time(s.now())
	_, err = s.deps.Store.ExecuteControlPlane(ctx, `
		INSERT INTO admin_users (id, username, email, password_hash, role, access_level, permissions,
			active, api_key, last_login, login_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, ?, ?)`,
		id, username, email, hash, string(role), string(access),
		rowmap.EncodeJSON(orEmpty(in.Permissions)), rowmap.EncodeBool(active),
		apiKeyParam(in.APIKey), now, now,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", repository.ErrConflict)
		}
		return nil, err
	}

	u, err := s.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error("admin insert not readable", logger.AdminUserID(id))
		return nil, fmt.Errorf("%w: admin user %s", repository.ErrVerificationFailed, id)
	}
	if err != nil {
		return nil, err
	}
	log.Info("admin user created", logger.AdminUserID(id), logger.Username(username))
	return u, nil
}

func (s *service) Update(ctx context.Context, id string, in repository.UpdateAdminInput) (*repository.AdminUser, error) {
	if in.Empty() {
		return s.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if in.Username != nil {
		u := strings.TrimSpace(*in.Username)
		if u == "" {
			return nil, fmt.Errorf("%w: empty username", repository.ErrInvalidInput)
		}
		set("username", u)
	}
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		if !strings.Contains(e, "@") {
			return nil, fmt.Errorf("%w: malformed email", repository.ErrInvalidInput)
		}
		set("email", e)
	}
	if in.Password != nil {
		if err := s.checkPassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.deps.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		set("password_hash", hash)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", repository.ErrInvalidInput, *in.Role)
		}
		set("role", string(*in.Role))
	}
	if in.AccessLevel != nil {
		if !in.AccessLevel.Valid() {
			return nil, fmt.Errorf("%w: unknown access level %q", repository.ErrInvalidInput, *in.AccessLevel)
		}
		set("access_level", string(*in.AccessLevel))
	}
	if in.Permissions != nil {
		set("permissions", rowmap.EncodeJSON(orEmpty(*in.Permissions)))
	}
	if in.Active != nil {
		set("active", rowmap.EncodeBool(*in.Active))
	}
	if in.APIKey != nil {
		set("api_key", apiKeyParam(in.APIKey))
	}
	set("updated_at", s.dialect().Time(s.now()))
	args = append(args, id)

	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE admin_users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username, email or api key already in use", repository.ErrConflict)
		}
		return nil, err
	}
	// RowCount 0 puede ser "sin cambios" en MySQL; GetByID decide si existe
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Active != nil && !*in.Active && res.RowCount > 0 {
		s.revokeSessions(ctx, id)
	}
	return u, nil
}

func (s *service) UpdateLoginInfo(ctx context.Context, id string) error {
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE admin_users SET login_count = login_count + 1, last_login = ? WHERE id = ?",
		s.dialect().Time(s.now()), id)
	if err != nil {
		return err
	}
	if res.RowCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *service) Enable(ctx context.Context, id string) (bool, error) {
	return s.setActive(ctx, id, true)
}

func (s *service) Disable(ctx context.Context, id string) (bool, error) {
	ok, err := s.setActive(ctx, id, false)
	if ok {
		s.revokeSessions(ctx, id)
	}
	return ok, err
}

func (s *service) setActive(ctx context.Context, id string, active bool) (bool, error) {
	v := rowmap.EncodeBool(active)
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE admin_users SET active = ?, updated_at = ? WHERE id = ? AND active <> ?",
		v, s.dialect().Time(s.now()), id, v)
	if err != nil {
		return false, err
	}
	if res.RowCount > 0 {
		return true, nil
	}
	// ya estaba en el estado pedido, o no existe
	_, err = s.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *service) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.deps.Store.ExecuteControlPlane(ctx, "DELETE FROM admin_users WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	if res.RowCount == 0 {
		return false, nil
	}
	s.revokeSessions(ctx, id)
	logger.From(ctx).Info("admin user deleted", logger.Component("admin"), logger.AdminUserID(id))
	return true, nil
}

func (s *service) RegenerateAPIKey(ctx context.Context, id string) (string, error) {
	key, err := token.APIKey()
	if err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE admin_users SET api_key = ?, updated_at = ? WHERE id = ?",
		key, s.dialect().Time(s.now()), id)
	if err != nil {
		return "", err
	}
	if res.RowCount == 0 {
		return "", repository.ErrNotFound
	}
	return key, nil
}

func (s *service) revokeSessions(ctx context.Context, id string) {
	if s.deps.Sessions == nil {
		return
	}
	if _, err := s.deps.Sessions.InvalidateAllForUser(ctx, id); err != nil {
		logger.From(ctx).Warn("revoking admin sessions failed",
			logger.Component("admin"), logger.AdminUserID(id), logger.Err(err))
	}
}

func (s *service) checkPassword(p string) error {
	if ok, reasons := s.deps.Policy.Validate(p); !ok {
		return fmt.Errorf("%w: password rejected (%s)", repository.ErrInvalidInput, strings.Join(reasons, ", "))
	}
	return nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// apiKeyParam: nil o "" se guardan como NULL.
func apiKeyParam(k *string) any {
	if k == nil || *k == "" {
		return nil
	}
	return *k
}
