package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

// VerifyPassword autentica por usuario y contraseña. Usuario inexistente,
// inactivo o contraseña incorrecta retornan el mismo ErrNotFound; los errores
// del store sí se propagan.
func (s *service) VerifyPassword(ctx context.Context, username, plain string) (*repository.AdminUser, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("admin"), logger.Op("VerifyPassword"))

	u, err := s.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		// mismo costo que un usuario real
		s.deps.Hasher.Verify(plain, s.dummy())
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	match := s.deps.Hasher.Verify(plain, u.PasswordHash)
	if !match || !u.Active {
		log.Debug("admin login rejected", logger.AdminUserID(u.ID))
		return nil, repository.ErrNotFound
	}

	if err := s.UpdateLoginInfo(ctx, u.ID); err != nil {
		return nil, err
	}
	if s.deps.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u.ID, plain)
	}
	return s.GetByID(ctx, u.ID)
}

func (s *service) rehash(ctx context.Context, id, plain string) {
	hash, err := s.deps.Hasher.Hash(plain)
	if err == nil {
		_, err = s.deps.Store.ExecuteControlPlane(ctx,
			"UPDATE admin_users SET password_hash = ? WHERE id = ?", hash, id)
	}
	if err != nil {
		logger.From(ctx).Warn("password rehash failed", logger.AdminUserID(id), logger.Err(err))
	}
}

func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.deps.Hasher.Hash("krapi-dummy-password")
	})
	return s.dummyHash
}

// CreateDefaultAdmin crea el admin inicial si no existe. Idempotente y seguro
// ante llamadas concurrentes: un conflicto significa que otro llamador ganó.
func (s *service) CreateDefaultAdmin(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("admin"), logger.Op("CreateDefaultAdmin"))
	d := s.deps.Default

	_, err := s.GetByUsername(ctx, d.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if d.Password == "" {
		return fmt.Errorf("%w: default admin password is not configured", repository.ErrInvalidInput)
	}

	_, err = s.Create(ctx, repository.CreateAdminInput{
		Username:    d.Username,
		Email:       d.Email,
		Password:    d.Password,
		Role:        repository.AdminRoleMaster,
		AccessLevel: repository.AccessLevelFull,
		Permissions: []string{"*"},
	})
	if errors.Is(err, repository.ErrConflict) {
		// otro llamador lo creó; si el conflicto es por email de otro admin, reportarlo
		if _, gerr := s.GetByUsername(ctx, d.Username); gerr == nil {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	log.Info("default admin created", logger.Username(d.Username))
	return nil
}
