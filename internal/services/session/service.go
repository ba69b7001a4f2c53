// Package session implementa el ciclo de vida de sesiones sobre el control
// plane.
//
// Reglas que sostienen el resto del sistema:
//   - una sesión autoriza sii is_active = 1 y expires_at > reloj del store
//   - token equivocado, expirado o revocado son indistinguibles (ErrNotFound)
//   - ninguna sentencia vuelve a poner is_active = 1 sobre una fila existente
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/metrics"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
	"github.com/krapi-cms/krapi-core/internal/rowmap"
	"github.com/krapi-cms/krapi-core/internal/security/token"
	"github.com/krapi-cms/krapi-core/internal/store"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultRetentionDays = 30
)

const columns = `id, token, user_id, project_id, type, scopes, metadata, ip_address, user_agent,
	is_active, consumed, consumed_at, created_at, expires_at, last_activity`

// Service es el servicio de sesiones.
type Service interface {
	repository.SessionRepository
}

// Deps dependencias del servicio. Sólo Store es obligatorio.
type Deps struct {
	Store store.ControlPlane

	TTL        time.Duration
	TokenBytes int

	Now      func() time.Time
	NewID    func() string
	NewToken func(nBytes int) (string, error)
}

type service struct {
	deps Deps
}

// NewService crea el servicio de sesiones.
func NewService(d Deps) Service {
	if d.TTL <= 0 {
		d.TTL = DefaultTTL
	}
	if d.TokenBytes <= 0 {
		d.TokenBytes = token.DefaultBytes
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.NewToken == nil {
		d.NewToken = token.Generate
	}
	return &service{deps: d}
}

func (s *service) dialect() store.Dialect { return s.deps.Store.ControlPlaneDialect() }

// now trunca a milisegundos: es la precisión que guardan todos los dialectos.
func (s *service) now() time.Time {
	return s.deps.Now().UTC().Truncate(time.Millisecond)
}

// validPredicate es la definición única de "sesión válida".
func (s *service) validPredicate() string {
	return "is_active = 1 AND expires_at > " + s.dialect().Now()
}

func (s *service) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("session"), logger.Op("Create"))

	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", repository.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", repository.ErrInvalidInput, in.Type)
	}
	var projectID *string
	switch in.Type {
	case repository.SessionTypeProject:
		if in.ProjectID == "" {
			return nil, fmt.Errorf("%w: project sessions require project_id", repository.ErrInvalidInput)
		}
		projectID = &in.ProjectID
	case repository.SessionTypeAdmin:
		if in.ProjectID != "" {
			return nil, fmt.Errorf("%w: admin sessions carry no project_id", repository.ErrInvalidInput)
		}
	}

	now := s.now()
	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.deps.TTL)
	}

	tok, err := s.deps.NewToken(s.deps.TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	id := s.deps.NewID()
	d := s.dialect()

	_, err = s.deps.Store.ExecuteControlPlane(ctx, `
		INSERT INTO sessions (id, token, user_id, project_id, type, scopes, metadata,
			ip_address, user_agent, is_active, consumed, consumed_at, created_at, expires_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, NULL, ?, ?, NULL)`,
		id, tok, in.UserID, projectID, string(in.Type),
		rowmap.EncodeJSON(orEmpty(in.Scopes)), rowmap.EncodeJSON(orEmptyMap(in.Metadata)),
		nullable(in.IPAddress), nullable(in.UserAgent),
		d.Time(now), d.Time(expiresAt),
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: session token collision", repository.ErrConflict)
		}
		return nil, err
	}

	res, err := s.deps.Store.QueryControlPlane(ctx, "SELECT "+columns+" FROM sessions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	row := res.First()
	if row == nil {
		log.Error("session insert not readable", logger.SessionID(id))
		return nil, fmt.Errorf("%w: session %s", repository.ErrVerificationFailed, id)
	}
	sess := rowmap.Session(row)
	log.Debug("session created", logger.SessionID(id), logger.UserID(in.UserID))
	return &sess, nil
}

func (s *service) GetByToken(ctx context.Context, tok string, opts ...repository.LookupOption) (*repository.Session, error) {
	if tok == "" {
		return nil, repository.ErrNotFound
	}
	o := repository.ApplyLookupOptions(opts)

	q := "SELECT " + columns + " FROM sessions WHERE token = ? AND " + s.validPredicate()
	if o.RejectConsumed {
		q += " AND consumed = 0"
	}
	res, err := s.deps.Store.QueryControlPlane(ctx, q, tok)
	if err != nil {
		return nil, err
	}
	row := res.First()
	if row == nil {
		return nil, repository.ErrNotFound
	}
	sess := rowmap.Session(row)

	// touch explícito con el reloj inyectado; un fallo aquí no niega la sesión
	now := s.now()
	if _, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE sessions SET last_activity = ? WHERE id = ? AND is_active = 1",
		s.dialect().Time(now), sess.ID,
	); err != nil {
		logger.From(ctx).Warn("session touch failed",
			logger.Component("session"), logger.SessionID(sess.ID), logger.Err(err))
	} else {
		sess.LastActivity = &now
	}
	return &sess, nil
}

func (s *service) Consume(ctx context.Context, tok string) (*repository.Session, error) {
	if tok == "" {
		return nil, repository.ErrNotFound
	}
	// sólo la primera llamada escribe: consumed_at queda fijo
	if _, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE sessions SET consumed = 1, consumed_at = ? WHERE token = ? AND consumed = 0 AND "+s.validPredicate(),
		s.dialect().Time(s.now()), tok,
	); err != nil {
		return nil, err
	}

	res, err := s.deps.Store.QueryControlPlane(ctx,
		"SELECT "+columns+" FROM sessions WHERE token = ? AND "+s.validPredicate(), tok)
	if err != nil {
		return nil, err
	}
	row := res.First()
	if row == nil {
		return nil, repository.ErrNotFound
	}
	sess := rowmap.Session(row)
	return &sess, nil
}

func (s *service) Invalidate(ctx context.Context, tok string) (bool, error) {
	if tok == "" {
		return false, nil
	}
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE sessions SET is_active = 0 WHERE token = ? AND is_active = 1", tok)
	if err != nil {
		return false, err
	}
	return res.RowCount > 0, nil
}

func (s *service) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1", userID)
	if err != nil {
		return 0, err
	}
	if res.RowCount > 0 {
		logger.From(ctx).Info("sessions revoked for user",
			logger.Component("session"), logger.UserID(userID), logger.Count(res.RowCount))
	}
	return res.RowCount, nil
}

func (s *service) CleanupExpired(ctx context.Context) (int, error) {
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"UPDATE sessions SET is_active = 0 WHERE is_active = 1 AND expires_at <= "+s.dialect().Now())
	if err != nil {
		return 0, err
	}
	metrics.SessionSweeps.WithLabelValues("deactivated").Add(float64(res.RowCount))
	return res.RowCount, nil
}

func (s *service) CleanupOld(ctx context.Context, daysOld int) (int, error) {
	if daysOld <= 0 {
		daysOld = DefaultRetentionDays
	}
	cutoff := s.now().Add(-time.Duration(daysOld) * 24 * time.Hour)
	res, err := s.deps.Store.ExecuteControlPlane(ctx,
		"DELETE FROM sessions WHERE created_at < ?", s.dialect().Time(cutoff))
	if err != nil {
		return 0, err
	}
	metrics.SessionSweeps.WithLabelValues("deleted").Add(float64(res.RowCount))
	return res.RowCount, nil
}

func (s *service) ListActive(ctx context.Context) ([]repository.Session, error) {
	res, err := s.deps.Store.QueryControlPlane(ctx,
		"SELECT "+columns+" FROM sessions WHERE "+s.validPredicate()+" ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	return rowmap.Sessions(res.Rows), nil
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]repository.Session, error) {
	res, err := s.deps.Store.QueryControlPlane(ctx,
		"SELECT "+columns+" FROM sessions WHERE user_id = ? AND "+s.validPredicate()+" ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	return rowmap.Sessions(res.Rows), nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyMap(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
