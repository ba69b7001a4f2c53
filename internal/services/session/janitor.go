package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

// JanitorConfig periodos de barrido. Interval ≤ 0 desactiva la desactivación
// periódica; RetentionInterval ≤ 0 desactiva el borrado.
type JanitorConfig struct {
	Interval          time.Duration
	RetentionInterval time.Duration
	RetentionDays     int
}

// Janitor barre sesiones en segundo plano: desactiva las expiradas cada
// Interval y borra las antiguas cada RetentionInterval. Ambas operaciones son
// idempotentes; un fallo se loguea y se reintenta en el siguiente tick.
type Janitor struct {
	sessions repository.SessionRepository
	cfg      JanitorConfig
	log      *zap.Logger
}

// NewJanitor crea el barrendero. log nil usa el logger global.
func NewJanitor(sessions repository.SessionRepository, cfg JanitorConfig, log *zap.Logger) *Janitor {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	return &Janitor{sessions: sessions, cfg: cfg, log: logger.Or(log, "session.janitor")}
}

// Run bloquea hasta que ctx se cancela.
func (j *Janitor) Run(ctx context.Context) {
	var expireC, retainC <-chan time.Time
	if j.cfg.Interval > 0 {
		t := time.NewTicker(j.cfg.Interval)
		defer t.Stop()
		expireC = t.C
	}
	if j.cfg.RetentionInterval > 0 {
		t := time.NewTicker(j.cfg.RetentionInterval)
		defer t.Stop()
		retainC = t.C
	}
	if expireC == nil && retainC == nil {
		return
	}

	j.log.Info("session janitor started",
		zap.Duration("interval", j.cfg.Interval),
		zap.Duration("retention_interval", j.cfg.RetentionInterval),
		zap.Int("retention_days", j.cfg.RetentionDays))

	for {
		select {
		case <-ctx.Done():
			j.log.Info("session janitor stopped")
			return
		case <-expireC:
			j.sweepExpired(ctx)
		case <-retainC:
			j.sweepOld(ctx)
		}
	}
}

// SweepOnce ejecuta ambos barridos una vez.
func (j *Janitor) SweepOnce(ctx context.Context) (deactivated, deleted int, err error) {
	if deactivated, err = j.sessions.CleanupExpired(ctx); err != nil {
		return 0, 0, err
	}
	if deleted, err = j.sessions.CleanupOld(ctx, j.cfg.RetentionDays); err != nil {
		return deactivated, 0, err
	}
	return deactivated, deleted, nil
}

func (j *Janitor) sweepExpired(ctx context.Context) {
	n, err := j.sessions.CleanupExpired(ctx)
	if err != nil {
		j.log.Warn("expired session sweep failed", logger.Err(err))
		return
	}
	if n > 0 {
		j.log.Info("expired sessions deactivated", logger.Count(n))
	}
}

func (j *Janitor) sweepOld(ctx context.Context) {
	n, err := j.sessions.CleanupOld(ctx, j.cfg.RetentionDays)
	if err != nil {
		j.log.Warn("session retention sweep failed", logger.Err(err))
		return
	}
	if n > 0 {
		j.log.Info("old sessions deleted", logger.Count(n), zap.Int("retention_days", j.cfg.RetentionDays))
	}
}
