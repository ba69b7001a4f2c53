// Package activity expone la lectura del audit trail con latencia acotada.
//
// Es el único servicio que impone su propio timeout: una consulta lenta al
// audit trail no puede colgar al caller. Un resultado nil del store se
// convierte en lista vacía y se reporta.
package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/metrics"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
	"github.com/krapi-cms/krapi-core/internal/rowmap"
	"github.com/krapi-cms/krapi-core/internal/store"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultLimit   = 100
	MaxLimit       = 1000
)

const columns = `id, user_id, project_id, action, resource_type, resource_id, severity,
	details, ip_address, timestamp`

// Filters filtros de consulta; todos opcionales.
type Filters = repository.ActivityFilter

// Querier es el subconjunto del control plane que usa el gateway.
type Querier interface {
	QueryControlPlane(ctx context.Context, query string, params ...any) (*store.Result, error)
	ControlPlaneDialect() store.Dialect
}

// Deps dependencias del gateway. Sólo Store es obligatorio.
type Deps struct {
	Store        Querier
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

// Gateway consulta activity_logs.
type Gateway struct {
	deps Deps
}

var _ repository.ActivityReader = (*Gateway)(nil)

// NewGateway crea el gateway aplicando defaults.
func NewGateway(d Deps) *Gateway {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.DefaultLimit <= 0 {
		d.DefaultLimit = DefaultLimit
	}
	if d.MaxLimit <= 0 {
		d.MaxLimit = MaxLimit
	}
	if d.DefaultLimit > d.MaxLimit {
		d.DefaultLimit = d.MaxLimit
	}
	return &Gateway{deps: d}
}

type outcome struct {
	res *store.Result
	err error
}

// Query retorna las entradas más recientes primero. Si el store no responde
// dentro del timeout retorna repository.ErrTimeout; si el ctx del caller se
// cancela antes, retorna ctx.Err().
func (g *Gateway) Query(ctx context.Context, f Filters) ([]repository.ActivityLogEntry, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("activity"), logger.Op("Query"))

	sql, args := g.build(f)

	qctx, cancel := context.WithTimeout(ctx, g.deps.Timeout)
	defer cancel()

	start := time.Now()
	// buffer 1: la goroutine termina aunque nadie lea el resultado
	done := make(chan outcome, 1)
	go func() {
		res, err := g.deps.Store.QueryControlPlane(qctx, sql, args...)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-qctx.Done():
		return nil, g.abandoned(ctx, log)
	}
	metrics.ActivityQueryLatency.Observe(float64(time.Since(start).Milliseconds()))

	if out.err != nil {
		// el driver puede devolver el error de contexto antes que el select
		if errors.Is(qctx.Err(), context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, g.abandoned(ctx, log)
		}
		return nil, out.err
	}

	if out.res == nil || out.res.Rows == nil {
		metrics.ActivityCoercions.Inc()
		log.Warn("activity store returned no result set, using empty list")
		return []repository.ActivityLogEntry{}, nil
	}

	entries := make([]repository.ActivityLogEntry, 0, len(out.res.Rows))
	skipped := 0
	for _, row := range out.res.Rows {
		if row == nil {
			skipped++
			continue
		}
		entries = append(entries, rowmap.ActivityLogEntry(row))
	}
	if skipped > 0 {
		metrics.ActivityCoercions.Inc()
		log.Warn("activity store returned malformed rows", logger.Count(skipped))
	}
	return entries, nil
}

func (g *Gateway) abandoned(ctx context.Context, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics.ActivityTimeouts.Inc()
	log.Warn("activity query timed out", logger.Duration(g.deps.Timeout))
	return repository.ErrTimeout
}

func (g *Gateway) build(f Filters) (string, []any) {
	d := g.deps.Store.ControlPlaneDialect()

	var (
		where []string
		args  []any
	)
	eq := func(col string, v *string) {
		if v != nil {
			where = append(where, col+" = ?")
			args = append(args, *v)
		}
	}
	eq("user_id", f.UserID)
	eq("project_id", f.ProjectID)
	eq("action", f.Action)
	eq("resource_type", f.ResourceType)
	eq("resource_id", f.ResourceID)
	eq("severity", f.Severity)
	if f.StartDate != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, d.Time(f.StartDate.UTC()))
	}
	if f.EndDate != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, d.Time(f.EndDate.UTC()))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM activity_logs")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?")

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = g.deps.DefaultLimit
	case limit > g.deps.MaxLimit:
		limit = g.deps.MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	return b.String(), args
}
