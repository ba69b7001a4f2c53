package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/store"
	"github.com/krapi-cms/krapi-core/internal/store/storetest"
)

// clock es un reloj manual seguro para goroutines.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (Service, *store.Manager) {
	t.Helper()
	m := storetest.NewManager(t)
	return NewService(Deps{Store: m}), m
}

func adminInput(userID string) repository.CreateSessionInput {
	return repository.CreateSessionInput{
		UserID:    userID,
		Type:      repository.SessionTypeAdmin,
		Scopes:    []string{"read"},
		IPAddress: "10.0.0.1",
		UserAgent: "test",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestEndToEnd_CreateLookupInvalidateAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, adminInput("user-1"))
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)
	require.True(t, created.IsActive)
	require.False(t, created.Consumed)
	require.Nil(t, created.LastActivity)
	require.Nil(t, created.ProjectID)

	got, err := svc.GetByToken(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, []string{"read"}, got.Scopes)
	require.NotNil(t, got.LastActivity)
	require.WithinDuration(t, time.Now(), *got.LastActivity, 5*time.Second)

	// el touch quedó persistido
	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].LastActivity)

	n, err := svc.InvalidateAllForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.GetByToken(ctx, created.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByToken_ExpiredIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	in := adminInput("user-1")
	in.ExpiresAt = time.Now().Add(-time.Minute)
	s, err := svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = svc.GetByToken(ctx, s.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.GetByToken(ctx, "no-such-token")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.GetByToken(ctx, "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsume_Idempotent(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Now())
	svc := NewService(Deps{Store: storetest.NewManager(t), Now: clk.Now})

	s, err := svc.Create(ctx, adminInput("user-1"))
	require.NoError(t, err)

	first, err := svc.Consume(ctx, s.Token)
	require.NoError(t, err)
	require.True(t, first.Consumed)
	require.NotNil(t, first.ConsumedAt)

	clk.Advance(time.Minute)
	second, err := svc.Consume(ctx, s.Token)
	require.NoError(t, err)
	require.True(t, second.Consumed)
	require.True(t, first.ConsumedAt.Equal(*second.ConsumedAt), "consumed_at must not move")

	// consumida sigue siendo válida salvo que el llamador diga lo contrario
	_, err = svc.GetByToken(ctx, s.Token)
	require.NoError(t, err)
	_, err = svc.GetByToken(ctx, s.Token, repository.RejectConsumed())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsume_InvalidSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	s, err := svc.Create(ctx, adminInput("user-1"))
	require.NoError(t, err)
	ok, err := svc.Invalidate(ctx, s.Token)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Consume(ctx, s.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.Consume(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvalidate_IsMonotonic(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)

	s, err := svc.Create(ctx, adminInput("user-1"))
	require.NoError(t, err)

	ok, err := svc.Invalidate(ctx, s.Token)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Invalidate(ctx, s.Token)
	require.NoError(t, err)
	require.False(t, ok, "second invalidate affects nothing")

	// nada de lo que expone el servicio la reactiva
	_, _ = svc.Consume(ctx, s.Token)
	_, _ = svc.GetByToken(ctx, s.Token)
	_, _ = svc.CleanupExpired(ctx)
	_, _ = svc.InvalidateAllForUser(ctx, "user-1")

	res, err := m.QueryControlPlane(ctx, "SELECT is_active FROM sessions WHERE id = ?", s.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Rows[0]["is_active"])

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestCleanupExpired_DeactivatesOnly(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)

	expired := adminInput("user-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	e, err := svc.Create(ctx, expired)
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminInput("user-2"))
	require.NoError(t, err)

	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// la fila sigue ahí, inactiva
	res, err := m.QueryControlPlane(ctx, "SELECT is_active FROM sessions WHERE id = ?", e.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	require.EqualValues(t, 0, res.Rows[0]["is_active"])
}

func TestCleanupOld_DeletesRegardlessOfState(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Now().Add(-40 * 24 * time.Hour))
	m := storetest.NewManager(t)
	svc := NewService(Deps{Store: m, Now: clk.Now})

	old, err := svc.Create(ctx, adminInput("user-1")) // activa y vigente, pero vieja
	require.NoError(t, err)

	clk.Advance(40 * 24 * time.Hour)
	recent, err := svc.Create(ctx, adminInput("user-1"))
	require.NoError(t, err)

	n, err := svc.CleanupOld(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.GetByToken(ctx, old.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.GetByToken(ctx, recent.Token)
	require.NoError(t, err)

	// daysOld ≤ 0 usa la retención por defecto
	n, err = svc.CleanupOld(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestListActive_NewestFirst(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Now().Add(-time.Hour))
	svc := NewService(Deps{Store: storetest.NewManager(t), Now: clk.Now})

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := svc.Create(ctx, adminInput("user-1"))
		require.NoError(t, err)
		ids = append(ids, s.ID)
		clk.Advance(time.Second)
	}
	other, err := svc.Create(ctx, adminInput("user-2"))
	require.NoError(t, err)

	list, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	require.Equal(t, other.ID, list[0].ID)
	require.Equal(t, ids[2], list[1].ID)
	require.Equal(t, ids[0], list[3].ID)

	mine, err := svc.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.Equal(t, ids[2], mine[0].ID)
}

func TestCreate_ProjectSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	s, err := svc.Create(ctx, repository.CreateSessionInput{
		UserID:    "user-9",
		Type:      repository.SessionTypeProject,
		ProjectID: "proj_1",
		Metadata:  map[string]any{"via": "api_key"},
	})
	require.NoError(t, err)
	require.NotNil(t, s.ProjectID)
	require.Equal(t, "proj_1", *s.ProjectID)
	require.Equal(t, "api_key", s.Metadata["via"])
	require.NotNil(t, s.Scopes)
	require.Empty(t, s.Scopes)
	require.WithinDuration(t, time.Now().Add(DefaultTTL), s.ExpiresAt, 5*time.Second)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cases := []repository.CreateSessionInput{
		{Type: repository.SessionTypeAdmin},
		{UserID: "u", Type: "robot"},
		{UserID: "u", Type: repository.SessionTypeProject},
		{UserID: "u", Type: repository.SessionTypeAdmin, ProjectID: "proj_1"},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, repository.ErrInvalidInput, "%+v", in)
	}
}

// blindStore acepta escrituras pero nunca devuelve filas.
type blindStore struct{}

func (blindStore) QueryControlPlane(context.Context, string, ...any) (*store.Result, error) {
	return &store.Result{Rows: []store.Row{}}, nil
}

func (blindStore) ExecuteControlPlane(context.Context, string, ...any) (*store.Result, error) {
	return &store.Result{RowCount: 1}, nil
}

func (blindStore) ControlPlaneDialect() store.Dialect { return store.SQLite }

func TestCreate_VerificationFailed(t *testing.T) {
	svc := NewService(Deps{Store: blindStore{}})
	_, err := svc.Create(context.Background(), adminInput("user-1"))
	require.ErrorIs(t, err, repository.ErrVerificationFailed)
}

// failingStore simula un store caído.
type failingStore struct{ blindStore }

var errDown = errors.New("connection refused")

func (failingStore) QueryControlPlane(context.Context, string, ...any) (*store.Result, error) {
	return nil, &store.Error{Op: "query", Store: "control-plane", Err: errDown}
}

func TestGetByToken_StoreErrorsSurface(t *testing.T) {
	svc := NewService(Deps{Store: failingStore{}})
	_, err := svc.GetByToken(context.Background(), "tok")
	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
	require.ErrorIs(t, err, errDown)
	require.False(t, repository.IsNotFound(err))
}

func TestJanitor_SweepOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	expired := adminInput("user-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	_, err := svc.Create(ctx, expired)
	require.NoError(t, err)

	j := NewJanitor(svc, JanitorConfig{}, nil)
	deactivated, deleted, err := j.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, deactivated)
	require.Equal(t, 0, deleted)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t)
	j := NewJanitor(svc, JanitorConfig{Interval: 10 * time.Millisecond, RetentionInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
