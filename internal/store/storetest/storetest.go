// Package storetest arma Managers sobre SQLite en memoria para tests de
// paquetes que dependen del store.
package storetest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/store"
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/sqlite"
)

// NewManager retorna un Manager con control plane SQLite en memoria, esquema
// aplicado y tenants en memoria (uno por proyecto). Se cierra al terminar t.
func NewManager(t testing.TB) *store.Manager {
	t.Helper()
	m, err := store.NewManager(context.Background(), store.ManagerConfig{
		ControlPlane: store.AdapterConfig{Driver: "sqlite", DSN: ":memory:"},
		Tenants: store.TenantConfig{
			Driver:      "sqlite",
			DSNTemplate: ":memory:",
			Registry:    store.RegistryOff,
		},
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("storetest: new manager: %v", err)
	}
	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("storetest: ensure ready: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}
