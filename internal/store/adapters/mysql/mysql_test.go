package mysql_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krapi-cms/krapi-core/internal/store"
	"github.com/krapi-cms/krapi-core/internal/store/adapters/mysql"
)

func TestMySQLAdapterRegistered(t *testing.T) {
	a, ok := store.GetAdapter("mysql")
	require.True(t, ok)
	require.Equal(t, "mysql", a.Name())

	// alias
	_, ok = store.GetAdapter("mariadb")
	require.True(t, ok)
}

func TestMySQLAdapterOpenRequiresDSN(t *testing.T) {
	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Driver: "mysql"})
	require.Error(t, err)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := mysql.NormalizeDSN("krapi:secret@tcp(db:3306)/krapi_proj_1")
	require.NoError(t, err)
	require.True(t, strings.Contains(dsn, "parseTime=true"), dsn)
	require.True(t, strings.Contains(dsn, "loc=UTC"), dsn)

	_, err = mysql.NormalizeDSN("not a dsn")
	require.Error(t, err)
}
