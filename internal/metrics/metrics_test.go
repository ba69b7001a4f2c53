package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	ActivityTimeouts.Inc()
	require.GreaterOrEqual(t, testutil.ToFloat64(ActivityTimeouts), 1.0)

	n, err := testutil.GatherAndCount(reg, "krapi_activity_query_timeouts_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
