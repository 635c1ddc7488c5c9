package storemetrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/storemetrics"
)

func TestObserveAndPercentiles(t *testing.T) {
	m, err := storemetrics.New("")
	require.NoError(t, err)

	require.Equal(t, storemetrics.Percentiles{}, m.CommitLatency())

	for i := 1; i <= 100; i++ {
		m.ObserveCommit(time.Duration(i)*time.Millisecond, 128)
		m.ObserveRead(time.Duration(i) * time.Millisecond)
	}

	cl := m.CommitLatency()
	require.Greater(t, cl.P50, 0.0)
	require.GreaterOrEqual(t, cl.P99, cl.P50)

	rl := m.ReadLatency()
	require.Greater(t, rl.P50, 0.0)
}
