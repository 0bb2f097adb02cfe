package httpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPLimiterAllowsBurstThenRefills(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(2, time.Minute, func() time.Time { return now })

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"), "limits are per client")

	now = now.Add(30 * time.Second)
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
}

func TestIPLimiterDisabled(t *testing.T) {
	require.Nil(t, newIPLimiter(0, time.Minute, nil))

	var l *ipLimiter
	for range 10 {
		require.True(t, l.Allow("10.0.0.1"))
	}
}
