package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTCPCheckerHealthyWhenListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	checker := NewTCPChecker(l.Addr().String())
	result := checker.Check(context.Background())

	require.True(t, result.Healthy)
	require.Equal(t, CheckTypeTCP, checker.Type())
}

func TestTCPCheckerUnhealthyWhenNothingListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	checker := NewTCPChecker(addr)
	result := checker.Check(context.Background())

	require.False(t, result.Healthy)
	require.NotEmpty(t, result.Message)
}

func TestTCPCheckerWithTimeout(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:0").WithTimeout(100 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, checker.Timeout)
}
