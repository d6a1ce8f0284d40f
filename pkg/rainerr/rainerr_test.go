package rainerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfRoundTrips(t *testing.T) {
	err := Validationf("duplicate id %s", "T1")
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindValidation, kind)
	require.True(t, Is(err, KindValidation))
	require.False(t, Is(err, KindInternal))
}

func TestWrapPreservesKind(t *testing.T) {
	base := WorkerFaultf("send failed")
	wrapped := Wrap(KindWorkerFault, base, "AddNodes")
	require.True(t, Is(wrapped, KindWorkerFault))
	require.ErrorContains(t, wrapped, "send failed")
}

func TestKindOfUnknownOnPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}
