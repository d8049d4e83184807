package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureGeneratesWhenAbsent(t *testing.T) {
	ctx, id := Ensure(context.Background(), "")
	require.NotEmpty(t, id)
	require.Equal(t, id, FromContext(ctx))
}

func TestEnsureKeepsCallerSuppliedID(t *testing.T) {
	ctx, id := Ensure(context.Background(), "corr-123")
	require.Equal(t, "corr-123", id)
	require.Equal(t, "corr-123", FromContext(ctx))
}

func TestEnsureReusesContextID(t *testing.T) {
	ctx := WithID(context.Background(), "corr-ctx")
	_, id := Ensure(ctx, "")
	require.Equal(t, "corr-ctx", id)
}

func TestFromContextEmptyWithoutID(t *testing.T) {
	require.Empty(t, FromContext(context.Background()))
}
