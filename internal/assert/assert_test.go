package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotNil(t *testing.T) {
	var typed *int
	require.Panics(t, func() { NotNil(nil, "value") })
	require.Panics(t, func() { NotNil(typed, "typed") })
	require.NotPanics(t, func() { NotNil(1, "int") })
	require.NotPanics(t, func() { NotNil(&struct{}{}, "struct") })
}

func TestNotEmptyStr(t *testing.T) {
	require.PanicsWithValue(t, "expected token to be non-empty", func() { NotEmptyStr("", "token") })
	require.NotPanics(t, func() { NotEmptyStr("x", "token") })
}
