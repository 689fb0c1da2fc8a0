package obcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSourceString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "s\x00abc", GetSourceString("abc"))
	require.Equal(t, "n\x0027", GetSourceString(27))
	require.Equal(t, "n\x0027", GetSourceString(int64(27)))
	require.Equal(t, "b\x00true", GetSourceString(true))

	// Object keys are visited in sorted order regardless of insertion.
	a := map[string]interface{}{"b": 1, "a": "x"}
	b := map[string]interface{}{"a": "x", "b": 1}
	require.Equal(t, GetSourceString(a), GetSourceString(b))
	require.Equal(t, "a\x00s\x00x\x00b\x00n\x001", GetSourceString(a))

	arr := []interface{}{"sig", map[string]interface{}{"pubkey": "A"}}
	require.Equal(t, "[\x00s\x00sig\x00pubkey\x00s\x00A\x00]", GetSourceString(arr))
}

func TestGetSourceStringSkipsNilValues(t *testing.T) {
	t.Parallel()

	withNil := map[string]interface{}{"a": "x", "skip": nil}
	without := map[string]interface{}{"a": "x"}
	require.Equal(t, GetSourceString(without), GetSourceString(withNil))
}

func TestGetLength(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, GetLength("abc"))
	require.Equal(t, 8, GetLength(int64(1)))
	require.Equal(t, 1, GetLength(true))
	require.Equal(t, 11, GetLength([]interface{}{"abc", int64(5)}))
	require.Equal(t, 1+8, GetLength(map[string]interface{}{"a": int64(0)}))
}
