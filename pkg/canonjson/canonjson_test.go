package canonjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysAtEveryLevel(t *testing.T) {
	v := map[string]any{
		"b": 1,
		"a": map[string]any{
			"z": 1,
			"y": 2,
		},
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(out))
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]any{"trace_id": "abc123", "params": map[string]any{"limit": 10, "offset": 0}}
	a, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestMarshal_ArrayOrderPreserved(t *testing.T) {
	v := []any{"b", "a", "c"}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `["b","a","c"]`, string(out))
}

func TestMarshal_NullAndBool(t *testing.T) {
	out, err := Marshal(map[string]any{"ok": true, "missing": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"missing":null,"ok":true}`, string(out))
}
