package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"string", "hello"},
		{"number", 42.5},
		{"bool", true},
		{"float", -0.25},
		{"integer", int64(42)},
		{"large integer", int64(9007199254740993)},
		{"min integer", int64(math.MinInt64)},
		{"list", []any{int64(1), "two", false, nil, 2.5}},
		{"mapping", map[string]any{"temp": 21.5, "unit": "C"}},
		{"nested", map[string]any{
			"event": "receive_action",
			"data": []any{
				map[string]any{"id": int64(7), "value": map[string]any{"on": true, "levels": []any{1.5, int64(2)}}},
				map[string]any{"id": int64(8), "value": nil},
			},
		}},
		{"empty mapping", map[string]any{}},
		{"empty list", []any{}},
	}

	var c JSON
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Encode(tt.value)
			require.NoError(t, err)
			got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestJSON_SubstitutesUnsupportedValues(t *testing.T) {
	var c JSON
	ch := make(chan int)

	data, err := c.Encode(map[string]any{
		"ok":      1.5,
		"nan":     math.NaN(),
		"complex": complex(1, 2),
		"nested":  []any{ch},
	})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, 1.5, m["ok"])
	assert.Equal(t, "NaN", m["nan"])
	assert.Equal(t, "(1+2i)", m["complex"])
	nested := m["nested"].([]any)
	require.Len(t, nested, 1)
	assert.IsType(t, "", nested[0])
}

func TestJSON_SanitizesStructsByTag(t *testing.T) {
	type payload struct {
		ActionID int    `json:"actionId"`
		Value    any    `json:"value"`
		Skip     string `json:"-"`
		Empty    string `json:"empty,omitempty"`
	}
	var c JSON

	data, err := c.Encode(map[string]any{"event": "send_action_done", "data": payload{ActionID: 3, Value: func() {}}})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	frame := got.(map[string]any)
	body := frame["data"].(map[string]any)
	assert.Equal(t, int64(3), body["actionId"])
	assert.IsType(t, "", body["value"])
	assert.NotContains(t, body, "Skip")
	assert.NotContains(t, body, "empty")
}

func TestJSON_DecodeInvalid(t *testing.T) {
	_, err := JSON{}.Decode([]byte("{not json"))
	assert.Error(t, err)

	_, err = JSON{}.Decode([]byte(`{"a":1} trailing garbage`))
	assert.ErrorIs(t, err, ErrTrailingData)

	_, err = JSON{}.Decode([]byte(`{"a":1}{"b":2}`))
	assert.ErrorIs(t, err, ErrTrailingData)

	v, err := JSON{}.Decode([]byte("{\"a\":1}\n "))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1)}, v)
}

func TestJSON_DecodeNumbers(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`[7, 7.0, 7.9, 1e3, 18446744073709551616]`))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), 7.0, 7.9, 1000.0, 18446744073709551616.0}, v)
}

func TestJSON_SanitizeFlattensEmbedded(t *testing.T) {
	type Base struct {
		ObjectID string `json:"objectId"`
		Kind     string `json:"kind"`
	}
	type Named struct {
		Label string `json:"label"`
	}
	type payload struct {
		Base
		*Named
		Nested Base `json:"nested"`
		Kind   string `json:"kind"`
		Value  any    `json:"value"`
	}
	var c JSON
	in := payload{
		Base:   Base{ObjectID: "obj-1", Kind: "inner"},
		Named:  &Named{Label: "lamp"},
		Nested: Base{ObjectID: "obj-2"},
		Kind:   "outer",
		Value:  make(chan int),
	}

	data, err := c.Encode(in)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	body := got.(map[string]any)
	assert.Equal(t, "obj-1", body["objectId"])
	assert.Equal(t, "lamp", body["label"])
	assert.Equal(t, "outer", body["kind"])
	assert.Equal(t, map[string]any{"objectId": "obj-2", "kind": ""}, body["nested"])
	assert.NotContains(t, body, "Base")
	assert.NotContains(t, body, "Named")
	assert.IsType(t, "", body["value"])

	in.Named = nil
	data, err = c.Encode(in)
	require.NoError(t, err)
	got, err = c.Decode(data)
	require.NoError(t, err)
	assert.NotContains(t, got.(map[string]any), "label")
}

func TestFuncAdapters(t *testing.T) {
	enc := EncoderFunc(func(v any) ([]byte, error) { return []byte("x"), nil })
	dec := DecoderFunc(func(data []byte) (any, error) { return string(data), nil })

	data, err := enc.Encode(1)
	require.NoError(t, err)
	v, err := dec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
