package fixed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPoint_FromInt64(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		scale int
		want  string
	}{
		{"zero", 0, 0, "0"},
		{"positive", 123, 0, "123"},
		{"negative", -456, 0, "-456"},
		{"with scale", 123, 2, "1.23"},
		{"negative with scale", -456, 3, "-0.456"},
		{"trailing zeros trimmed", 1500, 2, "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromInt64(tt.value, tt.scale).String())
		})
	}
}

func TestFixedPoint_Arithmetic(t *testing.T) {
	a := FromFloat64(110.25)
	b := FromInt(100, 0)

	assert.Equal(t, "210.25", a.Add(b).String())
	assert.Equal(t, "10.25", a.Sub(b).String())
	assert.Equal(t, "-10.25", b.Sub(a).String())
	assert.Equal(t, "20.5", a.Sub(b).MulUint32(2).String())
	assert.Equal(t, "55.125", a.DivInt(2).String())
	assert.True(t, a.Gt(b))
	assert.True(t, b.Lte(b))
	assert.True(t, FromFloat64(1.50).Eq(FromInt(15, 1)))
	assert.Equal(t, a, Max(a, b))
	assert.Equal(t, b, Min(a, b))
}

func TestFixedPoint_Parse(t *testing.T) {
	p, err := Parse("95.5")
	require.NoError(t, err)
	assert.True(t, p.Eq(FromFloat64(95.5)))

	_, err = Parse("not-a-number")
	assert.Error(t, err)
}

func TestFixedPoint_TextRoundTrip(t *testing.T) {
	type wrapper struct {
		Price Point `json:"price"`
	}

	raw, err := json.Marshal(wrapper{Price: FromFloat64(1.1002)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"1.1002"}`, string(raw))

	var decoded wrapper
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Price.Eq(FromFloat64(1.1002)))
}
