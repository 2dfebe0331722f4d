package utility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversion_U64ToI64(t *testing.T) {
	v, err := U64ToI64(42)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = U64ToI64(math.MaxUint64)
	assert.Error(t, err)

	assert.Panics(t, func() { U64ToI64Unsafe(math.MaxUint64) })
}

func TestConversion_I64ToU64(t *testing.T) {
	v, err := I64ToU64(7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = I64ToU64(-1)
	assert.Error(t, err)
}
