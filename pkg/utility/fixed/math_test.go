package fixed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func points(values ...string) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = mustParse(v)
	}
	return out
}

func mustParse(s string) Point {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func assertClose(t *testing.T, want string, got Point) {
	t.Helper()
	diff := mustParse(want).Sub(got).Abs()
	assert.True(t, diff.Lte(mustParse("0.0001")), "want %s, got %s", want, got)
}

func TestFixedMath_Mean(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   string
	}{
		{"empty", nil, "0"},
		{"single", points("5"), "5"},
		{"positive", points("1", "2", "3", "4", "5"), "3"},
		{"symmetric", points("-2", "-1", "0", "1", "2"), "0"},
		{"exact decimals", points("0.1", "0.2"), "0.15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mean(tt.points).String())
		})
	}
}

func TestFixedMath_StdDev(t *testing.T) {
	assert.True(t, StdDev(points("7"), mustParse("7")).IsZero())
	assertClose(t, "2", StdDev(points("2", "4", "4", "4", "5", "5", "7", "9"), mustParse("5")))
	assertClose(t, "1.4142", StdDev(points("1", "2", "3", "4", "5"), mustParse("3")))
}

func TestFixedMath_DownsideDev(t *testing.T) {
	assert.True(t, DownsideDev(points("1", "2", "3"), Zero).IsZero(), "nothing below target")
	assert.True(t, DownsideDev(points("-1", "2", "3"), Zero).IsZero(), "single point below target")
	assertClose(t, "2.2360", DownsideDev(points("-1", "-3", "4"), Zero))
}

func TestFixedMath_SharpeRatio(t *testing.T) {
	assert.True(t, SharpeRatio(nil, Zero).IsZero())
	assert.True(t, SharpeRatio(points("0.01", "0.01"), Zero).IsZero(), "no volatility")
	assertClose(t, "1.4142", SharpeRatio(points("1", "2", "3", "4", "5"), mustParse("1")))
}

func TestFixedMath_SortinoRatio(t *testing.T) {
	assert.True(t, SortinoRatio(points("1", "2"), Zero).IsZero())
	// mean 0, downside sqrt((1+9)/2)
	assertClose(t, "0", SortinoRatio(points("-1", "-3", "4"), Zero))
	assertClose(t, "0.7454", SortinoRatio(points("-1", "-3", "9"), Zero))
}
