package synthetic

import (
	"math"
	"math/rand/v2"
	"time"
)

const secondsPerYear = 365.25 * 24 * 3600

// Parameters describe a geometric brownian motion price path with randomised
// tick timing and volume.
type Parameters struct {
	StartPrice float64
	Mu         float64 // annual drift
	Sigma      float64 // annual volatility
	Digits     int

	AvgTickInterval time.Duration
	TickVariability float64

	AvgVolume      float64
	VolumeVariance float64

	SessionStartMinute int
	SessionEndMinute   int
}

type TickGenerator struct {
	rng    *rand.Rand
	params Parameters

	lastTime  int64
	lastPrice float64
	scale     float64

	deltaLogPre1 float64
	deltaLogPre2 float64
}

func NewTickGenerator(rng *rand.Rand, start int64, params Parameters) *TickGenerator {
	deltaT := params.AvgTickInterval.Seconds() / secondsPerYear
	return &TickGenerator{
		rng:       rng,
		params:    params,
		lastTime:  start,
		lastPrice: params.StartPrice,
		scale:     math.Pow10(params.Digits),

		// Pre-calculated values for GBM
		deltaLogPre1: (params.Mu - 0.5*params.Sigma*params.Sigma) * deltaT,
		deltaLogPre2: params.Sigma * math.Sqrt(deltaT),
	}
}

// Next returns the next tick. Timestamps strictly increase.
func (g *TickGenerator) Next() (ts int64, price float64, volume uint64) {
	z := g.rng.NormFloat64()
	g.lastPrice *= math.Exp(g.deltaLogPre1 + g.deltaLogPre2*z)
	g.lastTime += max(g.generateTickInterval(), 1)

	price = math.Round(g.lastPrice*g.scale) / g.scale
	if price <= 0 {
		price = 1 / g.scale
	}
	return g.lastTime, price, g.generateVolume()
}

func (g *TickGenerator) generateTickInterval() int64 {
	avg := float64(g.params.AvgTickInterval.Nanoseconds())
	if g.params.TickVariability <= 0 {
		return int64(avg)
	}

	interval := g.rng.ExpFloat64() * avg

	minInterval := avg * (1.0 - g.params.TickVariability)
	maxInterval := avg * (1.0 + g.params.TickVariability*3)

	if interval < minInterval {
		interval = minInterval
	} else if interval > maxInterval {
		interval = maxInterval
	}
	return int64(interval)
}

func (g *TickGenerator) generateVolume() uint64 {
	variation := g.rng.NormFloat64() * g.params.VolumeVariance
	vol := math.Round(g.params.AvgVolume * math.Exp(variation))
	if vol < 1 {
		return 1
	}
	return uint64(vol)
}
