package bar

import (
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

type FoldKind int

const (
	FoldOpened FoldKind = iota
	FoldUpdated
	FoldRolled
)

func (k FoldKind) String() string {
	switch k {
	case FoldOpened:
		return "opened"
	case FoldUpdated:
		return "updated"
	case FoldRolled:
		return "closed+opened"
	default:
		return "unknown"
	}
}

// FoldResult describes what a single tick did to the aggregator. Candle is a
// copy of the open candle after the fold; Closed is only set for FoldRolled.
type FoldResult struct {
	Kind   FoldKind
	Candle common.Candle
	Closed common.Candle
}

// Aggregator folds one instrument's ticks into one minute candles. It owns the
// open candle by value and replaces it wholesale when the minute rolls, so a
// candle handed out to a consumer is never mutated afterwards.
type Aggregator struct {
	symbol string

	open    common.Candle
	hasOpen bool
	closed  []common.Candle

	currentPrice fixed.Point
	hasPrice     bool
}

func NewAggregator(symbol string) *Aggregator {
	return &Aggregator{symbol: symbol}
}

func (a *Aggregator) Symbol() string {
	return a.symbol
}

func (a *Aggregator) Fold(tick common.Tick) FoldResult {
	bucket := common.MinuteBucket(tick.TimeStamp)

	a.currentPrice = tick.Price
	a.hasPrice = true

	if !a.hasOpen {
		a.open = a.newCandle(bucket, tick)
		a.hasOpen = true
		return FoldResult{Kind: FoldOpened, Candle: a.open}
	}

	// A tick older than the open bucket never reopens a closed candle, it is
	// folded into the open one.
	if bucket <= a.open.OpenTime {
		a.update(tick)
		return FoldResult{Kind: FoldUpdated, Candle: a.open}
	}

	closed := a.open
	a.closed = append(a.closed, closed)
	a.open = a.newCandle(bucket, tick)
	return FoldResult{Kind: FoldRolled, Candle: a.open, Closed: closed}
}

func (a *Aggregator) CurrentPrice() (fixed.Point, bool) {
	return a.currentPrice, a.hasPrice
}

func (a *Aggregator) OpenCandle() (common.Candle, bool) {
	return a.open, a.hasOpen
}

func (a *Aggregator) ClosedCount() int {
	return len(a.closed)
}

// Snapshot returns every closed candle followed by the open one.
func (a *Aggregator) Snapshot() []common.Candle {
	candles := make([]common.Candle, 0, len(a.closed)+1)
	candles = append(candles, a.closed...)
	if a.hasOpen {
		candles = append(candles, a.open)
	}
	return candles
}

func (a *Aggregator) Reset() {
	a.open = common.Candle{}
	a.hasOpen = false
	a.closed = nil
	a.currentPrice = fixed.Zero
	a.hasPrice = false
}

func (a *Aggregator) newCandle(bucket int64, tick common.Tick) common.Candle {
	return common.Candle{
		Symbol:    a.symbol,
		OpenTime:  bucket,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
		Volume:    tick.Volume,
		TickCount: 1,
	}
}

func (a *Aggregator) update(tick common.Tick) {
	if tick.Price.Gt(a.open.High) {
		a.open.High = tick.Price
	}
	if tick.Price.Lt(a.open.Low) {
		a.open.Low = tick.Price
	}
	a.open.Close = tick.Price
	a.open.Volume += tick.Volume
	a.open.TickCount++
}
