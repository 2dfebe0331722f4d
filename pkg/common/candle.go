package common

import (
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

const (
	CandlePeriodSeconds = 60
	nanosPerCandle      = CandlePeriodSeconds * int64(1e9)
)

// Candle is a one minute OHLC bar. OpenTime is the unix second the minute starts at.
type Candle struct {
	Symbol    string      `json:"symbol,omitempty"`
	OpenTime  int64       `json:"open_time"`
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	Volume    uint64      `json:"volume"`
	TickCount int         `json:"tick_count"`
}

func (c Candle) Fields() []zap.Field {
	return []zap.Field{
		zap.String("symbol", c.Symbol),
		zap.Int64("open_time", c.OpenTime),
		zap.String("open", c.Open.String()),
		zap.String("high", c.High.String()),
		zap.String("low", c.Low.String()),
		zap.String("close", c.Close.String()),
		zap.Uint64("volume", c.Volume),
	}
}

// MinuteBucket floors a nanosecond timestamp to the start of its minute, in
// unix seconds. Integer division only, so the bucket is exact for any int64.
func MinuteBucket(ts int64) int64 {
	q := ts / nanosPerCandle
	if ts%nanosPerCandle != 0 && ts < 0 {
		q--
	}
	return q * CandlePeriodSeconds
}
