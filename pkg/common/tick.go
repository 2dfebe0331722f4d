package common

import (
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

// Tick is a single trade observation. Ticks are immutable once received and a
// stream of them is ordered by TimeStamp, ties allowed.
type Tick struct {
	Symbol      string      `json:"symbol,omitempty"`
	TimeStamp   int64       `json:"ts"`
	Price       fixed.Point `json:"price"`
	Volume      uint64      `json:"volume"`
	MinuteOfDay int16       `json:"minute_of_day"`
}

func (t Tick) Time() time.Time {
	return time.Unix(0, t.TimeStamp)
}

func (t Tick) Fields() []zap.Field {
	return []zap.Field{
		zap.String("symbol", t.Symbol),
		zap.Int64("ts", t.TimeStamp),
		zap.String("price", t.Price.String()),
		zap.Uint64("volume", t.Volume),
		zap.Int16("minute_of_day", t.MinuteOfDay),
	}
}

// MinuteOfDay projects a nanosecond timestamp onto the minute of the day in loc.
func MinuteOfDay(ts int64, loc *time.Location) int16 {
	t := time.Unix(0, ts).In(loc)
	return int16(t.Hour()*60 + t.Minute()) // #nosec G115
}
