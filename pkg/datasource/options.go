package datasource

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

var ErrMalformedTick = errors.New("malformed tick row")

// Options are shared by every provider implementation.
type Options struct {
	Location  *time.Location
	Calendars Calendars
}

type Option func(*Options)

func WithLocation(loc *time.Location) Option {
	return func(o *Options) {
		if loc != nil {
			o.Location = loc
		}
	}
}

func WithCalendars(calendars Calendars) Option {
	return func(o *Options) {
		o.Calendars = calendars
	}
}

func NewOptions(options ...Option) Options {
	o := Options{Location: time.UTC}
	for _, opt := range options {
		opt(&o)
	}
	return o
}

// Calendars maps a symbol to the trading calendar its days are filtered by.
type Calendars map[string]*TradingCalendar

func NewCalendars(instruments []common.Instrument) Calendars {
	c := make(Calendars, len(instruments))
	for _, instrument := range instruments {
		c[instrument.Symbol] = NewTradingCalendar(instrument.CalendarMIC)
	}
	return c
}

// For returns nil for unknown symbols, which TradingCalendar treats as plain
// weekdays.
func (c Calendars) For(symbol string) *TradingCalendar {
	if c == nil {
		return nil
	}
	return c[symbol]
}

func (o Options) Weeks(symbol string, days []string) []Week {
	return GroupWeeks(days, o.Calendars.For(symbol))
}

func (o Options) DayOf(ts int64) string {
	return time.Unix(0, ts).In(o.Location).Format(DayLayout)
}

// NextDayStart returns the first nanosecond of the day following the one ts
// falls on.
func (o Options) NextDayStart(ts int64) int64 {
	t := time.Unix(0, ts).In(o.Location)
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, o.Location)
	return next.UnixNano()
}

// Tick builds a replay tick from a stored row. Rows without a usable price
// are reported as malformed.
func (o Options) Tick(symbol string, ts int64, price float64, volume uint64) (common.Tick, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return common.Tick{}, fmt.Errorf("%w: %s tick at %d has price %v", ErrMalformedTick, symbol, ts, price)
	}
	return common.Tick{
		Symbol:      symbol,
		TimeStamp:   ts,
		Price:       fixed.FromFloat64(price),
		Volume:      volume,
		MinuteOfDay: common.MinuteOfDay(ts, o.Location),
	}, nil
}
