package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
)

const (
	DayLayout      = "2006-01-02"
	MinutesPerDay  = 24 * 60
	DefaultLimit   = 5000
	nanosPerMinute = int64(time.Minute)
)

var ErrInvalidRequest = errors.New("invalid page request")

// Cursor marks the last tick of a returned page. An empty cursor starts at the
// beginning of the requested window.
type Cursor string

func CursorFromTimeStamp(ts int64) Cursor {
	return Cursor(strconv.FormatInt(ts, 10))
}

// TimeStamp decodes the cursor. The bool is false for the empty cursor.
func (c Cursor) TimeStamp() (int64, bool, error) {
	if c == "" {
		return 0, false, nil
	}
	ts, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed cursor %q: %w", string(c), err)
	}
	return ts, true, nil
}

type PageRequest struct {
	Symbol      string
	Day         string
	Cursor      Cursor
	StartMinute int
	EndMinute   int
	Limit       int
}

type Page struct {
	Ticks          []common.Tick `json:"ticks"`
	NextCursor     Cursor        `json:"nextCursor"`
	Done           bool          `json:"done"`
	ResolvedSymbol string        `json:"resolvedSymbol"`
}

type Week struct {
	WeekStart string   `json:"weekStart"`
	Days      []string `json:"days"`
}

//go:generate mockgen -source=provider.go -destination=mock/provider.go -package=mock

type Provider interface {
	FetchTicks(ctx context.Context, req PageRequest) (Page, error)
	Availability(ctx context.Context, symbol string) ([]Week, error)
}

// Window is the resolved nanosecond range [From, To) a request covers, with
// the cursor already applied.
type Window struct {
	DayStart int64
	From     int64
	To       int64
}

func (req PageRequest) Window(loc *time.Location) (Window, error) {
	if req.Symbol == "" {
		return Window{}, fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	if req.StartMinute < 0 || req.EndMinute > MinutesPerDay || req.StartMinute >= req.EndMinute {
		return Window{}, fmt.Errorf("%w: minutes [%d, %d)", ErrInvalidRequest, req.StartMinute, req.EndMinute)
	}
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation(DayLayout, req.Day, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: day %q: %v", ErrInvalidRequest, req.Day, err)
	}

	w := Window{DayStart: day.UnixNano()}
	w.From = w.DayStart + int64(req.StartMinute)*nanosPerMinute
	w.To = w.DayStart + int64(req.EndMinute)*nanosPerMinute

	last, ok, err := req.Cursor.TimeStamp()
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if ok && last+1 > w.From {
		w.From = last + 1
	}
	return w, nil
}

func (req PageRequest) EffectiveLimit() int {
	if req.Limit <= 0 {
		return DefaultLimit
	}
	return req.Limit
}

// NewPage builds a page from at most limit+1 rows: the extra row only signals
// that more data follows.
func NewPage(symbol string, ticks []common.Tick, limit int, prev Cursor) Page {
	page := Page{ResolvedSymbol: symbol, NextCursor: prev}
	if len(ticks) > limit {
		ticks = ticks[:limit]
	} else {
		page.Done = true
	}
	page.Ticks = ticks
	if len(ticks) > 0 {
		page.NextCursor = CursorFromTimeStamp(ticks[len(ticks)-1].TimeStamp)
	}
	return page
}
