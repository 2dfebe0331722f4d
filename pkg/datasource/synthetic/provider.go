package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"go.uber.org/zap"
)

const maxCachedDays = 8

// Provider generates a deterministic tick path per symbol and day. The same
// symbol and day always yield the same ticks, so pagination and seeking
// behave like a stored day.
type Provider struct {
	logger  *zap.Logger
	options datasource.Options
	from    time.Time
	to      time.Time
	params  map[string]Parameters

	mu    sync.Mutex
	days  map[string][]common.Tick
	order []string
}

// NewProvider offers every trading day in [from, to] (DayLayout strings).
func NewProvider(logger *zap.Logger, from, to string, options ...datasource.Option) (*Provider, error) {
	o := datasource.NewOptions(options...)
	f, err := time.ParseInLocation(datasource.DayLayout, from, o.Location)
	if err != nil {
		return nil, fmt.Errorf("synthetic provider from day: %w", err)
	}
	t, err := time.ParseInLocation(datasource.DayLayout, to, o.Location)
	if err != nil {
		return nil, fmt.Errorf("synthetic provider to day: %w", err)
	}
	if t.Before(f) {
		return nil, fmt.Errorf("synthetic provider range %s..%s is empty", from, to)
	}
	return &Provider{
		logger:  logger,
		options: o,
		from:    f,
		to:      t,
		params:  make(map[string]Parameters),
		days:    make(map[string][]common.Tick),
	}, nil
}

// SetParameters overrides the preset used for symbol.
func (p *Provider) SetParameters(symbol string, params Parameters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params[symbol] = params
}

func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	w, err := req.Window(p.options.Location)
	if err != nil {
		return datasource.Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return datasource.Page{}, err
	}

	ticks := p.day(req.Symbol, req.Day)
	lo := sort.Search(len(ticks), func(i int) bool { return ticks[i].TimeStamp >= w.From })
	hi := sort.Search(len(ticks), func(i int) bool { return ticks[i].TimeStamp >= w.To })

	limit := req.EffectiveLimit()
	if hi-lo > limit+1 {
		hi = lo + limit + 1
	}
	page := make([]common.Tick, hi-lo)
	copy(page, ticks[lo:hi])
	return datasource.NewPage(req.Symbol, page, limit, req.Cursor), nil
}

func (p *Provider) Availability(_ context.Context, symbol string) ([]datasource.Week, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", datasource.ErrInvalidRequest)
	}
	var days []string
	for d := p.from; !d.After(p.to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(datasource.DayLayout))
	}
	return p.options.Weeks(symbol, days), nil
}

func (p *Provider) day(symbol, day string) []common.Tick {
	key := symbol + "/" + day

	p.mu.Lock()
	defer p.mu.Unlock()

	if ticks, ok := p.days[key]; ok {
		return ticks
	}

	params, ok := p.params[symbol]
	if !ok {
		params = Preset(symbol)
	}

	ticks := p.generate(symbol, key, day, params)
	p.days[key] = ticks
	p.order = append(p.order, key)
	if len(p.order) > maxCachedDays {
		delete(p.days, p.order[0])
		p.order = p.order[1:]
	}
	p.logger.Debug("synthetic day generated", zap.String("symbol", symbol), zap.String("day", day), zap.Int("ticks", len(ticks)))
	return ticks
}

func (p *Provider) generate(symbol, key, day string, params Parameters) []common.Tick {
	d, err := time.ParseInLocation(datasource.DayLayout, day, p.options.Location)
	if err != nil {
		return nil
	}
	start := d.Add(time.Duration(params.SessionStartMinute) * time.Minute).UnixNano()
	end := d.Add(time.Duration(params.SessionEndMinute) * time.Minute).UnixNano()

	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	seed := h.Sum64()
	gen := NewTickGenerator(rand.New(rand.NewPCG(seed, seed>>1)), start, params) // #nosec G404

	var ticks []common.Tick
	for {
		ts, price, volume := gen.Next()
		if ts >= end {
			break
		}
		tick, err := p.options.Tick(symbol, ts, price, volume)
		if err != nil {
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
