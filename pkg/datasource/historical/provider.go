package historical

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"go.uber.org/zap"
)

// Provider serves pages out of one memory-mapped record file per symbol,
// named <symbol>.bin inside dir.
type Provider struct {
	logger  *zap.Logger
	dir     string
	options datasource.Options

	mu      sync.Mutex
	sources map[string]*Source[BinaryTick]
}

func NewProvider(logger *zap.Logger, dir string, options ...datasource.Option) *Provider {
	return &Provider{
		logger:  logger,
		dir:     dir,
		options: datasource.NewOptions(options...),
		sources: make(map[string]*Source[BinaryTick]),
	}
}

func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for symbol, src := range p.sources {
		src.Close()
		delete(p.sources, symbol)
	}
}

func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	w, err := req.Window(p.options.Location)
	if err != nil {
		return datasource.Page{}, err
	}
	src, err := p.source(req.Symbol)
	if err != nil {
		return datasource.Page{}, err
	}

	idx, err := src.Search(func(entry *BinaryTick) bool { return entry.TimeStamp < w.From })
	if err != nil {
		return datasource.Page{}, err
	}

	limit := req.EffectiveLimit()
	ticks := make([]common.Tick, 0, min(limit+1, int(src.EntryCount()-idx)))

	var entry BinaryTick
	for ; len(ticks) <= limit; idx++ {
		if err := ctx.Err(); err != nil {
			return datasource.Page{}, err
		}
		if err := src.Read(idx, &entry); err != nil {
			if err == ErrEof {
				break
			}
			return datasource.Page{}, err
		}
		if entry.TimeStamp >= w.To {
			break
		}
		tick, err := p.options.Tick(req.Symbol, entry.TimeStamp, entry.Price, entry.Volume)
		if err != nil {
			p.logger.Warn("skipping tick", zap.Int64("index", idx), zap.Error(err))
			continue
		}
		ticks = append(ticks, tick)
	}

	return datasource.NewPage(req.Symbol, ticks, limit, req.Cursor), nil
}

// Availability walks the file one day at a time, jumping to the first record
// of the next day with a binary search.
func (p *Provider) Availability(ctx context.Context, symbol string) ([]datasource.Week, error) {
	src, err := p.source(symbol)
	if err != nil {
		return nil, err
	}

	var days []string
	var entry BinaryTick
	for idx := int64(0); idx < src.EntryCount(); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := src.Read(idx, &entry); err != nil {
			return nil, fmt.Errorf("error reading entry at index %d: %w", idx, err)
		}
		days = append(days, p.options.DayOf(entry.TimeStamp))

		next := p.options.NextDayStart(entry.TimeStamp)
		if idx, err = src.Search(func(e *BinaryTick) bool { return e.TimeStamp < next }); err != nil {
			return nil, err
		}
	}
	return p.options.Weeks(symbol, days), nil
}

func (p *Provider) source(symbol string) (*Source[BinaryTick], error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", datasource.ErrInvalidRequest)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if src, ok := p.sources[symbol]; ok {
		return src, nil
	}

	name := FileName(p.dir, symbol)
	if _, err := os.Stat(name); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no tick file for %s", common.ErrUnknownInstrument, symbol)
	}

	src := NewSource[BinaryTick](name)
	if err := src.Open(); err != nil {
		return nil, err
	}
	p.logger.Debug("tick file mapped", zap.String("symbol", symbol), zap.Int64("entries", src.EntryCount()))
	p.sources[symbol] = src
	return src, nil
}
