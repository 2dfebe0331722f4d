package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/utility"
	"go.uber.org/zap"
)

const bucketNanos = int64(15 * 60 * 1_000_000_000)

// Provider pages the ticks table, ts in unix nanoseconds.
type Provider struct {
	logger  *zap.Logger
	pool    *pgxpool.Pool
	options datasource.Options
}

func NewProvider(logger *zap.Logger, pool *pgxpool.Pool, options ...datasource.Option) *Provider {
	return &Provider{
		logger:  logger,
		pool:    pool,
		options: datasource.NewOptions(options...),
	}
}

func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	w, err := req.Window(p.options.Location)
	if err != nil {
		return datasource.Page{}, err
	}

	const query = `
		SELECT ts, price, volume
		FROM ticks
		WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts
		LIMIT $4`

	limit := req.EffectiveLimit()
	rows, err := p.pool.Query(ctx, query, req.Symbol, w.From, w.To, limit+1)
	if err != nil {
		return datasource.Page{}, fmt.Errorf("postgres: query ticks %s: %w", req.Symbol, err)
	}
	defer rows.Close()

	ticks := make([]common.Tick, 0, limit+1)
	for rows.Next() {
		var ts, volume int64
		var price float64
		if err := rows.Scan(&ts, &price, &volume); err != nil {
			return datasource.Page{}, fmt.Errorf("postgres: scan tick: %w", err)
		}
		vol, err := utility.I64ToU64(volume)
		if err != nil {
			p.logger.Warn("skipping tick", zap.Int64("ts", ts), zap.Error(err))
			continue
		}
		tick, err := p.options.Tick(req.Symbol, ts, price, vol)
		if err != nil {
			p.logger.Warn("skipping tick", zap.Error(err))
			continue
		}
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return datasource.Page{}, fmt.Errorf("postgres: iterate ticks: %w", err)
	}

	return datasource.NewPage(req.Symbol, ticks, limit, req.Cursor), nil
}

func (p *Provider) Availability(ctx context.Context, symbol string) ([]datasource.Week, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", datasource.ErrInvalidRequest)
	}

	const query = `SELECT DISTINCT ts / $2 AS bucket FROM ticks WHERE symbol = $1 ORDER BY bucket`

	rows, err := p.pool.Query(ctx, query, symbol, bucketNanos)
	if err != nil {
		return nil, fmt.Errorf("postgres: query availability %s: %w", symbol, err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var bucket int64
		if err := rows.Scan(&bucket); err != nil {
			return nil, fmt.Errorf("postgres: scan bucket: %w", err)
		}
		day := p.options.DayOf(bucket * bucketNanos)
		if n := len(days); n == 0 || days[n-1] != day {
			days = append(days, day)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate availability: %w", err)
	}
	return p.options.Weeks(symbol, days), nil
}

// InsertTicks stores ticks with a single batch.
func (p *Provider) InsertTicks(ctx context.Context, symbol string, ticks []common.Tick) error {
	rows := make([][]any, 0, len(ticks))
	for _, t := range ticks {
		volume, err := utility.U64ToI64(t.Volume)
		if err != nil {
			return fmt.Errorf("postgres: tick %s at %d: %w", symbol, t.TimeStamp, err)
		}
		rows = append(rows, []any{symbol, t.TimeStamp, t.Price.Float64(), volume})
	}
	_, err := p.pool.CopyFrom(ctx, pgx.Identifier{"ticks"}, []string{"symbol", "ts", "price", "volume"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres: copy ticks %s: %w", symbol, err)
	}
	return nil
}
