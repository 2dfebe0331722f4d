package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"go.uber.org/zap"
)

// availability is resolved on quarter hours so that zones with half hour
// offsets still map every bucket onto a single day.
const bucketNanos = int64(15 * 60 * 1_000_000_000)

var symbolPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,31}$`)

// Provider reads ticks from per-symbol <symbol>_ticks(ts BIGINT, price DOUBLE,
// volume UBIGINT) tables, ts in unix nanoseconds.
type Provider struct {
	logger         *zap.Logger
	dataSourceName string
	db             *sql.DB
	options        datasource.Options
}

func NewProvider(logger *zap.Logger, dataSourceName string, options ...datasource.Option) *Provider {
	return &Provider{
		logger:         logger,
		dataSourceName: dataSourceName,
		options:        datasource.NewOptions(options...),
	}
}

func (p *Provider) Connect(ctx context.Context) error {
	db, err := sql.Open("duckdb", p.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("duckdb ping: %w", err)
	}
	p.db = db
	return nil
}

func (p *Provider) Close() {
	if p.db != nil {
		_ = p.db.Close()
	}
}

// DB exposes the connection, mainly for imports and tests.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// CreateTable creates the tick table of symbol if it does not exist yet.
func (p *Provider) CreateTable(ctx context.Context, symbol string) error {
	table, err := tableName(symbol)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (ts BIGINT NOT NULL, price DOUBLE NOT NULL, volume UBIGINT NOT NULL)`, table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error creating %s: %w", table, err)
	}
	return nil
}

// Import appends n rows produced by row to the tick table of symbol in one
// transaction.
func (p *Provider) Import(ctx context.Context, symbol string, n int, row func(i int) (ts int64, price float64, volume uint64)) (err error) {
	table, err := tableName(symbol)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?)`, table))
	if err != nil {
		return fmt.Errorf("error preparing import: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := 0; i < n; i++ {
		ts, price, volume := row(i)
		if _, err = stmt.ExecContext(ctx, ts, price, volume); err != nil {
			return fmt.Errorf("error importing row %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing import: %w", err)
	}
	p.logger.Info("ticks imported", zap.String("table", table), zap.Int("rows", n))
	return nil
}

func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	w, err := req.Window(p.options.Location)
	if err != nil {
		return datasource.Page{}, err
	}
	table, err := tableName(req.Symbol)
	if err != nil {
		return datasource.Page{}, err
	}

	limit := req.EffectiveLimit()
	query := fmt.Sprintf(`SELECT ts, price, volume FROM %s WHERE ts >= ? AND ts < ? ORDER BY ts LIMIT ?`, table)

	rows, err := p.db.QueryContext(ctx, query, w.From, w.To, limit+1)
	if err != nil {
		return datasource.Page{}, fmt.Errorf("error querying %s: %w", table, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	ticks := make([]common.Tick, 0, limit+1)
	for rows.Next() {
		var ts int64
		var price float64
		var volume uint64
		if err := rows.Scan(&ts, &price, &volume); err != nil {
			return datasource.Page{}, fmt.Errorf("error scanning row: %w", err)
		}
		tick, err := p.options.Tick(req.Symbol, ts, price, volume)
		if err != nil {
			p.logger.Warn("skipping tick", zap.Error(err))
			continue
		}
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return datasource.Page{}, fmt.Errorf("error scanning rows: %w", err)
	}

	return datasource.NewPage(req.Symbol, ticks, limit, req.Cursor), nil
}

func (p *Provider) Availability(ctx context.Context, symbol string) ([]datasource.Week, error) {
	table, err := tableName(symbol)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT DISTINCT ts // %d AS bucket FROM %s ORDER BY bucket`, bucketNanos, table)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", table, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var days []string
	for rows.Next() {
		var bucket int64
		if err := rows.Scan(&bucket); err != nil {
			return nil, fmt.Errorf("error scanning bucket: %w", err)
		}
		day := p.options.DayOf(bucket * bucketNanos)
		if n := len(days); n == 0 || days[n-1] != day {
			days = append(days, day)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return p.options.Weeks(symbol, days), nil
}

func tableName(symbol string) (string, error) {
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: symbol %q", datasource.ErrInvalidRequest, symbol)
	}
	return strings.ToLower(symbol) + "_ticks", nil
}
