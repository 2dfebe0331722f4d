package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Provider talks to a tick API that serves GET /ticks and
// GET /availability/{symbol}, the same routes the replay server exposes.
type Provider struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
	options datasource.Options
}

func NewProvider(logger *zap.Logger, baseURL string, timeout time.Duration, options ...datasource.Option) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Provider{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		options: datasource.NewOptions(options...),
	}
}

func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	if _, err := req.Window(p.options.Location); err != nil {
		return datasource.Page{}, err
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("day", req.Day)
	q.Set("start", strconv.Itoa(req.StartMinute))
	q.Set("end", strconv.Itoa(req.EndMinute))
	q.Set("limit", strconv.Itoa(req.EffectiveLimit()))
	if req.Cursor != "" {
		q.Set("cursor", string(req.Cursor))
	}

	var page datasource.Page
	if err := p.get(ctx, "/ticks?"+q.Encode(), &page); err != nil {
		return datasource.Page{}, err
	}

	// the remote clock projection is not trusted, minutes are recomputed here
	ticks := page.Ticks[:0]
	for _, t := range page.Ticks {
		tick, err := p.options.Tick(req.Symbol, t.TimeStamp, t.Price.Float64(), t.Volume)
		if err != nil {
			p.logger.Warn("skipping tick", zap.Error(err))
			continue
		}
		tick.Price = t.Price
		ticks = append(ticks, tick)
	}
	page.Ticks = ticks
	if page.ResolvedSymbol == "" {
		page.ResolvedSymbol = req.Symbol
	}
	return page, nil
}

func (p *Provider) Availability(ctx context.Context, symbol string) ([]datasource.Week, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", datasource.ErrInvalidRequest)
	}
	var weeks []datasource.Week
	if err := p.get(ctx, "/availability/"+url.PathEscape(symbol), &weeks); err != nil {
		return nil, err
	}
	return weeks, nil
}

func (p *Provider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: get %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s: %w", path, err)
	}
	return nil
}

func statusError(status int, body string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", datasource.ErrInvalidRequest, body)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrUnknownInstrument, body)
	default:
		return fmt.Errorf("remote: unexpected status %d: %s", status, body)
	}
}
