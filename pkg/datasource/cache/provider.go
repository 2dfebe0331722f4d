// Package cache puts a read-through page cache in front of any tick provider.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "tickreplay"
)

type Provider struct {
	logger *zap.Logger
	next   datasource.Provider
	store  Store
	ttl    time.Duration
}

func NewProvider(logger *zap.Logger, next datasource.Provider, store Store, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		logger: logger,
		next:   next,
		store:  store,
		ttl:    ttl,
	}
}

// FetchTicks serves a page from the store when present. Empty pages that are
// not done are never stored, they may fill later.
func (p *Provider) FetchTicks(ctx context.Context, req datasource.PageRequest) (datasource.Page, error) {
	key := pageKey(req)

	var page datasource.Page
	if p.load(ctx, key, &page) {
		return page, nil
	}

	page, err := p.next.FetchTicks(ctx, req)
	if err != nil {
		return datasource.Page{}, err
	}
	if len(page.Ticks) > 0 || page.Done {
		p.save(ctx, key, page)
	}
	return page, nil
}

func (p *Provider) Availability(ctx context.Context, symbol string) ([]datasource.Week, error) {
	key := fmt.Sprintf("%s:weeks:%s", keyPrefix, symbol)

	var weeks []datasource.Week
	if p.load(ctx, key, &weeks) {
		return weeks, nil
	}

	weeks, err := p.next.Availability(ctx, symbol)
	if err != nil {
		return nil, err
	}
	p.save(ctx, key, weeks)
	return weeks, nil
}

func (p *Provider) load(ctx context.Context, key string, out any) bool {
	b, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			p.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		p.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (p *Provider) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := p.store.Set(ctx, key, b, p.ttl); err != nil {
		p.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func pageKey(req datasource.PageRequest) string {
	return fmt.Sprintf("%s:page:%s:%s:%d:%d:%d:%s",
		keyPrefix, req.Symbol, req.Day, req.StartMinute, req.EndMinute, req.EffectiveLimit(), req.Cursor)
}
