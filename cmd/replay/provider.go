package main

import (
	"context"
	"fmt"

	"github.com/peter-kozarec/tickreplay/internal/config"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/cache"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/duckdb"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/historical"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/postgres"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/remote"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/synthetic"
	"go.uber.org/zap"
)

// resources collects whatever the providers opened so main can release it.
type resources struct {
	closers []func()
	pg      *postgres.Client
}

func (r *resources) add(fn func()) {
	r.closers = append(r.closers, fn)
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func openProvider(ctx context.Context, logger *zap.Logger, cfg *config.Config, res *resources) (datasource.Provider, error) {
	options := []datasource.Option{
		datasource.WithLocation(cfg.Location()),
		datasource.WithCalendars(datasource.NewCalendars(cfg.CommonInstruments())),
	}
	p := cfg.Provider
	log := logger.With(zap.String("provider", p.Kind))

	var provider datasource.Provider
	switch p.Kind {
	case config.ProviderDuckDB:
		db := duckdb.NewProvider(log, p.DSN, options...)
		if err := db.Connect(ctx); err != nil {
			return nil, err
		}
		res.add(db.Close)
		provider = db
	case config.ProviderBinary:
		bin := historical.NewProvider(log, p.Dir, options...)
		res.add(bin.Close)
		provider = bin
	case config.ProviderPostgres:
		client, err := openPostgres(ctx, p.DSN, p.MaxConns, res)
		if err != nil {
			return nil, err
		}
		res.pg = client
		provider = postgres.NewProvider(log, client.Pool(), options...)
	case config.ProviderHTTP:
		provider = remote.NewProvider(log, p.BaseURL, p.Timeout, options...)
	case config.ProviderSynthetic:
		gen, err := synthetic.NewProvider(log, p.From, p.To, options...)
		if err != nil {
			return nil, err
		}
		provider = gen
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}

	if cfg.Cache.Addr == "" {
		return provider, nil
	}
	store, err := cache.NewRedisStore(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	if err != nil {
		return nil, err
	}
	res.add(func() { _ = store.Close() })
	logger.Info("page cache enabled", zap.String("addr", cfg.Cache.Addr), zap.Duration("ttl", cfg.Cache.TTL))
	return cache.NewProvider(log, provider, store, cfg.Cache.TTL), nil
}

func openPostgres(ctx context.Context, dsn string, maxConns int, res *resources) (*postgres.Client, error) {
	client, err := postgres.New(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		client.Close()
		return nil, err
	}
	res.add(client.Close)
	return client, nil
}

// openJournal shares the provider pool when both point at the same database.
func openJournal(ctx context.Context, cfg *config.Config, res *resources) (*postgres.JournalStore, error) {
	dsn := cfg.JournalDSN()
	if res.pg != nil && dsn == cfg.Provider.DSN {
		return postgres.NewJournalStore(res.pg.Pool()), nil
	}
	client, err := openPostgres(ctx, dsn, cfg.Provider.MaxConns, res)
	if err != nil {
		return nil, err
	}
	return postgres.NewJournalStore(client.Pool()), nil
}
