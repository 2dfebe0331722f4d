package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/simulation"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

const EnvPrefix = "REPLAY_"

const (
	ProviderDuckDB    = "duckdb"
	ProviderBinary    = "binary"
	ProviderPostgres  = "postgres"
	ProviderHTTP      = "http"
	ProviderSynthetic = "synthetic"
)

type Config struct {
	Log         LogConfig          `toml:"log" envPrefix:"LOG_"`
	Session     SessionConfig      `toml:"session" envPrefix:"SESSION_"`
	Instruments []InstrumentConfig `toml:"instruments"`
	Provider    ProviderConfig     `toml:"provider" envPrefix:"PROVIDER_"`
	Cache       CacheConfig        `toml:"cache" envPrefix:"CACHE_"`
	Server      ServerConfig       `toml:"server" envPrefix:"SERVER_"`
	Journal     JournalConfig      `toml:"journal" envPrefix:"JOURNAL_"`
	Notify      NotifyConfig       `toml:"notify" envPrefix:"NOTIFY_"`
	Monitor     MonitorConfig      `toml:"monitor" envPrefix:"MONITOR_"`

	location *time.Location
}

type LogConfig struct {
	Dev   bool   `toml:"dev" env:"DEV"`
	Level string `toml:"level" env:"LEVEL"`
}

type SessionConfig struct {
	// Day is loaded at startup when set.
	Day             string        `toml:"day" env:"DAY"`
	StartMinute     int           `toml:"start_minute" env:"START_MINUTE"`
	EndMinute       int           `toml:"end_minute" env:"END_MINUTE"`
	Speed           float64       `toml:"speed" env:"SPEED"`
	FrameRate       int           `toml:"frame_rate" env:"FRAME_RATE"`
	RefillThreshold int           `toml:"refill_threshold" env:"REFILL_THRESHOLD"`
	RefillRetry     time.Duration `toml:"refill_retry" env:"REFILL_RETRY"`
	PageLimit       int           `toml:"page_limit" env:"PAGE_LIMIT"`
	Timezone        string        `toml:"timezone" env:"TIMEZONE"`
	StartBalance    fixed.Point   `toml:"start_balance" env:"START_BALANCE"`
}

type InstrumentConfig struct {
	Symbol     string      `toml:"symbol"`
	Digits     int         `toml:"digits"`
	Multiplier fixed.Point `toml:"multiplier"`
	Calendar   string      `toml:"calendar"`
}

type ProviderConfig struct {
	Kind     string        `toml:"kind" env:"KIND"`
	DSN      string        `toml:"dsn" env:"DSN"`
	Dir      string        `toml:"dir" env:"DIR"`
	BaseURL  string        `toml:"base_url" env:"BASE_URL"`
	Timeout  time.Duration `toml:"timeout" env:"TIMEOUT"`
	MaxConns int           `toml:"max_conns" env:"MAX_CONNS"`
	From     string        `toml:"from" env:"FROM"`
	To       string        `toml:"to" env:"TO"`
}

// CacheConfig is disabled while Addr is empty.
type CacheConfig struct {
	Addr     string        `toml:"addr" env:"ADDR"`
	Password string        `toml:"password" env:"PASSWORD"`
	DB       int           `toml:"db" env:"DB"`
	TTL      time.Duration `toml:"ttl" env:"TTL"`
}

type ServerConfig struct {
	Addr          string `toml:"addr" env:"ADDR"`
	EventCapacity int    `toml:"event_capacity" env:"EVENT_CAPACITY"`
	WSCapacity    int    `toml:"ws_capacity" env:"WS_CAPACITY"`
	Debug         bool   `toml:"debug" env:"DEBUG"`
}

// JournalConfig stores closed positions in postgres. It falls back to the
// provider DSN when the provider is postgres.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	DSN     string `toml:"dsn" env:"DSN"`
}

type NotifyConfig struct {
	User   string `toml:"user" env:"USER"`
	Token  string `toml:"token" env:"TOKEN"`
	Device string `toml:"device" env:"DEVICE"`
}

type MonitorConfig struct {
	Flags     []string `toml:"flags" env:"FLAGS" envSeparator:","`
	Telemetry bool     `toml:"telemetry" env:"TELEMETRY"`
}

func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Session: SessionConfig{
			StartMinute:     570,
			EndMinute:       datasource.MinutesPerDay,
			Speed:           simulation.MinSpeed,
			FrameRate:       60,
			RefillThreshold: simulation.DefaultRefillThreshold,
			RefillRetry:     simulation.DefaultRefillRetry,
			PageLimit:       datasource.DefaultLimit,
			Timezone:        "UTC",
			StartBalance:    fixed.FromInt(100000, 0),
		},
		Provider: ProviderConfig{
			Kind:     ProviderDuckDB,
			Timeout:  10 * time.Second,
			MaxConns: 4,
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		Server: ServerConfig{
			Addr:          ":8080",
			EventCapacity: 8192,
			WSCapacity:    4096,
		},
		Monitor: MonitorConfig{Flags: []string{"sessions", "positions_closed", "fills"}},
	}
}

// Load decodes the toml file at path over the defaults (an empty path skips
// the file), loads .env when present and applies REPLAY_* overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	s := c.Session
	if s.Speed < simulation.MinSpeed || s.Speed > simulation.MaxSpeed {
		errs = append(errs, fmt.Errorf("session.speed %v out of range [%v, %v]", s.Speed, simulation.MinSpeed, simulation.MaxSpeed))
	}
	if s.StartMinute < 0 || s.StartMinute > datasource.MinutesPerDay {
		errs = append(errs, fmt.Errorf("session.start_minute %d out of range", s.StartMinute))
	}
	if s.EndMinute < 0 || s.EndMinute > datasource.MinutesPerDay {
		errs = append(errs, fmt.Errorf("session.end_minute %d out of range", s.EndMinute))
	}
	if s.StartMinute >= s.EndMinute {
		errs = append(errs, fmt.Errorf("session.start_minute %d must precede end_minute %d", s.StartMinute, s.EndMinute))
	}
	if s.FrameRate <= 0 {
		errs = append(errs, errors.New("session.frame_rate must be positive"))
	}
	if s.RefillThreshold <= 0 {
		errs = append(errs, errors.New("session.refill_threshold must be positive"))
	}
	if s.PageLimit <= 0 {
		errs = append(errs, errors.New("session.page_limit must be positive"))
	}
	if !s.StartBalance.Gt(fixed.Zero) {
		errs = append(errs, errors.New("session.start_balance must be positive"))
	}
	if s.Day != "" {
		if _, err := time.Parse(datasource.DayLayout, s.Day); err != nil {
			errs = append(errs, fmt.Errorf("session.day %q: %w", s.Day, err))
		}
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("session.timezone %q: %w", s.Timezone, err))
	}
	c.location = loc

	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("at least one instrument is required"))
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, instrument := range c.Instruments {
		if instrument.Symbol == "" {
			errs = append(errs, fmt.Errorf("instruments[%d].symbol is required", i))
			continue
		}
		if seen[instrument.Symbol] {
			errs = append(errs, fmt.Errorf("instrument %s is listed twice", instrument.Symbol))
		}
		seen[instrument.Symbol] = true
		if !instrument.Multiplier.Gt(fixed.Zero) {
			errs = append(errs, fmt.Errorf("instrument %s: multiplier must be positive", instrument.Symbol))
		}
		if instrument.Digits < 0 {
			errs = append(errs, fmt.Errorf("instrument %s: digits must not be negative", instrument.Symbol))
		}
	}

	p := c.Provider
	switch p.Kind {
	case ProviderDuckDB, ProviderPostgres:
		if p.DSN == "" && p.Kind == ProviderPostgres {
			errs = append(errs, errors.New("provider.dsn is required for postgres"))
		}
	case ProviderBinary:
		if p.Dir == "" {
			errs = append(errs, errors.New("provider.dir is required for binary"))
		}
	case ProviderHTTP:
		if p.BaseURL == "" {
			errs = append(errs, errors.New("provider.base_url is required for http"))
		}
	case ProviderSynthetic:
		if p.From == "" || p.To == "" {
			errs = append(errs, errors.New("provider.from and provider.to are required for synthetic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider.kind %q", p.Kind))
	}

	if c.Server.EventCapacity <= 0 || c.Server.WSCapacity <= 0 {
		errs = append(errs, errors.New("server capacities must be positive"))
	}
	if c.Journal.Enabled && c.JournalDSN() == "" {
		errs = append(errs, errors.New("journal.dsn is required unless the provider is postgres"))
	}

	return errors.Join(errs...)
}

// Location is resolved by Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) JournalDSN() string {
	if c.Journal.DSN != "" {
		return c.Journal.DSN
	}
	if c.Provider.Kind == ProviderPostgres {
		return c.Provider.DSN
	}
	return ""
}

func (c *Config) CommonInstruments() []common.Instrument {
	out := make([]common.Instrument, 0, len(c.Instruments))
	for _, instrument := range c.Instruments {
		out = append(out, common.Instrument{
			Symbol:             instrument.Symbol,
			Digits:             instrument.Digits,
			ContractMultiplier: instrument.Multiplier,
			CalendarMIC:        strings.ToUpper(instrument.Calendar),
		})
	}
	return out
}

func (c *Config) SimulationOptions() []simulation.Option {
	return []simulation.Option{
		simulation.WithInstruments(c.CommonInstruments()...),
		simulation.WithStartBalance(c.Session.StartBalance),
		simulation.WithSpeed(c.Session.Speed),
		simulation.WithEndMinute(c.Session.EndMinute),
		simulation.WithPageLimit(c.Session.PageLimit),
		simulation.WithRefillThreshold(c.Session.RefillThreshold),
		simulation.WithRefillRetry(c.Session.RefillRetry),
		simulation.WithLocation(c.Location()),
	}
}
