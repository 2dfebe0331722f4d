package simulation

import (
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

const (
	DefaultRefillThreshold    = 10000
	DefaultMaxOrderingRejects = 3
	DefaultRefillRetry        = time.Second
	DefaultSnapshotInterval   = time.Minute
	ClockLayout               = "2006-01-02 15:04:05.000"
)

type Configuration struct {
	Instruments        []common.Instrument
	StartBalance       fixed.Point
	Speed              float64
	EndMinute          int
	PageLimit          int
	RefillThreshold    int
	RefillRetry        time.Duration
	MaxOrderingRejects int
	SnapshotInterval   time.Duration
	Location           *time.Location
}

func DefaultConfiguration() Configuration {
	return Configuration{
		StartBalance:       fixed.FromInt(100000, 0),
		Speed:              MinSpeed,
		EndMinute:          datasource.MinutesPerDay,
		PageLimit:          datasource.DefaultLimit,
		RefillThreshold:    DefaultRefillThreshold,
		RefillRetry:        DefaultRefillRetry,
		MaxOrderingRejects: DefaultMaxOrderingRejects,
		SnapshotInterval:   DefaultSnapshotInterval,
		Location:           time.UTC,
	}
}

type Option func(*Configuration)

func WithInstruments(instruments ...common.Instrument) Option {
	return func(c *Configuration) {
		c.Instruments = append(c.Instruments, instruments...)
	}
}

func WithStartBalance(balance fixed.Point) Option {
	return func(c *Configuration) {
		c.StartBalance = balance
	}
}

func WithSpeed(speed float64) Option {
	return func(c *Configuration) {
		c.Speed = ClampSpeed(speed)
	}
}

func WithEndMinute(minute int) Option {
	return func(c *Configuration) {
		c.EndMinute = minute
	}
}

func WithPageLimit(limit int) Option {
	return func(c *Configuration) {
		c.PageLimit = limit
	}
}

func WithRefillThreshold(threshold int) Option {
	return func(c *Configuration) {
		c.RefillThreshold = threshold
	}
}

func WithRefillRetry(retry time.Duration) Option {
	return func(c *Configuration) {
		c.RefillRetry = retry
	}
}

func WithMaxOrderingRejects(rejects int) Option {
	return func(c *Configuration) {
		c.MaxOrderingRejects = rejects
	}
}

func WithSnapshotInterval(interval time.Duration) Option {
	return func(c *Configuration) {
		c.SnapshotInterval = interval
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Configuration) {
		if loc != nil {
			c.Location = loc
		}
	}
}
