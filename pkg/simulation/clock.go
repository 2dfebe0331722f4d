package simulation

import "math"

const (
	MinSpeed = 1.0
	MaxSpeed = 500.0

	nanosPerMilli = 1_000_000
)

// VirtualClock is the simulated time shared by every instrument of a session.
// It only moves backwards through Reset.
type VirtualClock struct {
	now int64

	// residual carries the sub-nanosecond part of previous advances so that
	// splitting a wall delta into several frames ends at the same time.
	residual float64
}

func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() int64 {
	return c.now
}

func (c *VirtualClock) Reset(to int64) {
	c.now = to
	c.residual = 0
}

// Advance moves the clock by wallDeltaMs scaled by speed and returns the new
// virtual time in nanoseconds.
func (c *VirtualClock) Advance(wallDeltaMs float64, speed float64) int64 {
	if wallDeltaMs <= 0 || speed <= 0 || math.IsNaN(wallDeltaMs) || math.IsNaN(speed) {
		return c.now
	}

	total := wallDeltaMs*nanosPerMilli*speed + c.residual
	whole := math.Floor(total)
	c.residual = total - whole
	c.now += int64(whole)
	return c.now
}

func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return MinSpeed
	}
	return math.Max(MinSpeed, math.Min(MaxSpeed, speed))
}
