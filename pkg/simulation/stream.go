package simulation

import (
	"fmt"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
)

const noneConsumed = -1

// TickStream buffers one instrument's ticks for a session. The buffer is
// append-only; lastConsumed splits it into folded and pending ticks.
type TickStream struct {
	symbol       string
	buffer       []common.Tick
	cursor       datasource.Cursor
	exhausted    bool
	lastConsumed int

	refillInFlight bool
	rejects        int
}

func NewTickStream(symbol string) *TickStream {
	return &TickStream{symbol: symbol, lastConsumed: noneConsumed}
}

func (s *TickStream) Symbol() string {
	return s.symbol
}

// Append extends the buffer. The whole batch is rejected with
// common.ErrInvalidOrder when it would break timestamp ordering.
func (s *TickStream) Append(ticks []common.Tick) error {
	last, ok := s.LastTimeStamp()
	for i, tick := range ticks {
		if ok && tick.TimeStamp < last {
			return fmt.Errorf("%w: %s tick %d at %d precedes %d", common.ErrInvalidOrder, s.symbol, i, tick.TimeStamp, last)
		}
		last, ok = tick.TimeStamp, true
	}
	s.buffer = append(s.buffer, ticks...)
	return nil
}

func (s *TickStream) MarkExhausted() {
	s.exhausted = true
}

func (s *TickStream) Exhausted() bool {
	return s.exhausted
}

func (s *TickStream) PendingCount() int {
	return len(s.buffer) - (s.lastConsumed + 1)
}

func (s *TickStream) NeedsRefill(threshold int) bool {
	return !s.exhausted && s.PendingCount() < threshold
}

// Starved reports a stream that has nothing to replay yet but is not done.
func (s *TickStream) Starved() bool {
	return !s.exhausted && s.PendingCount() == 0
}

// Finished reports a stream that is exhausted and fully consumed.
func (s *TickStream) Finished() bool {
	return s.exhausted && s.PendingCount() == 0
}

// ConsumeUpTo returns the pending ticks with TimeStamp <= ts in order and
// moves past them. The returned slice must not be modified.
func (s *TickStream) ConsumeUpTo(ts int64) []common.Tick {
	return s.consumeWhile(func(t common.Tick) bool { return t.TimeStamp <= ts })
}

// ConsumeBeforeMinute returns the pending ticks whose minute of day is earlier
// than minute.
func (s *TickStream) ConsumeBeforeMinute(minute int) []common.Tick {
	return s.consumeWhile(func(t common.Tick) bool { return int(t.MinuteOfDay) < minute })
}

func (s *TickStream) consumeWhile(accept func(common.Tick) bool) []common.Tick {
	start := s.lastConsumed + 1
	end := start
	for end < len(s.buffer) && accept(s.buffer[end]) {
		end++
	}
	if end == start {
		return nil
	}
	s.lastConsumed = end - 1
	return s.buffer[start:end:end]
}

// FirstPendingAtMinute returns the first pending tick at or after minute.
func (s *TickStream) FirstPendingAtMinute(minute int) (common.Tick, bool) {
	for i := s.lastConsumed + 1; i < len(s.buffer); i++ {
		if int(s.buffer[i].MinuteOfDay) >= minute {
			return s.buffer[i], true
		}
	}
	return common.Tick{}, false
}

// Covers reports whether a pending tick at or after minute is buffered.
func (s *TickStream) Covers(minute int) bool {
	if s.PendingCount() == 0 {
		return false
	}
	return int(s.buffer[len(s.buffer)-1].MinuteOfDay) >= minute
}

// ConsumedThrough reports whether a tick at or after minute was already folded.
func (s *TickStream) ConsumedThrough(minute int) bool {
	if s.lastConsumed == noneConsumed {
		return false
	}
	return int(s.buffer[s.lastConsumed].MinuteOfDay) >= minute
}

func (s *TickStream) FirstTimeStamp() (int64, bool) {
	if len(s.buffer) == 0 {
		return 0, false
	}
	return s.buffer[0].TimeStamp, true
}

func (s *TickStream) LastTimeStamp() (int64, bool) {
	if len(s.buffer) == 0 {
		return 0, false
	}
	return s.buffer[len(s.buffer)-1].TimeStamp, true
}

func (s *TickStream) Len() int {
	return len(s.buffer)
}

func (s *TickStream) Cursor() datasource.Cursor {
	return s.cursor
}

func (s *TickStream) SetCursor(c datasource.Cursor) {
	s.cursor = c
}

// Reset discards everything buffered for the previous session.
func (s *TickStream) Reset() {
	s.buffer = nil
	s.cursor = ""
	s.exhausted = false
	s.lastConsumed = noneConsumed
	s.refillInFlight = false
	s.rejects = 0
}

type StreamStatus struct {
	Symbol         string `json:"symbol"`
	Buffered       int    `json:"buffered"`
	Pending        int    `json:"pending"`
	Exhausted      bool   `json:"exhausted"`
	RefillInFlight bool   `json:"refill_in_flight"`
}

func (s *TickStream) Status() StreamStatus {
	return StreamStatus{
		Symbol:         s.symbol,
		Buffered:       len(s.buffer),
		Pending:        s.PendingCount(),
		Exhausted:      s.exhausted,
		RefillInFlight: s.refillInFlight,
	}
}
