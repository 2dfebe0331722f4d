package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/mock"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

const testDay = "2024-03-04"

var (
	dayStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).UnixNano()
	es       = common.Instrument{Symbol: "ES", Digits: 2, ContractMultiplier: fixed.FromInt(50, 0)}
	nq       = common.Instrument{Symbol: "NQ", Digits: 2, ContractMultiplier: fixed.FromInt(20, 0)}
)

func tickAt(symbol string, minute, second int, price string) common.Tick {
	p, err := fixed.Parse(price)
	if err != nil {
		panic(err)
	}
	return common.Tick{
		Symbol:      symbol,
		TimeStamp:   dayStart + int64(minute)*int64(time.Minute) + int64(second)*int64(time.Second),
		Price:       p,
		Volume:      1,
		MinuteOfDay: int16(minute),
	}
}

type memoryProvider struct {
	ticks map[string][]common.Tick
	calls atomic.Int32
}

func (p *memoryProvider) FetchTicks(_ context.Context, req datasource.PageRequest) (datasource.Page, error) {
	p.calls.Add(1)
	w, err := req.Window(time.UTC)
	if err != nil {
		return datasource.Page{}, err
	}
	limit := req.EffectiveLimit()
	var out []common.Tick
	for _, tick := range p.ticks[req.Symbol] {
		if tick.TimeStamp >= w.From && tick.TimeStamp < w.To {
			out = append(out, tick)
			if len(out) > limit {
				break
			}
		}
	}
	return datasource.NewPage(req.Symbol, out, limit, req.Cursor), nil
}

func (p *memoryProvider) Availability(context.Context, string) ([]datasource.Week, error) {
	return nil, nil
}

type recorded struct {
	id   bus.EventId
	data any
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) Post(id bus.EventId, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{id: id, data: data})
	return nil
}

func (r *recorder) count(id bus.EventId) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.id == id {
			n++
		}
	}
	return n
}

func (r *recorder) all(id bus.EventId) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, ev := range r.events {
		if ev.id == id {
			out = append(out, ev.data)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// tenMinutes has ES ticks at :00 and :30 and NQ ticks at :10 for minutes 570-579.
func tenMinutes() map[string][]common.Tick {
	ticks := map[string][]common.Tick{}
	for m := 570; m < 580; m++ {
		step := m - 570
		ticks["ES"] = append(ticks["ES"],
			tickAt("ES", m, 0, fixed.FromInt(5000+step, 0).String()),
			tickAt("ES", m, 30, fixed.FromInt(50005+10*step, 1).String()))
		ticks["NQ"] = append(ticks["NQ"], tickAt("NQ", m, 10, fixed.FromInt(18000+step, 0).String()))
	}
	return ticks
}

func newTestEngine(t *testing.T, provider datasource.Provider, options ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := NewEngine(zap.NewNop(), rec, provider, options...)
	t.Cleanup(e.Close)
	return e, rec
}

func awaitRefill(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case r := <-e.refills:
		e.merge(r)
	case <-time.After(2 * time.Second):
		t.Fatal("refill did not complete")
	}
}

func TestEngine_LoadNoData(t *testing.T) {
	provider := &memoryProvider{ticks: map[string][]common.Tick{}}
	e, rec := newTestEngine(t, provider, WithInstruments(es, nq), WithStartBalance(fixed.FromInt(1000, 0)))

	err := e.Load(context.Background(), testDay, 570)

	assert.ErrorIs(t, err, common.ErrNoData)
	assert.False(t, e.Loaded())
	assert.Empty(t, rec.events)
	assert.ErrorIs(t, e.Play(), ErrNotLoaded)
}

func TestEngine_LoadKeepsPreviousSessionOnNoData(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	before := e.Snapshot()

	err := e.Load(context.Background(), "2024-03-05", 570)

	assert.ErrorIs(t, err, common.ErrNoData)
	assert.Equal(t, before, e.Snapshot())
}

func TestEngine_LoadSeedsClock(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, rec := newTestEngine(t, provider, WithInstruments(es, nq))

	require.NoError(t, e.Load(context.Background(), testDay, 570))

	assert.True(t, e.Loaded())
	assert.True(t, e.Paused())
	assert.Equal(t, tickAt("ES", 570, 0, "1").TimeStamp, e.Now())
	assert.Equal(t, "2024-03-04 09:30:00.000", e.Display(e.Now()))
	assert.Equal(t, 1, rec.count(bus.SessionLoadEvent))
	assert.Equal(t, 2, rec.count(bus.CandleSnapshotEvent))
	assert.Equal(t, 1, rec.count(bus.ClockEvent))

	info := rec.all(bus.SessionLoadEvent)[0].(common.SessionInfo)
	assert.Equal(t, []string{"ES", "NQ"}, info.Symbols)
	assert.Equal(t, testDay, info.Day)
}

func TestEngine_LoadWithOneEmptyInstrument(t *testing.T) {
	ticks := tenMinutes()
	delete(ticks, "NQ")
	provider := &memoryProvider{ticks: ticks}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq))

	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.Play())
	e.Advance(60_000)

	s := e.Snapshot()
	assert.NotEmpty(t, s.Candles["ES"])
	assert.Empty(t, s.Candles["NQ"])
}

func TestEngine_Advance(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, rec := newTestEngine(t, provider, WithInstruments(es, nq))
	require.NoError(t, e.Load(context.Background(), testDay, 570))

	assert.Equal(t, e.Now(), e.Advance(1000), "paused engine must not move")

	require.NoError(t, e.Play())
	rec.reset()
	e.Advance(0)
	assert.Equal(t, 1, rec.count(bus.CandleOpenEvent))

	// 40 virtual seconds: ES 570:00, 570:30 and NQ 570:10
	e.Advance(40_000)
	s := e.Snapshot()
	require.Len(t, s.Candles["ES"], 1)
	assert.Equal(t, "5000.5", s.Candles["ES"][0].Close.String())
	assert.Equal(t, 2, s.Candles["ES"][0].TickCount)
	require.Len(t, s.Candles["NQ"], 1)

	// into minute 571: the ES 570 candle closes exactly once
	e.Advance(20_000)
	assert.Equal(t, 1, rec.count(bus.CandleCloseEvent))
	closed := rec.all(bus.CandleCloseEvent)[0].(common.CandleUpdate)
	assert.Equal(t, "ES", closed.Candle.Symbol)
	assert.Equal(t, (dayStart/int64(time.Second))+570*60, closed.Candle.OpenTime)
}

func TestEngine_AdvanceSplitMatchesSingle(t *testing.T) {
	run := func(steps int) Snapshot {
		provider := &memoryProvider{ticks: tenMinutes()}
		e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithSpeed(7))
		require.NoError(t, e.Load(context.Background(), testDay, 570))
		require.NoError(t, e.Play())
		for i := 0; i < steps; i++ {
			e.Advance(60_000 / float64(steps))
		}
		return e.Snapshot()
	}

	single := run(1)
	split := run(48)

	assert.Equal(t, single.Candles, split.Candles)
	assert.InDelta(t, single.TimeStamp, split.TimeStamp, 1)
}

func TestEngine_OnFrame(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithSpeed(10))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	start := e.Now()
	wall := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, e.Play())
	e.OnFrame(wall)
	assert.Equal(t, start, e.Now(), "first frame after resume is fresh")

	e.OnFrame(wall.Add(100 * time.Millisecond))
	assert.Equal(t, start+int64(time.Second), e.Now())

	e.Pause()
	e.OnFrame(wall.Add(10 * time.Second))
	assert.Equal(t, start+int64(time.Second), e.Now())

	require.NoError(t, e.Play())
	e.OnFrame(wall.Add(20 * time.Second))
	assert.Equal(t, start+int64(time.Second), e.Now(), "no catch-up after resume")

	e.OnFrame(wall.Add(20*time.Second + 50*time.Millisecond))
	assert.Equal(t, start+int64(1500*time.Millisecond), e.Now())
}

func TestEngine_SetSpeed(t *testing.T) {
	e, _ := newTestEngine(t, &memoryProvider{}, WithInstruments(es))

	assert.Equal(t, 1.0, e.SetSpeed(0))
	assert.Equal(t, 60.0, e.SetSpeed(60))
	assert.Equal(t, 500.0, e.SetSpeed(9000))
}

func TestEngine_RefillRequestedOncePerStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock.NewMockProvider(ctrl)

	var first []common.Tick
	for s := 0; s < 5; s++ {
		first = append(first, tickAt("ES", 570, s, "100"))
	}
	second := []common.Tick{tickAt("ES", 570, 5, "101")}
	c1 := datasource.CursorFromTimeStamp(first[4].TimeStamp)

	base := datasource.PageRequest{Symbol: "ES", Day: testDay, StartMinute: 570, EndMinute: datasource.MinutesPerDay, Limit: 5}
	refill := base
	refill.Cursor = c1

	release := make(chan struct{})
	provider.EXPECT().FetchTicks(gomock.Any(), base).
		Return(datasource.Page{Ticks: first, NextCursor: c1, ResolvedSymbol: "ES"}, nil).Times(1)
	provider.EXPECT().FetchTicks(gomock.Any(), refill).
		DoAndReturn(func(ctx context.Context, _ datasource.PageRequest) (datasource.Page, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return datasource.Page{Ticks: second, NextCursor: datasource.CursorFromTimeStamp(second[0].TimeStamp), Done: true}, nil
		}).Times(1)

	e, _ := newTestEngine(t, provider, WithInstruments(es), WithPageLimit(5), WithRefillThreshold(10))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.Play())

	for i := 0; i < 4; i++ {
		e.Advance(0)
		assert.True(t, e.lanes[0].stream.refillInFlight)
	}

	close(release)
	awaitRefill(t, e)

	stream := e.lanes[0].stream
	assert.True(t, stream.Exhausted())
	assert.False(t, stream.refillInFlight)
	assert.Equal(t, 6, stream.Len())

	for i := 0; i < 3; i++ {
		e.Advance(1000)
	}
}

func TestEngine_RefillFailureIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock.NewMockProvider(ctrl)

	first := []common.Tick{tickAt("ES", 570, 0, "100")}
	c1 := datasource.CursorFromTimeStamp(first[0].TimeStamp)
	base := datasource.PageRequest{Symbol: "ES", Day: testDay, StartMinute: 570, EndMinute: datasource.MinutesPerDay, Limit: 5}
	refill := base
	refill.Cursor = c1

	gomock.InOrder(
		provider.EXPECT().FetchTicks(gomock.Any(), base).Return(datasource.Page{Ticks: first, NextCursor: c1}, nil),
		provider.EXPECT().FetchTicks(gomock.Any(), refill).Return(datasource.Page{}, assert.AnError),
		provider.EXPECT().FetchTicks(gomock.Any(), refill).Return(datasource.Page{Done: true, NextCursor: c1}, nil),
	)

	e, _ := newTestEngine(t, provider, WithInstruments(es), WithPageLimit(5), WithRefillRetry(0))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.Play())

	e.Advance(0)
	awaitRefill(t, e)
	assert.False(t, e.lanes[0].stream.Exhausted())
	assert.True(t, e.Loaded())

	e.Advance(0)
	awaitRefill(t, e)
	assert.True(t, e.lanes[0].stream.Exhausted())
}

func TestEngine_StarvedStreamStalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock.NewMockProvider(ctrl)

	esTicks := []common.Tick{tickAt("ES", 570, 0, "100"), tickAt("ES", 570, 2, "101"), tickAt("ES", 570, 4, "102")}
	nqTicks := []common.Tick{tickAt("NQ", 570, 1, "200"), tickAt("NQ", 570, 3, "201")}

	esReq := datasource.PageRequest{Symbol: "ES", Day: testDay, StartMinute: 570, EndMinute: datasource.MinutesPerDay, Limit: 100}
	nqReq := esReq
	nqReq.Symbol = "NQ"

	release := make(chan struct{})
	provider.EXPECT().FetchTicks(gomock.Any(), esReq).
		Return(datasource.Page{Ticks: esTicks, NextCursor: "x", Done: true}, nil)
	gomock.InOrder(
		provider.EXPECT().FetchTicks(gomock.Any(), nqReq).Return(datasource.Page{}, nil),
		provider.EXPECT().FetchTicks(gomock.Any(), nqReq).
			DoAndReturn(func(ctx context.Context, _ datasource.PageRequest) (datasource.Page, error) {
				select {
				case <-release:
				case <-ctx.Done():
				}
				return datasource.Page{Ticks: nqTicks, NextCursor: "y", Done: true}, nil
			}),
	)

	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithPageLimit(100), WithRefillRetry(0))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.Play())

	e.Advance(0)
	e.Advance(3000)

	s := e.Snapshot()
	assert.Equal(t, "101", s.Candles["ES"][0].Close.String())
	assert.Empty(t, s.Candles["NQ"])
	assert.Equal(t, tickAt("ES", 570, 3, "0").TimeStamp, e.Now())

	close(release)
	awaitRefill(t, e)
	e.Advance(0)

	s = e.Snapshot()
	require.Len(t, s.Candles["NQ"], 1)
	assert.Equal(t, "201", s.Candles["NQ"][0].Close.String())
	assert.Equal(t, 2, s.Candles["NQ"][0].TickCount)
}

func TestEngine_StaleRefillDiscarded(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithPageLimit(4))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	stale := refillResult{
		generation: e.generation,
		symbol:     "ES",
		cursor:     e.lanes[0].stream.Cursor(),
		page:       datasource.Page{Ticks: []common.Tick{tickAt("ES", 599, 0, "1")}},
	}

	require.NoError(t, e.Load(context.Background(), testDay, 570))
	before := e.lanes[0].stream.Len()
	e.merge(stale)

	assert.Equal(t, before, e.lanes[0].stream.Len())
}

func TestEngine_OrderingViolations(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithPageLimit(4), WithMaxOrderingRejects(3))
	require.NoError(t, e.Load(context.Background(), testDay, 570))

	lane := e.lanes[0]
	bad := datasource.Page{Ticks: []common.Tick{tickAt("ES", 500, 0, "1")}, NextCursor: "bad"}
	cursor := lane.stream.Cursor()

	for i := 0; i < 2; i++ {
		lane.stream.refillInFlight = true
		e.merge(refillResult{generation: e.generation, symbol: "ES", cursor: cursor, page: bad})
		assert.False(t, lane.stream.Exhausted())
		assert.Equal(t, cursor, lane.stream.Cursor())
		assert.Equal(t, 4, lane.stream.Len())
	}

	e.merge(refillResult{generation: e.generation, symbol: "ES", cursor: cursor, page: bad})
	assert.True(t, lane.stream.Exhausted())
}

func TestEngine_SeekToMinute(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, rec := newTestEngine(t, provider, WithInstruments(es, nq))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	rec.reset()

	require.NoError(t, e.SeekToMinute(context.Background(), 575))

	s := e.Snapshot()
	assert.Equal(t, tickAt("ES", 575, 0, "0").TimeStamp, s.TimeStamp)
	require.Len(t, s.Candles["ES"], 5)
	require.Len(t, s.Candles["NQ"], 5)
	assert.Equal(t, "5004.5", s.Candles["ES"][4].Close.String())
	assert.Zero(t, rec.count(bus.CandleUpdateEvent))
	assert.Zero(t, rec.count(bus.CandleCloseEvent))
	assert.Equal(t, 2, rec.count(bus.CandleSnapshotEvent))

	require.NoError(t, e.SeekToMinute(context.Background(), 575))
	assert.Equal(t, s, e.Snapshot(), "repeated seek is a no-op")
}

func TestEngine_SeekBackwardKeepsPositions(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithStartBalance(fixed.FromInt(1000, 0)))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.SeekToMinute(context.Background(), 577))
	require.NoError(t, e.Play())
	e.Advance(0)

	_, err := e.PlaceOrder("ES", common.SideLong, 1)
	require.NoError(t, err)
	calls := provider.calls.Load()

	require.NoError(t, e.SeekToMinute(context.Background(), 572))

	s := e.Snapshot()
	assert.Greater(t, provider.calls.Load(), calls, "backward seek reloads market data")
	assert.Equal(t, tickAt("ES", 572, 0, "0").TimeStamp, s.TimeStamp)
	assert.Len(t, s.Candles["ES"], 2)
	require.Len(t, s.Positions, 1)
	assert.Equal(t, "5007", s.Positions[0].AveragePrice.String())
	assert.Equal(t, "-275", s.Positions[0].UnrealizedPnL.String())
}

func TestEngine_SeekWithoutData(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	before := e.Snapshot()

	err := e.SeekToMinute(context.Background(), 600)

	assert.ErrorIs(t, err, common.ErrNoData)
	assert.Equal(t, before, e.Snapshot())
	assert.ErrorIs(t, e.SeekToMinute(context.Background(), 1440), datasource.ErrInvalidRequest)
}

func TestEngine_SeekFetchesBeyondBuffer(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithPageLimit(4))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	assert.Equal(t, 4, e.lanes[0].stream.Len())

	require.NoError(t, e.SeekToMinute(context.Background(), 578))

	assert.Equal(t, tickAt("ES", 578, 0, "0").TimeStamp, e.Now())
	assert.Len(t, e.Snapshot().Candles["ES"], 8)
}

func TestEngine_StopLossExecution(t *testing.T) {
	provider := &memoryProvider{ticks: map[string][]common.Tick{
		"ES": {
			tickAt("ES", 570, 0, "100"),
			tickAt("ES", 570, 1, "99"),
			tickAt("ES", 570, 2, "96"),
			tickAt("ES", 570, 3, "94"),
			tickAt("ES", 570, 4, "93"),
		},
	}}
	e, rec := newTestEngine(t, provider, WithInstruments(es), WithStartBalance(fixed.FromInt(100000, 0)))
	require.NoError(t, e.Load(context.Background(), testDay, 570))

	_, err := e.PlaceOrder("ES", common.SideLong, 1)
	assert.ErrorIs(t, err, common.ErrNoPrice)
	_, err = e.PlaceOrder("CL", common.SideLong, 1)
	assert.ErrorIs(t, err, common.ErrUnknownInstrument)

	require.NoError(t, e.Play())
	e.Advance(0)

	fill, err := e.PlaceOrder("ES", common.SideLong, 1)
	require.NoError(t, err)
	assert.Equal(t, common.FillActionOpen, fill.Fill.Action)
	assert.Equal(t, 1, rec.count(bus.PositionOpenEvent))

	_, err = e.SetStop("ES", common.StopKindLoss, fixed.FromInt(95, 0))
	require.NoError(t, err)
	_, err = e.SetStop("ES", common.StopKindLoss, fixed.FromInt(101, 0))
	assert.ErrorIs(t, err, common.ErrInvalidStop)
	p := e.Snapshot().Positions[0]
	assert.Equal(t, "95", p.StopLoss.String())

	e.Advance(1000)
	e.Advance(1000)
	assert.Len(t, e.Snapshot().Positions, 1)
	assert.Zero(t, rec.count(bus.PositionCloseEvent))

	e.Advance(1000)
	require.Equal(t, 1, rec.count(bus.PositionCloseEvent))
	closed := rec.all(bus.PositionCloseEvent)[0].(common.PositionClosed)
	assert.Equal(t, common.CloseReasonStopLoss, closed.Reason)
	assert.Equal(t, "94", closed.ExitPrice.String())
	assert.Equal(t, "-300", closed.RealizedPnL.String())
	assert.Equal(t, "99700", e.Snapshot().Balance.String())

	lines := rec.all(bus.PriceLineEvent)
	last := lines[len(lines)-1].(common.PriceLine)
	assert.True(t, last.Cleared)
	assert.Equal(t, common.StopKindLoss, last.Kind)

	for i := 0; i < 3; i++ {
		e.Advance(1000)
	}
	assert.True(t, e.Finished())
	assert.True(t, e.Paused())
	assert.Equal(t, 1, rec.count(bus.SessionFinishEvent))
	assert.ErrorIs(t, e.Play(), common.ErrNoData)

	report := e.Report()
	assert.Equal(t, 1, report.TotalTrades)
	assert.Equal(t, 1, report.StopLossHits)
}

func TestEngine_ClearStop(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, rec := newTestEngine(t, provider, WithInstruments(es, nq))
	require.NoError(t, e.Load(context.Background(), testDay, 570))
	require.NoError(t, e.Play())
	e.Advance(0)

	_, err := e.ClearStop("ES", common.StopKindProfit)
	assert.ErrorIs(t, err, common.ErrPositionNotFound)

	_, err = e.PlaceOrder("ES", common.SideShort, 2)
	require.NoError(t, err)
	_, err = e.SetStop("ES", common.StopKindProfit, fixed.FromInt(4990, 0))
	require.NoError(t, err)

	p, err := e.ClearStop("ES", common.StopKindProfit)
	require.NoError(t, err)
	assert.False(t, p.HasTakeProfit())

	lines := rec.all(bus.PriceLineEvent)
	require.Len(t, lines, 2)
	assert.True(t, lines[1].(common.PriceLine).Cleared)
}
