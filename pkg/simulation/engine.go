package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/tools/bar"
	"github.com/peter-kozarec/tickreplay/pkg/tools/position"
	"github.com/peter-kozarec/tickreplay/pkg/utility"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

var ErrNotLoaded = errors.New("no session loaded")

// Emitter receives everything the engine wants a renderer to know about.
// bus.Router implements it.
type Emitter interface {
	Post(id bus.EventId, data any) error
}

type lane struct {
	instrument common.Instrument
	stream     *TickStream
	aggregator *bar.Aggregator
	retryAt    time.Time
}

func newLane(instrument common.Instrument) *lane {
	return &lane{
		instrument: instrument,
		stream:     NewTickStream(instrument.Symbol),
		aggregator: bar.NewAggregator(instrument.Symbol),
	}
}

type refillResult struct {
	generation uint64
	symbol     string
	cursor     datasource.Cursor
	page       datasource.Page
	err        error
}

// Engine replays the tick streams of several instruments against one virtual
// clock. It is not safe for concurrent use; Runner owns it on one goroutine.
type Engine struct {
	logger   *zap.Logger
	emitter  Emitter
	provider datasource.Provider
	cfg      Configuration
	now      func() time.Time

	lanes []*lane
	index map[string]*lane

	clock *VirtualClock
	book  *position.Book
	audit *Audit

	session     utility.SessionID
	generation  uint64
	day         string
	startMinute int
	loaded      bool
	paused      bool
	finished    bool
	speed       float64

	fresh       bool
	lastFrame   time.Time
	lastClockTS int64

	fetchCtx    context.Context
	cancelFetch context.CancelFunc
	refills     chan refillResult
}

func NewEngine(logger *zap.Logger, emitter Emitter, provider datasource.Provider, options ...Option) *Engine {
	cfg := DefaultConfiguration()
	for _, option := range options {
		option(&cfg)
	}

	fetchCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		logger:      logger,
		emitter:     emitter,
		provider:    provider,
		cfg:         cfg,
		now:         time.Now,
		clock:       NewVirtualClock(),
		book:        position.NewBook(cfg.StartBalance, cfg.Instruments...),
		audit:       NewAudit(cfg.SnapshotInterval),
		index:       make(map[string]*lane),
		paused:      true,
		fresh:       true,
		speed:       ClampSpeed(cfg.Speed),
		fetchCtx:    fetchCtx,
		cancelFetch: cancel,
		refills:     make(chan refillResult, 2*len(cfg.Instruments)+1),
	}
}

// Close discards every outstanding refill.
func (e *Engine) Close() {
	e.cancelFetch()
}

func (e *Engine) Loaded() bool   { return e.loaded }
func (e *Engine) Paused() bool   { return e.paused }
func (e *Engine) Finished() bool { return e.finished }
func (e *Engine) Speed() float64 { return e.speed }
func (e *Engine) Now() int64     { return e.clock.Now() }

// Load starts a new session for day, replaying from startMinute. Nothing
// changes when no instrument has data.
func (e *Engine) Load(ctx context.Context, day string, startMinute int) error {
	if startMinute < 0 || startMinute >= e.cfg.EndMinute {
		return fmt.Errorf("start minute %d outside [0, %d): %w", startMinute, e.cfg.EndMinute, datasource.ErrInvalidRequest)
	}

	lanes, err := e.prepare(ctx, day, startMinute)
	if err != nil {
		return err
	}

	e.install(lanes, day, startMinute)
	e.session = utility.NewSessionID()
	e.paused = true
	e.book = position.NewBook(e.cfg.StartBalance, e.cfg.Instruments...)
	e.audit.Reset()
	e.audit.AddAccountSnapshot(e.book.Balance(), e.book.Equity(), e.clock.Now())

	e.logger.Info("session loaded",
		zap.String("session", e.session.String()),
		zap.String("day", day),
		zap.Int("start_minute", startMinute),
		zap.String("clock", e.Display(e.clock.Now())))

	e.post(bus.SessionLoadEvent, e.sessionInfo())
	e.post(bus.BalanceEvent, common.Balance{Session: e.session, TimeStamp: e.clock.Now(), Value: e.book.Balance()})
	e.emitSnapshots()
	e.emitClock(true)
	return nil
}

func (e *Engine) Play() error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if e.finished {
		return fmt.Errorf("session finished: %w", common.ErrNoData)
	}
	if e.paused {
		e.paused = false
		e.fresh = true
		e.emitClock(true)
	}
	return nil
}

func (e *Engine) Pause() {
	if e.paused {
		return
	}
	e.paused = true
	e.emitClock(true)
}

func (e *Engine) SetSpeed(speed float64) float64 {
	e.speed = ClampSpeed(speed)
	e.emitClock(true)
	return e.speed
}

// OnFrame advances the session by the wall time elapsed since the previous
// frame. The first frame after a load, seek or resume advances by zero.
func (e *Engine) OnFrame(now time.Time) {
	if !e.loaded || e.paused {
		e.fresh = true
		return
	}

	var deltaMs float64
	if !e.fresh {
		deltaMs = float64(now.Sub(e.lastFrame)) / float64(time.Millisecond)
	}
	e.fresh = false
	e.lastFrame = now

	e.Advance(deltaMs)
}

// Advance runs one frame: merge finished refills, move the clock, fold every
// tick up to it, mark positions and ask for more data where needed.
func (e *Engine) Advance(wallDeltaMs float64) int64 {
	if !e.loaded || e.paused {
		return e.clock.Now()
	}

	e.MergeRefills()

	t := e.clock.Advance(wallDeltaMs, e.speed)
	for _, l := range e.lanes {
		ticks := l.stream.ConsumeUpTo(t)
		if len(ticks) == 0 {
			if l.stream.Starved() {
				e.logger.Debug("stream starved", zap.String("symbol", l.instrument.Symbol))
			}
			continue
		}
		e.fold(l, ticks, true)
		e.mark(l, ticks[len(ticks)-1].TimeStamp)
	}

	e.requestRefills()
	e.audit.AddAccountSnapshot(e.book.Balance(), e.book.Equity(), t)
	e.emitClock(false)
	e.checkFinished()
	return t
}

// SeekToMinute fast-forwards the session to the first tick at or after target
// without emitting intermediate candle updates. Seeking behind already
// replayed data reloads the day; positions and balance are kept.
func (e *Engine) SeekToMinute(ctx context.Context, target int) error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if target < 0 || target >= datasource.MinutesPerDay {
		return fmt.Errorf("seek to minute %d: %w", target, datasource.ErrInvalidRequest)
	}

	e.MergeRefills()

	lanes, reload := e.lanes, false
	for _, l := range e.lanes {
		if l.stream.ConsumedThrough(target) {
			reload = true
			break
		}
	}
	if reload {
		var err error
		if lanes, err = e.prepare(ctx, e.day, e.startMinute); err != nil {
			return err
		}
	}

	for _, l := range lanes {
		e.cover(ctx, l, target)
	}

	earliest, found := int64(math.MaxInt64), false
	for _, l := range lanes {
		if tick, ok := l.stream.FirstPendingAtMinute(target); ok && tick.TimeStamp < earliest {
			earliest, found = tick.TimeStamp, true
		}
	}
	if !found {
		return fmt.Errorf("seek to minute %d: %w", target, common.ErrNoData)
	}

	if reload {
		e.install(lanes, e.day, e.startMinute)
	}
	for _, l := range e.lanes {
		ticks := l.stream.ConsumeBeforeMinute(target)
		if len(ticks) == 0 {
			continue
		}
		e.fold(l, ticks, false)
		e.mark(l, ticks[len(ticks)-1].TimeStamp)
	}
	e.clock.Reset(earliest)
	e.fresh = true
	e.finished = false

	e.logger.Info("seek",
		zap.Int("minute", target),
		zap.Bool("reloaded", reload),
		zap.String("clock", e.Display(earliest)))

	e.emitSnapshots()
	for _, p := range e.book.Positions() {
		e.post(bus.PositionUpdateEvent, common.PositionUpdate{Session: e.session, TimeStamp: earliest, Position: p})
	}
	e.emitClock(true)
	e.requestRefills()
	return nil
}

// PlaceOrder fills a market order at the instrument's current price.
func (e *Engine) PlaceOrder(symbol string, side common.Side, size uint32) (position.FillResult, error) {
	if !e.loaded {
		return position.FillResult{}, ErrNotLoaded
	}
	l, ok := e.index[symbol]
	if !ok {
		return position.FillResult{}, fmt.Errorf("order on %s: %w", symbol, common.ErrUnknownInstrument)
	}
	price, ok := l.aggregator.CurrentPrice()
	if !ok {
		return position.FillResult{}, fmt.Errorf("order on %s: %w", symbol, common.ErrNoPrice)
	}

	ts := e.clock.Now()
	result, err := e.book.ApplyFill(symbol, side, price, size, ts)
	if err != nil {
		return result, err
	}
	result.Fill.Session = e.session

	e.logger.Info("order filled", result.Fill.Fields()...)
	e.post(bus.FillEvent, result.Fill)

	if result.Closed != nil {
		result.Closed.Session = e.session
		e.onClosed(*result.Closed)
	} else if !result.Fill.RealizedPnL.IsZero() {
		e.post(bus.BalanceEvent, common.Balance{Session: e.session, TimeStamp: ts, Value: e.book.Balance()})
	}

	if result.Position != nil {
		id := bus.PositionUpdateEvent
		if result.Opened {
			id = bus.PositionOpenEvent
		}
		e.post(id, common.PositionUpdate{Session: e.session, TimeStamp: ts, Position: *result.Position})
	}
	return result, nil
}

// SetStop attaches a stop loss or take profit line. A rejected line leaves the
// position untouched.
func (e *Engine) SetStop(symbol string, kind common.StopKind, price fixed.Point) (common.Position, error) {
	if _, ok := e.index[symbol]; !ok {
		return common.Position{}, fmt.Errorf("stop on %s: %w", symbol, common.ErrUnknownInstrument)
	}

	p, err := e.book.SetStop(symbol, kind, price)
	if err != nil {
		e.logger.Warn("stop rejected", zap.String("symbol", symbol), zap.Stringer("kind", kind), zap.Error(err))
		return p, err
	}

	ts := e.clock.Now()
	e.post(bus.PriceLineEvent, common.PriceLine{Session: e.session, TimeStamp: ts, Symbol: symbol, Kind: kind, Price: price})
	e.post(bus.PositionUpdateEvent, common.PositionUpdate{Session: e.session, TimeStamp: ts, Position: p})
	return p, nil
}

func (e *Engine) ClearStop(symbol string, kind common.StopKind) (common.Position, error) {
	if _, ok := e.index[symbol]; !ok {
		return common.Position{}, fmt.Errorf("stop on %s: %w", symbol, common.ErrUnknownInstrument)
	}

	p, err := e.book.ClearStop(symbol, kind)
	if err != nil {
		return p, err
	}

	ts := e.clock.Now()
	e.post(bus.PriceLineEvent, common.PriceLine{Session: e.session, TimeStamp: ts, Symbol: symbol, Kind: kind, Cleared: true})
	e.post(bus.PositionUpdateEvent, common.PositionUpdate{Session: e.session, TimeStamp: ts, Position: p})
	return p, nil
}

// MergeRefills appends every refill that completed since the last call.
func (e *Engine) MergeRefills() {
	for {
		select {
		case r := <-e.refills:
			e.merge(r)
		default:
			return
		}
	}
}

func (e *Engine) Display(ts int64) string {
	return time.Unix(0, ts).In(e.cfg.Location).Format(ClockLayout)
}

func (e *Engine) Report() Report {
	return e.audit.GenerateReport()
}

type Snapshot struct {
	Session     utility.SessionID          `json:"session"`
	Day         string                     `json:"day"`
	StartMinute int                        `json:"start_minute"`
	Loaded      bool                       `json:"loaded"`
	Paused      bool                       `json:"paused"`
	Finished    bool                       `json:"finished"`
	Speed       float64                    `json:"speed"`
	TimeStamp   int64                      `json:"ts"`
	Display     string                     `json:"display"`
	Balance     fixed.Point                `json:"balance"`
	Equity      fixed.Point                `json:"equity"`
	Realized    fixed.Point                `json:"realized"`
	Positions   []common.Position          `json:"positions"`
	Candles     map[string][]common.Candle `json:"candles"`
	Streams     []StreamStatus             `json:"streams"`
	Report      Report                     `json:"report"`
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Session:     e.session,
		Day:         e.day,
		StartMinute: e.startMinute,
		Loaded:      e.loaded,
		Paused:      e.paused,
		Finished:    e.finished,
		Speed:       e.speed,
		TimeStamp:   e.clock.Now(),
		Display:     e.Display(e.clock.Now()),
		Balance:     e.book.Balance(),
		Equity:      e.book.Equity(),
		Realized:    e.book.Realized(),
		Positions:   e.book.Positions(),
		Candles:     make(map[string][]common.Candle, len(e.lanes)),
		Report:      e.audit.GenerateReport(),
	}
	for _, l := range e.lanes {
		s.Candles[l.instrument.Symbol] = l.aggregator.Snapshot()
		s.Streams = append(s.Streams, l.stream.Status())
	}
	return s
}

// prepare fetches the first page of every instrument into fresh lanes without
// touching the running session.
func (e *Engine) prepare(ctx context.Context, day string, startMinute int) ([]*lane, error) {
	var (
		lanes    = make([]*lane, 0, len(e.cfg.Instruments))
		failures []error
		buffered int
	)
	for _, instrument := range e.cfg.Instruments {
		l := newLane(instrument)
		lanes = append(lanes, l)

		page, err := e.provider.FetchTicks(ctx, e.pageRequest(l, day, startMinute))
		if err != nil {
			e.logger.Warn("first page failed", zap.String("symbol", instrument.Symbol), zap.Error(err))
			failures = append(failures, err)
			continue
		}
		e.appendPage(l, page)
		buffered += l.stream.Len()
	}

	if buffered == 0 {
		err := fmt.Errorf("%s from minute %d: %w", day, startMinute, common.ErrNoData)
		return nil, errors.Join(append([]error{err}, failures...)...)
	}
	return lanes, nil
}

func (e *Engine) install(lanes []*lane, day string, startMinute int) {
	e.cancelFetch()
	e.fetchCtx, e.cancelFetch = context.WithCancel(context.Background())
	e.generation++
	e.MergeRefills()

	e.lanes = lanes
	e.index = make(map[string]*lane, len(lanes))
	first := int64(math.MaxInt64)
	for _, l := range lanes {
		e.index[l.instrument.Symbol] = l
		if ts, ok := l.stream.FirstTimeStamp(); ok && ts < first {
			first = ts
		}
	}

	e.day = day
	e.startMinute = startMinute
	e.clock.Reset(first)
	e.loaded = true
	e.finished = false
	e.fresh = true
}

// cover fetches synchronously until the stream holds a pending tick at or
// after minute or the upstream has nothing more.
func (e *Engine) cover(ctx context.Context, l *lane, minute int) {
	for !l.stream.Exhausted() && !l.stream.Covers(minute) {
		before := l.stream.Len()
		page, err := e.provider.FetchTicks(ctx, e.pageRequest(l, e.day, e.startMinute))
		if err != nil {
			e.logger.Warn("seek fetch failed", zap.String("symbol", l.instrument.Symbol), zap.Error(err))
			return
		}
		e.appendPage(l, page)
		if l.stream.Len() == before && !l.stream.Exhausted() && len(page.Ticks) == 0 {
			return
		}
	}
}

func (e *Engine) pageRequest(l *lane, day string, startMinute int) datasource.PageRequest {
	return datasource.PageRequest{
		Symbol:      l.instrument.Symbol,
		Day:         day,
		Cursor:      l.stream.Cursor(),
		StartMinute: startMinute,
		EndMinute:   e.cfg.EndMinute,
		Limit:       e.cfg.PageLimit,
	}
}

func (e *Engine) appendPage(l *lane, page datasource.Page) {
	s := l.stream
	if err := s.Append(page.Ticks); err != nil {
		s.rejects++
		e.logger.Warn("page rejected",
			zap.String("symbol", s.Symbol()),
			zap.Int("rejects", s.rejects),
			zap.Error(err))
		if s.rejects >= e.cfg.MaxOrderingRejects {
			s.MarkExhausted()
			e.logger.Error("stream closed after repeated ordering violations", zap.String("symbol", s.Symbol()))
		}
		return
	}

	s.rejects = 0
	s.SetCursor(page.NextCursor)
	if page.Done {
		s.MarkExhausted()
	} else if len(page.Ticks) == 0 {
		l.retryAt = e.now().Add(e.cfg.RefillRetry)
	}
	if page.ResolvedSymbol != "" && page.ResolvedSymbol != s.Symbol() {
		e.logger.Debug("symbol resolved", zap.String("symbol", s.Symbol()), zap.String("resolved", page.ResolvedSymbol))
	}
}

func (e *Engine) requestRefills() {
	now := e.now()
	for _, l := range e.lanes {
		s := l.stream
		if s.refillInFlight || !s.NeedsRefill(e.cfg.RefillThreshold) || now.Before(l.retryAt) {
			continue
		}
		e.requestRefill(l)
	}
}

func (e *Engine) requestRefill(l *lane) {
	l.stream.refillInFlight = true

	var (
		req        = e.pageRequest(l, e.day, e.startMinute)
		generation = e.generation
		ctx        = e.fetchCtx
		results    = e.refills
		provider   = e.provider
	)

	e.logger.Debug("refill requested", zap.String("symbol", req.Symbol), zap.String("cursor", string(req.Cursor)))
	go func() {
		page, err := provider.FetchTicks(ctx, req)
		select {
		case results <- refillResult{generation: generation, symbol: req.Symbol, cursor: req.Cursor, page: page, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) merge(r refillResult) {
	if r.generation != e.generation {
		e.logger.Debug("stale refill dropped", zap.String("symbol", r.symbol), zap.Uint64("generation", r.generation))
		return
	}
	l, ok := e.index[r.symbol]
	if !ok {
		return
	}
	l.stream.refillInFlight = false

	if r.cursor != l.stream.Cursor() {
		e.logger.Debug("refill overtaken", zap.String("symbol", r.symbol))
		return
	}
	if r.err != nil {
		l.retryAt = e.now().Add(e.cfg.RefillRetry)
		e.logger.Warn("refill failed",
			zap.String("symbol", r.symbol),
			zap.Error(fmt.Errorf("%w: %w", common.ErrRefillFailure, r.err)))
		return
	}
	e.appendPage(l, r.page)
}

func (e *Engine) fold(l *lane, ticks []common.Tick, emit bool) {
	opened := false
	for _, tick := range ticks {
		result := l.aggregator.Fold(tick)
		switch result.Kind {
		case bar.FoldOpened:
			opened = true
		case bar.FoldRolled:
			opened = true
			if emit {
				e.post(bus.CandleCloseEvent, common.CandleUpdate{Session: e.session, Candle: result.Closed})
			}
		}
	}
	if !emit {
		return
	}

	candle, ok := l.aggregator.OpenCandle()
	if !ok {
		return
	}
	id := bus.CandleUpdateEvent
	if opened {
		id = bus.CandleOpenEvent
	}
	e.post(id, common.CandleUpdate{Session: e.session, Candle: candle})
}

func (e *Engine) mark(l *lane, ts int64) {
	price, ok := l.aggregator.CurrentPrice()
	if !ok {
		return
	}
	closed, held := e.book.MarkToMarket(l.instrument.Symbol, price, ts)
	if !held {
		return
	}
	if closed != nil {
		closed.Session = e.session
		e.onClosed(*closed)
		return
	}
	if p, ok := e.book.Position(l.instrument.Symbol); ok {
		e.post(bus.PositionUpdateEvent, common.PositionUpdate{Session: e.session, TimeStamp: ts, Position: p})
	}
}

func (e *Engine) onClosed(closed common.PositionClosed) {
	e.logger.Info("position closed",
		zap.String("symbol", closed.Position.Symbol),
		zap.String("reason", string(closed.Reason)),
		zap.String("exit_price", closed.ExitPrice.String()),
		zap.String("pnl", closed.RealizedPnL.String()))

	e.audit.AddClosedPosition(closed)
	e.post(bus.PositionCloseEvent, closed)
	for _, kind := range position.ClearedLines(closed.Position) {
		e.post(bus.PriceLineEvent, common.PriceLine{
			Session:   e.session,
			TimeStamp: closed.TimeStamp,
			Symbol:    closed.Position.Symbol,
			Kind:      kind,
			Cleared:   true,
		})
	}
	e.post(bus.BalanceEvent, common.Balance{Session: e.session, TimeStamp: closed.TimeStamp, Value: e.book.Balance()})
}

func (e *Engine) checkFinished() {
	if e.finished {
		return
	}
	for _, l := range e.lanes {
		if !l.stream.Finished() {
			return
		}
	}

	e.finished = true
	e.paused = true
	e.logger.Info("session finished", zap.String("session", e.session.String()), zap.String("clock", e.Display(e.clock.Now())))
	e.audit.GenerateReport().Print(e.logger)
	e.post(bus.SessionFinishEvent, e.sessionInfo())
	e.emitClock(true)
}

func (e *Engine) emitSnapshots() {
	for _, l := range e.lanes {
		e.post(bus.CandleSnapshotEvent, common.CandleSnapshot{
			Session: e.session,
			Symbol:  l.instrument.Symbol,
			Candles: l.aggregator.Snapshot(),
		})
	}
}

func (e *Engine) emitClock(force bool) {
	ts := e.clock.Now()
	if !force && ts == e.lastClockTS {
		return
	}
	e.lastClockTS = ts
	e.post(bus.ClockEvent, common.ClockUpdate{
		Session:   e.session,
		TimeStamp: ts,
		Display:   e.Display(ts),
		Speed:     e.speed,
		Paused:    e.paused,
	})
}

func (e *Engine) sessionInfo() common.SessionInfo {
	symbols := make([]string, 0, len(e.lanes))
	for _, l := range e.lanes {
		symbols = append(symbols, l.instrument.Symbol)
	}
	return common.SessionInfo{
		Session:     e.session,
		TimeStamp:   e.clock.Now(),
		Day:         e.day,
		StartMinute: e.startMinute,
		Symbols:     symbols,
	}
}

func (e *Engine) post(id bus.EventId, data any) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.Post(id, data); err != nil {
		e.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err))
	}
}
