package position

import (
	"fmt"
	"math"
	"sort"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

// FillResult reports everything a single fill changed. Position is nil when
// the instrument is flat afterwards.
type FillResult struct {
	Fill         common.Fill
	Opened       bool
	Closed       *common.PositionClosed
	Position     *common.Position
	ClearedLines []common.StopKind
}

// Book holds at most one position per instrument and the account balance
// realized pnl is booked into.
type Book struct {
	instruments map[string]common.Instrument
	positions   map[string]*common.Position
	marks       map[string]fixed.Point

	balance  fixed.Point
	realized fixed.Point
}

func NewBook(startBalance fixed.Point, instruments ...common.Instrument) *Book {
	b := &Book{
		instruments: make(map[string]common.Instrument, len(instruments)),
		positions:   make(map[string]*common.Position),
		marks:       make(map[string]fixed.Point),
		balance:     startBalance,
	}
	for _, instrument := range instruments {
		b.instruments[instrument.Symbol] = instrument
	}
	return b
}

func (b *Book) ApplyFill(symbol string, side common.Side, price fixed.Point, size uint32, ts int64) (FillResult, error) {
	instrument, ok := b.instruments[symbol]
	if !ok {
		return FillResult{}, fmt.Errorf("fill on %s: %w", symbol, common.ErrUnknownInstrument)
	}
	if size == 0 {
		return FillResult{}, fmt.Errorf("fill on %s: %w", symbol, common.ErrInvalidSize)
	}
	if existing, ok := b.positions[symbol]; ok && existing.Side == side && size > math.MaxUint32-existing.Size {
		return FillResult{}, fmt.Errorf("fill of %d on %s holding %d: %w", size, symbol, existing.Size, common.ErrInvalidSize)
	}

	b.marks[symbol] = price
	result := FillResult{
		Fill: common.Fill{
			TimeStamp:   ts,
			Symbol:      symbol,
			Side:        side,
			Price:       price,
			Size:        size,
			RealizedPnL: fixed.Zero,
		},
	}

	existing, ok := b.positions[symbol]
	switch {
	case !ok:
		result.Fill.Action = common.FillActionOpen
		result.Opened = true
		existing = b.open(symbol, side, price, size, ts)

	case existing.Side == side:
		result.Fill.Action = common.FillActionAdd
		total := existing.Size + size
		existing.AveragePrice = existing.AveragePrice.MulUint32(existing.Size).
			Add(price.MulUint32(size)).
			DivInt(int(total))
		existing.Size = total

	case existing.Size > size:
		result.Fill.Action = common.FillActionReduce
		result.Fill.RealizedPnL = b.realize(*existing, instrument, price, size)
		existing.Size -= size

	case existing.Size == size:
		result.Fill.Action = common.FillActionClose
		result.Fill.RealizedPnL = b.realize(*existing, instrument, price, size)
		result.Closed = b.closed(*existing, common.CloseReasonFill, price, result.Fill.RealizedPnL, ts)
		result.ClearedLines = ClearedLines(*existing)
		delete(b.positions, symbol)
		existing = nil

	default:
		result.Fill.Action = common.FillActionFlip
		result.Fill.RealizedPnL = b.realize(*existing, instrument, price, existing.Size)
		result.Closed = b.closed(*existing, common.CloseReasonFill, price, result.Fill.RealizedPnL, ts)
		result.ClearedLines = ClearedLines(*existing)
		result.Opened = true
		existing = b.open(symbol, side, price, size-existing.Size, ts)
	}

	if existing != nil {
		existing.UnrealizedPnL = unrealized(*existing, instrument, price)
		snapshot := *existing
		result.Position = &snapshot
	}

	return result, nil
}

// MarkToMarket revalues the open position of symbol and evaluates its stop
// loss, then its take profit. It returns the closure when either fired.
func (b *Book) MarkToMarket(symbol string, price fixed.Point, ts int64) (*common.PositionClosed, bool) {
	b.marks[symbol] = price

	position, ok := b.positions[symbol]
	if !ok {
		return nil, false
	}
	instrument := b.instruments[symbol]
	position.UnrealizedPnL = unrealized(*position, instrument, price)

	reason, triggered := stopTriggered(*position, price)
	if !triggered {
		return nil, true
	}

	pnl := position.UnrealizedPnL
	b.balance = b.balance.Add(pnl)
	b.realized = b.realized.Add(pnl)

	closed := b.closed(*position, reason, price, pnl, ts)
	delete(b.positions, symbol)
	return closed, true
}

func (b *Book) SetStop(symbol string, kind common.StopKind, price fixed.Point) (common.Position, error) {
	position, ok := b.positions[symbol]
	if !ok {
		return common.Position{}, fmt.Errorf("set %s on %s: %w", kind, symbol, common.ErrPositionNotFound)
	}
	if !price.Gt(fixed.Zero) {
		return *position, fmt.Errorf("%s %s at %s: %w", symbol, kind, price, common.ErrInvalidStop)
	}
	mark, ok := b.marks[symbol]
	if !ok {
		return common.Position{}, fmt.Errorf("set %s on %s: %w", kind, symbol, common.ErrNoPrice)
	}
	if !stopValid(position.Side, kind, price, mark) {
		return *position, fmt.Errorf("%s %s at %s against mark %s for %s position: %w",
			symbol, kind, price, mark, position.Side, common.ErrInvalidStop)
	}

	if kind == common.StopKindLoss {
		position.StopLoss = price
	} else {
		position.TakeProfit = price
	}
	return *position, nil
}

func (b *Book) ClearStop(symbol string, kind common.StopKind) (common.Position, error) {
	position, ok := b.positions[symbol]
	if !ok {
		return common.Position{}, fmt.Errorf("clear %s on %s: %w", kind, symbol, common.ErrPositionNotFound)
	}
	if kind == common.StopKindLoss {
		position.StopLoss = fixed.Zero
	} else {
		position.TakeProfit = fixed.Zero
	}
	return *position, nil
}

func (b *Book) Position(symbol string) (common.Position, bool) {
	position, ok := b.positions[symbol]
	if !ok {
		return common.Position{}, false
	}
	return *position, true
}

func (b *Book) Positions() []common.Position {
	positions := make([]common.Position, 0, len(b.positions))
	for _, position := range b.positions {
		positions = append(positions, *position)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

func (b *Book) Count() int {
	return len(b.positions)
}

func (b *Book) Mark(symbol string) (fixed.Point, bool) {
	mark, ok := b.marks[symbol]
	return mark, ok
}

func (b *Book) Balance() fixed.Point {
	return b.balance
}

func (b *Book) Realized() fixed.Point {
	return b.realized
}

func (b *Book) Equity() fixed.Point {
	equity := b.balance
	for _, position := range b.positions {
		equity = equity.Add(position.UnrealizedPnL)
	}
	return equity
}

func (b *Book) open(symbol string, side common.Side, price fixed.Point, size uint32, ts int64) *common.Position {
	position := &common.Position{
		Symbol:       symbol,
		Side:         side,
		AveragePrice: price,
		Size:         size,
		OpenTime:     ts,
	}
	b.positions[symbol] = position
	return position
}

func (b *Book) realize(position common.Position, instrument common.Instrument, price fixed.Point, size uint32) fixed.Point {
	pnl := common.DirectionalDiff(position.Side, position.AveragePrice, price).
		MulUint32(size).
		Mul(instrument.ContractMultiplier)
	b.balance = b.balance.Add(pnl)
	b.realized = b.realized.Add(pnl)
	return pnl
}

func (b *Book) closed(position common.Position, reason common.CloseReason, price, pnl fixed.Point, ts int64) *common.PositionClosed {
	return &common.PositionClosed{
		TimeStamp:   ts,
		Position:    position,
		Reason:      reason,
		ExitPrice:   price,
		RealizedPnL: pnl,
	}
}

func unrealized(position common.Position, instrument common.Instrument, price fixed.Point) fixed.Point {
	return common.DirectionalDiff(position.Side, position.AveragePrice, price).
		Mul(instrument.ContractMultiplier).
		MulUint32(position.Size)
}

func stopTriggered(position common.Position, price fixed.Point) (common.CloseReason, bool) {
	if position.Side == common.SideLong {
		if position.HasStopLoss() && price.Lte(position.StopLoss) {
			return common.CloseReasonStopLoss, true
		}
		if position.HasTakeProfit() && price.Gte(position.TakeProfit) {
			return common.CloseReasonTakeProfit, true
		}
		return "", false
	}

	if position.HasStopLoss() && price.Gte(position.StopLoss) {
		return common.CloseReasonStopLoss, true
	}
	if position.HasTakeProfit() && price.Lte(position.TakeProfit) {
		return common.CloseReasonTakeProfit, true
	}
	return "", false
}

// stopValid reports whether a line at price would rest, i.e. not execute on
// the current mark.
func stopValid(side common.Side, kind common.StopKind, price, mark fixed.Point) bool {
	below := price.Lt(mark)
	above := price.Gt(mark)

	switch {
	case side == common.SideLong && kind == common.StopKindLoss:
		return below
	case side == common.SideLong && kind == common.StopKindProfit:
		return above
	case side == common.SideShort && kind == common.StopKindLoss:
		return above
	default:
		return below
	}
}

// ClearedLines lists the price lines attached to position.
func ClearedLines(position common.Position) []common.StopKind {
	var lines []common.StopKind
	if position.HasStopLoss() {
		lines = append(lines, common.StopKindLoss)
	}
	if position.HasTakeProfit() {
		lines = append(lines, common.StopKindProfit)
	}
	return lines
}
