package simulation

import (
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

type accountSnapshot struct {
	balance fixed.Point
	equity  fixed.Point
	ts      int64
}

// Audit collects what a replay session did to the account, sampled on the
// virtual clock.
type Audit struct {
	minSnapshotInterval time.Duration

	accountSnapshots []accountSnapshot
	closedPositions  []common.PositionClosed
}

func NewAudit(minSnapshotInterval time.Duration) *Audit {
	return &Audit{
		minSnapshotInterval: minSnapshotInterval,
	}
}

func (a *Audit) AddAccountSnapshot(balance, equity fixed.Point, ts int64) {
	if len(a.accountSnapshots) == 0 ||
		ts-a.accountSnapshots[len(a.accountSnapshots)-1].ts >= int64(a.minSnapshotInterval) {
		a.accountSnapshots = append(a.accountSnapshots, accountSnapshot{
			balance: balance,
			equity:  equity,
			ts:      ts,
		})
	}
}

func (a *Audit) AddClosedPosition(closed common.PositionClosed) {
	a.closedPositions = append(a.closedPositions, closed)
}

func (a *Audit) ClosedPositions() int {
	return len(a.closedPositions)
}

func (a *Audit) Reset() {
	a.accountSnapshots = nil
	a.closedPositions = nil
}

func (a *Audit) GenerateReport() Report {
	report := Report{}

	if len(a.accountSnapshots) > 0 {
		first := a.accountSnapshots[0]
		last := a.accountSnapshots[len(a.accountSnapshots)-1]
		report.InitialEquity = first.equity
		report.FinalEquity = last.equity
		report.FinalBalance = last.balance
		report.StartTime = first.ts
		report.EndTime = last.ts
	}

	if report.InitialEquity.Gt(fixed.Zero) {
		report.TotalProfit = report.FinalEquity.Div(report.InitialEquity).Sub(fixed.One).Mul(fixed.Hundred).Rescale(2)
	}

	maxEquity := report.InitialEquity
	for _, snapshot := range a.accountSnapshots {
		if snapshot.equity.Gt(maxEquity) {
			maxEquity = snapshot.equity
		}
		if !maxEquity.Gt(fixed.Zero) {
			continue
		}
		drawdown := maxEquity.Sub(snapshot.equity).Div(maxEquity)
		if drawdown.Gt(report.MaxDrawdown) {
			report.MaxDrawdown = drawdown
		}
	}

	// Ratios are per snapshot interval, not annualized.
	if returns := a.equityReturns(); len(returns) > 1 {
		report.SharpeRatio = fixed.SharpeRatio(returns, fixed.Zero).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(returns, fixed.Zero).Rescale(5)
	}

	var (
		totalDuration time.Duration
		totalProfit   fixed.Point
		totalLoss     fixed.Point
	)
	for _, closed := range a.closedPositions {
		report.TotalTrades++

		if closed.TimeStamp > closed.Position.OpenTime && closed.Position.OpenTime > 0 {
			totalDuration += time.Duration(closed.TimeStamp - closed.Position.OpenTime)
		}

		switch closed.Reason {
		case common.CloseReasonStopLoss:
			report.StopLossHits++
		case common.CloseReasonTakeProfit:
			report.TakeProfitHits++
		}

		if closed.RealizedPnL.Gt(fixed.Zero) {
			totalProfit = totalProfit.Add(closed.RealizedPnL)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(closed.RealizedPnL.Neg())
			report.LosingTrades++
		}
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt(report.LosingTrades)
	}
	if totalLoss.Gt(fixed.Zero) {
		report.ProfitFactor = totalProfit.Div(totalLoss).Rescale(5)
	}
	if report.AverageLoss.Gt(fixed.Zero) {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss).Rescale(5)
	}
	if report.TotalTrades > 0 {
		report.NetProfit = totalProfit.Sub(totalLoss)
		report.Expectancy = report.NetProfit.DivInt(report.TotalTrades)
		report.AverageTradeDuration = totalDuration / time.Duration(report.TotalTrades)
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).DivInt(report.TotalTrades).Mul(fixed.Hundred).Rescale(2)
	}
	if report.MaxDrawdown.Gt(fixed.Zero) {
		report.RecoveryFactor = report.TotalProfit.Div(report.MaxDrawdown.Mul(fixed.Hundred)).Rescale(5)
	}
	report.MaxDrawdown = report.MaxDrawdown.Mul(fixed.Hundred).Rescale(2)

	return report
}

func (a *Audit) equityReturns() []fixed.Point {
	var returns []fixed.Point
	for i := 1; i < len(a.accountSnapshots); i++ {
		prev := a.accountSnapshots[i-1].equity
		if !prev.Gt(fixed.Zero) {
			continue
		}
		returns = append(returns, a.accountSnapshots[i].equity.Div(prev).Sub(fixed.One))
	}
	return returns
}
