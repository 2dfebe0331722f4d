package simulation

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

type Report struct {
	StartTime            int64         `json:"start_ts"`
	EndTime              int64         `json:"end_ts"`
	InitialEquity        fixed.Point   `json:"initial_equity"`
	FinalEquity          fixed.Point   `json:"final_equity"`
	FinalBalance         fixed.Point   `json:"final_balance"`
	TotalProfit          fixed.Point   `json:"total_profit_pct"`
	NetProfit            fixed.Point   `json:"net_profit"`
	MaxDrawdown          fixed.Point   `json:"max_drawdown_pct"`
	TotalTrades          int           `json:"total_trades"`
	WinningTrades        int           `json:"winning_trades"`
	LosingTrades         int           `json:"losing_trades"`
	StopLossHits         int           `json:"stop_loss_hits"`
	TakeProfitHits       int           `json:"take_profit_hits"`
	WinRate              fixed.Point   `json:"win_rate_pct"`
	Expectancy           fixed.Point   `json:"expectancy"`
	ProfitFactor         fixed.Point   `json:"profit_factor"`
	AverageWin           fixed.Point   `json:"average_win"`
	AverageLoss          fixed.Point   `json:"average_loss"`
	RiskRewardRatio      fixed.Point   `json:"risk_reward_ratio"`
	AverageTradeDuration time.Duration `json:"average_trade_duration"`
	RecoveryFactor       fixed.Point   `json:"recovery_factor"`
	SharpeRatio          fixed.Point   `json:"sharpe_ratio"`
	SortinoRatio         fixed.Point   `json:"sortino_ratio"`
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("session report",
		zap.Time("start", time.Unix(0, report.StartTime)),
		zap.Time("end", time.Unix(0, report.EndTime)),
		zap.String("initial_equity", report.InitialEquity.String()),
		zap.String("final_equity", report.FinalEquity.String()),
		zap.String("final_balance", report.FinalBalance.String()),
		zap.String("total_profit", fmt.Sprintf("%s%%", report.TotalProfit.String())),
		zap.String("max_drawdown", fmt.Sprintf("%s%%", report.MaxDrawdown.String())),
		zap.String("recovery_factor", report.RecoveryFactor.String()),
		zap.String("sharpe_ratio", report.SharpeRatio.String()),
		zap.String("sortino_ratio", report.SortinoRatio.String()),
	)

	logger.Info("trade statistics",
		zap.Int("total_trades", report.TotalTrades),
		zap.Int("winning_trades", report.WinningTrades),
		zap.Int("losing_trades", report.LosingTrades),
		zap.Int("stop_loss_hits", report.StopLossHits),
		zap.Int("take_profit_hits", report.TakeProfitHits),
		zap.String("win_rate", fmt.Sprintf("%s%%", report.WinRate.String())),
		zap.String("net_profit", report.NetProfit.String()),
		zap.String("expectancy", report.Expectancy.String()),
		zap.String("profit_factor", report.ProfitFactor.String()),
		zap.String("average_win", report.AverageWin.String()),
		zap.String("average_loss", report.AverageLoss.String()),
		zap.String("risk_reward_ratio", report.RiskRewardRatio.String()),
		zap.String("average_trade_duration", report.AverageTradeDuration.String()),
	)
}
