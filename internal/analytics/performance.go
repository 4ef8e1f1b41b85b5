package analytics

import (
	"sort"
	"time"

	"marginledger/internal/domain"
)

// Report holds aggregate performance figures over closed trades.
type Report struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalProfit   float64 // sum of absolute close profits
	AvgProfitPct  float64 // mean close profit ratio
	AvgDuration   time.Duration
	Pairs         []PairBreakdown
}

// PairBreakdown is the per-pair slice of the report.
type PairBreakdown struct {
	Pair         string
	Trades       int
	TotalProfit  float64
	AvgProfitPct float64
}

// Analyze computes a performance report from closed trades. Open trades and
// trades without cached profit figures are skipped.
func Analyze(trades []*domain.Trade) *Report {
	report := &Report{}

	type pairAcc struct {
		trades int
		profit float64
		pctSum float64
	}
	perPair := make(map[string]*pairAcc)

	var pctSum float64
	var durationSum time.Duration
	for _, t := range trades {
		if t.IsOpen || t.CloseProfit == nil || t.CloseProfitPct == nil {
			continue
		}
		report.TotalTrades++
		report.TotalProfit += *t.CloseProfit
		pctSum += *t.CloseProfitPct
		if *t.CloseProfit >= 0 {
			report.WinningTrades++
		} else {
			report.LosingTrades++
		}
		if t.CloseDate != nil {
			durationSum += t.CloseDate.Sub(t.OpenDate)
		}

		acc := perPair[t.Pair]
		if acc == nil {
			acc = &pairAcc{}
			perPair[t.Pair] = acc
		}
		acc.trades++
		acc.profit += *t.CloseProfit
		acc.pctSum += *t.CloseProfitPct
	}

	if report.TotalTrades == 0 {
		return report
	}
	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades)
	report.AvgProfitPct = pctSum / float64(report.TotalTrades)
	report.AvgDuration = durationSum / time.Duration(report.TotalTrades)

	for pair, acc := range perPair {
		report.Pairs = append(report.Pairs, PairBreakdown{
			Pair:         pair,
			Trades:       acc.trades,
			TotalProfit:  acc.profit,
			AvgProfitPct: acc.pctSum / float64(acc.trades),
		})
	}
	sort.Slice(report.Pairs, func(i, j int) bool {
		return report.Pairs[i].AvgProfitPct > report.Pairs[j].AvgProfitPct
	})
	return report
}
