package statistics

import (
	"math"
	"sort"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/order"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Analyze derives round-trip trades from the fill log and computes the full
// performance summary. It is a pure function of its input, identical inputs
// produce identical metrics.
func Analyze(in *Input) (*Metrics, error) {
	if in == nil {
		return nil, errNilInput
	}
	if in.Quote.IsEmpty() {
		return nil, errNoQuoteCurrency
	}
	if !in.EndTime.IsZero() && in.EndTime.Before(in.StartTime) {
		return nil, errInvalidPeriod
	}
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	trades := deriveTrades(in.Fills, logger)
	m := &Metrics{
		Trades:       trades,
		TotalTrades:  int64(len(trades)),
		InitialValue: portfolioValue(in.InitialBalances, in.StartPrices, in.Quote, logger),
		FinalValue:   portfolioValue(in.FinalBalances, in.EndPrices, in.Quote, logger),
	}
	for x := range in.Fills {
		m.TotalFees = m.TotalFees.Add(in.Fills[x].Fee)
	}

	summarizeTrades(m, trades)
	m.NetPnL = m.TotalPnL.Sub(m.TotalFees)
	m.MaxDrawdown = calculateMaxDrawdown(m.InitialValue, trades)

	if m.InitialValue.IsPositive() {
		m.ReturnPercent = m.FinalValue.Sub(m.InitialValue).
			Div(m.InitialValue).
			Mul(hundred)
	} else if len(in.InitialBalances) > 0 {
		logger.Warn("initial portfolio value is not positive, return metrics zeroed")
	}
	m.AnnualizedReturn = annualizedReturn(m.InitialValue, m.FinalValue, in)

	returns := tradeReturns(m.InitialValue, trades)
	m.SharpeRatio = sharpeRatio(returns)
	m.SortinoRatio = sortinoRatio(returns)

	buyAndHold := portfolioValue(in.InitialBalances, in.EndPrices, in.Quote, logger)
	if m.InitialValue.IsPositive() {
		m.BuyAndHoldReturn = buyAndHold.Sub(m.InitialValue).
			Div(m.InitialValue).
			Mul(hundred)
	}
	m.ExcessReturn = m.ReturnPercent.Sub(m.BuyAndHoldReturn)
	return m, nil
}

// deriveTrades walks the fill log in chronological order maintaining a
// weighted-average position per pair. A BUY extends the position, a SELL
// realizes a Trade against it. A SELL exceeding the open position realizes
// only the covered portion, the excess is logged and dropped.
func deriveTrades(fills []order.Fill, logger *zap.Logger) []Trade {
	if len(fills) == 0 {
		return nil
	}
	ordered := make([]order.Fill, len(fills))
	copy(ordered, fills)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	positions := make(map[currency.Pair]*position)
	var trades []Trade
	for x := range ordered {
		f := &ordered[x]
		p := f.Pair.Upper()
		pos, ok := positions[p]
		if f.Side == order.Buy {
			if !ok {
				positions[p] = &position{
					amount:   f.Amount,
					avgPrice: f.Price,
					fees:     f.Fee,
				}
				continue
			}
			total := pos.amount.Add(f.Amount)
			pos.avgPrice = pos.avgPrice.Mul(pos.amount).
				Add(f.Price.Mul(f.Amount)).
				Div(total)
			pos.amount = total
			pos.fees = pos.fees.Add(f.Fee)
			continue
		}

		if !ok || !pos.amount.IsPositive() {
			logger.Warn("sell fill with no open position, skipping",
				zap.String("order-id", f.OrderID),
				zap.String("pair", p.String()),
				zap.String("amount", f.Amount.String()))
			continue
		}

		matched := f.Amount
		exitFee := f.Fee
		if matched.GreaterThan(pos.amount) {
			logger.Warn("sell fill exceeds open position, clamping",
				zap.String("order-id", f.OrderID),
				zap.String("pair", p.String()),
				zap.String("excess", matched.Sub(pos.amount).String()))
			exitFee = f.Fee.Mul(pos.amount).Div(matched)
			matched = pos.amount
		}

		entryFees := pos.fees
		if !matched.Equal(pos.amount) {
			entryFees = pos.fees.Mul(matched).Div(pos.amount)
		}

		trades = append(trades, Trade{
			Pair:       p,
			EntryPrice: pos.avgPrice,
			ExitPrice:  f.Price,
			Amount:     matched,
			PnL:        f.Price.Sub(pos.avgPrice).Mul(matched),
			Fees:       entryFees.Add(exitFee),
			Volume:     pos.avgPrice.Add(f.Price).Mul(matched),
			Timestamp:  f.Timestamp,
		})

		pos.amount = pos.amount.Sub(matched)
		pos.fees = pos.fees.Sub(entryFees)
		if !pos.amount.IsPositive() {
			delete(positions, p)
		}
	}
	return trades
}

// summarizeTrades fills the win/loss aggregates. Classification uses the
// gross trade PnL, fees are reported separately.
func summarizeTrades(m *Metrics, trades []Trade) {
	var grossProfit, grossLoss decimal.Decimal
	for x := range trades {
		pnl := trades[x].PnL
		m.TotalPnL = m.TotalPnL.Add(pnl)
		switch {
		case pnl.IsPositive():
			m.WinningTrades++
			grossProfit = grossProfit.Add(pnl)
			if pnl.GreaterThan(m.LargestWin) {
				m.LargestWin = pnl
			}
		case pnl.IsNegative():
			m.LosingTrades++
			grossLoss = grossLoss.Add(pnl.Abs())
			if pnl.Abs().GreaterThan(m.LargestLoss) {
				m.LargestLoss = pnl.Abs()
			}
		default:
			m.BreakEvenTrades++
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromInt(m.WinningTrades).
			Div(decimal.NewFromInt(m.TotalTrades)).
			Mul(hundred)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit.Div(decimal.NewFromInt(m.WinningTrades))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss.Div(decimal.NewFromInt(m.LosingTrades))
	}
	switch {
	case grossLoss.IsPositive():
		m.ProfitFactor = Ratio(grossProfit.InexactFloat64() / grossLoss.InexactFloat64())
	case grossProfit.IsPositive():
		m.ProfitFactor = Ratio(math.Inf(1))
	}
}

// calculateMaxDrawdown walks the equity curve seeded with the initial
// portfolio value and applying each trade's net PnL in sequence, returning
// the largest percentage decline from a running peak.
func calculateMaxDrawdown(initial decimal.Decimal, trades []Trade) Drawdown {
	dd := Drawdown{Peak: initial, Trough: initial}
	equity := initial
	peak := initial
	for x := range trades {
		equity = equity.Add(trades[x].NetPnL())
		if equity.GreaterThan(peak) {
			peak = equity
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		percent := peak.Sub(equity).Div(peak).Mul(hundred)
		if percent.GreaterThan(dd.Percent) {
			dd = Drawdown{Peak: peak, Trough: equity, Percent: percent}
		}
	}
	return dd
}

// tradeReturns converts the trade sequence into per-trade returns against
// the equity held before each trade
func tradeReturns(initial decimal.Decimal, trades []Trade) []float64 {
	if len(trades) == 0 {
		return nil
	}
	returns := make([]float64, 0, len(trades))
	equity := initial
	for x := range trades {
		net := trades[x].NetPnL()
		if equity.IsPositive() {
			returns = append(returns, net.Div(equity).InexactFloat64())
		} else {
			returns = append(returns, 0)
		}
		equity = equity.Add(net)
	}
	return returns
}

// sharpeRatio returns the risk-adjusted excess return over the fixed
// risk-free rate. Fewer than two observations or zero dispersion yield zero.
func sharpeRatio(returns []float64) Ratio {
	if len(returns) <= 1 {
		return 0
	}
	excess := make([]float64, len(returns))
	for x := range returns {
		excess[x] = returns[x] - annualRiskFreeRate
	}
	stdDev := sampleStandardDeviation(excess)
	if stdDev == 0 {
		return 0
	}
	return Ratio((arithmeticMean(returns) - annualRiskFreeRate) / stdDev)
}

// sortinoRatio matches sharpeRatio except the denominator considers only
// the negative-return subset. No negative returns at all yields +Inf.
func sortinoRatio(returns []float64) Ratio {
	if len(returns) == 0 {
		return 0
	}
	var downside []float64
	for x := range returns {
		if returns[x] < 0 {
			downside = append(downside, returns[x])
		}
	}
	if len(downside) == 0 {
		return Ratio(math.Inf(1))
	}
	var squared float64
	for x := range downside {
		squared += downside[x] * downside[x]
	}
	deviation := math.Sqrt(squared / float64(len(downside)))
	if deviation == 0 {
		return 0
	}
	return Ratio((arithmeticMean(returns) - annualRiskFreeRate) / deviation)
}

func annualizedReturn(initial, final decimal.Decimal, in *Input) Ratio {
	if !initial.IsPositive() {
		return 0
	}
	years := in.EndTime.Sub(in.StartTime).Hours() / hoursPerYear
	if years <= 0 {
		return 0
	}
	growth := final.Div(initial).InexactFloat64()
	return Ratio(math.Pow(growth, 1/years) - 1)
}

// portfolioValue sums the quote balance with every other asset revalued at
// the supplied reference price. Assets without a price are skipped with a
// warning.
func portfolioValue(balances, prices map[currency.Code]decimal.Decimal, quote currency.Code, logger *zap.Logger) decimal.Decimal {
	var value decimal.Decimal
	for code, amount := range balances {
		if code.Equal(quote) {
			value = value.Add(amount)
			continue
		}
		price, ok := prices[code]
		if !ok {
			logger.Warn("no reference price for held asset, excluded from valuation",
				zap.String("code", code.String()))
			continue
		}
		value = value.Add(amount.Mul(price))
	}
	return value
}

func arithmeticMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for x := range values {
		sum += values[x]
	}
	return sum / float64(len(values))
}

func sampleStandardDeviation(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	mean := arithmeticMean(values)
	var combined float64
	for x := range values {
		diff := values[x] - mean
		combined += diff * diff
	}
	return math.Sqrt(combined / float64(len(values)-1))
}
