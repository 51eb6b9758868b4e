package calculator

import (
	"math"

	"CryptoPulse/internal/model"
)

const (
	shortWindow = 7
	longWindow  = 30
	rsiPeriod   = 14
)

// WarmupDays is how many extra leading days a series needs so every kept
// point has a full long-window average.
const WarmupDays = longWindow

// Returns computes the percent change between consecutive values. The first
// entry, and any entry whose predecessor is missing or zero, is NaN.
func Returns(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 || math.IsNaN(values[i]) || math.IsNaN(values[i-1]) || values[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (values[i] - values[i-1]) / values[i-1] * 100
	}
	return out
}

// RollingStd returns the trailing sample standard deviation over window.
// Positions with fewer than two present values in the window are NaN.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		w := present(values[start : i+1])
		if len(w) < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := 0.0
		for _, v := range w {
			mean += v
		}
		mean /= float64(len(w))
		ss := 0.0
		for _, v := range w {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(len(w)-1))
	}
	return out
}

// Round rounds v to dp decimal places, passing NaN through.
func Round(v float64, dp int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(dp))
	return math.Round(v*p) / p
}

// Decorate fills DailyReturn, MA7, MA30 and Volatility7 on an ascending
// series and rounds prices and indicators for presentation. The input is
// not modified.
func Decorate(points []model.HistoryPoint) []model.HistoryPoint {
	out := make([]model.HistoryPoint, len(points))
	copy(out, points)

	prices := closes(out)
	returns := Returns(prices)
	ma7 := RollingMean(prices, shortWindow)
	ma30 := RollingMean(prices, longWindow)
	vol := RollingStd(returns, shortWindow)

	for i := range out {
		out[i].Price = Round(out[i].Price, 4)
		out[i].DailyReturn = Round(returns[i], 3)
		out[i].MA7 = Round(ma7[i], 4)
		out[i].MA30 = Round(ma30[i], 4)
		out[i].Volatility7 = Round(vol[i], 3)
	}
	return out
}

// Trim keeps the last days points.
func Trim(points []model.HistoryPoint, days int) []model.HistoryPoint {
	if days >= 0 && len(points) > days {
		return points[len(points)-days:]
	}
	return points
}

// Summarize condenses a decorated series into dashboard figures. Figures
// that cannot be computed are NaN.
func Summarize(h model.CoinHistory) model.HistorySummary {
	s := model.HistorySummary{
		Symbol:    h.Coin.Symbol,
		Last:      math.NaN(),
		Change:    math.NaN(),
		High:      math.NaN(),
		Low:       math.NaN(),
		Position:  math.NaN(),
		RSI14:     math.NaN(),
		Volatile7: math.NaN(),
	}
	if len(h.Points) == 0 {
		return s
	}
	prices := closes(h.Points)
	last := h.Points[len(h.Points)-1]
	s.Last = last.Price
	s.Volatile7 = last.Volatility7

	if first := prices[0]; first != 0 && !math.IsNaN(first) && !math.IsNaN(s.Last) {
		s.Change = Round((s.Last-first)/first*100, 2)
	}
	if high, low, err := Range(prices); err == nil {
		s.High, s.Low = high, low
		if pos, err := Position(s.Last, high, low); err == nil && !math.IsNaN(s.Last) {
			s.Position = Round(pos, 3)
		}
	}
	if rsi, err := RSI(prices, rsiPeriod); err == nil {
		s.RSI14 = Round(rsi, 1)
	}
	return s
}

func closes(points []model.HistoryPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}
