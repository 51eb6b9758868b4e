package calculator

import (
	"math"
	"testing"
	"time"

	"CryptoPulse/internal/model"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("expected 4, got %f", got)
	}
	if _, err := SMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error for short series")
	}
	if _, err := SMA([]float64{1, 2}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestRollingMean_SkipsMissing(t *testing.T) {
	got := RollingMean([]float64{1, math.NaN(), 3, 5}, 2)
	want := []float64{1, 1, 3, 4}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Errorf("index %d: expected %f, got %f", i, want[i], got[i])
		}
	}
	if all := RollingMean([]float64{math.NaN()}, 3); !math.IsNaN(all[0]) {
		t.Errorf("expected NaN for window with no values, got %f", all[0])
	}
}

func TestRSI(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	if rsi, err := RSI(up, 14); err != nil || rsi != 100 {
		t.Errorf("expected 100 for rising series, got %f (%v)", rsi, err)
	}
	if rsi, err := RSI(down, 14); err != nil || rsi != 0 {
		t.Errorf("expected 0 for falling series, got %f (%v)", rsi, err)
	}
	if _, err := RSI(up[:14], 14); err == nil {
		t.Error("expected error when fewer than period+1 closes")
	}
}

func TestRangeAndPosition(t *testing.T) {
	high, low, err := Range([]float64{3, math.NaN(), 7, 1})
	if err != nil || high != 7 || low != 1 {
		t.Fatalf("expected 7/1, got %f/%f (%v)", high, low, err)
	}
	if _, _, err := Range([]float64{math.NaN()}); err == nil {
		t.Error("expected error for no present values")
	}

	cases := []struct {
		cur, high, low, want float64
	}{
		{5, 10, 0, 0.5},
		{15, 10, 0, 1},
		{-1, 10, 0, 0},
		{3, 3, 3, 0.5},
	}
	for _, c := range cases {
		got, err := Position(c.cur, c.high, c.low)
		if err != nil || !near(got, c.want) {
			t.Errorf("Position(%v, %v, %v): expected %v, got %v (%v)", c.cur, c.high, c.low, c.want, got, err)
		}
	}
	if _, err := Position(1, 0, 10); err == nil {
		t.Error("expected error when high < low")
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, math.NaN(), 99})
	if !math.IsNaN(got[0]) || !near(got[1], 10) || !math.IsNaN(got[2]) || !math.IsNaN(got[3]) {
		t.Errorf("unexpected returns: %v", got)
	}
}

func TestRollingStd(t *testing.T) {
	got := RollingStd([]float64{1, 2, 3}, 2)
	if !math.IsNaN(got[0]) {
		t.Errorf("expected NaN with a single value, got %f", got[0])
	}
	for _, v := range got[1:] {
		if !near(v, math.Sqrt(0.5)) {
			t.Errorf("expected %f, got %f", math.Sqrt(0.5), v)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.23456, 3); got != 1.235 {
		t.Errorf("expected 1.235, got %f", got)
	}
	if got := Round(math.NaN(), 2); !math.IsNaN(got) {
		t.Errorf("expected NaN passthrough, got %f", got)
	}
}

func series(n int) []model.HistoryPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]model.HistoryPoint, n)
	for i := range pts {
		pts[i] = model.HistoryPoint{Date: start.AddDate(0, 0, i), Price: float64(100 + i)}
	}
	return pts
}

func TestDecorateAndTrim(t *testing.T) {
	in := series(40)
	out := Trim(Decorate(in), 30)

	if len(out) != 30 {
		t.Fatalf("expected 30 points, got %d", len(out))
	}
	if !out[0].Date.Equal(in[10].Date) {
		t.Errorf("expected window to start at %s, got %s", in[10].Date, out[0].Date)
	}
	last := out[len(out)-1]
	if last.MA7 != 136 {
		t.Errorf("expected MA7 136, got %f", last.MA7)
	}
	if last.MA30 != 124.5 {
		t.Errorf("expected MA30 124.5, got %f", last.MA30)
	}
	if last.DailyReturn != 0.725 {
		t.Errorf("expected daily return 0.725, got %f", last.DailyReturn)
	}
	if math.IsNaN(out[0].DailyReturn) {
		t.Error("warm-up should give the first kept point a return")
	}
	if in[0].MA7 != 0 {
		t.Error("Decorate must not modify its input")
	}
}

func TestTrimShortSeries(t *testing.T) {
	if got := Trim(series(5), 30); len(got) != 5 {
		t.Errorf("expected 5 points, got %d", len(got))
	}
}

func TestSummarize(t *testing.T) {
	h := model.CoinHistory{
		Coin:   model.HistoryCoin{Symbol: "BTC", ID: "bitcoin"},
		Points: Trim(Decorate(series(40)), 30),
	}
	s := Summarize(h)
	if s.Symbol != "BTC" || s.Last != 139 {
		t.Errorf("unexpected symbol/last: %s %f", s.Symbol, s.Last)
	}
	if s.Change != 26.36 {
		t.Errorf("expected change 26.36, got %f", s.Change)
	}
	if s.High != 139 || s.Low != 110 || s.Position != 1 {
		t.Errorf("unexpected range: high=%f low=%f pos=%f", s.High, s.Low, s.Position)
	}
	if s.RSI14 != 100 {
		t.Errorf("expected RSI 100, got %f", s.RSI14)
	}

	empty := Summarize(model.CoinHistory{Coin: model.HistoryCoin{Symbol: "SUI"}})
	if !math.IsNaN(empty.Last) || !math.IsNaN(empty.RSI14) {
		t.Error("expected NaN figures for an empty series")
	}
}
