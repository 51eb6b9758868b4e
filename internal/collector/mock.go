package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CryptoPulse/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
// It implements both MarketSource and SentimentSource.
type MockSource struct {
	GlobalData model.GlobalMetrics
	GlobalErr  error
	// Coins maps a known coin id to its snapshot. Unknown ids are not
	// returned by Markets, the way the live API behaves.
	Coins        map[string]model.CoinSnapshot
	MarketsErr   error
	HistoryData  map[string][]model.HistoryPoint
	HistoryErr   map[string]error
	SentimentErr error
	Prices       map[string]float64
	PricesErr    error

	// BasePrice drives generated history when HistoryData has no entry.
	BasePrice float64
}

var (
	_ MarketSource    = (*MockSource)(nil)
	_ SentimentSource = (*MockSource)(nil)
)

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Global(_ context.Context) (model.GlobalMetrics, error) {
	if m.GlobalErr != nil {
		return model.GlobalMetrics{}, m.GlobalErr
	}
	g := m.GlobalData
	g.Available = true
	if g.FetchedAt.IsZero() {
		g.FetchedAt = time.Now().UTC()
	}
	return g, nil
}

func (m *MockSource) Markets(_ context.Context, ids []string) ([]model.CoinSnapshot, []model.Skip, error) {
	if m.MarketsErr != nil {
		var skips []model.Skip
		for _, id := range ids {
			skips = append(skips, model.Skip{Kind: model.ResourceCoin, ID: id, Reason: m.MarketsErr.Error()})
		}
		return nil, skips, nil
	}
	var out []model.CoinSnapshot
	for _, id := range ids {
		if s, ok := m.Coins[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil, nil
}

func (m *MockSource) TopMarkets(_ context.Context, n int) ([]model.CoinSnapshot, []model.Skip, error) {
	if m.MarketsErr != nil {
		return nil, nil, m.MarketsErr
	}
	var out []model.CoinSnapshot
	for _, s := range m.Coins {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil, nil
}

func (m *MockSource) History(_ context.Context, id string, days int) ([]model.HistoryPoint, []model.Skip, error) {
	if err := m.HistoryErr[id]; err != nil {
		return nil, nil, err
	}
	if pts, ok := m.HistoryData[id]; ok {
		return pts, nil, nil
	}
	if m.BasePrice == 0 {
		return nil, nil, fmt.Errorf("mock: no history for %s", id)
	}
	return generateMockHistory(id, m.BasePrice, days), nil, nil
}

func (m *MockSource) SimplePrices(_ context.Context, ids []string) (map[string]float64, error) {
	if m.PricesErr != nil {
		return nil, m.PricesErr
	}
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if p, ok := m.Prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MockSource) Index(_ context.Context, days int) ([]model.SentimentPoint, []model.Skip, error) {
	if m.SentimentErr != nil {
		return nil, nil, m.SentimentErr
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]model.SentimentPoint, days)
	for i := 0; i < days; i++ {
		score := float64(20 + (i*7)%60)
		out[i] = model.SentimentPoint{
			Date:           today.AddDate(0, 0, -(days - 1 - i)),
			Score:          score,
			Classification: model.Classify(score),
		}
	}
	return out, nil, nil
}

// generateMockHistory returns one more point than days, as the live
// endpoint does, so trimming is exercised.
func generateMockHistory(id string, basePrice float64, days int) []model.HistoryPoint {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	n := days + 1
	pts := make([]model.HistoryPoint, n)
	for i := 0; i < n; i++ {
		p := basePrice * (1 + float64(i-n/2)*0.001)
		pts[i] = model.HistoryPoint{
			CoinID:    id,
			Date:      today.AddDate(0, 0, -(n - 1 - i)),
			Price:     p,
			Volume:    1000000,
			MarketCap: p * 1000,
		}
	}
	return pts
}

// NewMockSource returns a MockSource preloaded with a handful of large caps,
// for running the pipeline without network access.
func NewMockSource() *MockSource {
	now := time.Now().UTC()
	coin := func(id, symbol, name string, rank int, price, supply float64) model.CoinSnapshot {
		return model.CoinSnapshot{
			ID: id, Symbol: symbol, Name: name, Rank: rank,
			Price: price, MarketCap: price * supply, Volume24h: price * supply * 0.03,
			Dominance: model.Missing, Change24h: 1.5, Change7d: -2.1, Change30d: 6.4, Change1y: 48,
			CirculatingSupply: supply, TotalSupply: supply, MaxSupply: model.Missing,
			ATH: price * 1.3, ATHDate: now.AddDate(0, -4, 0), ATL: price * 0.01, ATLDate: now.AddDate(-6, 0, 0),
		}
	}
	coins := []model.CoinSnapshot{
		coin("bitcoin", "BTC", "Bitcoin", 1, 65000, 19.7e6),
		coin("ethereum", "ETH", "Ethereum", 2, 3200, 120e6),
		coin("binancecoin", "BNB", "BNB", 4, 580, 146e6),
		coin("solana", "SOL", "Solana", 5, 150, 465e6),
		coin("sui", "SUI", "Sui", 20, 1.8, 2.8e9),
	}
	m := &MockSource{
		GlobalData: model.GlobalMetrics{
			TotalMarketCap: 2.4e12, TotalVolume: 9e10, BTCDominance: 53.4, ETHDominance: 16,
			ActiveCryptocurrency: 17000, Markets: 1200, MarketCapChange24h: 0.8,
		},
		Coins:     make(map[string]model.CoinSnapshot, len(coins)),
		Prices:    make(map[string]float64, len(coins)),
		BasePrice: 100,
	}
	for _, c := range coins {
		m.Coins[c.ID] = c
		m.Prices[c.ID] = c.Price
	}
	return m
}
