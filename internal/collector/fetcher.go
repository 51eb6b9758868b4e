package collector

import (
	"context"

	"CryptoPulse/internal/model"
)

// MarketSource defines the interface for fetching coin market data.
type MarketSource interface {
	Global(ctx context.Context) (model.GlobalMetrics, error)
	Markets(ctx context.Context, ids []string) ([]model.CoinSnapshot, []model.Skip, error)
	TopMarkets(ctx context.Context, n int) ([]model.CoinSnapshot, []model.Skip, error)
	History(ctx context.Context, id string, days int) ([]model.HistoryPoint, []model.Skip, error)
	SimplePrices(ctx context.Context, ids []string) (map[string]float64, error)
	Name() string
}

// SentimentSource defines the interface for fetching the Fear & Greed index.
type SentimentSource interface {
	Index(ctx context.Context, days int) ([]model.SentimentPoint, []model.Skip, error)
	Name() string
}
