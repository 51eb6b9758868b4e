package model

import (
	"math"
	"time"
)

// Missing is the sentinel for a numeric field the upstream API omitted.
var Missing = math.NaN()

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Float returns the value behind p, or Missing when p is nil.
func Float(p *float64) float64 {
	if p == nil {
		return Missing
	}
	return *p
}

// CoinSnapshot is one point-in-time market reading for a tracked coin.
type CoinSnapshot struct {
	ID                string
	Symbol            string
	Name              string
	Rank              int
	Price             float64
	MarketCap         float64
	Volume24h         float64
	Dominance         float64 // % of total crypto market cap
	Change24h         float64
	Change7d          float64
	Change30d         float64
	Change1y          float64
	CirculatingSupply float64
	TotalSupply       float64
	MaxSupply         float64
	ATH               float64
	ATHDate           time.Time
	ATL               float64
	ATLDate           time.Time
}

// GlobalMetrics is the whole-market snapshot. Available is false when the
// endpoint could not be read; the row is still written so the sheet always
// carries exactly one row per run.
type GlobalMetrics struct {
	FetchedAt            time.Time
	TotalMarketCap       float64
	TotalVolume          float64
	BTCDominance         float64
	ETHDominance         float64
	ActiveCryptocurrency float64
	Markets              float64
	MarketCapChange24h   float64
	Available            bool
}

// UnavailableGlobalMetrics returns the placeholder row for a failed fetch.
func UnavailableGlobalMetrics(at time.Time) GlobalMetrics {
	return GlobalMetrics{
		FetchedAt:            at,
		TotalMarketCap:       Missing,
		TotalVolume:          Missing,
		BTCDominance:         Missing,
		ETHDominance:         Missing,
		ActiveCryptocurrency: Missing,
		Markets:              Missing,
		MarketCapChange24h:   Missing,
	}
}

// PriceQuote is the current price of a portfolio coin.
type PriceQuote struct {
	CoinID string
	Price  float64
}
