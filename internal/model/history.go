package model

import "time"

// HistoryPoint is one trailing daily bar for a history coin, decorated with
// derived indicators.
type HistoryPoint struct {
	CoinID      string
	Symbol      string
	Date        time.Time // UTC midnight
	Price       float64
	Volume      float64
	MarketCap   float64
	DailyReturn float64 // percent
	MA7         float64
	MA30        float64
	Volatility7 float64
}

// HistoryCoin pairs a display symbol with its CoinGecko id.
type HistoryCoin struct {
	Symbol string `yaml:"symbol"`
	ID     string `yaml:"id"`
}

// CoinHistory is the ordered series for one coin.
type CoinHistory struct {
	Coin   HistoryCoin
	Points []HistoryPoint
}

// HistorySummary condenses one coin's window for the dashboard.
type HistorySummary struct {
	Symbol    string
	Last      float64
	Change    float64 // percent over the window
	High      float64
	Low       float64
	Position  float64 // 0..1 within [Low, High]
	RSI14     float64
	Volatile7 float64 // latest 7-day volatility
}
