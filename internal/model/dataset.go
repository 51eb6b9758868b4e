package model

import (
	"fmt"
	"time"
)

// ResourceKind names the upstream resource a skip belongs to.
type ResourceKind string

const (
	ResourceGlobal    ResourceKind = "global"
	ResourceMarkets   ResourceKind = "markets"
	ResourceCoin      ResourceKind = "coin"
	ResourceHistory   ResourceKind = "history"
	ResourceSentiment ResourceKind = "sentiment"
	ResourcePrices    ResourceKind = "prices"
)

// Skip records a resource or row dropped during a run.
type Skip struct {
	Kind   ResourceKind
	ID     string
	Reason string
}

func (s Skip) String() string {
	if s.ID == "" {
		return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
	}
	return fmt.Sprintf("%s %s: %s", s.Kind, s.ID, s.Reason)
}

// Dataset is everything one fetch cycle produced.
type Dataset struct {
	FetchedAt   time.Time
	Global      GlobalMetrics
	Snapshots   []CoinSnapshot
	Histories   []CoinHistory
	HistoryDays int
	Sentiment   []SentimentPoint
	Prices      []PriceQuote
	Skips       []Skip
}

// AddSkip appends a skip record.
func (d *Dataset) AddSkip(kind ResourceKind, id, reason string) {
	d.Skips = append(d.Skips, Skip{Kind: kind, ID: id, Reason: reason})
}

// HistoryRows returns the total number of history rows across coins.
func (d *Dataset) HistoryRows() int {
	n := 0
	for _, h := range d.Histories {
		n += len(h.Points)
	}
	return n
}
