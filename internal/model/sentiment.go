package model

import "time"

// SentimentPoint is one daily Fear & Greed reading.
type SentimentPoint struct {
	Date           time.Time
	Score          float64
	Classification string
}

// Fear & Greed classifications, lowest band first.
const (
	ExtremeFear  = "Extreme Fear"
	Fear         = "Fear"
	Neutral      = "Neutral"
	Greed        = "Greed"
	ExtremeGreed = "Extreme Greed"
)

// Classify returns the Fear & Greed band for score: 0-24 extreme fear,
// 25-46 fear, 47-54 neutral, 55-75 greed, 76-100 extreme greed.
func Classify(score float64) string {
	switch {
	case score < 25:
		return ExtremeFear
	case score < 47:
		return Fear
	case score < 55:
		return Neutral
	case score < 76:
		return Greed
	default:
		return ExtremeGreed
	}
}
