package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"CryptoPulse/internal/model"
)

// FearGreed implements SentimentSource against the Alternative.me API.
type FearGreed struct {
	Client  *Client
	BaseURL string
}

var _ SentimentSource = (*FearGreed)(nil)

// NewFearGreed creates a Fear & Greed source.
func NewFearGreed(client *Client, baseURL string) *FearGreed {
	return &FearGreed{Client: client, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (f *FearGreed) Name() string { return "alternative.me" }

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

// Index fetches the last days readings, oldest first. Rows with an
// unparseable timestamp or value are dropped and reported as skips.
func (f *FearGreed) Index(ctx context.Context, days int) ([]model.SentimentPoint, []model.Skip, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(days))
	q.Set("format", "json")

	var resp fngResponse
	if err := f.Client.GetJSON(ctx, f.BaseURL+"/fng/", q, &resp); err != nil {
		return nil, nil, fmt.Errorf("fear & greed: %w", err)
	}
	if resp.Metadata.Error != nil && *resp.Metadata.Error != "" {
		return nil, nil, fmt.Errorf("fear & greed: %s", *resp.Metadata.Error)
	}

	points := make([]model.SentimentPoint, 0, len(resp.Data))
	var skips []model.Skip
	for _, d := range resp.Data {
		secs, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil {
			skips = append(skips, model.Skip{Kind: model.ResourceSentiment, ID: d.Timestamp,
				Reason: fmt.Sprintf("malformed reading: bad timestamp %q", d.Timestamp)})
			continue
		}
		day := time.Unix(secs, 0).UTC().Truncate(24 * time.Hour)
		score, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			skips = append(skips, model.Skip{Kind: model.ResourceSentiment, ID: day.Format(time.DateOnly),
				Reason: fmt.Sprintf("malformed reading: bad value %q", d.Value)})
			continue
		}
		class := d.Classification
		if class == "" {
			class = model.Classify(score)
		}
		points = append(points, model.SentimentPoint{Date: day, Score: score, Classification: class})
	}
	if len(points) == 0 {
		return nil, skips, fmt.Errorf("fear & greed: no usable readings")
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return points, skips, nil
}
