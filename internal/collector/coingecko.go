package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"CryptoPulse/internal/model"
)

// maxPerPage is the largest page /coins/markets serves.
const maxPerPage = 250

// CoinGecko implements MarketSource against the CoinGecko v3 REST API.
type CoinGecko struct {
	Client     *Client
	BaseURL    string
	VsCurrency string
}

var _ MarketSource = (*CoinGecko)(nil)

// NewCoinGecko creates a CoinGecko source. apiKeyType selects the demo or
// pro header when an API key is set.
func NewCoinGecko(client *Client, baseURL, vsCurrency, apiKey, apiKeyType string) *CoinGecko {
	if apiKey != "" {
		header := "x-cg-demo-api-key"
		if apiKeyType == "pro" {
			header = "x-cg-pro-api-key"
		}
		client.Header.Set(header, apiKey)
	}
	return &CoinGecko{
		Client:     client,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		VsCurrency: strings.ToLower(vsCurrency),
	}
}

func (g *CoinGecko) Name() string { return "coingecko" }

type cgGlobal struct {
	Data *struct {
		ActiveCryptocurrencies       *float64           `json:"active_cryptocurrencies"`
		Markets                      *float64           `json:"markets"`
		TotalMarketCap               map[string]float64 `json:"total_market_cap"`
		TotalVolume                  map[string]float64 `json:"total_volume"`
		MarketCapPercentage          map[string]float64 `json:"market_cap_percentage"`
		MarketCapChangePercentage24h *float64           `json:"market_cap_change_percentage_24h_usd"`
	} `json:"data"`
}

// Global fetches whole-market metrics from /global.
func (g *CoinGecko) Global(ctx context.Context) (model.GlobalMetrics, error) {
	var resp cgGlobal
	if err := g.Client.GetJSON(ctx, g.BaseURL+"/global", nil, &resp); err != nil {
		return model.GlobalMetrics{}, fmt.Errorf("coingecko global: %w", err)
	}
	if resp.Data == nil {
		return model.GlobalMetrics{}, errors.New("coingecko global: response has no data")
	}
	d := resp.Data
	return model.GlobalMetrics{
		FetchedAt:            time.Now().UTC(),
		TotalMarketCap:       lookup(d.TotalMarketCap, g.VsCurrency),
		TotalVolume:          lookup(d.TotalVolume, g.VsCurrency),
		BTCDominance:         lookup(d.MarketCapPercentage, "btc"),
		ETHDominance:         lookup(d.MarketCapPercentage, "eth"),
		ActiveCryptocurrency: model.Float(d.ActiveCryptocurrencies),
		Markets:              model.Float(d.Markets),
		MarketCapChange24h:   model.Float(d.MarketCapChangePercentage24h),
		Available:            true,
	}, nil
}

type cgMarket struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Rank              *int     `json:"market_cap_rank"`
	CurrentPrice      *float64 `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	TotalVolume       *float64 `json:"total_volume"`
	Change24h         *float64 `json:"price_change_percentage_24h"`
	Change7d          *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d         *float64 `json:"price_change_percentage_30d_in_currency"`
	Change1y          *float64 `json:"price_change_percentage_1y_in_currency"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"`
	ATH               *float64 `json:"ath"`
	ATHDate           string   `json:"ath_date"`
	ATL               *float64 `json:"atl"`
	ATLDate           string   `json:"atl_date"`
}

// Markets fetches snapshots for the given coin ids. Ids are requested in
// pages of 250; a failed page yields one skip per coin in it. Rows without
// an id are skipped as malformed. Coins the API did not return are left for
// the caller to detect.
func (g *CoinGecko) Markets(ctx context.Context, ids []string) ([]model.CoinSnapshot, []model.Skip, error) {
	var (
		snaps []model.CoinSnapshot
		skips []model.Skip
	)
	for start := 0; start < len(ids); start += maxPerPage {
		end := start + maxPerPage
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		q := g.marketsQuery(len(chunk))
		q.Set("ids", strings.Join(chunk, ","))

		rows, err := g.fetchMarkets(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			for _, id := range chunk {
				skips = append(skips, model.Skip{Kind: model.ResourceCoin, ID: id, Reason: err.Error()})
			}
			continue
		}
		s, k := normalizeMarkets(rows)
		snaps = append(snaps, s...)
		skips = append(skips, k...)
	}
	return snaps, skips, nil
}

// TopMarkets fetches the top n coins by market capitalization.
func (g *CoinGecko) TopMarkets(ctx context.Context, n int) ([]model.CoinSnapshot, []model.Skip, error) {
	if n > maxPerPage {
		n = maxPerPage
	}
	rows, err := g.fetchMarkets(ctx, g.marketsQuery(n))
	if err != nil {
		return nil, nil, err
	}
	snaps, skips := normalizeMarkets(rows)
	return snaps, skips, nil
}

func (g *CoinGecko) marketsQuery(perPage int) url.Values {
	q := url.Values{}
	q.Set("vs_currency", g.VsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h,7d,30d,1y")
	return q
}

func (g *CoinGecko) fetchMarkets(ctx context.Context, q url.Values) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := g.Client.GetJSON(ctx, g.BaseURL+"/coins/markets", q, &rows); err != nil {
		return nil, fmt.Errorf("coingecko markets: %w", err)
	}
	return rows, nil
}

// normalizeMarkets decodes each row on its own so that one malformed row
// becomes a skip instead of failing the whole page.
func normalizeMarkets(rows []json.RawMessage) ([]model.CoinSnapshot, []model.Skip) {
	snaps := make([]model.CoinSnapshot, 0, len(rows))
	var skips []model.Skip
	for i, raw := range rows {
		var r cgMarket
		if err := json.Unmarshal(raw, &r); err != nil {
			skips = append(skips, model.Skip{
				Kind:   model.ResourceCoin,
				ID:     rowID(raw, i),
				Reason: fmt.Sprintf("malformed market row: %v", err),
			})
			continue
		}
		if r.ID == "" {
			skips = append(skips, model.Skip{
				Kind:   model.ResourceCoin,
				ID:     fmt.Sprintf("row %d", i+1),
				Reason: "malformed market row: missing id",
			})
			continue
		}
		s := model.CoinSnapshot{
			ID:                r.ID,
			Symbol:            strings.ToUpper(r.Symbol),
			Name:              r.Name,
			Price:             model.Float(r.CurrentPrice),
			MarketCap:         model.Float(r.MarketCap),
			Volume24h:         model.Float(r.TotalVolume),
			Dominance:         model.Missing,
			Change24h:         model.Float(r.Change24h),
			Change7d:          model.Float(r.Change7d),
			Change30d:         model.Float(r.Change30d),
			Change1y:          model.Float(r.Change1y),
			CirculatingSupply: model.Float(r.CirculatingSupply),
			TotalSupply:       model.Float(r.TotalSupply),
			MaxSupply:         model.Float(r.MaxSupply),
			ATH:               model.Float(r.ATH),
			ATHDate:           parseISODate(r.ATHDate),
			ATL:               model.Float(r.ATL),
			ATLDate:           parseISODate(r.ATLDate),
		}
		if r.Rank != nil {
			s.Rank = *r.Rank
		}
		snaps = append(snaps, s)
	}
	return snaps, skips
}

type cgChart struct {
	Prices       [][]*float64 `json:"prices"`
	MarketCaps   [][]*float64 `json:"market_caps"`
	TotalVolumes [][]*float64 `json:"total_volumes"`
}

// History fetches daily price, volume and market cap for one coin. The
// result is ascending by day, holds at most one point per UTC day (the
// latest reading wins) and at most days points. Points without a timestamp
// are dropped and reported as skips.
func (g *CoinGecko) History(ctx context.Context, id string, days int) ([]model.HistoryPoint, []model.Skip, error) {
	q := url.Values{}
	q.Set("vs_currency", g.VsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var chart cgChart
	endpoint := g.BaseURL + "/coins/" + url.PathEscape(id) + "/market_chart"
	if err := g.Client.GetJSON(ctx, endpoint, q, &chart); err != nil {
		return nil, nil, fmt.Errorf("coingecko history %s: %w", id, err)
	}
	if len(chart.Prices) == 0 {
		return nil, nil, fmt.Errorf("coingecko history %s: no price data", id)
	}

	n := len(chart.Prices)
	if len(chart.TotalVolumes) < n {
		n = len(chart.TotalVolumes)
	}
	if len(chart.MarketCaps) < n {
		n = len(chart.MarketCaps)
	}

	byDay := make(map[time.Time]model.HistoryPoint, n)
	var skips []model.Skip
	for i := 0; i < n; i++ {
		ts, price, ok := pair(chart.Prices[i])
		if !ok {
			skips = append(skips, model.Skip{Kind: model.ResourceHistory, ID: id,
				Reason: fmt.Sprintf("malformed point %d: missing timestamp", i)})
			continue
		}
		_, vol, _ := pair(chart.TotalVolumes[i])
		_, mcap, _ := pair(chart.MarketCaps[i])
		day := time.UnixMilli(int64(ts)).UTC().Truncate(24 * time.Hour)
		byDay[day] = model.HistoryPoint{
			CoinID:    id,
			Date:      day,
			Price:     price,
			Volume:    vol,
			MarketCap: mcap,
		}
	}
	if len(byDay) == 0 {
		return nil, skips, fmt.Errorf("coingecko history %s: no usable points", id)
	}

	points := make([]model.HistoryPoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, skips, nil
}

// SimplePrices fetches current prices for ids. Coins the API does not know
// are absent from the result.
func (g *CoinGecko) SimplePrices(ctx context.Context, ids []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", g.VsCurrency)

	var resp map[string]map[string]*float64
	if err := g.Client.GetJSON(ctx, g.BaseURL+"/simple/price", q, &resp); err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}
	out := make(map[string]float64, len(resp))
	for id, quotes := range resp {
		if p := quotes[g.VsCurrency]; p != nil {
			out[id] = *p
		}
	}
	return out, nil
}

// pair reads a [timestamp, value] element. ok is false when the timestamp
// is absent; a null value maps to model.Missing.
// rowID returns the coin id of a row that failed to decode, or its position.
func rowID(raw json.RawMessage, i int) string {
	var r struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &r) == nil && r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("row %d", i+1)
}

func pair(v []*float64) (ts, value float64, ok bool) {
	if len(v) < 2 || v[0] == nil {
		return 0, model.Missing, false
	}
	return *v[0], model.Float(v[1]), true
}

func lookup(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return model.Missing
}

func parseISODate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
