package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_cap_rank":1,"current_price":65000,
   "market_cap":1300000000000,"total_volume":30000000000,"price_change_percentage_24h":1.2,
   "price_change_percentage_7d_in_currency":null,"price_change_percentage_30d_in_currency":4.1,
   "circulating_supply":19700000,"total_supply":21000000,"max_supply":21000000,
   "ath":73000,"ath_date":"2024-03-14T07:10:36.635Z","atl":67.81,"atl_date":"2013-07-06T00:00:00.000Z"},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","market_cap_rank":2,"current_price":3200,
   "market_cap":390000000000,"total_volume":15000000000,"max_supply":null},
  {"symbol":"???","name":"broken"}
]`

const globalBody = `{"data":{"active_cryptocurrencies":17000,"markets":1200,
  "total_market_cap":{"usd":2600000000000},"total_volume":{"usd":90000000000},
  "market_cap_percentage":{"btc":50,"eth":15},"market_cap_change_percentage_24h_usd":-1.5}}`

type route map[string]http.HandlerFunc

func newAPI(t *testing.T, routes route) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(s)) }
}

func TestCoinGeckoMarkets(t *testing.T) {
	var query string
	srv := newAPI(t, route{"/coins/markets": func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(marketsBody))
	}})
	cg := NewCoinGecko(newTestClient(), srv.URL, "USD", "", "")

	snaps, skips, err := cg.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Len(t, skips, 1)
	assert.Contains(t, skips[0].Reason, "missing id")
	assert.Contains(t, query, "vs_currency=usd")
	assert.Contains(t, query, "ids=bitcoin%2Cethereum")

	btc := snaps[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, 1, btc.Rank)
	assert.Equal(t, 65000.0, btc.Price)
	assert.True(t, model.IsMissing(btc.Change7d))
	assert.True(t, model.IsMissing(btc.Change1y))
	assert.Equal(t, time.Date(2024, 3, 14, 7, 10, 36, 635000000, time.UTC), btc.ATHDate)

	eth := snaps[1]
	assert.True(t, model.IsMissing(eth.MaxSupply))
	assert.True(t, eth.ATHDate.IsZero())
}

func TestCoinGeckoMarketsMalformedRowSkipsOnlyThatCoin(t *testing.T) {
	srv := newAPI(t, route{"/coins/markets": body(`[
	  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_cap_rank":1,"current_price":65000},
	  {"id":"ethereum","symbol":"eth","name":"Ethereum","market_cap_rank":2,"current_price":"n/a"},
	  "garbage"
	]`)})
	cg := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "")

	snaps, skips, err := cg.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "bitcoin", snaps[0].ID)
	assert.Equal(t, 65000.0, snaps[0].Price)

	require.Len(t, skips, 2)
	assert.Equal(t, model.ResourceCoin, skips[0].Kind)
	assert.Equal(t, "ethereum", skips[0].ID)
	assert.Contains(t, skips[0].Reason, "malformed market row")
	assert.Equal(t, "row 3", skips[1].ID)
}

func TestCoinGeckoMarketsChunkFailureSkipsEachCoin(t *testing.T) {
	srv := newAPI(t, route{"/coins/markets": func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}})
	cg := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "")

	snaps, skips, err := cg.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.Empty(t, snaps)
	require.Len(t, skips, 2)
	assert.Equal(t, "ethereum", skips[1].ID)
}

func TestCoinGeckoSendsAPIKey(t *testing.T) {
	var demo, pro string
	srv := newAPI(t, route{"/global": func(w http.ResponseWriter, r *http.Request) {
		demo = r.Header.Get("x-cg-demo-api-key")
		pro = r.Header.Get("x-cg-pro-api-key")
		w.Write([]byte(globalBody))
	}})

	_, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "k1", "pro").Global(context.Background())
	require.NoError(t, err)
	assert.Empty(t, demo)
	assert.Equal(t, "k1", pro)

	g, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "k2", "").Global(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k2", demo)
	assert.True(t, g.Available)
	assert.Equal(t, 2.6e12, g.TotalMarketCap)
	assert.Equal(t, 50.0, g.BTCDominance)
	assert.Equal(t, -1.5, g.MarketCapChange24h)
}

func TestCoinGeckoGlobalWithoutData(t *testing.T) {
	srv := newAPI(t, route{"/global": body(`{}`)})
	_, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "").Global(context.Background())
	assert.Error(t, err)
}

func TestCoinGeckoHistory(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	ts := func(d int64, extra int64) string {
		return itoa(base + d*day + extra)
	}
	chart := `{"prices":[[` + ts(2, 0) + `,102],[` + ts(0, 0) + `,100],[` + ts(1, 0) + `,101],[` + ts(2, 3600000) + `,103],[null,99]],
	  "market_caps":[[` + ts(2, 0) + `,1],[` + ts(0, 0) + `,1],[` + ts(1, 0) + `,1],[` + ts(2, 3600000) + `,1],[null,1]],
	  "total_volumes":[[` + ts(2, 0) + `,5],[` + ts(0, 0) + `,5],[` + ts(1, 0) + `,null],[` + ts(2, 3600000) + `,7],[null,5]]}`

	var query string
	srv := newAPI(t, route{"/coins/bitcoin/market_chart": func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(chart))
	}})
	pts, skips, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "").History(context.Background(), "bitcoin", 60)
	require.NoError(t, err)
	assert.Contains(t, query, "days=60")
	require.Len(t, skips, 1)
	assert.Equal(t, model.ResourceHistory, skips[0].Kind)
	assert.Equal(t, "bitcoin", skips[0].ID)
	assert.Contains(t, skips[0].Reason, "missing timestamp")
	assert.Contains(t, query, "interval=daily")

	require.Len(t, pts, 3)
	assert.Equal(t, 100.0, pts[0].Price)
	assert.Equal(t, 101.0, pts[1].Price)
	assert.True(t, model.IsMissing(pts[1].Volume))
	assert.Equal(t, 103.0, pts[2].Price, "latest reading of the day wins")
	assert.Equal(t, 7.0, pts[2].Volume)
	for i := 1; i < len(pts); i++ {
		assert.True(t, pts[i-1].Date.Before(pts[i].Date))
	}
}

func TestCoinGeckoHistoryUnknownCoin(t *testing.T) {
	srv := newAPI(t, route{})
	_, _, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "").History(context.Background(), "nope", 30)
	assert.Error(t, err)
}

func TestCoinGeckoSimplePrices(t *testing.T) {
	srv := newAPI(t, route{"/simple/price": body(`{"bitcoin":{"usd":65000},"solana":{"usd":null}}`)})
	prices, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "").SimplePrices(context.Background(), []string{"bitcoin", "solana", "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"bitcoin": 65000}, prices)
}

func TestFearGreedIndex(t *testing.T) {
	d0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	srv := newAPI(t, route{"/fng/": func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":[
		  {"value":"72","value_classification":"Greed","timestamp":"` + itoa(d0+2*86400) + `"},
		  {"value":"oops","value_classification":"Greed","timestamp":"` + itoa(d0+86400) + `"},
		  {"value":"40","value_classification":"Fear","timestamp":"` + itoa(d0) + `"}
		],"metadata":{"error":null}}`))
	}})

	pts, skips, err := NewFearGreed(newTestClient(), srv.URL).Index(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	require.Len(t, skips, 1)
	assert.Equal(t, model.ResourceSentiment, skips[0].Kind)
	assert.Equal(t, "2026-03-02", skips[0].ID)
	assert.Contains(t, skips[0].Reason, `bad value "oops"`)
	assert.Equal(t, 40.0, pts[0].Score)
	assert.Equal(t, "Fear", pts[0].Classification)
	assert.Equal(t, time.Unix(d0, 0).UTC(), pts[0].Date)
	assert.Equal(t, 72.0, pts[1].Score)
}

func TestFearGreedMetadataError(t *testing.T) {
	srv := newAPI(t, route{"/fng/": body(`{"data":[],"metadata":{"error":"limit too high"}}`)})
	_, _, err := NewFearGreed(newTestClient(), srv.URL).Index(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit too high")
}

func TestCollectExampleSkipsUnknownCoin(t *testing.T) {
	srv := newAPI(t, route{
		"/global":        body(globalBody),
		"/coins/markets": body(marketsBody),
		"/simple/price":  body(`{"bitcoin":{"usd":65000}}`),
		"/fng/":          body(`{"data":[{"value":"50","value_classification":"Neutral","timestamp":"1772323200"}]}`),
	})
	client := newTestClient()
	col := NewCollector(
		NewCoinGecko(client, srv.URL, "usd", "", ""),
		NewFearGreed(client, srv.URL),
		Options{
			Tracked:   []string{"bitcoin", "ethereum", "unknown-coin", "bitcoin"},
			History:   []model.HistoryCoin{{Symbol: "BTC", ID: "bitcoin"}},
			Portfolio: []string{"bitcoin", "solana"},
			Days:      30,
		},
		logger.Discard(),
	)

	ds, err := col.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Snapshots, 2)
	assert.Equal(t, 50.0, ds.Snapshots[0].Dominance)
	assert.Len(t, ds.Sentiment, 1)
	assert.Equal(t, []model.PriceQuote{{CoinID: "bitcoin", Price: 65000}}, ds.Prices)
	assert.Empty(t, ds.Histories)

	ids := map[string]model.ResourceKind{}
	for _, s := range ds.Skips {
		ids[s.ID] = s.Kind
	}
	assert.Equal(t, model.ResourceCoin, ids["unknown-coin"])
	assert.Equal(t, model.ResourceHistory, ids["bitcoin"])
	assert.Equal(t, model.ResourcePrices, ids["solana"])
}

func TestCollectRateLimitedResourcesAreSkipped(t *testing.T) {
	var marketCalls, historyCalls int32
	limited := func(calls *int32) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(calls, 1)
			http.Error(w, `{"status":{"error_code":429}}`, http.StatusTooManyRequests)
		}
	}
	srv := newAPI(t, route{
		"/global":                     body(globalBody),
		"/coins/markets":              limited(&marketCalls),
		"/coins/bitcoin/market_chart": limited(&historyCalls),
		"/fng/":                       body(`{"data":[{"value":"50","value_classification":"Neutral","timestamp":"1772323200"}]}`),
	})
	client := newTestClient()
	col := NewCollector(
		NewCoinGecko(client, srv.URL, "usd", "", ""),
		NewFearGreed(client, srv.URL),
		Options{
			Top:     10,
			History: []model.HistoryCoin{{Symbol: "BTC", ID: "bitcoin"}},
			Days:    30,
		},
		logger.Discard(),
	)

	ds, err := col.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(fastRetry.MaxAttempts), atomic.LoadInt32(&marketCalls))
	assert.Equal(t, int32(fastRetry.MaxAttempts), atomic.LoadInt32(&historyCalls))

	assert.True(t, ds.Global.Available)
	assert.Len(t, ds.Sentiment, 1)
	assert.Empty(t, ds.Snapshots)
	assert.Empty(t, ds.Histories)

	kinds := map[model.ResourceKind]model.Skip{}
	for _, s := range ds.Skips {
		kinds[s.Kind] = s
	}
	require.Contains(t, kinds, model.ResourceMarkets)
	assert.Contains(t, kinds[model.ResourceMarkets].Reason, "status 429")
	require.Contains(t, kinds, model.ResourceHistory)
	assert.Equal(t, "bitcoin", kinds[model.ResourceHistory].ID)
	assert.Contains(t, kinds[model.ResourceHistory].Reason, "status 429")
}

func TestCoinGeckoRateLimitExhaustedWrapsSentinel(t *testing.T) {
	srv := newAPI(t, route{"/global": func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}})
	_, err := NewCoinGecko(newTestClient(), srv.URL, "usd", "", "").Global(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
