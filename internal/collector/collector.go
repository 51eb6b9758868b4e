package collector

import (
	"context"
	"time"

	"CryptoPulse/internal/calculator"
	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
)

// Options selects what one collection cycle fetches.
type Options struct {
	// Tracked lists CoinGecko ids for the market overview. When empty, the
	// top Top coins by market cap are used instead.
	Tracked   []string
	Top       int
	History   []model.HistoryCoin
	Portfolio []string
	Days      int
}

// Collector orchestrates data fetching and normalization.
type Collector struct {
	Market    MarketSource
	Sentiment SentimentSource
	Options   Options
	log       *logger.Entry
}

// NewCollector creates a new Collector. Duplicate tracked ids are dropped.
func NewCollector(market MarketSource, sentiment SentimentSource, opts Options, log *logger.Log) *Collector {
	opts.Tracked = dedupe(opts.Tracked)
	opts.Portfolio = dedupe(opts.Portfolio)
	return &Collector{
		Market:    market,
		Sentiment: sentiment,
		Options:   opts,
		log:       log.WithComponent("collector"),
	}
}

// Collect fetches global metrics, the market snapshot, sentiment, per-coin
// history and portfolio prices, in that order. A failed resource is recorded
// as a skip and the rest continue; only context cancellation is returned as
// an error.
func (c *Collector) Collect(ctx context.Context) (*model.Dataset, error) {
	started := time.Now()
	ds := &model.Dataset{
		FetchedAt:   started.UTC(),
		HistoryDays: c.Options.Days,
	}

	c.collectGlobal(ctx, ds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.collectSnapshots(ctx, ds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.collectSentiment(ctx, ds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.collectHistories(ctx, ds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.collectPrices(ctx, ds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.LogDuration(c.log, "collect", started, logger.Fields{
		"snapshots": len(ds.Snapshots),
		"histories": len(ds.Histories),
		"sentiment": len(ds.Sentiment),
		"prices":    len(ds.Prices),
		"skips":     len(ds.Skips),
	})
	return ds, nil
}

func (c *Collector) collectGlobal(ctx context.Context, ds *model.Dataset) {
	g, err := c.Market.Global(ctx)
	if err != nil {
		ds.Global = model.UnavailableGlobalMetrics(ds.FetchedAt)
		c.skip(ctx, ds, model.ResourceGlobal, "", err)
		return
	}
	ds.Global = g
}

func (c *Collector) collectSnapshots(ctx context.Context, ds *model.Dataset) {
	var (
		snaps []model.CoinSnapshot
		skips []model.Skip
		err   error
	)
	if len(c.Options.Tracked) > 0 {
		snaps, skips, err = c.Market.Markets(ctx, c.Options.Tracked)
	} else {
		snaps, skips, err = c.Market.TopMarkets(ctx, c.Options.Top)
	}
	if err != nil {
		c.skip(ctx, ds, model.ResourceMarkets, "", err)
		return
	}
	ds.Skips = append(ds.Skips, skips...)

	returned := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		returned[s.ID] = true
	}
	skipped := make(map[string]bool, len(skips))
	for _, s := range skips {
		skipped[s.ID] = true
	}
	for _, id := range c.Options.Tracked {
		if !returned[id] && !skipped[id] {
			c.log.WithFields(logger.Fields{"coin": id}).Warn("coin not returned by market source")
			ds.AddSkip(model.ResourceCoin, id, "not returned by market source")
		}
	}

	for i := range snaps {
		snaps[i].Dominance = dominance(snaps[i].MarketCap, ds.Global)
	}
	ds.Snapshots = snaps
}

func (c *Collector) collectSentiment(ctx context.Context, ds *model.Dataset) {
	if c.Sentiment == nil {
		return
	}
	points, skips, err := c.Sentiment.Index(ctx, c.Options.Days)
	c.rowSkips(ds, skips)
	if err != nil {
		c.skip(ctx, ds, model.ResourceSentiment, "", err)
		return
	}
	ds.Sentiment = points
}

func (c *Collector) collectHistories(ctx context.Context, ds *model.Dataset) {
	for _, coin := range c.Options.History {
		if ctx.Err() != nil {
			return
		}
		points, skips, err := c.Market.History(ctx, coin.ID, c.Options.Days+calculator.WarmupDays)
		c.rowSkips(ds, skips)
		if err != nil {
			c.skip(ctx, ds, model.ResourceHistory, coin.ID, err)
			continue
		}
		points = calculator.Trim(calculator.Decorate(points), c.Options.Days)
		for i := range points {
			points[i].CoinID = coin.ID
			points[i].Symbol = coin.Symbol
		}
		ds.Histories = append(ds.Histories, model.CoinHistory{Coin: coin, Points: points})
	}
}

func (c *Collector) collectPrices(ctx context.Context, ds *model.Dataset) {
	if len(c.Options.Portfolio) == 0 {
		return
	}
	prices, err := c.Market.SimplePrices(ctx, c.Options.Portfolio)
	if err != nil {
		c.skip(ctx, ds, model.ResourcePrices, "", err)
		return
	}
	for _, id := range c.Options.Portfolio {
		p, ok := prices[id]
		if !ok {
			ds.AddSkip(model.ResourcePrices, id, "not returned by market source")
			continue
		}
		ds.Prices = append(ds.Prices, model.PriceQuote{CoinID: id, Price: p})
	}
}

// skip records a failed resource unless the run itself was cancelled.
func (c *Collector) skip(ctx context.Context, ds *model.Dataset, kind model.ResourceKind, id string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.log.WithFields(logger.Fields{"resource": kind, "id": id}).WithError(err).Warn("resource skipped")
	ds.AddSkip(kind, id, err.Error())
}

// rowSkips records rows a source dropped from an otherwise usable response.
func (c *Collector) rowSkips(ds *model.Dataset, skips []model.Skip) {
	for _, s := range skips {
		c.log.WithFields(logger.Fields{"resource": s.Kind, "id": s.ID}).Warn(s.Reason)
	}
	ds.Skips = append(ds.Skips, skips...)
}

func dominance(marketCap float64, g model.GlobalMetrics) float64 {
	if !g.Available || model.IsMissing(marketCap) || model.IsMissing(g.TotalMarketCap) || g.TotalMarketCap == 0 {
		return model.Missing
	}
	return calculator.Round(marketCap/g.TotalMarketCap*100, 4)
}

func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
