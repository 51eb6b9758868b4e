package sheet

import (
	"strings"
	"time"

	"CryptoPulse/internal/model"
)

func (b *builder) marketTable() table {
	cur := b.currency()
	t := table{
		Sheet: MarketSheet,
		Columns: []column{
			{Header: "Rank", Width: 8, Format: fmtInt},
			{Header: "Coin ID", Width: 20},
			{Header: "Symbol", Width: 10},
			{Header: "Name", Width: 20},
			{Header: "Price (" + cur + ")", Format: fmtPrice},
			{Header: "Market Cap (" + cur + ")", Width: 20, Format: fmtLarge},
			{Header: "Volume 24h (" + cur + ")", Width: 20, Format: fmtLarge},
			{Header: "Market Dominance (%)", Format: fmtPercent},
			{Header: "Change 24h (%)", Format: fmtPercent},
			{Header: "Change 7d (%)", Format: fmtPercent},
			{Header: "Change 30d (%)", Format: fmtPercent},
			{Header: "Change 1y (%)", Format: fmtPercent},
			{Header: "Circulating Supply", Width: 20, Format: fmtLarge},
			{Header: "Total Supply", Width: 20, Format: fmtLarge},
			{Header: "Max Supply", Width: 20, Format: fmtLarge},
			{Header: "ATH (" + cur + ")", Format: fmtPrice},
			{Header: "ATH Date", Width: 12, Format: fmtDate},
			{Header: "ATL (" + cur + ")", Format: fmtPrice},
			{Header: "ATL Date", Width: 12, Format: fmtDate},
			{Header: "Fetched At", Width: 20, Format: fmtStamp},
		},
	}
	fetched := b.wall(b.ds.FetchedAt)
	for _, s := range b.ds.Snapshots {
		var rank any
		if s.Rank > 0 {
			rank = s.Rank
		}
		t.Rows = append(t.Rows, []any{
			rank, s.ID, s.Symbol, s.Name,
			s.Price, s.MarketCap, s.Volume24h, s.Dominance,
			s.Change24h, s.Change7d, s.Change30d, s.Change1y,
			s.CirculatingSupply, s.TotalSupply, s.MaxSupply,
			s.ATH, s.ATHDate, s.ATL, s.ATLDate,
			fetched,
		})
	}
	return t
}

// globalTable always carries exactly one data row. A failed fetch leaves
// the figures blank and marks the status.
func (b *builder) globalTable() table {
	cur := b.currency()
	g := b.ds.Global
	status := "ok"
	if !g.Available {
		status = "unavailable"
	}
	at := g.FetchedAt
	if at.IsZero() {
		at = b.ds.FetchedAt
	}
	return table{
		Sheet: GlobalSheet,
		Columns: []column{
			{Header: "Fetched At", Width: 20, Format: fmtStamp},
			{Header: "Status", Width: 12},
			{Header: "Total Market Cap (" + cur + ")", Width: 22, Format: fmtLarge},
			{Header: "Total Volume 24h (" + cur + ")", Width: 22, Format: fmtLarge},
			{Header: "BTC Dominance (%)", Format: fmtPercent},
			{Header: "ETH Dominance (%)", Format: fmtPercent},
			{Header: "Active Cryptocurrencies", Width: 20, Format: fmtLarge},
			{Header: "Markets", Format: fmtLarge},
			{Header: "Market Cap Change 24h (%)", Width: 22, Format: fmtPercent},
		},
		Rows: [][]any{{
			b.wall(at), status,
			g.TotalMarketCap, g.TotalVolume, g.BTCDominance, g.ETHDominance,
			g.ActiveCryptocurrency, g.Markets, g.MarketCapChange24h,
		}},
	}
}

func (b *builder) sentimentTable() table {
	t := table{
		Sheet: SentimentSheet,
		Columns: []column{
			{Header: "Date", Width: 12, Format: fmtDate},
			{Header: "Value", Width: 10, Format: fmtInt},
			{Header: "Classification", Width: 18},
		},
	}
	for _, p := range b.ds.Sentiment {
		t.Rows = append(t.Rows, []any{p.Date, p.Score, p.Classification})
	}
	return t
}

func (b *builder) historyTable(h model.CoinHistory) table {
	cur := b.currency()
	t := table{
		Sheet: HistorySheetName(h.Coin.Symbol, b.ds.HistoryDays),
		Columns: []column{
			{Header: "Date", Width: 12, Format: fmtDate},
			{Header: "Price (" + cur + ")", Format: fmtPrice},
			{Header: "Volume (" + cur + ")", Width: 20, Format: fmtLarge},
			{Header: "Market Cap (" + cur + ")", Width: 20, Format: fmtLarge},
			{Header: "Daily Return (%)", Format: fmtPercent},
			{Header: "MA 7d", Format: fmtPrice},
			{Header: "MA 30d", Format: fmtPrice},
			{Header: "Volatility 7d (%)", Format: fmtPercent},
		},
	}
	for _, p := range h.Points {
		t.Rows = append(t.Rows, []any{
			p.Date, p.Price, p.Volume, p.MarketCap,
			p.DailyReturn, p.MA7, p.MA30, p.Volatility7,
		})
	}
	return t
}

func (b *builder) portfolioTable() table {
	cur := b.currency()
	t := table{
		Sheet: PortfolioSheet,
		Columns: []column{
			{Header: "Coin ID", Width: 20},
			{Header: "Price (" + cur + ")", Format: fmtPrice},
			{Header: "Fetched At", Width: 20, Format: fmtStamp},
		},
	}
	fetched := b.wall(b.ds.FetchedAt)
	for _, q := range b.ds.Prices {
		t.Rows = append(t.Rows, []any{q.CoinID, q.Price, fetched})
	}
	return t
}

func (b *builder) currency() string {
	if b.opts.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(b.opts.Currency)
}

// wall re-expresses t as wall-clock time in the report timezone, since
// spreadsheet cells carry no zone.
func (b *builder) wall(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	l := t.In(b.location())
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), 0, time.UTC)
}

func (b *builder) location() *time.Location {
	if b.opts.Location == nil {
		return time.UTC
	}
	return b.opts.Location
}
