package sheet

import (
	"fmt"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	"CryptoPulse/internal/calculator"
	"CryptoPulse/internal/model"
)

const dashboardTopCoins = 10

// writeDashboard renders headline figures, the top coins, a per-coin
// history summary and the list of resources skipped this run.
func (b *builder) writeDashboard() error {
	const sheet = DashboardSheet
	if _, err := b.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	d := &cursor{b: b, sheet: sheet, row: 1}

	if err := d.text(1, "Crypto Market Dashboard", b.st.title); err != nil {
		return err
	}
	if err := b.f.MergeCell(sheet, "A1", "H1"); err != nil {
		return err
	}
	d.row++
	generated := b.ds.FetchedAt.In(b.location()).Format("2006-01-02 15:04 MST")
	if err := d.text(1, "Generated: "+generated, 0); err != nil {
		return err
	}
	d.row += 2

	if err := d.keyMetrics(); err != nil {
		return err
	}
	d.row++
	if err := d.topCoins(); err != nil {
		return err
	}
	d.row++
	if err := d.historySummary(); err != nil {
		return err
	}
	d.row++
	if err := d.skips(); err != nil {
		return err
	}

	widths := []float64{24, 14, 22, 16, 14, 14, 14, 16}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := b.f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// cursor writes the dashboard top to bottom.
type cursor struct {
	b     *builder
	sheet string
	row   int
}

func (c *cursor) text(col int, v string, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, c.row)
	if err != nil {
		return err
	}
	if err := c.b.f.SetCellValue(c.sheet, cell, v); err != nil {
		return err
	}
	if style != 0 {
		return c.b.f.SetCellStyle(c.sheet, cell, cell, style)
	}
	return nil
}

// values writes one row; formats[i] applies to vals[i] when set.
func (c *cursor) values(vals []any, formats []string) error {
	for i, v := range vals {
		v = cellValue(v)
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, c.row)
		if err != nil {
			return err
		}
		if err := c.b.f.SetCellValue(c.sheet, cell, v); err != nil {
			return err
		}
		if i < len(formats) && formats[i] != "" {
			id, err := c.b.st.numFmt(formats[i])
			if err != nil {
				return err
			}
			if err := c.b.f.SetCellStyle(c.sheet, cell, cell, id); err != nil {
				return err
			}
		}
	}
	c.row++
	return nil
}

func (c *cursor) headers(names ...string) error {
	for i, n := range names {
		if err := c.text(i+1, n, c.b.st.header); err != nil {
			return err
		}
	}
	c.row++
	return nil
}

func (c *cursor) section(title string) error {
	if err := c.text(1, title, c.b.st.section); err != nil {
		return err
	}
	c.row++
	return nil
}

func (c *cursor) keyMetrics() error {
	if err := c.section("Key Metrics"); err != nil {
		return err
	}
	g := c.b.ds.Global
	cur := c.b.currency()
	rows := [][2]string{
		{"Total Market Cap", formatLarge(g.TotalMarketCap, cur)},
		{"24h Volume", formatLarge(g.TotalVolume, cur)},
		{"BTC Dominance", formatPercent(g.BTCDominance, false)},
		{"ETH Dominance", formatPercent(g.ETHDominance, false)},
		{"Market Cap Change 24h", formatPercent(g.MarketCapChange24h, true)},
	}
	if !g.Available {
		rows = append(rows, [2]string{"Global Metrics", "unavailable this run"})
	}
	for _, r := range rows {
		if err := c.text(1, r[0], c.b.st.label); err != nil {
			return err
		}
		if err := c.text(2, r[1], 0); err != nil {
			return err
		}
		c.row++
	}

	if err := c.text(1, "Fear & Greed", c.b.st.label); err != nil {
		return err
	}
	if n := len(c.b.ds.Sentiment); n > 0 {
		latest := c.b.ds.Sentiment[n-1]
		style, err := c.b.st.fill(sentimentColor(latest.Score))
		if err != nil {
			return err
		}
		label := fmt.Sprintf("%.0f (%s)", latest.Score, latest.Classification)
		if err := c.text(2, label, style); err != nil {
			return err
		}
	} else if err := c.text(2, "n/a", 0); err != nil {
		return err
	}
	c.row++
	return nil
}

func (c *cursor) topCoins() error {
	if err := c.section("Top Coins by Market Cap"); err != nil {
		return err
	}
	cur := c.b.currency()
	if err := c.headers("Rank", "Symbol", "Name", "Price ("+cur+")", "24h (%)", "7d (%)", "Market Cap ("+cur+")"); err != nil {
		return err
	}
	snaps := append([]model.CoinSnapshot(nil), c.b.ds.Snapshots...)
	sort.SliceStable(snaps, func(i, j int) bool {
		ri, rj := snaps[i].Rank, snaps[j].Rank
		if ri == 0 {
			return false
		}
		return rj == 0 || ri < rj
	})
	if len(snaps) > dashboardTopCoins {
		snaps = snaps[:dashboardTopCoins]
	}
	formats := []string{fmtInt, "", "", fmtPrice, fmtPercent, fmtPercent, fmtLarge}
	for _, s := range snaps {
		var rank any
		if s.Rank > 0 {
			rank = s.Rank
		}
		if err := c.values([]any{rank, s.Symbol, s.Name, s.Price, s.Change24h, s.Change7d, s.MarketCap}, formats); err != nil {
			return err
		}
	}
	if len(snaps) == 0 {
		if err := c.text(1, "No market data this run", 0); err != nil {
			return err
		}
		c.row++
	}
	return nil
}

func (c *cursor) historySummary() error {
	if err := c.section("Price History (" + WindowLabel(c.b.ds.HistoryDays) + ")"); err != nil {
		return err
	}
	if err := c.headers("Symbol", "Last Price", "Change (%)", "High", "Low", "Range Position", "RSI (14)", "Volatility 7d (%)"); err != nil {
		return err
	}
	formats := []string{"", fmtPrice, fmtPercent, fmtPrice, fmtPrice, fmtRatio, fmtMoney, fmtPercent}
	for _, h := range c.b.ds.Histories {
		s := calculator.Summarize(h)
		if err := c.values([]any{s.Symbol, s.Last, s.Change, s.High, s.Low, s.Position, s.RSI14, s.Volatile7}, formats); err != nil {
			return err
		}
	}
	if len(c.b.ds.Histories) == 0 {
		if err := c.text(1, "No history data this run", 0); err != nil {
			return err
		}
		c.row++
	}
	return nil
}

func (c *cursor) skips() error {
	if err := c.section(fmt.Sprintf("Skipped This Run (%d)", len(c.b.ds.Skips))); err != nil {
		return err
	}
	if len(c.b.ds.Skips) == 0 {
		if err := c.text(1, "None", 0); err != nil {
			return err
		}
		c.row++
		return nil
	}
	if err := c.headers("Resource", "ID", "Reason"); err != nil {
		return err
	}
	for _, s := range c.b.ds.Skips {
		if err := c.values([]any{string(s.Kind), s.ID, s.Reason}, nil); err != nil {
			return err
		}
	}
	return nil
}

// formatLarge renders 2.45e12 as "$2.45T" for USD and "2.45T EUR" otherwise.
func formatLarge(v float64, currency string) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	abs := math.Abs(v)
	var s string
	switch {
	case abs >= 1e12:
		s = fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		s = fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		s = fmt.Sprintf("%.2fM", v/1e6)
	default:
		s = fmt.Sprintf("%.2f", v)
	}
	if currency == "USD" {
		return "$" + s
	}
	return s + " " + currency
}

func formatPercent(v float64, signed bool) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if signed {
		return fmt.Sprintf("%+.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}
