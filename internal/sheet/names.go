package sheet

import (
	"fmt"
	"regexp"
	"strings"
)

// Automated sheet names. These are deleted and rebuilt on every run.
const (
	DashboardSheet = "📊 Executive Dashboard"
	MarketSheet    = "📈 Market Overview"
	GlobalSheet    = "🌍 Global Metrics"
	SentimentSheet = "😰 Fear & Greed Index"
	PortfolioSheet = "💲 Portfolio Prices"
)

// Manual sheets belong to the user. They are created with headers when
// missing and never written otherwise.
const (
	TransactionsSheet     = "Transactions"
	CurrentPortfolioSheet = "Current Portfolio"
)

// ManualSheets lists the user-maintained sheets with their header rows.
var ManualSheets = []struct {
	Name    string
	Headers []string
}{
	{
		Name: TransactionsSheet,
		Headers: []string{
			"Date", "Coin ID", "Type (Buy/Sell)", "Quantity",
			"Price (USD)", "Total Cost/Revenue (USD)",
		},
	},
	{
		Name: CurrentPortfolioSheet,
		Headers: []string{
			"Coin ID", "Current Value (USD)", "Purchase Price (USD)", "Quantity",
			"P/L (USD)", "P/L Ratio", "Total Value (USD)", "Symbol",
			"Location", "AirDrop or Invest",
		},
	},
}

// ownedSheetsProp is the custom document property listing the history
// sheets the last build generated, joined by "/" (never valid in a sheet
// name).
const ownedSheetsProp = "CryptoPulseHistorySheets"

var historySheetRe = regexp.MustCompile(`^(.+) History \(\d+ (Day|Days|Week|Weeks|Month|Months|Year|Years)\)$`)

// IsAutomated reports whether name is one of the fixed sheets this package
// rebuilds on every run. History sheets are owned per workbook, see
// historySymbol and ownedSheetsProp.
func IsAutomated(name string) bool {
	switch name {
	case DashboardSheet, MarketSheet, GlobalSheet, SentimentSheet, PortfolioSheet:
		return true
	}
	return false
}

// historySymbol returns the symbol of a name shaped like a history sheet.
func historySymbol(name string) (string, bool) {
	m := historySheetRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HistorySheetName returns the per-coin history sheet name for a window.
func HistorySheetName(symbol string, days int) string {
	return fmt.Sprintf("%s History (%s)", cleanSymbol(symbol), WindowLabel(days))
}

// WindowLabel renders a day count the way a reader would say it:
// 30 is "1 Month", 14 is "2 Weeks", 10 is "10 Days".
func WindowLabel(days int) string {
	unit := func(n int, one string) string {
		if n == 1 {
			return "1 " + one
		}
		return fmt.Sprintf("%d %ss", n, one)
	}
	switch {
	case days > 0 && days%365 == 0:
		return unit(days/365, "Year")
	case days > 0 && days%30 == 0:
		return unit(days/30, "Month")
	case days > 0 && days%7 == 0:
		return unit(days/7, "Week")
	default:
		return unit(days, "Day")
	}
}

// cleanSymbol strips characters Excel rejects in sheet names and bounds the
// length so the full name stays within 31 characters.
func cleanSymbol(symbol string) string {
	s := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]'`, r) {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(symbol)))
	if r := []rune(s); len(r) > 10 {
		s = string(r[:10])
	}
	if s == "" {
		s = "COIN"
	}
	return s
}

// quoteSheet renders a sheet name for use in a cell reference.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
