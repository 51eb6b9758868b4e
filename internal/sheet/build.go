// Package sheet renders a collected dataset into the portfolio workbook.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"CryptoPulse/internal/model"
)

// ErrCorrupt is returned when the existing workbook cannot be opened and
// replacing it was not allowed.
var ErrCorrupt = errors.New("existing workbook is unreadable")

// Options controls rendering.
type Options struct {
	Location *time.Location
	Currency string
	// ReplaceCorrupt starts a fresh workbook when the existing one cannot
	// be read. Manual sheets in the unreadable file are lost.
	ReplaceCorrupt bool
}

type builder struct {
	f    *excelize.File
	st   *styles
	ds   *model.Dataset
	opts Options
}

// Build returns the serialized workbook for ds. existing is the current
// workbook, or nil when there is none. Automated sheets are rebuilt in full;
// manual sheets are created with headers when missing and otherwise left
// exactly as found.
func Build(existing []byte, ds *model.Dataset, opts Options) ([]byte, error) {
	f, fresh, err := open(existing, opts.ReplaceCorrupt)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	b := &builder{f: f, st: st, ds: ds, opts: opts}

	var placeholder string
	if fresh {
		placeholder = f.GetSheetName(0)
	}
	if err := b.ensureManual(); err != nil {
		return nil, err
	}
	if !fresh {
		if err := b.dropAutomated(); err != nil {
			return nil, err
		}
	}
	if err := b.writeAutomated(); err != nil {
		return nil, err
	}
	if placeholder != "" {
		if err := f.DeleteSheet(placeholder); err != nil {
			return nil, fmt.Errorf("remove placeholder sheet: %w", err)
		}
	}
	if err := b.order(); err != nil {
		return nil, err
	}
	if err := b.recordOwned(); err != nil {
		return nil, err
	}

	idx, err := f.GetSheetIndex(DashboardSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func open(existing []byte, replaceCorrupt bool) (*excelize.File, bool, error) {
	if len(existing) == 0 {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(existing))
	if err != nil {
		if !replaceCorrupt {
			return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return excelize.NewFile(), true, nil
	}
	return f, false, nil
}

// ensureManual adds any missing manual sheet with its header row.
func (b *builder) ensureManual() error {
	for _, m := range ManualSheets {
		idx, err := b.f.GetSheetIndex(m.Name)
		if err != nil {
			return err
		}
		if idx >= 0 {
			continue
		}
		if _, err := b.f.NewSheet(m.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", m.Name, err)
		}
		cols := make([]column, len(m.Headers))
		for i, h := range m.Headers {
			cols[i] = column{Header: h, Width: 18}
		}
		if err := b.writeHeader(m.Name, cols); err != nil {
			return err
		}
	}
	return nil
}

// dropAutomated deletes the fixed automated sheets and the history sheets
// this package generated before. Previous history sheets are read from the
// workbook's own record; a workbook without one falls back to matching the
// configured history symbols. Sheets about to be regenerated are always
// dropped.
func (b *builder) dropAutomated() error {
	owned, recorded, err := b.ownedHistory()
	if err != nil {
		return err
	}
	for _, h := range b.ds.Histories {
		owned[HistorySheetName(h.Coin.Symbol, b.ds.HistoryDays)] = true
	}
	symbols := make(map[string]bool, len(b.ds.Histories))
	for _, h := range b.ds.Histories {
		symbols[cleanSymbol(h.Coin.Symbol)] = true
	}

	for _, name := range b.f.GetSheetList() {
		drop := IsAutomated(name) || owned[name]
		if !drop && !recorded {
			sym, ok := historySymbol(name)
			drop = ok && symbols[sym]
		}
		if !drop {
			continue
		}
		if err := b.f.DeleteSheet(name); err != nil {
			return fmt.Errorf("delete sheet %s: %w", name, err)
		}
	}
	return nil
}

// ownedHistory reads the history sheet names stored by the previous build.
// recorded is false when the workbook carries no such record.
func (b *builder) ownedHistory() (map[string]bool, bool, error) {
	owned := map[string]bool{}
	props, err := b.f.GetCustomProps()
	if err != nil {
		return nil, false, fmt.Errorf("read document properties: %w", err)
	}
	for _, p := range props {
		if p.Name != ownedSheetsProp {
			continue
		}
		v, _ := p.Value.(string)
		for _, name := range strings.Split(v, "/") {
			if name != "" {
				owned[name] = true
			}
		}
		return owned, true, nil
	}
	return owned, false, nil
}

func (b *builder) historySheets() []string {
	names := make([]string, 0, len(b.ds.Histories))
	for _, h := range b.ds.Histories {
		names = append(names, HistorySheetName(h.Coin.Symbol, b.ds.HistoryDays))
	}
	return names
}

func (b *builder) recordOwned() error {
	// An empty string is still a record, so the symbol fallback stays off.
	err := b.f.SetCustomProps(excelize.CustomProperty{
		Name:  ownedSheetsProp,
		Value: strings.Join(b.historySheets(), "/"),
	})
	if err != nil {
		return fmt.Errorf("record history sheets: %w", err)
	}
	return nil
}

// order puts the automated sheets first in canonical order, then the manual
// sheets, then anything else the user added in its existing order.
func (b *builder) order() error {
	canonical := []string{DashboardSheet, MarketSheet, GlobalSheet, SentimentSheet}
	canonical = append(canonical, b.historySheets()...)
	canonical = append(canonical, PortfolioSheet)
	for _, m := range ManualSheets {
		canonical = append(canonical, m.Name)
	}

	for i, name := range canonical {
		target := b.f.GetSheetName(i)
		if target == name {
			continue
		}
		if err := b.f.MoveSheet(name, target); err != nil {
			return fmt.Errorf("move sheet %s: %w", name, err)
		}
	}
	return nil
}

// writeAutomated appends every automated sheet in canonical order.
func (b *builder) writeAutomated() error {
	if err := b.writeDashboard(); err != nil {
		return err
	}

	if err := b.writeTable(b.marketTable()); err != nil {
		return err
	}
	if err := b.writeTable(b.globalTable()); err != nil {
		return err
	}

	sentiment := b.sentimentTable()
	if err := b.writeTable(sentiment); err != nil {
		return err
	}
	if err := b.addLineChart(SentimentSheet, "E2", "Fear & Greed Index", len(sentiment.Rows),
		seriesRef{Name: "Value", Column: "B"}); err != nil {
		return err
	}

	for _, h := range b.ds.Histories {
		t := b.historyTable(h)
		if err := b.writeTable(t); err != nil {
			return err
		}
		if err := b.addLineChart(t.Sheet, "J2", h.Coin.Symbol+" Price", len(t.Rows),
			seriesRef{Name: "Price", Column: "B"},
			seriesRef{Name: "MA 7d", Column: "F"},
			seriesRef{Name: "MA 30d", Column: "G"},
		); err != nil {
			return err
		}
	}

	return b.writeTable(b.portfolioTable())
}
