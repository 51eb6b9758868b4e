package sheet

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"
)

type column struct {
	Header string
	Width  float64
	Format string
}

// table is one flat sheet: a header row followed by data rows.
type table struct {
	Sheet   string
	Columns []column
	Rows    [][]any
}

// writeTable creates t.Sheet and fills it. Missing numbers and zero times
// are left as empty cells.
func (b *builder) writeTable(t table) error {
	if _, err := b.f.NewSheet(t.Sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", t.Sheet, err)
	}
	if err := b.writeHeader(t.Sheet, t.Columns); err != nil {
		return err
	}

	for ri, row := range t.Rows {
		for ci, v := range row {
			v = cellValue(v)
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return err
			}
			if err := b.f.SetCellValue(t.Sheet, cell, v); err != nil {
				return fmt.Errorf("%s!%s: %w", t.Sheet, cell, err)
			}
		}
	}

	if len(t.Rows) > 0 {
		for ci, col := range t.Columns {
			if col.Format == "" {
				continue
			}
			id, err := b.st.numFmt(col.Format)
			if err != nil {
				return err
			}
			top, _ := excelize.CoordinatesToCellName(ci+1, 2)
			bottom, _ := excelize.CoordinatesToCellName(ci+1, len(t.Rows)+1)
			if err := b.f.SetCellStyle(t.Sheet, top, bottom, id); err != nil {
				return fmt.Errorf("style %s!%s: %w", t.Sheet, top, err)
			}
		}
	}

	return b.f.SetPanes(t.Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (b *builder) writeHeader(sheet string, cols []column) error {
	for ci, col := range cols {
		cell, err := excelize.CoordinatesToCellName(ci+1, 1)
		if err != nil {
			return err
		}
		if err := b.f.SetCellValue(sheet, cell, col.Header); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
		name, _ := excelize.ColumnNumberToName(ci + 1)
		width := col.Width
		if width == 0 {
			width = 16
		}
		if err := b.f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	return b.f.SetCellStyle(sheet, "A1", last, b.st.header)
}

func cellValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case time.Time:
		if x.IsZero() {
			return nil
		}
	case string:
		if x == "" {
			return nil
		}
	}
	return v
}
