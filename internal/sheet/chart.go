package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

type seriesRef struct {
	Name   string
	Column string
}

// addLineChart plots columns of sheet against column A for rows 2..n+1.
func (b *builder) addLineChart(sheet, anchor, title string, n int, series ...seriesRef) error {
	if n == 0 {
		return nil
	}
	q := quoteSheet(sheet)
	categories := fmt.Sprintf("%s!$A$2:$A$%d", q, n+1)
	chart := &excelize.Chart{
		Type:      excelize.Line,
		Title:     []excelize.RichTextRun{{Text: title}},
		Dimension: excelize.ChartDimension{Width: 720, Height: 360},
		Legend:    excelize.ChartLegend{Position: "bottom"},
	}
	for _, s := range series {
		chart.Series = append(chart.Series, excelize.ChartSeries{
			Name:       s.Name,
			Categories: categories,
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", q, s.Column, s.Column, n+1),
		})
	}
	if err := b.f.AddChart(sheet, anchor, chart); err != nil {
		return fmt.Errorf("chart on %s: %w", sheet, err)
	}
	return nil
}
