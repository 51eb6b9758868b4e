package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"CryptoPulse/internal/model"
)

const (
	headerFill = "1F4E79"
	titleColor = "1F4E79"
)

// Number formats used across tables.
const (
	fmtMoney   = `#,##0.00`
	fmtPrice   = `#,##0.00######`
	fmtLarge   = `#,##0`
	fmtPercent = `0.00"%"`
	fmtRatio   = `0.000`
	fmtDate    = `yyyy-mm-dd`
	fmtStamp   = `yyyy-mm-dd hh:mm:ss`
	fmtInt     = `0`
)

// styles caches style ids for one workbook.
type styles struct {
	f       *excelize.File
	header  int
	title   int
	section int
	label   int
	numFmts map[string]int
	fills   map[string]int
}

func newStyles(f *excelize.File) (*styles, error) {
	s := &styles{f: f, numFmts: map[string]int{}, fills: map[string]int{}}
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16, Color: titleColor},
	}); err != nil {
		return nil, fmt.Errorf("title style: %w", err)
	}
	if s.section, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12, Color: titleColor},
	}); err != nil {
		return nil, fmt.Errorf("section style: %w", err)
	}
	if s.label, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return nil, fmt.Errorf("label style: %w", err)
	}
	return s, nil
}

// numFmt returns a style id for a custom number format.
func (s *styles) numFmt(format string) (int, error) {
	if id, ok := s.numFmts[format]; ok {
		return id, nil
	}
	f := format
	id, err := s.f.NewStyle(&excelize.Style{CustomNumFmt: &f})
	if err != nil {
		return 0, fmt.Errorf("number format %q: %w", format, err)
	}
	s.numFmts[format] = id
	return id, nil
}

// fill returns a bold style with a solid background color.
func (s *styles) fill(color string) (int, error) {
	if id, ok := s.fills[color]; ok {
		return id, nil
	}
	id, err := s.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("fill style %s: %w", color, err)
	}
	s.fills[color] = id
	return id, nil
}

// sentimentColor maps a Fear & Greed score to the fill color of its band.
func sentimentColor(score float64) string {
	switch model.Classify(score) {
	case model.ExtremeFear:
		return "C0392B"
	case model.Fear:
		return "E67E22"
	case model.Neutral:
		return "7F8C8D"
	case model.Greed:
		return "27AE60"
	default:
		return "1E8449"
	}
}
