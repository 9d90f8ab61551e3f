package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the costing workbook.
const (
	SellPriceSheet = "Sell Price List"
	MarginCell     = "M4"
)

// CostingWorkbook writes the costing workbook as .xlsx.
type CostingWorkbook struct{}

// WriteWorkbook renders values and saves them to basePath + ".xlsx".
func (CostingWorkbook) WriteWorkbook(values WorkbookValues, basePath string) (string, error) {
	f, err := BuildCostingWorkbook(values)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := basePath + ".xlsx"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// BuildCostingWorkbook lays out the Summary grid, the sell price list and
// every "Sheet!Cell" value. The caller must Close the returned file.
func BuildCostingWorkbook(values WorkbookValues) (*excelize.File, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if _, err := f.NewSheet(SellPriceSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sell price sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err == nil {
		f.SetActiveSheet(idx)
	}

	st, err := newWorkbookStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummarySheet(f, st, values); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSellPriceSheet(f, st, values.Grid); err != nil {
		f.Close()
		return nil, err
	}

	refs := make([]string, 0, len(values.Cells))
	for ref := range values.Cells {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		sheet, cell, ok := strings.Cut(ref, "!")
		if !ok || sheet == "" || cell == "" {
			f.Close()
			return nil, fmt.Errorf("bad cell reference %q", ref)
		}
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		if err := f.SetCellValue(sheet, cell, values.Cells[ref]); err != nil {
			f.Close()
			return nil, fmt.Errorf("set %s: %w", ref, err)
		}
	}
	return f, nil
}

type workbookStyles struct {
	title, header, row, money, percent int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	var st workbookStyles
	var err error

	if st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	}); err != nil {
		return st, fmt.Errorf("create title style: %w", err)
	}

	// Column header style: bold, white text, charcoal background, centered.
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	}); err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}

	if st.row, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	}); err != nil {
		return st, fmt.Errorf("create row style: %w", err)
	}

	numFmt := "#,##0.00"
	if st.money, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10},
		Border:       thinBorders(),
		CustomNumFmt: &numFmt,
	}); err != nil {
		return st, fmt.Errorf("create money style: %w", err)
	}

	if st.percent, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
		NumFmt: 10, // 0.00%
	}); err != nil {
		return st, fmt.Errorf("create percent style: %w", err)
	}
	return st, nil
}

// writeSummarySheet puts each grid row on its own row index: description in
// C, quantity H, cost I, sell J, effective margin K, override L.
func writeSummarySheet(f *excelize.File, st workbookStyles, values WorkbookValues) error {
	sh := SummarySheet
	widths := map[string]float64{"A": 10, "B": 4, "C": 36, "H": 10, "I": 14, "J": 14, "K": 10, "L": 10, "M": 10}
	for col, w := range widths {
		if err := f.SetColWidth(sh, col, col, w); err != nil {
			return fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	f.SetCellValue(sh, "A1", "Summary")
	f.SetCellStyle(sh, "A1", "A1", st.title)

	headers := map[string]string{"C": "Description", "H": "Qty", "I": "Cost", "J": "Sell", "K": "Margin", "L": "Override"}
	for col, h := range headers {
		f.SetCellValue(sh, col+"3", h)
		f.SetCellStyle(sh, col+"3", col+"3", st.header)
	}

	for _, r := range values.Grid {
		if r.SummaryCell == "" {
			if r.RowIndex != 3 && r.Description != "" {
				f.SetCellValue(sh, cellAt("C", r.RowIndex), sanitizeExcelCell(r.Description))
			}
			continue
		}
		n := r.RowIndex
		f.SetCellValue(sh, cellAt("A", n), r.Tab)
		f.SetCellValue(sh, cellAt("C", n), sanitizeExcelCell(r.Description))
		if r.QtyH != nil {
			f.SetCellValue(sh, cellAt("H", n), *r.QtyH)
		}
		f.SetCellValue(sh, cellAt("I", n), r.Cost)
		f.SetCellValue(sh, cellAt("J", n), r.Sell)
		f.SetCellValue(sh, cellAt("K", n), r.EffMarginK)
		if r.OverrideL != nil {
			f.SetCellValue(sh, cellAt("L", n), *r.OverrideL)
		}
		f.SetCellStyle(sh, cellAt("A", n), cellAt("H", n), st.row)
		f.SetCellStyle(sh, cellAt("I", n), cellAt("J", n), st.money)
		f.SetCellStyle(sh, cellAt("K", n), cellAt("L", n), st.percent)
	}

	f.SetCellValue(sh, MarginCell, values.Cells[legacyMarginSheet+"!"+legacyMarginCell])
	f.SetCellStyle(sh, MarginCell, MarginCell, st.percent)

	footer := []struct {
		label string
		value any
		style int
	}{
		{"Total Cost", values.Footer.TotalCost, st.money},
		{"Total Sell", values.Footer.TotalSell, st.money},
		{"Base Sell Total", values.Footer.BaseSellTotal, st.money},
		{"Overall Margin", values.Footer.OverallMargin, st.percent},
		{"Lines", values.Footer.LineCount, st.row},
		{"Overrides", values.Footer.OverrideCount, st.row},
		{"Override %", values.Footer.OverridePercent, st.percent},
	}
	start := SummaryRowCount + 2
	for i, item := range footer {
		n := start + i
		f.SetCellValue(sh, cellAt("C", n), item.label)
		f.SetCellValue(sh, cellAt("J", n), item.value)
		f.SetCellStyle(sh, cellAt("C", n), cellAt("C", n), st.row)
		f.SetCellStyle(sh, cellAt("J", n), cellAt("J", n), item.style)
	}
	return nil
}

func writeSellPriceSheet(f *excelize.File, st workbookStyles, grid []GridRow) error {
	sh := SellPriceSheet
	if err := f.SetColWidth(sh, "A", "A", 36); err != nil {
		return fmt.Errorf("set col width: %w", err)
	}
	if err := f.SetColWidth(sh, "B", "B", 16); err != nil {
		return fmt.Errorf("set col width: %w", err)
	}

	f.SetCellValue(sh, "A1", "Sell Price List")
	f.SetCellStyle(sh, "A1", "A1", st.title)
	f.SetCellValue(sh, "A3", "Item")
	f.SetCellValue(sh, "B3", "Sell Price")
	f.SetCellStyle(sh, "A3", "B3", st.header)

	byCell := make(map[string]GridRow, len(grid))
	for _, r := range grid {
		if r.SummaryCell != "" {
			byCell[r.SummaryCell] = r
		}
	}
	n := 4
	for _, cell := range RollupOrder {
		r, ok := byCell[cell]
		if !ok {
			continue
		}
		f.SetCellValue(sh, cellAt("A", n), sanitizeExcelCell(r.Description))
		f.SetCellValue(sh, cellAt("B", n), r.Sell)
		f.SetCellStyle(sh, cellAt("A", n), cellAt("A", n), st.row)
		f.SetCellStyle(sh, cellAt("B", n), cellAt("B", n), st.money)
		n++
	}
	return nil
}

func cellAt(col string, row int) string {
	return col + strconv.Itoa(row)
}

// sanitizeExcelCell prefixes values that Excel would otherwise treat as a
// formula with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
