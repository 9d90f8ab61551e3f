package services

import (
	"sort"
	"strconv"
	"strings"
)

// SummarySheet is the sheet name that prefixes quantity cell references.
const SummarySheet = "Summary"

// SummaryRowCount is the number of rows in the Summary grid.
const SummaryRowCount = 59

// BaseCostFormula rolls up the cost of the fixed base rows.
const BaseCostFormula = "SUM(J4:J10,J14,J17,J24,J31)"

// Row badges.
const (
	BadgeBase   = "BASE"
	BadgeInfeed = "INFEED"
	BadgeGuard  = "GUARD"
	BadgeSpares = "SPARES"
	BadgeMisc   = "MISC"
)

// RowDefinition describes one row of the Summary grid. Rows without a
// SummaryCell are structural and never carry a costing item.
type RowDefinition struct {
	RowIndex      int
	Badge         string
	Description   string
	UnitCost      float64
	DefaultMargin *float64
	QuantityCell  string
	SummaryCell   string
}

// Priced reports whether the row feeds a rollup cell.
func (d RowDefinition) Priced() bool {
	return d.SummaryCell != ""
}

const defaultRowMargin = 0.24

func pricedRow(idx int, badge, desc string, cost float64, qtyCell string) RowDefinition {
	m := defaultRowMargin
	def := RowDefinition{
		RowIndex:      idx,
		Badge:         badge,
		Description:   desc,
		UnitCost:      cost,
		DefaultMargin: &m,
		SummaryCell:   "J" + strconv.Itoa(idx),
	}
	if qtyCell != "" {
		def.QuantityCell = SummarySheet + "!" + qtyCell
	}
	return def
}

var summaryRows = buildSummaryRows()

func buildSummaryRows() [SummaryRowCount]RowDefinition {
	var rows [SummaryRowCount]RowDefinition
	for i := range rows {
		rows[i] = RowDefinition{RowIndex: i + 1}
	}
	rows[0].Description = "Cost Summary"
	rows[1].Description = "All values shown in USD"

	priced := []RowDefinition{
		pricedRow(4, BadgeBase, "Base Frame", 2500, ""),
		pricedRow(5, BadgeBase, "Controls Package", 1250, ""),
		pricedRow(6, BadgeBase, "Electrical Installation", 1850, ""),
		pricedRow(7, BadgeBase, "Mechanical Assembly", 2650, ""),
		pricedRow(8, BadgeBase, "Controls Engineering", 3325, ""),
		pricedRow(9, BadgeBase, "Mechanical Engineering", 1525, ""),
		pricedRow(10, BadgeBase, "Project Management", 2140, ""),
		pricedRow(14, BadgeBase, "Factory Acceptance", 3550, ""),
		pricedRow(17, BadgeBase, "Installation", 5125, ""),
		pricedRow(18, BadgeInfeed, "Infeed Conveyor - Option 1", 1890, "H18"),
		pricedRow(19, BadgeInfeed, "Infeed Conveyor - Option 2", 2275, "H19"),
		pricedRow(20, BadgeInfeed, "Infeed Conveyor - Option 3", 2640, "H20"),
		pricedRow(24, BadgeBase, "Integration Engineering", 3900, ""),
		pricedRow(31, BadgeBase, "Commissioning", 2840, ""),
		pricedRow(32, BadgeGuard, "Guarding - Option 1", 4260, "H32"),
		pricedRow(33, BadgeGuard, "Guarding - Option 2", 4895, "H33"),
		pricedRow(38, BadgeSpares, "Spare Parts Package", 10069, "H38"),
		pricedRow(39, BadgeSpares, "Spare Saw Blades", 155, "H39"),
		pricedRow(40, BadgeSpares, "Spare Foam Pads", 224, "H40"),
		pricedRow(45, BadgeMisc, "Transformer - Canada", 10651.258, "H45"),
		pricedRow(46, BadgeMisc, "Transformer - Step Up", 6401.453, "H46"),
		pricedRow(47, BadgeMisc, "Training - Spanish", 0, "H47"),
	}
	for _, def := range priced {
		rows[def.RowIndex-1] = def
	}
	return rows
}

// RollupOrder lists the rollup cells: base rows first, then options.
var RollupOrder = []string{
	"J4", "J5", "J6", "J7", "J8", "J9", "J10", "J14", "J17", "J24", "J31",
	"J18", "J19", "J20", "J32", "J33", "J38", "J39", "J40", "J45", "J46", "J47",
}

// BaseRollupCells are the non-optional rows summed into the base sell price.
var BaseRollupCells = RollupOrder[:11]

// ToggleCells are the option cells a user can switch on or off.
var ToggleCells = []string{
	"H18", "H19", "H20", "H32", "H33", "H38", "H39", "H40", "H45", "H46", "H47",
}

var cellToRow = func() map[string]int {
	m := make(map[string]int, len(RollupOrder))
	for _, def := range summaryRows {
		if def.Priced() {
			m[def.SummaryCell] = def.RowIndex
		}
	}
	return m
}()

// RowDefinitionAt returns the catalog entry for a 1-based row index.
func RowDefinitionAt(rowIndex int) (RowDefinition, bool) {
	if rowIndex < 1 || rowIndex > SummaryRowCount {
		return RowDefinition{}, false
	}
	return summaryRows[rowIndex-1], true
}

// RowIndexForCell maps a rollup cell such as "J18" back to its row.
func RowIndexForCell(cell string) (int, bool) {
	idx, ok := cellToRow[strings.ToUpper(strings.TrimSpace(cell))]
	return idx, ok
}

// PricedRows returns the catalog rows that carry a costing item, in row order.
func PricedRows() []RowDefinition {
	out := make([]RowDefinition, 0, len(RollupOrder))
	for _, def := range summaryRows {
		if def.Priced() {
			out = append(out, def)
		}
	}
	return out
}

// QuantityCells returns every quantity cell declared by the catalog, sorted.
func QuantityCells() []string {
	var out []string
	for _, def := range summaryRows {
		if def.QuantityCell != "" {
			out = append(out, def.QuantityCell)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeQuantityCell accepts "H18", "h18" or "Summary!H18" and returns the
// sheet-qualified form, or false when no row declares that cell.
func NormalizeQuantityCell(cell string) (string, bool) {
	ref := strings.ToUpper(strings.TrimSpace(cell))
	ref = strings.TrimPrefix(ref, strings.ToUpper(SummarySheet)+"!")
	qualified := SummarySheet + "!" + ref
	for _, def := range summaryRows {
		if def.QuantityCell == qualified {
			return qualified, true
		}
	}
	return "", false
}

// NormalizeToggleCell accepts "H18" or "Summary!H18" and returns the bare
// toggle cell, or false when it is not a known toggle.
func NormalizeToggleCell(cell string) (string, bool) {
	ref := strings.ToUpper(strings.TrimSpace(cell))
	ref = strings.TrimPrefix(ref, strings.ToUpper(SummarySheet)+"!")
	for _, c := range ToggleCells {
		if c == ref {
			return c, true
		}
	}
	return "", false
}

// BuildInitialGrid returns the zero state of the 59-row grid, seeded only
// from the catalog.
func BuildInitialGrid() []GridRow {
	grid := make([]GridRow, SummaryRowCount)
	for i, def := range summaryRows {
		grid[i] = GridRow{
			RowIndex:     def.RowIndex,
			Tab:          def.Badge,
			Description:  def.Description,
			QuantityCell: def.QuantityCell,
			SummaryCell:  def.SummaryCell,
			DefaultM:     copyFloat(def.DefaultMargin),
			IsEditable:   def.Priced(),
		}
	}
	return grid
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
