package services

import (
	"fmt"
	"math"
	"sort"
)

// MaxOverrideMargin caps a per-row margin override.
const MaxOverrideMargin = 0.99

// ClampOverride bounds a per-row margin override to [0, 0.99].
func ClampOverride(m float64) float64 {
	switch {
	case math.IsNaN(m), m < 0:
		return 0
	case m > MaxOverrideMargin:
		return MaxOverrideMargin
	}
	return m
}

// SellFromCost applies margin-on-sell-price: sell = cost / (1 - m).
func SellFromCost(cost, margin float64) float64 {
	if cost > 0 && margin < 1 {
		return cost / (1 - margin)
	}
	return 0
}

// EnsureItems gives the summary one costing item per priced catalog row.
// Existing items keep their price fields; an item whose metadata is missing
// has it re-derived from the catalog. It reports whether anything changed.
func EnsureItems(summary *CostingSummary) bool {
	changed := false
	byRow := make(map[int]*CostingItem, len(summary.Items))
	byCode := make(map[string]*CostingItem, len(summary.Items))
	for _, item := range summary.Items {
		if item.Meta.RowIndex > 0 {
			byRow[item.Meta.RowIndex] = item
		} else if item.Code != "" {
			byCode[item.Code] = item
		}
	}

	for _, def := range PricedRows() {
		if _, ok := byRow[def.RowIndex]; ok {
			continue
		}
		if item, ok := byCode[def.SummaryCell]; ok {
			item.Meta = metadataFor(def)
			changed = true
			continue
		}
		summary.Items = append(summary.Items, &CostingItem{
			Code:        def.SummaryCell,
			Description: def.Description,
			Quantity:    1,
			UnitCost:    def.UnitCost,
			Category:    def.Badge,
			Meta:        metadataFor(def),
		})
		changed = true
	}
	return changed
}

func metadataFor(def RowDefinition) ItemMetadata {
	return ItemMetadata{
		RowIndex:      def.RowIndex,
		SummaryCell:   def.SummaryCell,
		QuantityCell:  def.QuantityCell,
		DefaultMargin: copyFloat(def.DefaultMargin),
		Badge:         def.Badge,
	}
}

// MetadataForCode returns the catalog metadata of a rollup cell ("J18").
func MetadataForCode(code string) (ItemMetadata, bool) {
	idx, ok := RowIndexForCell(code)
	if !ok {
		return ItemMetadata{}, false
	}
	def, _ := RowDefinitionAt(idx)
	return metadataFor(def), true
}

// ItemForRow finds the costing item bound to a row index.
func ItemForRow(summary *CostingSummary, rowIndex int) (*CostingItem, error) {
	for _, item := range summary.Items {
		if item.Meta.RowIndex == rowIndex {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: row %d", ErrRowNotFound, rowIndex)
}

// SetOverride stores a clamped margin override on a row; nil clears it.
func SetOverride(summary *CostingSummary, rowIndex int, override *float64) error {
	item, err := ItemForRow(summary, rowIndex)
	if err != nil {
		return err
	}
	if override == nil {
		item.OverrideMargin = nil
		return nil
	}
	v := ClampOverride(*override)
	item.OverrideMargin = &v
	return nil
}

// SetToggle records a toggle state as 0 or 1.
func SetToggle(summary *CostingSummary, cell string, value int) {
	if summary.Toggles == nil {
		summary.Toggles = make(map[string]int, len(ToggleCells))
	}
	summary.Toggles[cell] = toggleBit(value)
}

// ForceEnableAll switches every known toggle on.
func ForceEnableAll(summary *CostingSummary) {
	summary.Toggles = make(map[string]int, len(ToggleCells))
	for _, cell := range ToggleCells {
		summary.Toggles[cell] = 1
	}
}

func toggleBit(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}

// Recompute rebuilds totals, footer and the grid snapshot from the summary's
// items, quantities and margin. A non-nil margin replaces the stored one.
func Recompute(summary *CostingSummary, margin *float64) (RollupResult, error) {
	if margin != nil {
		summary.Margin = *margin
	}
	m := summary.Margin

	grid := BuildInitialGrid()
	for i := range grid {
		grid[i].EffMarginK = m
	}

	items := make([]*CostingItem, len(summary.Items))
	copy(items, summary.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Meta.RowIndex < items[j].Meta.RowIndex
	})

	costMap := make(map[string]float64, len(RollupOrder))
	sellMap := make(map[string]float64, len(RollupOrder))
	var footer Footer

	for _, item := range items {
		def, ok := RowDefinitionAt(item.Meta.RowIndex)
		if !ok || !def.Priced() {
			continue
		}
		if _, seen := costMap[def.SummaryCell]; seen {
			continue
		}

		qty := finite(item.Quantity)
		mult := 1.0
		var shown *float64
		if def.QuantityCell != "" {
			if v, ok := summary.Quantities[def.QuantityCell]; ok {
				mult = finite(v)
			}
			mult = math.Max(mult, 0)
			shown = &mult
		}
		cost := finite(item.UnitCost) * math.Max(qty, 0) * mult

		eff := m
		if item.OverrideMargin != nil {
			eff = *item.OverrideMargin
			footer.OverrideCount++
		}
		sell := SellFromCost(cost, eff)

		costMap[def.SummaryCell] = cost
		sellMap[def.SummaryCell] = sell
		footer.LineCount++
		footer.TotalCost += cost
		footer.TotalSell += sell

		row := &grid[def.RowIndex-1]
		row.Description = item.Description
		row.QtyH = shown
		row.Cost = cost
		row.Sell = sell
		row.EffMarginK = eff
		row.OverrideL = copyFloat(item.OverrideMargin)
	}

	ctx := make(map[string]float64, len(RollupOrder))
	cells := make(map[string]float64, len(RollupOrder))
	for _, cell := range RollupOrder {
		ctx[cell] = costMap[cell]
		cells[cell] = costMap[cell]
	}
	base, err := Evaluate(BaseCostFormula, ctx)
	if err != nil {
		return RollupResult{}, fmt.Errorf("cel: base rollup: %w", err)
	}

	if footer.TotalCost != 0 && footer.TotalSell != 0 {
		footer.OverallMargin = 1 - footer.TotalCost/footer.TotalSell
	}
	if footer.LineCount > 0 {
		footer.OverridePercent = float64(footer.OverrideCount) / float64(footer.LineCount)
	}
	for _, cell := range BaseRollupCells {
		footer.BaseSellTotal += sellMap[cell]
	}

	toggles := make(map[string]int, len(ToggleCells))
	for _, cell := range ToggleCells {
		toggles[cell] = toggleBit(summary.Toggles[cell])
	}

	totals := Totals{
		Cells:     cells,
		BaseTotal: base.Value,
		Margin:    m,
		SellPrice: base.Value * (1 + m),
		SellMap:   sellMap,
		CostMap:   costMap,
		Footer:    footer,
	}

	summary.Toggles = toggles
	summary.Totals = totals
	summary.Grid = grid

	return RollupResult{
		Totals:  totals,
		Margin:  m,
		Toggles: toggles,
		Grid:    grid,
		Footer:  footer,
		SellMap: sellMap,
	}, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
