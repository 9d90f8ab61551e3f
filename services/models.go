package services

import (
	"encoding/json"
	"fmt"

	"github.com/pocketbase/pocketbase/core"
)

// Quote is one priced equipment configuration, identified by its number.
type Quote struct {
	ID       string
	Number   string
	Customer string
	Data     map[string]any
	Summary  *CostingSummary
	Pricing  *Pricing

	record *core.Record
}

// CostingSummary holds the per-quote pricing state. Totals and Grid are
// derived and are replaced wholesale on every recompute.
type CostingSummary struct {
	ID         string
	Margin     float64
	Toggles    map[string]int
	Quantities map[string]float64
	Totals     Totals
	Grid       []GridRow
	Items      []*CostingItem

	record *core.Record
}

// ItemMetadata links a costing item to its catalog row.
type ItemMetadata struct {
	RowIndex      int      `json:"row_index"`
	SummaryCell   string   `json:"summary_cell"`
	QuantityCell  string   `json:"quantity_cell,omitempty"`
	DefaultMargin *float64 `json:"default_margin,omitempty"`
	Badge         string   `json:"badge"`
}

// CostingItem is one priced line of a summary.
type CostingItem struct {
	ID             string
	Code           string
	Description    string
	Quantity       float64
	UnitCost       float64
	Category       string
	OverrideMargin *float64
	Meta           ItemMetadata

	record *core.Record
}

// Pricing is the read-optimised projection of the latest recompute.
type Pricing struct {
	ID       string
	Subtotal float64
	Margin   float64
	Total    float64
	Data     Totals

	record *core.Record
}

// Footer aggregates every priced row of the grid.
type Footer struct {
	TotalCost       float64 `json:"total_cost"`
	TotalSell       float64 `json:"total_sell"`
	OverallMargin   float64 `json:"overall_margin"`
	LineCount       int     `json:"line_count"`
	OverrideCount   int     `json:"override_count"`
	OverridePercent float64 `json:"override_percent"`
	BaseSellTotal   float64 `json:"base_sell_total"`
}

// GridRow is the visible state of one Summary row.
type GridRow struct {
	RowIndex     int      `json:"rowIndex"`
	Tab          string   `json:"tab"`
	Description  string   `json:"description"`
	QuantityCell string   `json:"quantityCell,omitempty"`
	SummaryCell  string   `json:"summaryCell,omitempty"`
	DefaultM     *float64 `json:"defaultM"`
	IsEditable   bool     `json:"isEditable"`
	QtyH         *float64 `json:"qtyH"`
	Cost         float64  `json:"cost"`
	Sell         float64  `json:"sell"`
	EffMarginK   float64  `json:"effMarginK"`
	OverrideL    *float64 `json:"overrideL"`
}

// Totals is the rollup bag. It serialises flat: every rollup cell is a top
// level key next to base_total, margin, sell_price and the nested maps.
type Totals struct {
	Cells     map[string]float64
	BaseTotal float64
	Margin    float64
	SellPrice float64
	SellMap   map[string]float64
	CostMap   map[string]float64
	Footer    Footer
}

const (
	totalsBaseTotal = "base_total"
	totalsMargin    = "margin"
	totalsSellPrice = "sell_price"
	totalsSellMap   = "sell_map"
	totalsCostMap   = "cost_map"
	totalsFooter    = "footer"
)

func (t Totals) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Cells)+6)
	for cell, v := range t.Cells {
		out[cell] = v
	}
	out[totalsBaseTotal] = t.BaseTotal
	out[totalsMargin] = t.Margin
	out[totalsSellPrice] = t.SellPrice
	out[totalsSellMap] = nonNilMap(t.SellMap)
	out[totalsCostMap] = nonNilMap(t.CostMap)
	out[totalsFooter] = t.Footer
	return json.Marshal(out)
}

func (t *Totals) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Totals{Cells: make(map[string]float64)}

	for key, msg := range raw {
		var err error
		switch key {
		case totalsBaseTotal:
			err = json.Unmarshal(msg, &t.BaseTotal)
		case totalsMargin:
			err = json.Unmarshal(msg, &t.Margin)
		case totalsSellPrice:
			err = json.Unmarshal(msg, &t.SellPrice)
		case totalsSellMap:
			err = json.Unmarshal(msg, &t.SellMap)
		case totalsCostMap:
			err = json.Unmarshal(msg, &t.CostMap)
		case totalsFooter:
			err = json.Unmarshal(msg, &t.Footer)
		default:
			var v float64
			if json.Unmarshal(msg, &v) == nil {
				t.Cells[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("totals: decode %s: %w", key, err)
		}
	}
	return nil
}

func nonNilMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

// RollupResult is returned by every mutating operation.
type RollupResult struct {
	Totals  Totals             `json:"totals"`
	Margin  float64            `json:"margin"`
	Toggles map[string]int     `json:"toggles"`
	Grid    []GridRow          `json:"grid"`
	Footer  Footer             `json:"footer"`
	SellMap map[string]float64 `json:"sellMap"`
}
