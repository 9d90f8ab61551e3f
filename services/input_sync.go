package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// MergeInputs merges src into dst. Nested objects merge field by field;
// scalars and lists replace what was there.
func MergeInputs(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		incoming, isMap := value.(map[string]any)
		existing, hadMap := dst[key].(map[string]any)
		if isMap && hadMap {
			dst[key] = MergeInputs(existing, incoming)
			continue
		}
		if isMap {
			dst[key] = MergeInputs(nil, incoming)
			continue
		}
		dst[key] = value
	}
	return dst
}

// lookupInput finds a field by its flat id ("sys.guarding") or, failing
// that, by walking the dotted path through nested objects.
func lookupInput(data map[string]any, id string) (any, bool) {
	if v, ok := data[id]; ok {
		return v, true
	}
	var cur any = data
	for _, part := range strings.Split(id, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

type quantityField struct {
	id   string
	cell string
}

// Count fields copy their value straight into a quantity cell.
var countFields = []quantityField{
	{"sys.spare_parts_qty", "Summary!H38"},
	{"sys.spare_saw_blades_qty", "Summary!H39"},
	{"sys.spare_foam_pads_qty", "Summary!H40"},
}

type optionGroup struct {
	id      string
	cells   []string
	choices map[string]string
}

// Option groups are one-hot: the chosen cell becomes 1, the rest of the
// group 0. A choice mapped to "" selects none of them.
var optionGroups = []optionGroup{
	{
		id:    "sys.guarding",
		cells: []string{"Summary!H32", "Summary!H33"},
		choices: map[string]string{
			"Standard":        "",
			"Tall":            "Summary!H32",
			"Tall w/ Netting": "Summary!H33",
		},
	},
	{
		id:    "sys.feeding_funneling",
		cells: []string{"Summary!H18", "Summary!H19", "Summary!H20"},
		choices: map[string]string{
			"No":           "",
			"Front USL":    "Summary!H18",
			"Front Badger": "Summary!H18",
			"Side USL":     "Summary!H19",
			"Side Badger":  "Summary!H20",
		},
	},
	{
		id:    "sys.transformer",
		cells: []string{"Summary!H45", "Summary!H46"},
		choices: map[string]string{
			"None":    "",
			"Canada":  "Summary!H45",
			"Step Up": "Summary!H46",
		},
	},
	{
		id:    "sys.training_lang",
		cells: []string{"Summary!H47"},
		choices: map[string]string{
			"English":           "",
			"English & Spanish": "Summary!H47",
		},
	},
}

// SyncQuantities derives quantity cells from the known input fields present
// in data. Fields that are absent leave their cells untouched.
func SyncQuantities(data map[string]any, quantities map[string]float64) (map[string]float64, error) {
	if quantities == nil {
		quantities = make(map[string]float64)
	}
	for _, f := range countFields {
		raw, ok := lookupInput(data, f.id)
		if !ok {
			continue
		}
		if _, isBool := raw.(bool); isBool {
			return nil, invalid(f.id, "must be numeric")
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(f.id, "must be numeric")
		}
		if v < 0 {
			v = 0
		}
		quantities[f.cell] = v
	}

	for _, g := range optionGroups {
		raw, ok := lookupInput(data, g.id)
		if !ok {
			continue
		}
		choice := strings.TrimSpace(cast.ToString(raw))
		selected, known := g.choices[choice]
		if !known {
			return nil, invalid(g.id, "invalid enum for %s", g.id)
		}
		for _, cell := range g.cells {
			quantities[cell] = 0
		}
		if selected != "" {
			quantities[selected] = 1
		}
	}
	return quantities, nil
}

// Legacy sheet-shaped keys kept in the quote data for older consumers.
const (
	legacyPriceSheet  = "Sheet3"
	legacyMarginSheet = "Sheet1"
	legacyMarginCell  = "B12"
	legacyBaseCell    = "B2"
)

// legacyOptionRows pairs each Sheet3 row with the rollup cell whose sell
// value it carries (column B) and the quantity cell behind it (column C).
var legacyOptionRows = []struct {
	row      int
	sellCell string
}{
	{3, "J38"}, {4, "J39"}, {5, "J40"},
	{6, "J32"}, {7, "J33"},
	{8, "J18"}, {9, "J19"}, {10, "J20"},
	{11, "J45"}, {12, "J46"}, {13, "J47"},
}

func quantityCellFor(sellCell string) string {
	idx, ok := RowIndexForCell(sellCell)
	if !ok {
		return ""
	}
	def, _ := RowDefinitionAt(idx)
	return def.QuantityCell
}

// ExportCells is the flat "Sheet!Cell" value map for the costing workbook.
func ExportCells(totals Totals, quantities map[string]float64) map[string]float64 {
	out := map[string]float64{
		legacyPriceSheet + "!" + legacyBaseCell:    totals.Footer.BaseSellTotal,
		legacyMarginSheet + "!" + legacyMarginCell: totals.Margin,
	}
	for _, r := range legacyOptionRows {
		out[legacyPriceSheet+"!B"+strconv.Itoa(r.row)] = totals.SellMap[r.sellCell]
		out[legacyPriceSheet+"!C"+strconv.Itoa(r.row)] = quantityValue(quantities, quantityCellFor(r.sellCell))
	}
	return out
}

func quantityValue(quantities map[string]float64, cell string) float64 {
	if v, ok := quantities[cell]; ok {
		return v
	}
	return 1
}

// BackWriteLegacy mirrors the export cells into data under the legacy
// sheet-shaped keys.
func BackWriteLegacy(data map[string]any, totals Totals, quantities map[string]float64) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}
	for ref, v := range ExportCells(totals, quantities) {
		sheet, cell, _ := strings.Cut(ref, "!")
		m, ok := data[sheet].(map[string]any)
		if !ok {
			m = make(map[string]any)
			data[sheet] = m
		}
		m[cell] = v
	}
	return data
}
