package services

import (
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// DefaultCustomer fills the Customer bookmark when a quote has none.
const DefaultCustomer = "Unknown Customer"

// LayoutPlaceholder fills the Layout bookmark until a layout image exists.
const LayoutPlaceholder = "[Layout image not captured - upload via UI]"

// proposalOptions maps each option bookmark prefix to its rollup cell.
var proposalOptions = []struct {
	name string
	cell string
}{
	{"Spare", "J38"},
	{"Blade", "J39"},
	{"Foam", "J40"},
	{"Tall", "J32"},
	{"Net", "J33"},
	{"FrontUSL", "J18"},
	{"SideUSL", "J19"},
	{"SideBadger", "J20"},
	{"Canada", "J45"},
	{"Step", "J46"},
	{"Train", "J47"},
}

// BuildBookmarks produces the proposal text for every bookmark from the
// quote's current totals and quantities.
func BuildBookmarks(q *Quote, now time.Time) map[string]string {
	customer := q.Customer
	if customer == "" {
		customer = DefaultCustomer
	}
	date := cast.ToString(q.Data["generated_at"])
	if date == "" {
		date = now.Format("01/02/06")
	}

	var totals Totals
	quantities := map[string]float64{}
	if q.Summary != nil {
		totals = q.Summary.Totals
		quantities = q.Summary.Quantities
	}

	marks := map[string]string{
		"QuoteNum":  q.Number,
		"Customer":  customer,
		"Layout":    LayoutPlaceholder,
		"BasePrice": FormatAmount(totals.Footer.BaseSellTotal),
		"Date":      date,
		"User":      cast.ToString(q.Data["user"]),
	}
	for _, opt := range proposalOptions {
		marks[opt.name+"Price"] = FormatAmount(totals.SellMap[opt.cell])
		qty := quantityValue(quantities, quantityCellFor(opt.cell))
		marks[opt.name+"Qty"] = strconv.FormatFloat(qty, 'f', -1, 64)
	}
	return marks
}
