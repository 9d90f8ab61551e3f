package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// DemoQuoteNumber is the quote created by SeedDemoQuote.
const DemoQuoteNumber = "DEMO-0001"

// SeedDemoQuote creates a bare demo quote with the given input document
// when the quotes collection is empty. It reports whether it created one;
// the caller is expected to run the quote through costing afterwards.
func SeedDemoQuote(app core.App, customer string, data map[string]any) (bool, error) {
	quotesCol, err := app.FindCollectionByNameOrId("quotes")
	if err != nil {
		return false, fmt.Errorf("seed: could not find quotes collection: %w", err)
	}

	existing, err := app.FindRecordsByFilter(quotesCol, "id != ''", "", 1, 0, nil)
	if err != nil {
		return false, fmt.Errorf("seed: could not query quotes: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	record := core.NewRecord(quotesCol)
	record.Set("quote_number", DemoQuoteNumber)
	record.Set("customer", customer)
	record.Set("data", data)
	if err := app.Save(record); err != nil {
		return false, fmt.Errorf("seed: failed to create demo quote: %w", err)
	}

	log.Printf("seed: created demo quote %s (id=%s)\n", DemoQuoteNumber, record.Id)
	return true, nil
}
