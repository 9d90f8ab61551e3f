package collections

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// MetadataFunc derives the catalog metadata for a costing item code
// ("J18"). It reports false for codes the catalog does not know.
type MetadataFunc func(code string) (any, bool)

// MigrateCostingItemMetadata fills in the metadata of costing items that
// were stored without it. Items that already carry metadata are never
// touched. Safe to call on every startup; returns the number of repaired
// items.
func MigrateCostingItemMetadata(app core.App, derive MetadataFunc) (int, error) {
	itemsCol, err := app.FindCollectionByNameOrId("costing_items")
	if err != nil {
		return 0, fmt.Errorf("migrate: could not find costing_items collection: %w", err)
	}

	items, err := app.FindAllRecords(itemsCol)
	if err != nil {
		return 0, fmt.Errorf("migrate: could not query costing items: %w", err)
	}

	repaired := 0
	for _, item := range items {
		if hasMetadata(item) {
			continue
		}
		code := item.GetString("code")
		meta, ok := derive(code)
		if !ok {
			log.Printf("migrate: costing item %s has unknown code %q, leaving it\n", item.Id, code)
			continue
		}
		item.Set("metadata", meta)
		if err := app.Save(item); err != nil {
			log.Printf("migrate: failed to repair costing item %s: %v\n", item.Id, err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		log.Printf("migrate: repaired metadata of %d costing item(s)\n", repaired)
	}
	return repaired, nil
}

func hasMetadata(rec *core.Record) bool {
	var m map[string]any
	if err := json.Unmarshal([]byte(rec.GetString("metadata")), &m); err != nil {
		return false
	}
	return len(m) > 0
}
