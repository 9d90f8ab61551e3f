package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// MigrateDefaultSettings creates the given app_settings keys when they are
// missing. Stored values always win over defaults; empty defaults are
// skipped. Safe to call on every startup.
func MigrateDefaultSettings(app core.App, defaults map[string]string) error {
	settingsCol, err := app.FindCollectionByNameOrId("app_settings")
	if err != nil {
		return fmt.Errorf("migrate_settings: could not find app_settings collection: %w", err)
	}

	for key, value := range defaults {
		if value == "" {
			continue
		}
		existing, _ := app.FindRecordsByFilter(
			settingsCol,
			"key = {:key}",
			"",
			1, 0,
			map[string]any{"key": key},
		)
		if len(existing) > 0 {
			continue
		}

		record := core.NewRecord(settingsCol)
		record.Set("key", key)
		record.Set("value", value)
		if err := app.Save(record); err != nil {
			log.Printf("migrate_settings: failed to create setting %s: %v\n", key, err)
			continue
		}
	}
	return nil
}
