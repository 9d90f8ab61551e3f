package services

import (
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// SettingCostSheetPath is the app_settings key of the live cost sheet path.
const SettingCostSheetPath = "cost_sheet_path"

// GetSetting returns a stored setting, or "" when it was never set.
func GetSetting(app core.App, key string) (string, error) {
	rec, err := app.FindFirstRecordByData(colAppSettings, "key", key)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load setting %s: %w", key, err)
	}
	return rec.GetString("value"), nil
}

// SetSetting creates or replaces a setting.
func SetSetting(app core.App, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("key", "is required")
	}
	rec, err := app.FindFirstRecordByData(colAppSettings, "key", key)
	if isNoRows(err) {
		rec, err = newRecord(app, colAppSettings)
	}
	if err != nil {
		return fmt.Errorf("load setting %s: %w", key, err)
	}
	rec.Set("key", key)
	rec.Set("value", value)
	if err := app.Save(rec); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// MarginChange is one entry of the live cost sheet margin log. Either
// margin may be nil when the sheet cell was empty or not numeric.
type MarginChange struct {
	OldMargin *float64 `json:"old_margin"`
	NewMargin *float64 `json:"new_margin"`
	Source    string   `json:"source"`
	Created   string   `json:"created"`
}

// AddMarginChange appends to the margin log.
func AddMarginChange(app core.App, change MarginChange) error {
	rec, err := newRecord(app, colMarginChanges)
	if err != nil {
		return err
	}
	rec.Set("old_margin", change.OldMargin)
	rec.Set("new_margin", change.NewMargin)
	rec.Set("source", change.Source)
	if err := app.Save(rec); err != nil {
		return fmt.Errorf("save margin change: %w", err)
	}
	return nil
}

// MarginChanges returns the newest limit entries of the margin log, newest
// first. limit <= 0 returns everything.
func MarginChanges(app core.App, limit int) ([]MarginChange, error) {
	recs, err := app.FindRecordsByFilter(colMarginChanges, "id != ''", "-created", limit, 0, dbx.Params{})
	if err != nil {
		return nil, fmt.Errorf("list margin changes: %w", err)
	}
	out := make([]MarginChange, 0, len(recs))
	for _, r := range recs {
		c := MarginChange{Source: r.GetString("source"), Created: r.GetDateTime("created").String()}
		if err := decodeJSONField(r, "old_margin", &c.OldMargin); err != nil {
			return nil, err
		}
		if err := decodeJSONField(r, "new_margin", &c.NewMargin); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
