package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdsquote/testhelpers"
)

func TestSettings_RoundTrip(t *testing.T) {
	app := testhelpers.NewTestApp(t)

	v, err := GetSetting(app, SettingCostSheetPath)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, SetSetting(app, SettingCostSheetPath, "/tmp/a.xlsx"))
	require.NoError(t, SetSetting(app, SettingCostSheetPath, "/tmp/b.xlsx"))

	v, err = GetSetting(app, SettingCostSheetPath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.xlsx", v)
	assert.Equal(t, 1, testhelpers.CountRecords(t, app, colAppSettings), "overwrite keeps one record")

	var ve *ValidationError
	assert.ErrorAs(t, SetSetting(app, " ", "x"), &ve)
}

func TestMarginChanges(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	old, next := 0.24, 0.3

	require.NoError(t, AddMarginChange(app, MarginChange{OldMargin: &old, NewMargin: &next, Source: "costsheet"}))
	require.NoError(t, AddMarginChange(app, MarginChange{NewMargin: nil, Source: "costsheet"}))

	all, err := MarginChanges(app, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var withValues *MarginChange
	for i := range all {
		if all[i].OldMargin != nil {
			withValues = &all[i]
		}
	}
	require.NotNil(t, withValues)
	assert.Equal(t, 0.24, *withValues.OldMargin)
	assert.Equal(t, 0.3, *withValues.NewMargin)

	limited, err := MarginChanges(app, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
