package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBookmarks_FromTotals(t *testing.T) {
	s := newScenarioSummary(0.25)
	s.Quantities["Summary!H38"] = 3
	_, err := Recompute(s, nil)
	require.NoError(t, err)

	q := &Quote{Number: "1001", Customer: "Acme Mills", Summary: s, Data: map[string]any{"user": "jdoe"}}
	marks := BuildBookmarks(q, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "1001", marks["QuoteNum"])
	assert.Equal(t, "Acme Mills", marks["Customer"])
	assert.Equal(t, "jdoe", marks["User"])
	assert.Equal(t, "03/09/26", marks["Date"])
	assert.Equal(t, LayoutPlaceholder, marks["Layout"])
	assert.Equal(t, "88.00", marks["BasePrice"])
	// J38 carries unit cost 17 at quantity 3.
	assert.Equal(t, "68.00", marks["SparePrice"])
	assert.Equal(t, "3", marks["SpareQty"])
	assert.Equal(t, "1", marks["BladeQty"], "missing quantity cells read as 1")

	for _, opt := range proposalOptions {
		assert.Contains(t, marks, opt.name+"Price")
		assert.Contains(t, marks, opt.name+"Qty")
	}
}

func TestBuildBookmarks_Defaults(t *testing.T) {
	marks := BuildBookmarks(&Quote{Number: "7"}, time.Now())

	assert.Equal(t, DefaultCustomer, marks["Customer"])
	assert.Equal(t, "0.00", marks["BasePrice"])
	assert.Equal(t, "", marks["User"])
}

func TestBuildBookmarks_GeneratedAtWins(t *testing.T) {
	q := &Quote{Number: "7", Data: map[string]any{"generated_at": "12/31/25"}}
	marks := BuildBookmarks(q, time.Now())
	assert.Equal(t, "12/31/25", marks["Date"])
}
