package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdsquote/testhelpers"
)

func newTestService(t *testing.T) (*QuoteService, core.App) {
	t.Helper()
	app := testhelpers.NewTestApp(t)
	dir := t.TempDir()
	svc := NewQuoteService(app, nil, QuoteOptions{DefaultMargin: 0.24, OutputDir: filepath.Join(dir, "out")},
		CostingWorkbook{},
		ProposalDocument{Template: testhelpers.WriteProposalTemplate(t, dir)},
	)
	return svc, app
}

func TestGetOrCreateQuote_CreatesWithInitialRollup(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	view, err := svc.GetOrCreateQuote(ctx, " 1001 ")
	require.NoError(t, err)

	assert.Equal(t, "1001", view.QuoteNumber)
	assert.Len(t, view.Summary.Grid, SummaryRowCount)
	assert.Equal(t, 0.24, view.Pricing.Margin)
	assert.Equal(t, len(RollupOrder), view.Summary.Footer.LineCount)
	assert.InDelta(t, view.Summary.Footer.BaseSellTotal, view.Pricing.Subtotal, 1e-9)
	assert.InDelta(t, view.Summary.Footer.TotalSell, view.Pricing.Total, 1e-9)

	for _, cell := range RollupOrder {
		row, _ := RowIndexForCell(cell)
		def, _ := RowDefinitionAt(row)
		if def.QuantityCell != "" {
			assert.Zero(t, view.Summary.SellMap[cell], "%s starts unselected", cell)
		}
	}
	for _, cell := range BaseRollupCells {
		assert.Positive(t, view.Summary.SellMap[cell], "%s is priced", cell)
	}
	assert.InDelta(t, view.Summary.Footer.BaseSellTotal, view.Summary.Footer.TotalSell, 1e-6, "a new quote is base-only")

	q, err := loadQuote(app, "1001")
	require.NoError(t, err)
	for _, cell := range QuantityCells() {
		v, ok := q.Summary.Quantities[cell]
		assert.True(t, ok, "%s is stored", cell)
		assert.Zero(t, v, cell)
	}

	assert.Equal(t, 1, testhelpers.CountRecords(t, app, colQuotes))
	assert.Equal(t, len(RollupOrder), testhelpers.CountRecords(t, app, colItems))

	again, err := svc.GetOrCreateQuote(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, view.Summary.Footer, again.Summary.Footer)
	assert.Equal(t, 1, testhelpers.CountRecords(t, app, colQuotes))
	assert.Equal(t, len(RollupOrder), testhelpers.CountRecords(t, app, colItems), "items are not duplicated")
}

func TestGetOrCreateQuote_LogsCreateOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetOrCreateQuote(ctx, "1002")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	_, err := svc.GetOrCreateQuote(ctx, "1002")
	require.NoError(t, err)

	entries, err := svc.Usage("1002")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventCreate, entries[0].Event)
}

func TestGetOrCreateQuote_RepairsBareQuote(t *testing.T) {
	svc, app := newTestService(t)

	col, err := app.FindCollectionByNameOrId(colQuotes)
	require.NoError(t, err)
	rec := core.NewRecord(col)
	rec.Set("quote_number", "1004")
	rec.Set("customer", "Imported")
	require.NoError(t, app.Save(rec))

	view, err := svc.GetOrCreateQuote(context.Background(), "1004")
	require.NoError(t, err)
	assert.Len(t, view.Summary.Grid, SummaryRowCount)
	assert.Equal(t, 1, testhelpers.CountRecords(t, app, colQuotes))

	entries, err := svc.Usage("1004")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventRepair, entries[0].Event)
}

func TestUpdateInput_NonFiniteCountKeepsQuantities(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, "1003", "H39", 4)
	require.NoError(t, err)

	for _, bad := range []string{"Inf", "NaN"} {
		_, err := svc.UpdateInput(ctx, "1003", InputUpdate{
			Data: map[string]any{"sys.spare_foam_pads_qty": bad},
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, bad)
		assert.Equal(t, "sys.spare_foam_pads_qty", ve.Field)
	}

	q, err := loadQuote(app, "1003")
	require.NoError(t, err)
	assert.Equal(t, 4.0, q.Summary.Quantities["Summary!H39"])

	res, err := svc.RecomputeCosting(ctx, "1003", nil)
	require.NoError(t, err)
	assert.InDelta(t, 4*155.0, res.Totals.CostMap["J39"], 1e-9)
	assert.Zero(t, res.Totals.CostMap["J40"])
}

func TestGetOrCreateQuote_BlankNumber(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetOrCreateQuote(context.Background(), "  ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quote_number", ve.Field)
}

func TestUpdateInput_SyncsQuantitiesAndBackWrites(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()
	customer := "Acme Mills"

	res, err := svc.UpdateInput(ctx, "2002", InputUpdate{
		Data: map[string]any{
			"sys": map[string]any{
				"feeding_funneling": "Front USL",
				"spare_parts_qty":   2,
			},
		},
		Customer: &customer,
	})
	require.NoError(t, err)

	j18, _ := RowIndexForCell("J18")
	assert.Equal(t, 1.0, *res.Grid[j18-1].QtyH)
	assert.InDelta(t, 1890/0.76, res.SellMap["J18"], 1e-6)
	assert.Equal(t, 0.0, res.SellMap["J19"])
	assert.InDelta(t, 2*10069/0.76, res.SellMap["J38"], 1e-6)

	q, err := loadQuote(app, "2002")
	require.NoError(t, err)
	assert.Equal(t, "Acme Mills", q.Customer)

	sheet3, ok := q.Data["Sheet3"].(map[string]any)
	require.True(t, ok, "legacy Sheet3 block is written")
	assert.InDelta(t, res.SellMap["J18"], sheet3["B8"], 1e-6)
	assert.InDelta(t, res.Footer.BaseSellTotal, sheet3["B2"], 1e-6)
	assert.InDelta(t, 2.0, sheet3["C3"], 1e-9)

	sys, ok := q.Data["sys"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Front USL", sys["feeding_funneling"])
}

func TestUpdateInput_InvalidEnumRollsBack(t *testing.T) {
	svc, app := newTestService(t)

	_, err := svc.UpdateInput(context.Background(), "3003", InputUpdate{
		Data: map[string]any{"sys.guarding": "Electric Fence"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sys.guarding", ve.Field)
	assert.Equal(t, 0, testhelpers.CountRecords(t, app, colQuotes), "failed create leaves nothing behind")
}

func TestSetMargin_AndReset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SetMargin(ctx, "4004", 0.3)
	require.NoError(t, err)
	assert.Equal(t, 0.3, res.Margin)
	assert.InDelta(t, res.Totals.BaseTotal*1.3, res.Totals.SellPrice, 1e-6)

	for _, bad := range []float64{-0.1, 1, 1.5} {
		_, err := svc.SetMargin(ctx, "4004", bad)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "margin %v", bad)
	}

	res, err = svc.ResetMargin(ctx, "4004")
	require.NoError(t, err)
	assert.Equal(t, 0.24, res.Margin)
}

func TestSetSummaryOverride_ClampAndClear(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()
	high := 1.7

	res, err := svc.SetSummaryOverride(ctx, "5005", 4, &high)
	require.NoError(t, err)
	require.NotNil(t, res.Grid[3].OverrideL)
	assert.Equal(t, MaxOverrideMargin, *res.Grid[3].OverrideL)
	assert.Equal(t, 1, res.Footer.OverrideCount)
	assert.InDelta(t, 2500/(1-MaxOverrideMargin), res.SellMap["J4"], 1e-6)

	q, err := loadQuote(app, "5005")
	require.NoError(t, err)
	item, err := ItemForRow(q.Summary, 4)
	require.NoError(t, err)
	require.NotNil(t, item.OverrideMargin, "override is persisted")
	assert.Equal(t, MaxOverrideMargin, *item.OverrideMargin)

	res, err = svc.SetSummaryOverride(ctx, "5005", 4, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Grid[3].OverrideL)
	assert.Equal(t, 0, res.Footer.OverrideCount)
}

func TestUnknownRow_NoMutation(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetMargin(ctx, "6006", 0.3)
	require.NoError(t, err)
	before, err := svc.Usage("6006")
	require.NoError(t, err)

	cost := 999.0
	_, err = svc.UpdateLineItem(ctx, "6006", 2, LineItemUpdate{UnitCost: cost})
	assert.True(t, errors.Is(err, ErrRowNotFound))

	half := 0.5
	_, err = svc.SetSummaryOverride(ctx, "6006", 58, &half)
	assert.True(t, errors.Is(err, ErrRowNotFound))

	after, err := svc.Usage("6006")
	require.NoError(t, err)
	assert.Len(t, after, len(before), "failed mutations add no usage entries")

	q, err := loadQuote(app, "6006")
	require.NoError(t, err)
	assert.Equal(t, 0.3, q.Summary.Margin)
}

func TestUpdateLineItem_LenientNumbers(t *testing.T) {
	svc, _ := newTestService(t)
	desc := "  Custom frame "

	res, err := svc.UpdateLineItem(context.Background(), "7007", 4, LineItemUpdate{
		Description: &desc,
		Quantity:    "2",
		UnitCost:    "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom frame", res.Grid[3].Description)
	assert.Equal(t, 0.0, res.Totals.CostMap["J4"])
}

func TestUpdateLineItem_NonFiniteNumbersBecomeZero(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	for _, bad := range []string{"NaN", "Inf", "-Inf"} {
		res, err := svc.UpdateLineItem(ctx, "7008", 4, LineItemUpdate{UnitCost: bad})
		require.NoError(t, err, "unit cost %s", bad)
		assert.Zero(t, res.Totals.CostMap["J4"], bad)

		res, err = svc.UpdateLineItem(ctx, "7008", 5, LineItemUpdate{Quantity: bad})
		require.NoError(t, err, "quantity %s", bad)
		assert.Zero(t, res.Totals.CostMap["J5"], bad)
	}

	q, err := loadQuote(app, "7008")
	require.NoError(t, err)
	j4, err := ItemForRow(q.Summary, 4)
	require.NoError(t, err)
	assert.Zero(t, j4.UnitCost)
	j5, err := ItemForRow(q.Summary, 5)
	require.NoError(t, err)
	assert.Zero(t, j5.Quantity)
}

func TestSetToggle_AndQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SetToggle(ctx, "8008", "Summary!H38", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Toggles["H38"])

	_, err = svc.SetToggle(ctx, "8008", "H99", 1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	res, err = svc.SetQuantity(ctx, "8008", "H39", 4)
	require.NoError(t, err)
	assert.InDelta(t, 4*155/0.76, res.SellMap["J39"], 1e-6)

	_, err = svc.SetQuantity(ctx, "8008", "H39", -1)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "value", ve.Field)

	res, err = svc.ForceEnableOptions(ctx, "8008")
	require.NoError(t, err)
	for _, cell := range ToggleCells {
		assert.Equal(t, 1, res.Toggles[cell], cell)
	}
}

func TestUsage_RecordsEvents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreateQuote(ctx, "9009")
	require.NoError(t, err)
	_, err = svc.SetMargin(ctx, "9009", 0.2)
	require.NoError(t, err)

	entries, err := svc.Usage("9009")
	require.NoError(t, err)
	events := make([]string, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
	}
	assert.ElementsMatch(t, []string{EventCreate, EventMarginChange}, events)
}

func TestMutations_SerialisedPerQuote(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreateQuote(ctx, "1111")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.SetQuantity(ctx, "1111", "H40", float64(n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, testhelpers.CountRecords(t, app, colQuotes))
	assert.Equal(t, len(RollupOrder), testhelpers.CountRecords(t, app, colItems))
	entries, err := svc.Usage("1111")
	require.NoError(t, err)
	assert.Len(t, entries, 9)
}

func TestRecomputeAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, n := range []string{"A1", "A2", "A3"} {
		_, err := svc.GetOrCreateQuote(ctx, n)
		require.NoError(t, err)
	}
	done, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, done)
}

func TestGenerateOutputs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateOutputs(ctx, "missing")
	assert.True(t, errors.Is(err, ErrQuoteNotFound))

	_, err = svc.GetOrCreateQuote(ctx, "12/34")
	require.NoError(t, err)

	out, err := svc.GenerateOutputs(ctx, "12/34")
	require.NoError(t, err)
	assert.FileExists(t, out.Costing)
	assert.FileExists(t, out.ProposalDocx)
	assert.Equal(t, "01 - Q#12-34 - Costing.xlsx", filepath.Base(out.Costing))
	assert.Nil(t, out.ProposalPDF)

	body := testhelpers.ReadZipEntry(t, out.ProposalDocx, "word/document.xml")
	assert.Contains(t, body, "Proposal 12/34 for "+DefaultCustomer)

	entries, err := svc.Usage("12/34")
	require.NoError(t, err)
	events := make([]string, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
	}
	assert.Contains(t, events, EventGenerate)
}
