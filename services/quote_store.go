package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// Collection names.
const (
	colQuotes        = "quotes"
	colSummaries     = "costing_summaries"
	colItems         = "costing_items"
	colPricing       = "pricing"
	colUsageLogs     = "usage_logs"
	colAppSettings   = "app_settings"
	colMarginChanges = "margin_changes"
)

// decodeJSONField unmarshals a JSON column into dst, leaving dst untouched
// when the column is empty or null.
func decodeJSONField(rec *core.Record, key string, dst any) error {
	raw := rec.GetString(key)
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s.%s: %w", rec.Collection().Name, key, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// loadQuote reads a quote and everything it owns. It returns
// ErrQuoteNotFound when no quote has that number.
func loadQuote(app core.App, number string) (*Quote, error) {
	rec, err := app.FindFirstRecordByData(colQuotes, "quote_number", number)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", number, err)
	}

	q := &Quote{
		ID:       rec.Id,
		Number:   rec.GetString("quote_number"),
		Customer: rec.GetString("customer"),
		record:   rec,
	}
	if err := decodeJSONField(rec, "data", &q.Data); err != nil {
		return nil, err
	}
	if q.Data == nil {
		q.Data = make(map[string]any)
	}

	if q.Summary, err = loadSummary(app, rec.Id); err != nil {
		return nil, err
	}
	if q.Pricing, err = loadPricing(app, rec.Id); err != nil {
		return nil, err
	}
	return q, nil
}

func loadSummary(app core.App, quoteID string) (*CostingSummary, error) {
	rec, err := app.FindFirstRecordByData(colSummaries, "quote", quoteID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load costing summary: %w", err)
	}

	s := &CostingSummary{ID: rec.Id, Margin: rec.GetFloat("margin"), record: rec}
	for key, dst := range map[string]any{
		"toggles":    &s.Toggles,
		"quantities": &s.Quantities,
		"totals":     &s.Totals,
		"grid_state": &s.Grid,
	} {
		if err := decodeJSONField(rec, key, dst); err != nil {
			return nil, err
		}
	}
	if s.Quantities == nil {
		s.Quantities = make(map[string]float64)
	}

	itemRecs, err := app.FindRecordsByFilter(colItems, "summary = {:summary}", "code", 0, 0, dbx.Params{"summary": rec.Id})
	if err != nil {
		return nil, fmt.Errorf("load costing items: %w", err)
	}
	for _, ir := range itemRecs {
		item := &CostingItem{
			ID:          ir.Id,
			Code:        ir.GetString("code"),
			Description: ir.GetString("description"),
			Quantity:    ir.GetFloat("quantity"),
			UnitCost:    ir.GetFloat("unit_cost"),
			Category:    ir.GetString("category"),
			record:      ir,
		}
		if err := decodeJSONField(ir, "override_margin", &item.OverrideMargin); err != nil {
			return nil, err
		}
		if err := decodeJSONField(ir, "metadata", &item.Meta); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, item)
	}
	return s, nil
}

func loadPricing(app core.App, quoteID string) (*Pricing, error) {
	rec, err := app.FindFirstRecordByData(colPricing, "quote", quoteID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	p := &Pricing{
		ID:       rec.Id,
		Subtotal: rec.GetFloat("subtotal"),
		Margin:   rec.GetFloat("margin"),
		Total:    rec.GetFloat("total"),
		record:   rec,
	}
	if err := decodeJSONField(rec, "data", &p.Data); err != nil {
		return nil, err
	}
	return p, nil
}

func newRecord(app core.App, collection string) (*core.Record, error) {
	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, fmt.Errorf("find collection %s: %w", collection, err)
	}
	return core.NewRecord(col), nil
}

// saveQuote writes the quote, its summary, items and pricing. Records that
// do not exist yet are created.
func saveQuote(app core.App, q *Quote) error {
	if q.record == nil {
		rec, err := newRecord(app, colQuotes)
		if err != nil {
			return err
		}
		q.record = rec
	}
	q.record.Set("quote_number", q.Number)
	q.record.Set("customer", q.Customer)
	q.record.Set("data", q.Data)
	if err := app.Save(q.record); err != nil {
		return fmt.Errorf("save quote %s: %w", q.Number, err)
	}
	q.ID = q.record.Id

	if q.Summary != nil {
		if err := saveSummary(app, q.ID, q.Summary); err != nil {
			return err
		}
	}
	if q.Pricing != nil {
		if err := savePricing(app, q.ID, q.Pricing); err != nil {
			return err
		}
	}
	return nil
}

func saveSummary(app core.App, quoteID string, s *CostingSummary) error {
	if s.record == nil {
		rec, err := newRecord(app, colSummaries)
		if err != nil {
			return err
		}
		s.record = rec
	}
	s.record.Set("quote", quoteID)
	s.record.Set("margin", s.Margin)
	s.record.Set("toggles", s.Toggles)
	s.record.Set("quantities", s.Quantities)
	s.record.Set("totals", s.Totals)
	s.record.Set("grid_state", s.Grid)
	if err := app.Save(s.record); err != nil {
		return fmt.Errorf("save costing summary: %w", err)
	}
	s.ID = s.record.Id

	for _, item := range s.Items {
		if item.record == nil {
			rec, err := newRecord(app, colItems)
			if err != nil {
				return err
			}
			item.record = rec
		}
		item.record.Set("summary", s.ID)
		item.record.Set("code", item.Code)
		item.record.Set("description", item.Description)
		item.record.Set("quantity", item.Quantity)
		item.record.Set("unit_cost", item.UnitCost)
		item.record.Set("category", item.Category)
		item.record.Set("is_active", true)
		item.record.Set("override_margin", item.OverrideMargin)
		item.record.Set("metadata", item.Meta)
		if err := app.Save(item.record); err != nil {
			return fmt.Errorf("save costing item %s: %w", item.Code, err)
		}
		item.ID = item.record.Id
	}
	return nil
}

func savePricing(app core.App, quoteID string, p *Pricing) error {
	if p.record == nil {
		rec, err := newRecord(app, colPricing)
		if err != nil {
			return err
		}
		p.record = rec
	}
	p.record.Set("quote", quoteID)
	p.record.Set("subtotal", p.Subtotal)
	p.record.Set("margin", p.Margin)
	p.record.Set("total", p.Total)
	p.record.Set("data", p.Data)
	if err := app.Save(p.record); err != nil {
		return fmt.Errorf("save pricing: %w", err)
	}
	p.ID = p.record.Id
	return nil
}

// appendUsage adds an audit entry. q may be nil for events that are not
// tied to a stored quote.
func appendUsage(app core.App, q *Quote, event string, payload any) error {
	rec, err := newRecord(app, colUsageLogs)
	if err != nil {
		return err
	}
	if q != nil {
		rec.Set("quote", q.ID)
		rec.Set("quote_number", q.Number)
	}
	rec.Set("event", event)
	rec.Set("payload", payload)
	if err := app.Save(rec); err != nil {
		return fmt.Errorf("save usage log %s: %w", event, err)
	}
	return nil
}

// UsageEntry is one stored audit record.
type UsageEntry struct {
	QuoteNumber string          `json:"quote_number"`
	Event       string          `json:"event"`
	Payload     json.RawMessage `json:"payload"`
	Created     string          `json:"created"`
}

// UsageFor lists the audit entries of a quote, oldest first.
func UsageFor(app core.App, number string) ([]UsageEntry, error) {
	recs, err := app.FindRecordsByFilter(colUsageLogs, "quote_number = {:n}", "created", 0, 0, dbx.Params{"n": number})
	if err != nil {
		return nil, fmt.Errorf("list usage for %s: %w", number, err)
	}
	out := make([]UsageEntry, 0, len(recs))
	for _, r := range recs {
		payload := json.RawMessage(r.GetString("payload"))
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		out = append(out, UsageEntry{
			QuoteNumber: r.GetString("quote_number"),
			Event:       r.GetString("event"),
			Payload:     payload,
			Created:     r.GetDateTime("created").String(),
		})
	}
	return out, nil
}

// QuoteNumbers lists every stored quote number.
func QuoteNumbers(app core.App) ([]string, error) {
	recs, err := app.FindAllRecords(colQuotes)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.GetString("quote_number"))
	}
	return out, nil
}
