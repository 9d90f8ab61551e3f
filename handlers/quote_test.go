package handlers

import (
	"net/http"
	"testing"

	"rdsquote/services"
	"rdsquote/testhelpers"
)

func TestHandleQuoteGet_CreatesQuote(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodGet, "/api/quote/1001", "", map[string]string{"number": "1001"})
	rec := serve(t, app, HandleQuoteGet(svc), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["quote_number"] != "1001" {
		t.Errorf("quote_number = %v, want 1001", body["quote_number"])
	}
	summary, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("summary missing: %v", body)
	}
	for _, key := range []string{"totals", "margin", "toggles", "grid", "footer", "sellMap"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("summary has no %q", key)
		}
	}
	if grid, _ := summary["grid"].([]any); len(grid) != services.SummaryRowCount {
		t.Errorf("grid has %d rows, want %d", len(grid), services.SummaryRowCount)
	}
}

func TestHandleQuoteUpdate_ReturnsView(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/2002",
		`{"data":{"sys.guarding":"Tall"},"customer":"Acme"}`, map[string]string{"number": "2002"})
	rec := serve(t, app, HandleQuoteUpdate(svc), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["customer"] != "Acme" {
		t.Errorf("customer = %v, want Acme", body["customer"])
	}
	inputs, _ := body["inputs"].(map[string]any)
	if _, ok := inputs["Sheet3"]; !ok {
		t.Errorf("inputs carry no legacy Sheet3 block: %v", inputs)
	}
}

func TestHandleQuoteUpdate_InvalidEnum(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/2002",
		`{"data":{"sys.transformer":"Nuclear"}}`, map[string]string{"number": "2002"})
	rec := serve(t, app, HandleQuoteUpdate(svc), req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["field"] != "sys.transformer" {
		t.Errorf("field = %v, want sys.transformer", body["field"])
	}
}

func TestHandleMarginSet(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"margin":0.3}`, http.StatusOK},
		{"missing", `{}`, http.StatusBadRequest},
		{"out of range", `{"margin":1.2}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newJSONRequest(http.MethodPost, "/api/quote/3003/margin", tt.body, map[string]string{"number": "3003"})
			rec := serve(t, app, HandleMarginSet(svc), req)
			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleSummaryOverride_UnknownRow(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/4004/summary/override",
		`{"rowIndex":2,"override":0.5}`, map[string]string{"number": "4004"})
	rec := serve(t, app, HandleSummaryOverride(svc), req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSummaryOverride_Clamps(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/4004/summary/override",
		`{"rowIndex":4,"override":1.2}`, map[string]string{"number": "4004"})
	rec := serve(t, app, HandleSummaryOverride(svc), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	grid, _ := decodeBody(t, rec)["grid"].([]any)
	row, _ := grid[3].(map[string]any)
	if row["overrideL"] != 0.99 {
		t.Errorf("overrideL = %v, want 0.99", row["overrideL"])
	}
}

func TestHandleToggle_DefaultsOn(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/5005/toggle", `{"cell":"Summary!H32"}`, map[string]string{"number": "5005"})
	rec := serve(t, app, HandleToggle(svc), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	toggles, _ := decodeBody(t, rec)["toggles"].(map[string]any)
	if toggles["H32"] != 1.0 {
		t.Errorf("H32 = %v, want 1", toggles["H32"])
	}
}

func TestHandleLineItemPatch_BadRowIndex(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPatch, "/api/quote/6006/items/x", `{}`,
		map[string]string{"number": "6006", "rowIndex": "x"})
	rec := serve(t, app, HandleLineItemPatch(svc), req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleGenerate(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	svc := newTestQuoteService(t, app)

	req := newJSONRequest(http.MethodPost, "/api/quote/7007/generate", "", map[string]string{"number": "7007"})
	if rec := serve(t, app, HandleGenerate(svc), req); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown quote: expected status 404, got %d", rec.Code)
	}

	serve(t, app, HandleQuoteGet(svc), newJSONRequest(http.MethodGet, "/api/quote/7007", "", map[string]string{"number": "7007"}))
	rec := serve(t, app, HandleGenerate(svc), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["costing"] == "" || body["proposal_docx"] == "" {
		t.Errorf("missing output paths: %v", body)
	}
	if body["proposal_pdf"] != nil {
		t.Errorf("proposal_pdf = %v, want null", body["proposal_pdf"])
	}

	usage := serve(t, app, HandleUsage(svc), newJSONRequest(http.MethodGet, "/api/quote/7007/usage", "", map[string]string{"number": "7007"}))
	entries, _ := decodeBody(t, usage)["entries"].([]any)
	if len(entries) != 2 {
		t.Errorf("expected create and generate entries, got %d", len(entries))
	}
}
