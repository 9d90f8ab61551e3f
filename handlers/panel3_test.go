package handlers

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/xuri/excelize/v2"

	"rdsquote/costsheet"
	"rdsquote/services"
	"rdsquote/testhelpers"
)

func writeTestCostSheet(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet(costsheet.SummarySheet); err != nil {
		t.Fatal(err)
	}
	for cell, v := range map[string]any{"C4": "Base Frame", "H4": 1, "I4": 100, "M4": 0.24} {
		if err := f.SetCellValue(costsheet.SummarySheet, cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SetCellFormula(costsheet.SummarySheet, "J4", "I4/(1-M4)"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "cost.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCostSheet_PathMissing(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	sess := costsheet.NewSession(nil)

	tests := []struct {
		name    string
		handler func(*core.RequestEvent) error
		method  string
	}{
		{"connect", HandleCostSheetConnect(app, sess), http.MethodPost},
		{"summary", HandleCostSheetSummary(app, sess), http.MethodGet},
		{"margin", HandleCostSheetMargin(app, sess), http.MethodPost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, app, tt.handler, newJSONRequest(tt.method, "/api/panel3/"+tt.name, `{"marginText":"0.3"}`, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] != "COST_SHEET_PATH_MISSING" {
				t.Errorf("error = %v", body["error"])
			}
		})
	}
}

func TestCostSheet_PathSummaryMargin(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	sess := costsheet.NewSession(nil)
	defer sess.Close()
	path := writeTestCostSheet(t)

	rec := serve(t, app, HandleCostSheetPath(app, sess), newJSONRequest(http.MethodPost, "/api/panel3/path", `{"path":"`+filepath.ToSlash(path)+`"}`, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("path: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stored, _ := services.GetSetting(app, services.SettingCostSheetPath); stored == "" {
		t.Fatal("cost sheet path was not stored")
	}

	rec = serve(t, app, HandleCostSheetSummary(app, sess), newJSONRequest(http.MethodGet, "/api/panel3/summary", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows, _ := decodeBody(t, rec)["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	rec = serve(t, app, HandleCostSheetMargin(app, sess), newJSONRequest(http.MethodPost, "/api/panel3/margin", `{"marginText":"50%"}`, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("margin: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows, _ = decodeBody(t, rec)["rows"].([]any)
	row, _ := rows[0].(map[string]any)
	if sell, _ := row["sellPrice"].(float64); sell < 199.99 || sell > 200.01 {
		t.Errorf("sellPrice = %v, want 200", row["sellPrice"])
	}

	rec = serve(t, app, HandleMarginLog(app), newJSONRequest(http.MethodGet, "/api/panel3/margin-log", "", nil))
	changes, _ := decodeBody(t, rec)["changes"].([]any)
	if len(changes) != 1 {
		t.Errorf("expected 1 margin change, got %d", len(changes))
	}
}

func TestCostSheet_BadInput(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	sess := costsheet.NewSession(nil)
	defer sess.Close()

	rec := serve(t, app, HandleCostSheetPath(app, sess), newJSONRequest(http.MethodPost, "/api/panel3/path", `{"path":"  "}`, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank path: expected status 400, got %d", rec.Code)
	}
	rec = serve(t, app, HandleCostSheetPath(app, sess), newJSONRequest(http.MethodPost, "/api/panel3/path", `{"path":"/definitely/not/here.xlsx"}`, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: expected status 400, got %d", rec.Code)
	}

	if err := services.SetSetting(app, services.SettingCostSheetPath, writeTestCostSheet(t)); err != nil {
		t.Fatal(err)
	}
	rec = serve(t, app, HandleCostSheetMargin(app, sess), newJSONRequest(http.MethodPost, "/api/panel3/margin", `{"marginText":"wide"}`, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad margin: expected status 400, got %d", rec.Code)
	}
	rec = serve(t, app, HandleMarginLog(app), newJSONRequest(http.MethodGet, "/api/panel3/margin-log?limit=0", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected status 400, got %d", rec.Code)
	}
}
