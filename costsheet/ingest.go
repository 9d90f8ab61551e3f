package costsheet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Cell is one non-empty cell of an ingested sheet. Numeric text is stored
// as a number.
type Cell struct {
	Ref   string `json:"ref"`
	Value any    `json:"value"`
}

// SheetDump holds the non-empty cells of one sheet, row by row.
type SheetDump struct {
	Rows [][]Cell `json:"rows"`
}

// WorkbookDump is the JSON form of an ingested workbook.
type WorkbookDump struct {
	Source      string               `json:"source"`
	Sheets      map[string]SheetDump `json:"sheets"`
	NamedRanges map[string]string    `json:"named_ranges"`
}

// Ingest reads every sheet and defined name of a workbook.
func Ingest(path string) (*WorkbookDump, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	dump := &WorkbookDump{
		Source:      filepath.Base(path),
		Sheets:      make(map[string]SheetDump),
		NamedRanges: make(map[string]string),
	}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("ingest: read %s: %w", sheet, err)
		}
		var out [][]Cell
		for r, row := range rows {
			var cells []Cell
			for c, v := range row {
				if strings.TrimSpace(v) == "" {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				cells = append(cells, Cell{Ref: ref, Value: cellValue(v)})
			}
			if len(cells) > 0 {
				out = append(out, cells)
			}
		}
		dump.Sheets[sheet] = SheetDump{Rows: out}
	}
	for _, dn := range f.GetDefinedName() {
		name := dn.Name
		if dn.Scope != "" && dn.Scope != "Workbook" {
			name = dn.Scope + "!" + dn.Name
		}
		dump.NamedRanges[name] = dn.RefersTo
	}
	return dump, nil
}

func cellValue(raw string) any {
	if v, ok := ToNumber(raw); ok && !strings.ContainsAny(raw, "%(,") {
		return v
	}
	return raw
}

// WriteDump writes the dump as indented JSON, creating parent directories.
func WriteDump(dump *WorkbookDump, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ingest: create %s: %w", filepath.Dir(out), err)
	}
	b, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: encode: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("ingest: write %s: %w", out, err)
	}
	return nil
}
