// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"rdsquote/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)

	return app
}

// CountRecords returns the number of records in a collection.
func CountRecords(t *testing.T, app core.App, collection string) int {
	t.Helper()

	records, err := app.FindAllRecords(collection)
	if err != nil {
		t.Fatalf("failed to list %s: %v", collection, err)
	}
	return len(records)
}

// ProposalTemplateBody is the document.xml written by WriteProposalTemplate.
const ProposalTemplateBody = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Proposal [QuoteNum] for [Customer]</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Base price [BasePrice]</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Spare parts [SpareQty] x [SparePrice]</w:t></w:r></w:p>` +
	`</w:body></w:document>`

// ProposalTemplateImage is the binary media part written by
// WriteProposalTemplate.
const ProposalTemplateImage = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

// WriteProposalTemplate writes a minimal .docx template into dir and
// returns its path.
func WriteProposalTemplate(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "proposal_template.docx")
	WriteDocx(t, path, map[string]string{
		"word/document.xml":     ProposalTemplateBody,
		"word/footer1.xml":      `<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>[User]</w:t></w:r></w:p></w:ftr>`,
		"word/media/image1.png": ProposalTemplateImage,
	})
	return path
}

// WriteDocx writes a .docx archive holding a content types part plus the
// given parts.
func WriteDocx(t *testing.T, path string, parts map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	all := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
	}
	for name, body := range parts {
		all[name] = body
	}
	for name, body := range all {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

// ReadZipEntry returns the content of one entry of a zip file such as a .docx.
func ReadZipEntry(t *testing.T, path, name string) string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", name, err)
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		return string(buf)
	}
	t.Fatalf("%s has no entry %s", path, name)
	return ""
}
