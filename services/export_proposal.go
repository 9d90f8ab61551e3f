package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/lukasjarosch/go-docx"
	"go.uber.org/zap"
)

// ProposalDocument fills a .docx template whose bookmarks are written as
// [Name] tokens, and optionally renders a PDF summary beside it.
type ProposalDocument struct {
	Template   string
	PDFEnabled bool
	Log        *zap.Logger
}

// WriteProposal writes basePath + ".docx" and, when enabled, ".pdf". PDF
// failures are logged and leave PDFPath nil.
func (p ProposalDocument) WriteProposal(marks map[string]string, basePath string) (ProposalFiles, error) {
	var files ProposalFiles
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	doc, err := FillDocxTemplate(p.Template, marks)
	if err != nil {
		return files, err
	}
	if err := os.MkdirAll(filepath.Dir(basePath), 0o755); err != nil {
		return files, fmt.Errorf("create output dir: %w", err)
	}
	files.DocPath = basePath + ".docx"
	if err := os.WriteFile(files.DocPath, doc, 0o644); err != nil {
		return files, fmt.Errorf("write proposal: %w", err)
	}

	if !p.PDFEnabled {
		return files, nil
	}
	pdf, err := GenerateProposalPDF(marks)
	if err == nil {
		pdfPath := basePath + ".pdf"
		if err = os.WriteFile(pdfPath, pdf, 0o644); err == nil {
			files.PDFPath = &pdfPath
		}
	}
	if err != nil {
		log.Warn("export: proposal pdf unavailable", zap.String("docx", files.DocPath), zap.Error(err))
	}
	return files, nil
}

var (
	bracketsOnce sync.Once
	// go-docx keeps run and fragment counters in package state.
	docxMu sync.Mutex
)

// useBracketPlaceholders switches go-docx from {Name} to [Name]
// placeholders. The delimiter regexes are package vars compiled at init.
func useBracketPlaceholders() {
	docx.ChangeOpenCloseDelimiter('[', ']')
	docx.OpenDelimiterRegex = regexp.MustCompile(`\[`)
	docx.CloseDelimiterRegex = regexp.MustCompile(`\]`)
}

// FillDocxTemplate replaces every [Name] token in the document body,
// headers and footers of the template and returns the new .docx bytes.
// Tokens split across several runs are filled as well.
func FillDocxTemplate(templatePath string, marks map[string]string) ([]byte, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("open proposal template %s: %w", templatePath, err)
	}

	bracketsOnce.Do(useBracketPlaceholders)
	docxMu.Lock()
	defer docxMu.Unlock()

	doc, err := docx.OpenBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proposal template %s: %w", templatePath, err)
	}
	placeholders := make(docx.PlaceholderMap, len(marks))
	for name, value := range marks {
		placeholders[name] = value
	}
	if err := doc.ReplaceAll(placeholders); err != nil {
		return nil, fmt.Errorf("fill proposal template: %w", err)
	}

	var out bytes.Buffer
	if err := doc.Write(&out); err != nil {
		return nil, fmt.Errorf("finish proposal: %w", err)
	}
	return out.Bytes(), nil
}
