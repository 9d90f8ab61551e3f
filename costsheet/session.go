// Package costsheet keeps a live handle on an operator's cost sheet
// workbook and dumps workbooks into JSON for offline inspection.
package costsheet

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet layout read and written by a Session.
const (
	SummarySheet = "Summary"
	MarginCell   = "M4"
	firstRow     = 4
	lastRow      = 55
)

// Columns C..G hold the description, then qty, cost, sell price and margin.
var (
	descriptionCols = []string{"C", "D", "E", "F", "G"}
	qtyCol          = "H"
	costCol         = "I"
	sellCol         = "J"
	marginCol       = "K"
)

var (
	// ErrPathMissing means no cost sheet path is configured or the file
	// does not exist.
	ErrPathMissing = errors.New("COST_SHEET_PATH_MISSING")
	// ErrNotOpen means no workbook has been opened yet.
	ErrNotOpen = errors.New("cost sheet is not open")
	// ErrInvalidMargin means the margin text is blank or not a number.
	ErrInvalidMargin = errors.New("invalid margin")
)

// Row is one non-blank row of the summary range.
type Row struct {
	Description string   `json:"description"`
	Qty         *float64 `json:"qty"`
	Cost        *float64 `json:"cost"`
	SellPrice   *float64 `json:"sellPrice"`
	Margin      *float64 `json:"margin"`
}

// MarginChange is the last margin write seen by ApplyMargin.
type MarginChange struct {
	Old *float64
	New *float64
}

// Session owns at most one open workbook. All methods are safe for
// concurrent use.
type Session struct {
	mu       sync.Mutex
	id       string
	log      *zap.Logger
	path     string
	file     *excelize.File
	dirty    bool
	change   MarginChange
	lastRead time.Time
}

// NewSession returns a session with nothing open.
func NewSession(log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{id: id, log: log.With(zap.String("session", id))}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Path is the currently open workbook, or "".
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// LastReadAt is when the summary range was last read.
func (s *Session) LastReadAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRead
}

// Open makes path the session's workbook. Opening the path that is already
// open is a no-op; a different workbook is closed without saving first.
func (s *Session) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open(path)
}

func (s *Session) open(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrPathMissing
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathMissing, path)
		}
		return fmt.Errorf("costsheet: stat %s: %w", path, err)
	}
	if s.file != nil && s.path == path {
		return nil
	}
	_ = s.closeFile(false)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("costsheet: open %s: %w", path, err)
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err != nil || idx < 0 {
		f.Close()
		return fmt.Errorf("costsheet: %s has no %s sheet", path, SummarySheet)
	}
	s.file = f
	s.path = path
	s.dirty = false
	s.log.Info("costsheet: opened", zap.String("path", path))
	return nil
}

// Summary opens path if needed and reads the summary range.
func (s *Session) Summary(path string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(path); err != nil {
		return nil, err
	}
	return s.readSummary()
}

// ReadSummary reads the summary range of the open workbook.
func (s *Session) ReadSummary() ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSummary()
}

func (s *Session) readSummary() ([]Row, error) {
	if s.file == nil {
		return nil, ErrNotOpen
	}
	var rows []Row
	for r := firstRow; r <= lastRow; r++ {
		var parts []string
		for _, col := range descriptionCols {
			v, err := s.value(col + strconv.Itoa(r))
			if err != nil {
				return nil, err
			}
			if v = strings.TrimSpace(strings.ReplaceAll(v, "\n", " ")); v != "" {
				parts = append(parts, v)
			}
		}
		row := Row{Description: strings.Join(parts, " ")}
		for col, dst := range map[string]**float64{
			qtyCol:    &row.Qty,
			costCol:   &row.Cost,
			sellCol:   &row.SellPrice,
			marginCol: &row.Margin,
		} {
			v, err := s.value(col + strconv.Itoa(r))
			if err != nil {
				return nil, err
			}
			*dst = numberPtr(v)
		}
		if row.Description == "" && row.Qty == nil && row.Cost == nil && row.SellPrice == nil && row.Margin == nil {
			continue
		}
		rows = append(rows, row)
	}
	s.lastRead = time.Now().UTC()
	return rows, nil
}

// value returns a cell's raw value, evaluating formulas.
func (s *Session) value(cell string) (string, error) {
	formula, err := s.file.GetCellFormula(SummarySheet, cell)
	if err != nil {
		return "", fmt.Errorf("costsheet: read %s: %w", cell, err)
	}
	if formula != "" {
		v, err := s.file.CalcCellValue(SummarySheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return "", fmt.Errorf("costsheet: calc %s: %w", cell, err)
		}
		return v, nil
	}
	v, err := s.file.GetCellValue(SummarySheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("costsheet: read %s: %w", cell, err)
	}
	return v, nil
}

// ApplyMargin writes the parsed margin into the margin cell and returns the
// recalculated summary. The previous and new values are kept for
// ConsumeMarginChange.
func (s *Session) ApplyMargin(text string) ([]Row, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: margin text is required", ErrInvalidMargin)
	}
	margin, ok := ToNumber(text)
	if !ok {
		return nil, fmt.Errorf("%w: could not parse margin value from %q", ErrInvalidMargin, text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		if s.path == "" {
			return nil, ErrNotOpen
		}
		if err := s.open(s.path); err != nil {
			return nil, err
		}
	}

	before, err := s.value(MarginCell)
	if err != nil {
		return nil, err
	}
	if err := s.file.SetCellFloat(SummarySheet, MarginCell, margin, -1, 64); err != nil {
		return nil, fmt.Errorf("costsheet: write %s: %w", MarginCell, err)
	}
	old := numberPtr(before)
	if old == nil || *old != margin {
		s.dirty = true
	}
	s.change = MarginChange{Old: old, New: &margin}
	s.log.Debug("costsheet: margin applied", zap.Float64("margin", margin))

	return s.readSummary()
}

// ConsumeMarginChange returns the last margin change and forgets it.
func (s *Session) ConsumeMarginChange() MarginChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.change
	s.change = MarginChange{}
	return c
}

// Close saves the workbook when it has unsaved margin writes and releases it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFile(true)
}

func (s *Session) closeFile(save bool) error {
	if s.file == nil {
		return nil
	}
	var saveErr error
	if save && s.dirty {
		s.log.Info("costsheet: saving workbook", zap.String("path", s.path))
		saveErr = s.file.Save()
	}
	closeErr := s.file.Close()
	s.file = nil
	s.dirty = false
	if saveErr != nil {
		return fmt.Errorf("costsheet: save %s: %w", s.path, saveErr)
	}
	return closeErr
}
