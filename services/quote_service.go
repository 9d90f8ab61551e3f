package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Usage events recorded by the service.
const (
	EventCreate          = "create"
	EventUpdate          = "update"
	EventMarginChange    = "margin_change"
	EventMarginReset     = "margin_reset"
	EventToggle          = "toggle"
	EventForceEnable     = "force_enable"
	EventQuantity        = "quantity"
	EventSummaryOverride = "summary_override"
	EventLineItem        = "line_item"
	EventRecompute       = "recompute"
	EventRepair          = "repair"
	EventGenerate        = "generate"
)

// WorkbookValues is everything the costing workbook writer receives.
// Cells is keyed "Sheet!Cell".
type WorkbookValues struct {
	Cells  map[string]float64
	Grid   []GridRow
	Footer Footer
}

// WorkbookWriter writes a costing workbook to basePath plus its extension
// and returns the written path.
type WorkbookWriter interface {
	WriteWorkbook(values WorkbookValues, basePath string) (string, error)
}

// ProposalFiles are the documents produced for a proposal. PDFPath is nil
// when no PDF could be rendered.
type ProposalFiles struct {
	DocPath string
	PDFPath *string
}

// ProposalWriter fills the proposal template with bookmark text.
type ProposalWriter interface {
	WriteProposal(bookmarks map[string]string, basePath string) (ProposalFiles, error)
}

// OutputFiles references the generated documents of a quote.
type OutputFiles struct {
	Costing      string  `json:"costing"`
	ProposalDocx string  `json:"proposal_docx"`
	ProposalPDF  *string `json:"proposal_pdf"`
}

// QuoteOptions configures a QuoteService.
type QuoteOptions struct {
	DefaultMargin float64
	OutputDir     string
}

// QuoteService owns the quote lifecycle: it loads state, applies a
// mutation, recomputes costing and persists the result in one transaction.
// Mutations of the same quote number are serialised.
type QuoteService struct {
	app      core.App
	log      *zap.Logger
	opts     QuoteOptions
	locks    *keyedMutex
	workbook WorkbookWriter
	proposal ProposalWriter
	now      func() time.Time
}

// NewQuoteService wires a QuoteService. Either writer may be nil when
// outputs are not generated by this process.
func NewQuoteService(app core.App, log *zap.Logger, opts QuoteOptions, workbook WorkbookWriter, proposal ProposalWriter) *QuoteService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuoteService{
		app:      app,
		log:      log,
		opts:     opts,
		locks:    newKeyedMutex(),
		workbook: workbook,
		proposal: proposal,
		now:      time.Now,
	}
}

// PricingView is the pricing block of a quote view.
type PricingView struct {
	BaseTotal float64 `json:"base_total"`
	Margin    float64 `json:"margin"`
	SellPrice float64 `json:"sell_price"`
	Subtotal  float64 `json:"subtotal"`
	Total     float64 `json:"total"`
	Raw       Totals  `json:"raw"`
}

// QuoteView is the read model returned for a quote.
type QuoteView struct {
	QuoteNumber string         `json:"quote_number"`
	Customer    string         `json:"customer"`
	Inputs      map[string]any `json:"inputs"`
	Pricing     PricingView    `json:"pricing"`
	Summary     RollupResult   `json:"summary"`
}

func viewOf(q *Quote) *QuoteView {
	s := q.Summary
	v := &QuoteView{
		QuoteNumber: q.Number,
		Customer:    q.Customer,
		Inputs:      q.Data,
		Pricing: PricingView{
			BaseTotal: s.Totals.BaseTotal,
			Margin:    s.Margin,
			SellPrice: s.Totals.SellPrice,
			Raw:       s.Totals,
		},
		Summary: RollupResult{
			Totals:  s.Totals,
			Margin:  s.Margin,
			Toggles: s.Toggles,
			Grid:    s.Grid,
			Footer:  s.Totals.Footer,
			SellMap: s.Totals.SellMap,
		},
	}
	if q.Pricing != nil {
		v.Pricing.Subtotal = q.Pricing.Subtotal
		v.Pricing.Total = q.Pricing.Total
	}
	return v
}

func normalizeNumber(number string) (string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return "", invalid("quote_number", "is required")
	}
	return number, nil
}

// GetOrCreateQuote returns a quote, creating it with defaults and an
// initial recompute when it does not exist yet.
func (s *QuoteService) GetOrCreateQuote(ctx context.Context, number string) (*QuoteView, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	q, err := loadQuote(s.app, number)
	switch {
	case err == nil && q.Summary != nil && len(q.Summary.Grid) == SummaryRowCount && !EnsureItems(q.Summary):
		return viewOf(q), nil
	case err != nil && !errors.Is(err, ErrQuoteNotFound):
		return nil, err
	}

	q, _, err = s.mutate(ctx, number, EventCreate, nil, nil)
	if err != nil {
		return nil, err
	}
	return viewOf(q), nil
}

// InputUpdate carries a partial quote input document.
type InputUpdate struct {
	Data     map[string]any
	Customer *string
	Margin   *float64
}

// UpdateInput merges new input data into the quote, derives quantity cells
// from the known option fields and recomputes.
func (s *QuoteService) UpdateInput(ctx context.Context, number string, in InputUpdate) (RollupResult, error) {
	if in.Margin != nil {
		if err := validateMargin(*in.Margin); err != nil {
			return RollupResult{}, err
		}
	}
	_, res, err := s.mutate(ctx, number, EventUpdate, in.Data, func(q *Quote) error {
		quantities, err := SyncQuantities(in.Data, q.Summary.Quantities)
		if err != nil {
			return err
		}
		q.Summary.Quantities = quantities
		q.Data = MergeInputs(q.Data, in.Data)
		if in.Customer != nil {
			q.Customer = strings.TrimSpace(*in.Customer)
		}
		if in.Margin != nil {
			q.Summary.Margin = *in.Margin
		}
		return nil
	})
	return res, err
}

func validateMargin(m float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 || m >= 1 {
		return invalid("margin", "must be at least 0 and below 1")
	}
	return nil
}

// SetMargin changes the quote-level margin.
func (s *QuoteService) SetMargin(ctx context.Context, number string, margin float64) (RollupResult, error) {
	if err := validateMargin(margin); err != nil {
		return RollupResult{}, err
	}
	_, res, err := s.mutate(ctx, number, EventMarginChange, map[string]any{"margin": margin}, func(q *Quote) error {
		q.Summary.Margin = margin
		return nil
	})
	return res, err
}

// ResetMargin restores the configured default margin.
func (s *QuoteService) ResetMargin(ctx context.Context, number string) (RollupResult, error) {
	margin := s.opts.DefaultMargin
	_, res, err := s.mutate(ctx, number, EventMarginReset, map[string]any{"margin": margin}, func(q *Quote) error {
		q.Summary.Margin = margin
		return nil
	})
	return res, err
}

// SetToggle records an option toggle. cell may carry the Summary! prefix.
func (s *QuoteService) SetToggle(ctx context.Context, number, cell string, value int) (RollupResult, error) {
	toggle, ok := NormalizeToggleCell(cell)
	if !ok {
		return RollupResult{}, invalid("cell", "unknown toggle cell %q", cell)
	}
	payload := map[string]any{"cell": toggle, "value": toggleBit(value)}
	_, res, err := s.mutate(ctx, number, EventToggle, payload, func(q *Quote) error {
		SetToggle(q.Summary, toggle, value)
		return nil
	})
	return res, err
}

// ForceEnableOptions switches every option toggle on.
func (s *QuoteService) ForceEnableOptions(ctx context.Context, number string) (RollupResult, error) {
	_, res, err := s.mutate(ctx, number, EventForceEnable, nil, func(q *Quote) error {
		ForceEnableAll(q.Summary)
		return nil
	})
	return res, err
}

// SetQuantity writes a quantity cell directly.
func (s *QuoteService) SetQuantity(ctx context.Context, number, cell string, value float64) (RollupResult, error) {
	qualified, ok := NormalizeQuantityCell(cell)
	if !ok {
		return RollupResult{}, invalid("cell", "unknown quantity cell %q", cell)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return RollupResult{}, invalid("value", "must be a non-negative number")
	}
	payload := map[string]any{"cell": qualified, "value": value}
	_, res, err := s.mutate(ctx, number, EventQuantity, payload, func(q *Quote) error {
		q.Summary.Quantities[qualified] = value
		return nil
	})
	return res, err
}

// SetSummaryOverride sets or clears (nil) the margin override of a row.
func (s *QuoteService) SetSummaryOverride(ctx context.Context, number string, rowIndex int, override *float64) (RollupResult, error) {
	if override != nil && math.IsNaN(*override) {
		return RollupResult{}, invalid("override", "must be a number")
	}
	payload := map[string]any{"rowIndex": rowIndex, "override": override}
	_, res, err := s.mutate(ctx, number, EventSummaryOverride, payload, func(q *Quote) error {
		return SetOverride(q.Summary, rowIndex, override)
	})
	return res, err
}

// LineItemUpdate changes the price fields of one row. Numbers are coerced
// leniently: anything unparseable becomes 0.
type LineItemUpdate struct {
	Description *string
	Quantity    any
	UnitCost    any
}

// UpdateLineItem edits the description, base quantity or unit cost of a row.
func (s *QuoteService) UpdateLineItem(ctx context.Context, number string, rowIndex int, upd LineItemUpdate) (RollupResult, error) {
	payload := map[string]any{"rowIndex": rowIndex, "quantity": upd.Quantity, "unit_cost": upd.UnitCost}
	_, res, err := s.mutate(ctx, number, EventLineItem, payload, func(q *Quote) error {
		item, err := ItemForRow(q.Summary, rowIndex)
		if err != nil {
			return err
		}
		if upd.Description != nil {
			item.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Quantity != nil {
			item.Quantity = finite(cast.ToFloat64(upd.Quantity))
		}
		if upd.UnitCost != nil {
			item.UnitCost = finite(cast.ToFloat64(upd.UnitCost))
		}
		return nil
	})
	return res, err
}

// RecomputeCosting recomputes a quote, optionally with a new margin.
func (s *QuoteService) RecomputeCosting(ctx context.Context, number string, margin *float64) (RollupResult, error) {
	if margin != nil {
		if err := validateMargin(*margin); err != nil {
			return RollupResult{}, err
		}
	}
	_, res, err := s.mutate(ctx, number, EventRecompute, map[string]any{"margin": margin}, func(q *Quote) error {
		if margin != nil {
			q.Summary.Margin = *margin
		}
		return nil
	})
	return res, err
}

// RecomputeAll recomputes every stored quote and returns how many succeeded.
func (s *QuoteService) RecomputeAll(ctx context.Context) (int, error) {
	numbers, err := QuoteNumbers(s.app)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.RecomputeCosting(ctx, n, nil); err != nil {
			return done, fmt.Errorf("recompute %s: %w", n, err)
		}
		done++
	}
	return done, nil
}

// Usage lists the audit trail of a quote.
func (s *QuoteService) Usage(number string) ([]UsageEntry, error) {
	return UsageFor(s.app, number)
}

// mutate runs load, fn, recompute and save for one quote inside a
// transaction while holding the quote's lock. A missing quote is created.
// EventCreate is only recorded when the quote really was created: a quote
// that needed its summary repaired is logged as EventRepair, and a complete
// one is returned untouched.
func (s *QuoteService) mutate(ctx context.Context, number, event string, payload any, fn func(q *Quote) error) (*Quote, RollupResult, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, RollupResult{}, err
	}

	unlock, err := s.locks.Lock(ctx, number)
	if err != nil {
		return nil, RollupResult{}, err
	}
	defer unlock()

	var (
		q         *Quote
		res       RollupResult
		unchanged bool
	)
	err = s.app.RunInTransaction(func(tx core.App) error {
		var (
			st  loadState
			err error
		)
		q, st, err = s.loadOrNew(tx, number)
		if err != nil {
			return err
		}
		if event == EventCreate && !st.created {
			if !st.repaired {
				unchanged = true
				return nil
			}
			event = EventRepair
		}
		if fn != nil {
			if err := fn(q); err != nil {
				return err
			}
		}
		if res, err = s.recompute(q); err != nil {
			return err
		}
		if err := saveQuote(tx, q); err != nil {
			return err
		}
		return appendUsage(tx, q, event, payload)
	})
	if err != nil {
		return nil, RollupResult{}, err
	}
	if unchanged {
		return q, RollupResult{}, nil
	}

	s.log.Debug("quote: "+event,
		zap.String("quote", number),
		zap.Float64("margin", res.Margin),
		zap.Float64("total_sell", res.Footer.TotalSell),
	)
	return q, res, nil
}

type loadState struct {
	created  bool
	repaired bool
}

func (s *QuoteService) loadOrNew(app core.App, number string) (*Quote, loadState, error) {
	var st loadState
	q, err := loadQuote(app, number)
	if errors.Is(err, ErrQuoteNotFound) {
		q, err = &Quote{Number: number, Data: make(map[string]any)}, nil
		st.created = true
		s.log.Info("quote: creating", zap.String("quote", number))
	}
	if err != nil {
		return nil, st, err
	}
	if q.Summary == nil {
		q.Summary = &CostingSummary{
			Margin:     s.opts.DefaultMargin,
			Toggles:    make(map[string]int),
			Quantities: initialQuantities(),
		}
		st.repaired = true
	}
	if len(q.Summary.Grid) != SummaryRowCount {
		st.repaired = true
	}
	if EnsureItems(q.Summary) {
		st.repaired = true
	}
	return q, st, nil
}

// initialQuantities starts every option quantity cell at 0 so a new summary
// prices the base machine only.
func initialQuantities() map[string]float64 {
	cells := QuantityCells()
	out := make(map[string]float64, len(cells))
	for _, cell := range cells {
		out[cell] = 0
	}
	return out
}

// recompute runs the engine and refreshes the pricing projection and the
// legacy sheet-shaped copy in the input document.
func (s *QuoteService) recompute(q *Quote) (RollupResult, error) {
	res, err := Recompute(q.Summary, nil)
	if err != nil {
		return RollupResult{}, err
	}
	if q.Pricing == nil {
		q.Pricing = &Pricing{}
	}
	q.Pricing.Subtotal = res.Footer.BaseSellTotal
	q.Pricing.Margin = res.Margin
	q.Pricing.Total = res.Footer.TotalSell
	q.Pricing.Data = res.Totals

	q.Data = BackWriteLegacy(q.Data, res.Totals, q.Summary.Quantities)
	return res, nil
}

func fileSafe(s string) string {
	return strings.NewReplacer("/", "-", `\`, "-", ":", "-").Replace(s)
}

// GenerateOutputs writes the costing workbook and the proposal for a stored
// quote from its current totals.
func (s *QuoteService) GenerateOutputs(ctx context.Context, number string) (OutputFiles, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return OutputFiles{}, err
	}
	if s.workbook == nil || s.proposal == nil {
		return OutputFiles{}, errors.New("generate: output writers are not configured")
	}

	unlock, err := s.locks.Lock(ctx, number)
	if err != nil {
		return OutputFiles{}, err
	}
	defer unlock()

	q, err := loadQuote(s.app, number)
	if err != nil {
		return OutputFiles{}, err
	}
	if q.Summary == nil {
		return OutputFiles{}, fmt.Errorf("%w: %s has no costing summary", ErrQuoteNotFound, number)
	}

	values := WorkbookValues{
		Cells:  ExportCells(q.Summary.Totals, q.Summary.Quantities),
		Grid:   q.Summary.Grid,
		Footer: q.Summary.Totals.Footer,
	}
	bookmarks := BuildBookmarks(q, s.now())
	safe := fileSafe(number)
	costingBase := filepath.Join(s.opts.OutputDir, fmt.Sprintf("01 - Q#%s - Costing", safe))
	proposalBase := filepath.Join(s.opts.OutputDir, fmt.Sprintf("Alliance Automation Proposal #%s - Dismantling System", safe))

	var out OutputFiles
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := s.workbook.WriteWorkbook(values, costingBase)
		if err != nil {
			return fmt.Errorf("generate: costing workbook: %w", err)
		}
		out.Costing = path
		return nil
	})
	g.Go(func() error {
		files, err := s.proposal.WriteProposal(bookmarks, proposalBase)
		if err != nil {
			return fmt.Errorf("generate: proposal: %w", err)
		}
		out.ProposalDocx = files.DocPath
		out.ProposalPDF = files.PDFPath
		return nil
	})
	if err := g.Wait(); err != nil {
		return OutputFiles{}, err
	}

	payload := map[string]any{"costing": out.Costing, "proposal": out.ProposalDocx}
	if err := appendUsage(s.app, q, EventGenerate, payload); err != nil {
		return OutputFiles{}, err
	}
	s.log.Info("quote: outputs generated", zap.String("quote", number), zap.String("costing", out.Costing))
	return out, nil
}
