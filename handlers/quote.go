package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"

	"rdsquote/services"
)

type quoteUpdateBody struct {
	Data     map[string]any `json:"data"`
	Customer *string        `json:"customer"`
	Margin   *float64       `json:"margin"`
}

type marginBody struct {
	Margin *float64 `json:"margin"`
}

type toggleBody struct {
	Cell  string `json:"cell"`
	Value *int   `json:"value"`
}

type quantityBody struct {
	Cell  string   `json:"cell"`
	Value *float64 `json:"value"`
}

type overrideBody struct {
	RowIndex *int     `json:"rowIndex"`
	Override *float64 `json:"override"`
}

type lineItemBody struct {
	Description *string `json:"description"`
	Quantity    any     `json:"quantity"`
	UnitCost    any     `json:"unit_cost"`
}

// HandleQuoteGet returns a quote, creating it on first access.
func HandleQuoteGet(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		view, err := svc.GetOrCreateQuote(e.Request.Context(), e.Request.PathValue("number"))
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, view)
	}
}

// HandleQuoteUpdate merges input data into a quote and returns the updated
// quote view.
func HandleQuoteUpdate(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body quoteUpdateBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		ctx := e.Request.Context()
		number := e.Request.PathValue("number")

		_, err := svc.UpdateInput(ctx, number, services.InputUpdate{
			Data:     body.Data,
			Customer: body.Customer,
			Margin:   body.Margin,
		})
		if err != nil {
			return writeError(e, err)
		}
		view, err := svc.GetOrCreateQuote(ctx, number)
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, view)
	}
}

// HandleMarginSet changes the quote-level margin.
func HandleMarginSet(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body marginBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		if body.Margin == nil {
			return badRequest(e, "margin", "is required")
		}
		return rollup(e)(svc.SetMargin(e.Request.Context(), e.Request.PathValue("number"), *body.Margin))
	}
}

// HandleMarginReset restores the default margin.
func HandleMarginReset(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return rollup(e)(svc.ResetMargin(e.Request.Context(), e.Request.PathValue("number")))
	}
}

// HandleToggle sets one option toggle. A missing value means on.
func HandleToggle(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body toggleBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		value := 1
		if body.Value != nil {
			value = *body.Value
		}
		return rollup(e)(svc.SetToggle(e.Request.Context(), e.Request.PathValue("number"), body.Cell, value))
	}
}

// HandleOptionsEnable switches every option toggle on.
func HandleOptionsEnable(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return rollup(e)(svc.ForceEnableOptions(e.Request.Context(), e.Request.PathValue("number")))
	}
}

// HandleQuantity writes a quantity cell.
func HandleQuantity(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body quantityBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		if body.Value == nil {
			return badRequest(e, "value", "is required")
		}
		return rollup(e)(svc.SetQuantity(e.Request.Context(), e.Request.PathValue("number"), body.Cell, *body.Value))
	}
}

// HandleSummaryOverride sets or clears a row's margin override.
func HandleSummaryOverride(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body overrideBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		if body.RowIndex == nil {
			return badRequest(e, "rowIndex", "is required")
		}
		return rollup(e)(svc.SetSummaryOverride(e.Request.Context(), e.Request.PathValue("number"), *body.RowIndex, body.Override))
	}
}

// HandleLineItemPatch edits one row's description, quantity or unit cost.
func HandleLineItemPatch(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		rowIndex, err := strconv.Atoi(e.Request.PathValue("rowIndex"))
		if err != nil {
			return badRequest(e, "rowIndex", "must be an integer")
		}
		var body lineItemBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		return rollup(e)(svc.UpdateLineItem(e.Request.Context(), e.Request.PathValue("number"), rowIndex, services.LineItemUpdate{
			Description: body.Description,
			Quantity:    body.Quantity,
			UnitCost:    body.UnitCost,
		}))
	}
}

// HandleRecompute recomputes a quote.
func HandleRecompute(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return rollup(e)(svc.RecomputeCosting(e.Request.Context(), e.Request.PathValue("number"), nil))
	}
}

// HandleGenerate writes the costing workbook and proposal.
func HandleGenerate(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		out, err := svc.GenerateOutputs(e.Request.Context(), e.Request.PathValue("number"))
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, out)
	}
}

// HandleUsage lists a quote's audit trail.
func HandleUsage(svc *services.QuoteService) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		entries, err := svc.Usage(e.Request.PathValue("number"))
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"entries": entries})
	}
}

// rollup writes a mutation result or its error.
func rollup(e *core.RequestEvent) func(services.RollupResult, error) error {
	return func(res services.RollupResult, err error) error {
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, res)
	}
}
