package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"rdsquote/costsheet"
	"rdsquote/services"
)

// writeError maps a service error onto its JSON response. Anything it does
// not recognise is logged and reported as a 500.
func writeError(e *core.RequestEvent, err error) error {
	var ve *services.ValidationError
	var stale *services.StaleCatalogError

	switch {
	case errors.As(err, &ve):
		return e.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.As(err, &stale):
		e.Response.Header().Set(CatalogVersionHeader, stale.Version)
		return e.JSON(http.StatusConflict, map[string]string{"error": stale.Error(), "version": stale.Version})
	case errors.Is(err, services.ErrRowNotFound),
		errors.Is(err, services.ErrQuoteNotFound),
		errors.Is(err, services.ErrDropdownNotFound):
		return e.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, costsheet.ErrPathMissing):
		return e.JSON(http.StatusBadRequest, map[string]string{"error": costsheet.ErrPathMissing.Error()})
	case errors.Is(err, costsheet.ErrInvalidMargin):
		return e.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return e.JSON(http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	}

	zap.L().Error("handlers: request failed",
		zap.String("method", e.Request.Method),
		zap.String("path", e.Request.URL.Path),
		zap.Error(err),
	)
	return e.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// badRequest reports a malformed request body or parameter.
func badRequest(e *core.RequestEvent, field, message string) error {
	return writeError(e, &services.ValidationError{Field: field, Message: message})
}
