package handlers

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"rdsquote/services"
)

// CatalogVersionHeader carries the dropdown catalog version in both
// directions.
const CatalogVersionHeader = "X-Catalog-Version"

// CatalogVersionMiddleware stamps the current catalog version on every
// response of the routes it wraps.
func CatalogVersionMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		e.Response.Header().Set(CatalogVersionHeader, services.CatalogVersion)
		return e.Next()
	}
}

// RequestLogMiddleware logs each API call and its duration at debug level.
func RequestLogMiddleware(log *zap.Logger) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		start := time.Now()
		err := e.Next()
		log.Debug("handlers: request",
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
}
