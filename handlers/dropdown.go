package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"rdsquote/services"
)

// HandleDropdownList returns the whole option catalog.
func HandleDropdownList() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return e.JSON(http.StatusOK, map[string]any{
			"catalogVersion": services.CatalogVersion,
			"updatedAt":      services.CatalogUpdatedAt,
			"dropdowns":      services.Dropdowns,
		})
	}
}

// HandleDropdownGet returns one dropdown by id.
func HandleDropdownGet() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		d, ok := services.DropdownByID(e.Request.PathValue("id"))
		if !ok {
			return writeError(e, services.ErrDropdownNotFound)
		}
		return e.JSON(http.StatusOK, d)
	}
}

// HandlePrice prices a dropdown selection. A request declaring an older
// catalog version is rejected before anything is priced.
func HandlePrice() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if err := services.CheckCatalogVersion(e.Request.Header.Get(CatalogVersionHeader)); err != nil {
			return writeError(e, err)
		}
		body := map[string]any{}
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		pricing, err := services.PriceStandalone(e.Request.Header.Get(CatalogVersionHeader), body)
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, pricing)
	}
}
