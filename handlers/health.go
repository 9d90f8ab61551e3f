package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
)

// HandleHealth reports liveness.
func HandleHealth() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return e.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
