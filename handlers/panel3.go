package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"rdsquote/costsheet"
	"rdsquote/services"
)

const defaultMarginLogLimit = 50

type costSheetMarginBody struct {
	MarginText string `json:"marginText"`
}

type costSheetPathBody struct {
	Path string `json:"path"`
}

func costSheetPath(app core.App) (string, error) {
	path, err := services.GetSetting(app, services.SettingCostSheetPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", costsheet.ErrPathMissing
	}
	return path, nil
}

func summaryResponse(e *core.RequestEvent, sess *costsheet.Session, rows []costsheet.Row) error {
	if rows == nil {
		rows = []costsheet.Row{}
	}
	lastRead := sess.LastReadAt()
	if lastRead.IsZero() {
		lastRead = time.Now().UTC()
	}
	return e.JSON(http.StatusOK, map[string]any{
		"rows": rows,
		"meta": map[string]string{
			"path":       sess.Path(),
			"lastReadAt": lastRead.Truncate(time.Second).Format(time.RFC3339),
		},
	})
}

// HandleCostSheetConnect opens the stored cost sheet.
func HandleCostSheetConnect(app core.App, sess *costsheet.Session) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		path, err := costSheetPath(app)
		if err == nil {
			err = sess.Open(path)
		}
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"ok": true, "path": path})
	}
}

// HandleCostSheetSummary reads the summary range of the stored cost sheet.
func HandleCostSheetSummary(app core.App, sess *costsheet.Session) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		path, err := costSheetPath(app)
		if err != nil {
			return writeError(e, err)
		}
		rows, err := sess.Summary(path)
		if err != nil {
			return writeError(e, err)
		}
		return summaryResponse(e, sess, rows)
	}
}

// HandleCostSheetMargin writes a margin into the cost sheet, records the
// change and returns the recalculated summary.
func HandleCostSheetMargin(app core.App, sess *costsheet.Session) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		path, err := costSheetPath(app)
		if err != nil {
			return writeError(e, err)
		}
		var body costSheetMarginBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		if err := sess.Open(path); err != nil {
			return writeError(e, err)
		}
		rows, err := sess.ApplyMargin(body.MarginText)
		if err != nil {
			return writeError(e, err)
		}

		change := sess.ConsumeMarginChange()
		if change.New != nil && (change.Old == nil || *change.Old != *change.New) {
			err := services.AddMarginChange(app, services.MarginChange{
				OldMargin: change.Old,
				NewMargin: change.New,
				Source:    "costsheet",
			})
			if err != nil {
				zap.L().Warn("handlers: margin change not recorded", zap.Error(err))
			}
		}
		return summaryResponse(e, sess, rows)
	}
}

// HandleCostSheetPath stores a new cost sheet path and opens it.
func HandleCostSheetPath(app core.App, sess *costsheet.Session) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body costSheetPathBody
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "body", "invalid JSON body")
		}
		path := strings.TrimSpace(body.Path)
		if path == "" {
			return badRequest(e, "path", "path is required")
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return badRequest(e, "path", "specified path does not exist")
		}
		if err := sess.Open(path); err != nil {
			return writeError(e, err)
		}
		if err := services.SetSetting(app, services.SettingCostSheetPath, path); err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"ok": true})
	}
}

// HandleMarginLog lists recent cost sheet margin changes, newest first.
func HandleMarginLog(app core.App) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		limit := defaultMarginLogLimit
		if raw := e.Request.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return badRequest(e, "limit", "must be a positive integer")
			}
			limit = n
		}
		changes, err := services.MarginChanges(app, limit)
		if err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"changes": changes})
	}
}
