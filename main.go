package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rdsquote/collections"
	"rdsquote/config"
	"rdsquote/costsheet"
	"rdsquote/handlers"
	"rdsquote/logger"
	"rdsquote/services"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	app := pocketbase.New()

	svc := services.NewQuoteService(app, zl,
		services.QuoteOptions{DefaultMargin: cfg.DefaultMargin, OutputDir: cfg.OutputDir},
		services.CostingWorkbook{},
		services.ProposalDocument{Template: cfg.WordTemplate, PDFEnabled: cfg.PDFEnabled, Log: zl},
	)
	sess := costsheet.NewSession(zl)

	app.RootCmd.AddCommand(ingestCommand(cfg, zl))
	app.RootCmd.AddCommand(recomputeAllCommand(app, svc, zl))

	// Create collections, run migrations and seed on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		if _, err := collections.MigrateCostingItemMetadata(app, itemMetadata); err != nil {
			zl.Warn("startup: item metadata migration failed", zap.Error(err))
		}
		err := collections.MigrateDefaultSettings(app, map[string]string{
			services.SettingCostSheetPath: cfg.CostSheetPath,
		})
		if err != nil {
			zl.Warn("startup: settings migration failed", zap.Error(err))
		}
		if cfg.SeedDemo {
			seedDemo(app, svc, zl)
		}
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		se.Router.GET("/health", handlers.HandleHealth())

		api := se.Router.Group("/api")
		api.BindFunc(handlers.RequestLogMiddleware(zl))

		// ── Quotes ──────────────────────────────────────────────
		api.GET("/quote/{number}", handlers.HandleQuoteGet(svc))
		api.POST("/quote/{number}", handlers.HandleQuoteUpdate(svc))
		api.POST("/quote/{number}/margin", handlers.HandleMarginSet(svc))
		api.POST("/quote/{number}/margin/reset", handlers.HandleMarginReset(svc))
		api.POST("/quote/{number}/toggle", handlers.HandleToggle(svc))
		api.POST("/quote/{number}/options/enable", handlers.HandleOptionsEnable(svc))
		api.POST("/quote/{number}/quantity", handlers.HandleQuantity(svc))
		api.POST("/quote/{number}/summary/override", handlers.HandleSummaryOverride(svc))
		api.PATCH("/quote/{number}/items/{rowIndex}", handlers.HandleLineItemPatch(svc))
		api.POST("/quote/{number}/recompute", handlers.HandleRecompute(svc))
		api.POST("/quote/{number}/generate", handlers.HandleGenerate(svc))
		api.GET("/quote/{number}/usage", handlers.HandleUsage(svc))

		// ── Standalone dropdown pricing ─────────────────────────
		catalog := api.Group("")
		catalog.BindFunc(handlers.CatalogVersionMiddleware())
		catalog.GET("/dropdowns", handlers.HandleDropdownList())
		catalog.GET("/dropdowns/{id}", handlers.HandleDropdownGet())
		catalog.POST("/price", handlers.HandlePrice())

		// ── Live cost sheet ─────────────────────────────────────
		api.POST("/panel3/connect", handlers.HandleCostSheetConnect(app, sess))
		api.GET("/panel3/summary", handlers.HandleCostSheetSummary(app, sess))
		api.POST("/panel3/margin", handlers.HandleCostSheetMargin(app, sess))
		api.POST("/panel3/path", handlers.HandleCostSheetPath(app, sess))
		api.GET("/panel3/margin-log", handlers.HandleMarginLog(app))

		se.Router.GET("/", func(e *core.RequestEvent) error {
			return e.Redirect(http.StatusFound, "/health")
		})

		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		if err := sess.Close(); err != nil {
			zl.Warn("shutdown: cost sheet not saved", zap.Error(err))
		}
		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func itemMetadata(code string) (any, bool) {
	return services.MetadataForCode(code)
}

func seedDemo(app core.App, svc *services.QuoteService, zl *zap.Logger) {
	created, err := collections.SeedDemoQuote(app, "Demo Customer", services.DefaultInputs())
	if err != nil {
		zl.Warn("startup: demo seed failed", zap.Error(err))
		return
	}
	if !created {
		return
	}
	_, err = svc.UpdateInput(context.Background(), collections.DemoQuoteNumber, services.InputUpdate{
		Data: services.DefaultInputs(),
	})
	if err != nil {
		zl.Warn("startup: demo quote costing failed", zap.Error(err))
	}
}

func ingestCommand(cfg config.Config, zl *zap.Logger) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "ingest <workbook.xlsx>",
		Short: "Dump a workbook's cells and defined names to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := costsheet.Ingest(args[0])
			if err != nil {
				return err
			}
			if err := costsheet.WriteDump(dump, out); err != nil {
				return err
			}
			zl.Info("ingest: workbook dumped", zap.String("workbook", args[0]), zap.String("out", out))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", cfg.DumpPath, "output JSON path")
	return cmd
}

func recomputeAllCommand(app core.App, svc *services.QuoteService, zl *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-all",
		Short: "Recompute the costing of every stored quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections.Setup(app)
			n, err := svc.RecomputeAll(cmd.Context())
			zl.Info("recompute-all: finished", zap.Int("quotes", n), zap.Error(err))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d quote(s)\n", n)
			return nil
		},
	}
}
