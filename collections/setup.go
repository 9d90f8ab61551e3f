package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// JSON columns hold totals, grids and quote input documents.
const jsonMaxSize = 4 << 20

// Setup creates the quote, costing, pricing, usage and settings collections
// when they do not exist yet.
func Setup(app core.App) {
	quotes := ensureCollection(app, "quotes", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "quote_number", Required: true, Max: 64})
		c.Fields.Add(&core.TextField{Name: "customer"})
		c.Fields.Add(&core.JSONField{Name: "data", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_quotes_quote_number", true, "quote_number", "")
	})

	summaries := ensureCollection(app, "costing_summaries", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "quote",
			Required:      true,
			CollectionId:  quotes.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "margin"})
		c.Fields.Add(&core.JSONField{Name: "toggles", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.JSONField{Name: "quantities", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.JSONField{Name: "totals", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.JSONField{Name: "grid_state", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_costing_summaries_quote", true, "quote", "")
	})

	ensureCollection(app, "costing_items", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "summary",
			Required:      true,
			CollectionId:  summaries.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.TextField{Name: "code", Required: true})
		c.Fields.Add(&core.TextField{Name: "description"})
		c.Fields.Add(&core.NumberField{Name: "quantity"})
		c.Fields.Add(&core.NumberField{Name: "unit_cost"})
		c.Fields.Add(&core.TextField{Name: "category"})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		c.Fields.Add(&core.JSONField{Name: "override_margin"})
		c.Fields.Add(&core.JSONField{Name: "metadata"})
	})

	ensureCollection(app, "pricing", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "quote",
			Required:      true,
			CollectionId:  quotes.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "subtotal"})
		c.Fields.Add(&core.NumberField{Name: "margin"})
		c.Fields.Add(&core.NumberField{Name: "total"})
		c.Fields.Add(&core.JSONField{Name: "data", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_pricing_quote", true, "quote", "")
	})

	ensureCollection(app, "usage_logs", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:         "quote",
			CollectionId: quotes.Id,
			MaxSelect:    1,
		})
		c.Fields.Add(&core.TextField{Name: "quote_number"})
		c.Fields.Add(&core.TextField{Name: "event", Required: true})
		c.Fields.Add(&core.JSONField{Name: "payload", MaxSize: jsonMaxSize})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	})

	ensureCollection(app, "app_settings", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "key", Required: true})
		c.Fields.Add(&core.TextField{Name: "value"})
		c.AddIndex("idx_app_settings_key", true, "key", "")
	})

	ensureCollection(app, "margin_changes", func(c *core.Collection) {
		c.Fields.Add(&core.JSONField{Name: "old_margin"})
		c.Fields.Add(&core.JSONField{Name: "new_margin"})
		c.Fields.Add(&core.TextField{Name: "source"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	})
}

// ensureCollection returns the named collection, creating it through
// addFields first if it is missing.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		log.Fatalf("collections: failed to create %q: %v", name, err)
	}

	fmt.Printf("Created collection %q (id=%s)\n", name, collection.Id)
	return collection
}
