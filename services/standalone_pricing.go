package services

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const orientationField = "sys.infeed_orientation"

var requiredFields = []string{
	"sys.spare_parts_qty",
	"sys.spare_saw_blades_qty",
	"sys.spare_foam_pads_qty",
	"sys.guarding",
	"sys.feeding_funneling",
	"sys.transformer",
	"sys.training_lang",
}

var numericFields = map[string]bool{
	"sys.spare_parts_qty":      true,
	"sys.spare_saw_blades_qty": true,
	"sys.spare_foam_pads_qty":  true,
}

var (
	standaloneBase    = decimal.RequireFromString("414320.82")
	standaloneMargin  = decimal.RequireFromString("0.24")
	standaloneOptions = map[string]struct {
		label string
		unit  decimal.Decimal
	}{
		"opt.spare_parts":         {"Spare Parts Package", decimal.RequireFromString("10069")},
		"opt.saw_blades":          {"Spare Saw Blades", decimal.RequireFromString("155")},
		"opt.foam_pads":           {"Spare Foam Pads", decimal.RequireFromString("224")},
		"opt.guarding_tall":       {"Taller Guarding", decimal.RequireFromString("10672.24")},
		"opt.guarding_tall_net":   {"Taller Guarding and Netting", decimal.RequireFromString("12067.8917")},
		"opt.feeding_front":       {"Front Funneling USL/Badger", decimal.RequireFromString("3429.7074")},
		"opt.feeding_side_usl":    {"Side Funneling USL", decimal.RequireFromString("5205.7466")},
		"opt.feeding_side_badger": {"Side Funneling Badger", decimal.RequireFromString("5205.7466")},
		"opt.transformer_canada":  {"Canada Transformer", decimal.RequireFromString("10651.258")},
		"opt.transformer_step":    {"Step Up Transformer", decimal.RequireFromString("6401.453")},
		"opt.training_spanish":    {"Spanish Training", decimal.Zero},
	}
	// choiceOptions maps a categorical dropdown value to the adder it buys.
	choiceOptions = map[string]map[string]string{
		"sys.guarding": {
			"Tall":            "opt.guarding_tall",
			"Tall w/ Netting": "opt.guarding_tall_net",
		},
		"sys.feeding_funneling": {
			"Front USL":    "opt.feeding_front",
			"Front Badger": "opt.feeding_front",
			"Side USL":     "opt.feeding_side_usl",
			"Side Badger":  "opt.feeding_side_badger",
		},
		"sys.transformer": {
			"Canada":  "opt.transformer_canada",
			"Step Up": "opt.transformer_step",
		},
		"sys.training_lang": {
			"English & Spanish": "opt.training_spanish",
		},
	}
	countOptions = []struct {
		field  string
		option string
	}{
		{"sys.spare_parts_qty", "opt.spare_parts"},
		{"sys.spare_saw_blades_qty", "opt.saw_blades"},
		{"sys.spare_foam_pads_qty", "opt.foam_pads"},
	}
)

// StandaloneOption is one priced adder of a standalone quote.
type StandaloneOption struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Unit     float64 `json:"unit"`
	Qty      int     `json:"qty"`
	Extended float64 `json:"extended"`
}

// StandaloneTotals sums a standalone quote.
type StandaloneTotals struct {
	Options float64 `json:"options"`
	Grand   float64 `json:"grand"`
	Margin  float64 `json:"margin"`
}

// StandaloneDerived carries reference figures derived from the price list.
type StandaloneDerived struct {
	PricePerQty map[string]float64 `json:"price_per_qty"`
}

// StandalonePricing is the flat base-plus-adders price of a dropdown
// selection. It is independent of the costing grid.
type StandalonePricing struct {
	Base    float64            `json:"base"`
	Options []StandaloneOption `json:"options"`
	Totals  StandaloneTotals   `json:"totals"`
	Derived StandaloneDerived  `json:"derived"`
}

// CheckCatalogVersion rejects a declared catalog version other than the
// current one. An empty version is accepted.
func CheckCatalogVersion(version string) error {
	if version != "" && version != CatalogVersion {
		return &StaleCatalogError{Version: CatalogVersion}
	}
	return nil
}

// ValidateStandaloneInputs checks a request body of the form
// {"inputs": {...}} and returns the coerced selection.
func ValidateStandaloneInputs(body map[string]any) (map[string]any, error) {
	inputs, ok := body["inputs"].(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: "inputs", Message: "inputs must be an object"}
	}

	validated := make(map[string]any, len(requiredFields)+1)
	for _, field := range requiredFields {
		raw, present := inputs[field]
		if !present {
			return nil, &ValidationError{Field: field, Message: "missing field: " + field}
		}
		v, err := coerceSelection(field, raw)
		if err != nil {
			return nil, err
		}
		validated[field] = v
	}

	orientation, ok := inputs[orientationField]
	if !ok {
		d, _ := DropdownByID(orientationField)
		orientation = d.Default
	}
	if err := checkEnum(orientationField, orientation); err != nil {
		return nil, err
	}
	validated[orientationField] = orientation

	for _, field := range requiredFields {
		if err := checkEnum(field, validated[field]); err != nil {
			return nil, err
		}
	}
	return validated, nil
}

func enumError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "invalid enum for " + field}
}

func coerceSelection(field string, raw any) (any, error) {
	if numericFields[field] {
		if _, isBool := raw.(bool); isBool {
			return nil, enumError(field)
		}
		n, err := cast.ToIntE(raw)
		if err != nil {
			return nil, enumError(field)
		}
		return n, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, enumError(field)
	}
	return s, nil
}

func checkEnum(field string, value any) error {
	d, ok := DropdownByID(field)
	if !ok {
		return nil
	}
	rules := []validation.Rule{validation.In(d.Options...)}
	if _, isString := value.(string); isString {
		rules = append([]validation.Rule{validation.Required}, rules...)
	} else if !numericFields[field] {
		return enumError(field)
	}
	if err := validation.Validate(value, rules...); err != nil {
		return enumError(field)
	}
	return nil
}

// ComputeStandalonePricing prices a validated selection.
func ComputeStandalonePricing(inputs map[string]any) StandalonePricing {
	options := make([]StandaloneOption, 0, 6)
	total := decimal.Zero

	add := func(id string, qty int) {
		opt := standaloneOptions[id]
		extended := opt.unit.Mul(decimal.NewFromInt(int64(qty)))
		options = append(options, StandaloneOption{
			ID:       id,
			Label:    opt.label,
			Unit:     opt.unit.InexactFloat64(),
			Qty:      qty,
			Extended: extended.InexactFloat64(),
		})
		total = total.Add(extended)
	}

	for _, c := range countOptions {
		if qty := cast.ToInt(inputs[c.field]); qty != 0 {
			add(c.option, qty)
		}
	}
	for _, field := range []string{"sys.guarding", "sys.feeding_funneling", "sys.transformer", "sys.training_lang"} {
		if id, ok := choiceOptions[field][cast.ToString(inputs[field])]; ok {
			add(id, 1)
		}
	}

	ten := decimal.NewFromInt(10)
	return StandalonePricing{
		Base:    standaloneBase.InexactFloat64(),
		Options: options,
		Totals: StandaloneTotals{
			Options: total.InexactFloat64(),
			Grand:   standaloneBase.Add(total).InexactFloat64(),
			Margin:  standaloneMargin.InexactFloat64(),
		},
		Derived: StandaloneDerived{PricePerQty: map[string]float64{
			"parts":  standaloneOptions["opt.spare_parts"].unit.InexactFloat64(),
			"blades": standaloneOptions["opt.saw_blades"].unit.Mul(ten).InexactFloat64(),
			"pads":   standaloneOptions["opt.foam_pads"].unit.Mul(ten).InexactFloat64(),
		}},
	}
}

// PriceStandalone validates and prices a request body in one step.
func PriceStandalone(version string, body map[string]any) (StandalonePricing, error) {
	if err := CheckCatalogVersion(version); err != nil {
		return StandalonePricing{}, err
	}
	inputs, err := ValidateStandaloneInputs(body)
	if err != nil {
		return StandalonePricing{}, err
	}
	return ComputeStandalonePricing(inputs), nil
}

