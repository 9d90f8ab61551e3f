package services

// Catalog version of the dropdown-driven pricing path.
const (
	CatalogVersion   = "v1"
	CatalogUpdatedAt = "2025-09-23T00:00:00Z"
)

// DropdownSource says where a dropdown's options come from.
type DropdownSource struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// Dropdown is one selectable system option. Options hold either strings or
// ints, matching Default.
type Dropdown struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Options []any          `json:"options"`
	Default any            `json:"default"`
	Source  DropdownSource `json:"source"`
	Tooltip string         `json:"tooltip,omitempty"`
}

var inline = DropdownSource{Type: "inline", Ref: ""}

// Dropdowns is the versioned option catalog, in display order.
var Dropdowns = []Dropdown{
	{
		ID:      "sys.infeed_orientation",
		Label:   "Infeed Orientation",
		Options: []any{"Left", "Centered", "Right"},
		Default: "Centered",
		Source:  DropdownSource{Type: "range", Ref: "Sheet2!A2:A4"},
		Tooltip: "Select orientation for illustration placement",
	},
	{
		ID:      "sys.spare_parts_qty",
		Label:   "Spare Parts Package",
		Options: []any{0, 1},
		Default: 1,
		Source:  inline,
		Tooltip: "# of spare parts packages",
	},
	{
		ID:      "sys.spare_saw_blades_qty",
		Label:   "Spare Saw Blades",
		Options: []any{0, 10, 20, 30, 40, 50},
		Default: 20,
		Source:  inline,
		Tooltip: "packs of 10 blades",
	},
	{
		ID:      "sys.spare_foam_pads_qty",
		Label:   "Spare Foam Pads",
		Options: []any{0, 10, 20, 30, 40, 50},
		Default: 0,
		Source:  inline,
		Tooltip: "packs of 10 foam pads",
	},
	{
		ID:      "sys.guarding",
		Label:   "Guarding",
		Options: []any{"Standard", "Tall", "Tall w/ Netting"},
		Default: "Standard",
		Source:  inline,
		Tooltip: "Choose guarding height/netting",
	},
	{
		ID:      "sys.feeding_funneling",
		Label:   "Feeding USL/Badger",
		Options: []any{"No", "Front USL", "Front Badger", "Side USL", "Side Badger"},
		Default: "No",
		Source:  inline,
		Tooltip: "Select funneling style",
	},
	{
		ID:      "sys.transformer",
		Label:   "Transformer",
		Options: []any{"None", "Canada", "Step Up"},
		Default: "None",
		Source:  inline,
		Tooltip: "Select transformer type",
	},
	{
		ID:      "sys.training_lang",
		Label:   "Training",
		Options: []any{"English", "English & Spanish"},
		Default: "English",
		Source:  inline,
		Tooltip: "Training language",
	},
}

// DropdownByID looks up a catalog entry.
func DropdownByID(id string) (Dropdown, bool) {
	for _, d := range Dropdowns {
		if d.ID == id {
			return d, true
		}
	}
	return Dropdown{}, false
}

// DefaultInputs returns the catalog default of every dropdown.
func DefaultInputs() map[string]any {
	out := make(map[string]any, len(Dropdowns))
	for _, d := range Dropdowns {
		out[d.ID] = d.Default
	}
	return out
}
