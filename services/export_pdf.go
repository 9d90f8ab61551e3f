package services

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// GenerateProposalPDF renders the proposal bookmarks as a one page price
// summary and returns the PDF bytes.
func GenerateProposalPDF(marks map[string]string) ([]byte, error) {
	cfg := config.NewBuilder().
		WithOrientation(orientation.Vertical).
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)

	addProposalHeader(m, marks)
	addOptionTableHeader(m)
	for _, opt := range proposalOptions {
		addOptionRow(m, optionLabel(opt.cell), marks[opt.name+"Qty"], marks[opt.name+"Price"])
	}
	addProposalFooter(m, marks)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func optionLabel(cell string) string {
	idx, ok := RowIndexForCell(cell)
	if !ok {
		return cell
	}
	def, _ := RowDefinitionAt(idx)
	return def.Description
}

func addProposalHeader(m core.Maroto, marks map[string]string) {
	grey := &props.Color{Red: 80, Green: 80, Blue: 80}

	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(fmt.Sprintf("Proposal #%s - Dismantling System", marks["QuoteNum"]), props.Text{
					Size:  16,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
		),
	)
	m.AddRows(
		row.New(8).Add(
			col.New(6).Add(
				text.New("Customer: "+marks["Customer"], props.Text{Size: 9, Align: align.Left, Color: grey}),
			),
			col.New(6).Add(
				text.New("Date: "+marks["Date"], props.Text{Size: 9, Align: align.Right, Color: grey}),
			),
		),
	)
	m.AddRows(row.New(4))
	m.AddRows(
		row.New(10).Add(
			col.New(8).Add(text.New("Base System Price", props.Text{Size: 11, Style: fontstyle.Bold})),
			col.New(4).Add(text.New(marks["BasePrice"], props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right})),
		),
	)
	m.AddRows(row.New(4))
}

func addOptionTableHeader(m core.Maroto) {
	headerCell := props.Cell{BackgroundColor: &props.Color{Red: 33, Green: 37, Blue: 41}}
	headerText := props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
	}
	headerLeft := headerText
	headerLeft.Align = align.Left

	m.AddRows(
		row.New(8).Add(
			col.New(7).Add(text.New("Option", headerLeft)).WithStyle(&headerCell),
			col.New(2).Add(text.New("Qty", headerText)).WithStyle(&headerCell),
			col.New(3).Add(text.New("Price", headerText)).WithStyle(&headerCell),
		),
	)
}

func addOptionRow(m core.Maroto, label, qty, price string) {
	base := props.Text{Size: 8}
	right := base
	right.Align = align.Right
	center := base
	center.Align = align.Center

	m.AddRows(
		row.New(7).Add(
			col.New(7).Add(text.New(label, base)),
			col.New(2).Add(text.New(qty, center)),
			col.New(3).Add(text.New(price, right)),
		),
	)
}

func addProposalFooter(m core.Maroto, marks map[string]string) {
	if marks["User"] == "" {
		return
	}
	m.AddRows(row.New(6))
	m.AddRows(
		row.New(6).Add(
			col.New(12).Add(
				text.New("Prepared by "+marks["User"], props.Text{
					Size:  7,
					Align: align.Left,
					Color: &props.Color{Red: 140, Green: 140, Blue: 140},
				}),
			),
		),
	)
}
