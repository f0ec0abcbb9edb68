package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is the pre-formatted content of a payout statement.
type StatementData struct {
	RequestID          string
	CreatorName        string
	CreatorEmail       string
	RequestedAt        string
	ClearingEndsAt     string
	Status             string
	AutoApprovalStatus string
	PayoutMethod       string

	Items []StatementItem

	Total       string
	ClawedBack  string
	NetPayable  string
	GeneratedAt string
}

type StatementItem struct {
	Reference      string
	Brand          string
	Amount         string
	ClawbackStatus string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Payout statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Request: "+data.RequestID, props.Text{Top: 0}),
			text.New("Requested: "+data.RequestedAt, props.Text{Top: 5}),
			text.New("Clearing ends: "+data.ClearingEndsAt, props.Text{Top: 10}),
			text.New("Method: "+data.PayoutMethod, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New(data.CreatorName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.CreatorEmail, props.Text{Top: 5, Align: align.Right}),
			text.New("Status: "+data.Status, props.Text{Top: 10, Align: align.Right}),
			text.New("Review: "+data.AutoApprovalStatus, props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(5, "Submission", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Brand", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Clawback", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(5, item.Reference, props.Text{Size: 9}),
			text.NewCol(3, item.Brand, props.Text{Size: 9}),
			text.NewCol(2, item.ClawbackStatus, props.Text{Size: 9}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9}),
		text.NewCol(2, data.Total, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Clawed back", props.Text{Size: 9}),
		text.NewCol(2, data.ClawedBack, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Net payable", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.NetPayable, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(10,
		text.NewCol(12, "Generated "+data.GeneratedAt, props.Text{Size: 7, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
