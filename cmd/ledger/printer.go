package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// printer renders command output as aligned text or JSON
type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) message(v any, format string, args ...any) error {
	if p.json {
		return p.encode(v)
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

type lineView struct {
	LineNo          int              `json:"line_no"`
	ProductID       uuid.UUID        `json:"product_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Unit            string           `json:"unit,omitempty"`
	Role            string           `json:"role,omitempty"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	VATPercent      *decimal.Decimal `json:"vat_percent,omitempty"`
	BaseQuantity    decimal.Decimal  `json:"base_quantity"`
	PriceWithoutVAT decimal.Decimal  `json:"price_without_vat"`
	VATAmount       decimal.Decimal  `json:"vat_amount"`
	PriceWithVAT    decimal.Decimal  `json:"price_with_vat"`
}

type documentView struct {
	ID           uuid.UUID  `json:"id"`
	Number       string     `json:"number"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	FirmID       uuid.UUID  `json:"firm_id"`
	WarehouseID  uuid.UUID  `json:"warehouse_id"`
	DocumentDate time.Time  `json:"document_date"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	Version      int        `json:"version"`
	Lines        []lineView `json:"lines"`
}

func viewDocument(d *document.Document) documentView {
	v := documentView{
		ID:           d.ID,
		Number:       d.Number,
		Type:         d.Type.String(),
		Status:       d.Status.String(),
		FirmID:       d.FirmID,
		WarehouseID:  d.WarehouseID,
		DocumentDate: d.DocumentDate,
		PostedAt:     d.PostedAt,
		Version:      d.Version,
		Lines:        make([]lineView, len(d.Lines)),
	}
	for i, l := range d.Lines {
		v.Lines[i] = lineView{
			LineNo:          l.LineNo,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			Unit:            l.Unit,
			Role:            string(l.Role),
			UnitPrice:       l.UnitPrice,
			VATPercent:      l.VATPercent,
			BaseQuantity:    l.ConvertedQuantity,
			PriceWithoutVAT: l.PriceWithoutVAT,
			VATAmount:       l.VATAmount,
			PriceWithVAT:    l.PriceWithVAT,
		}
	}
	return v
}

func (p *printer) document(d *document.Document) error {
	v := viewDocument(d)
	if p.json {
		return p.encode(v)
	}
	fmt.Fprintf(p.w, "%s  %s  %s  (id %s, version %d)\n", v.Number, v.Type, v.Status, v.ID, v.Version)
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPRODUCT\tQTY\tUNIT\tPRICE\tNET\tVAT\tGROSS\tROLE")
	for _, l := range v.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.LineNo, l.ProductID, l.Quantity, l.Unit, l.UnitPrice,
			l.PriceWithoutVAT, l.VATAmount, l.PriceWithVAT, l.Role)
	}
	return tw.Flush()
}

func (p *printer) documents(page shared.Paginated[document.Document]) error {
	if p.json {
		views := make([]documentView, len(page.Items))
		for i := range page.Items {
			views[i] = viewDocument(&page.Items[i])
		}
		return p.encode(shared.NewPaginated(views, page.Total, page.Page, page.PageSize))
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tTYPE\tSTATUS\tDATE\tLINES\tID")
	for i := range page.Items {
		d := &page.Items[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			d.Number, d.Type, d.Status, d.DocumentDate.Format("2006-01-02"), len(d.Lines), d.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "page %d of %d (%d documents)\n", page.Page, page.TotalPages, page.Total)
	return err
}

type resultView struct {
	DocumentID        uuid.UUID       `json:"document_id"`
	Number            string          `json:"number"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	OperationsWritten int             `json:"operations_written"`
	OperationsDeleted int64           `json:"operations_deleted"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

func (p *printer) result(r *posting.Result) error {
	v := resultView{
		DocumentID:        r.DocumentID,
		Number:            r.Number,
		Type:              r.Type.String(),
		Status:            r.Status.String(),
		OperationsWritten: r.OperationsWritten,
		OperationsDeleted: r.OperationsDeleted,
		TotalCost:         r.TotalCost,
		TotalRevenue:      r.TotalRevenue,
	}
	if p.json {
		return p.encode(v)
	}
	fmt.Fprintf(p.w, "%s %s is now %s\n", v.Type, v.Number, v.Status)
	if v.OperationsDeleted > 0 {
		fmt.Fprintf(p.w, "ledger rows removed: %d\n", v.OperationsDeleted)
		return nil
	}
	fmt.Fprintf(p.w, "ledger rows written: %d\ncost: %s\n", v.OperationsWritten, v.TotalCost.StringFixed(2))
	if v.TotalRevenue.IsPositive() {
		fmt.Fprintf(p.w, "revenue: %s\nprofit: %s\n", v.TotalRevenue.StringFixed(2), r.Profit().StringFixed(2))
	}
	return nil
}

type lotView struct {
	OperationID uuid.UUID       `json:"operation_id"`
	DocumentID  uuid.UUID       `json:"document_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remaining   decimal.Decimal `json:"remaining"`
	CostPrice   decimal.Decimal `json:"cost_price"`
}

func (p *printer) lots(lots []ledger.Lot) error {
	views := make([]lotView, len(lots))
	for i, l := range lots {
		views[i] = lotView{
			OperationID: l.Operation.ID,
			DocumentID:  l.Operation.DocumentID,
			CreatedAt:   l.Operation.CreatedAt,
			Quantity:    l.Operation.Quantity,
			Remaining:   l.Remaining,
			CostPrice:   l.Operation.CostPrice,
		}
	}
	if p.json {
		return p.encode(views)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tQTY\tREMAINING\tCOST\tDOCUMENT")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.CreatedAt.Format(time.RFC3339), v.Quantity, v.Remaining, v.CostPrice, v.DocumentID)
	}
	return tw.Flush()
}
