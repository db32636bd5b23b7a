package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type command struct {
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, a *app, out *printer, args []string) error
}

var commandOrder = []string{"create", "show", "list", "post", "unpost", "delete", "stock", "cost", "value", "lots"}

var commands = map[string]command{
	"create": {"<file.json|->", "create a draft document", 1, cmdCreate},
	"show":   {"<document-id>", "print a document and its lines", 1, cmdShow},
	"list":   {"[-type t] [-status s] [-firm id] [-page n]", "list documents", 0, cmdList},
	"post":   {"<document-id>", "post a draft document", 1, cmdPost},
	"unpost": {"<document-id>", "return a posted document to draft", 1, cmdUnpost},
	"delete": {"<document-id>", "delete a draft document", 1, cmdDelete},
	"stock":  {"<product> <warehouse> <firm>", "available quantity", 3, cmdStock},
	"cost":   {"<product> <warehouse> <firm> <qty>", "FIFO cost of a quantity", 4, cmdCost},
	"value":  {"<product> <warehouse> <firm>", "stock value and average cost", 3, cmdValue},
	"lots":   {"<product> <warehouse> <firm>", "open lots in FIFO order", 3, cmdLots},
}

func cmdCreate(ctx context.Context, a *app, out *printer, args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open document file: %w", err)
		}
		defer f.Close()
		r = f
	}
	in, err := decodeDocument(r)
	if err != nil {
		return err
	}
	doc, err := a.documents.Create(ctx, in)
	if err != nil {
		return err
	}
	return out.document(doc)
}

func cmdShow(ctx context.Context, a *app, out *printer, args []string) error {
	id, err := parseID("document id", args[0])
	if err != nil {
		return err
	}
	doc, err := a.documents.Get(ctx, id)
	if err != nil {
		return err
	}
	return out.document(doc)
}

func cmdList(ctx context.Context, a *app, out *printer, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var (
		docType, status, firm string
		page, size            int
	)
	fs.StringVar(&docType, "type", "", "document type")
	fs.StringVar(&status, "status", "", "draft or posted")
	fs.StringVar(&firm, "firm", "", "firm id")
	fs.IntVar(&page, "page", 1, "page number")
	fs.IntVar(&size, "size", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "list: %v", err)
	}

	filter := document.Filter{Filter: shared.Filter{Page: page, PageSize: size, OrderBy: "created_at", OrderDir: "desc"}}
	if docType != "" {
		t := document.Type(docType)
		if !t.IsValid() {
			return shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown document type %q", docType)
		}
		filter.Type = &t
	}
	if status != "" {
		s := document.Status(status)
		if !s.IsValid() {
			return shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown status %q", status)
		}
		filter.Status = &s
	}
	if firm != "" {
		id, err := parseID("firm id", firm)
		if err != nil {
			return err
		}
		filter.FirmID = &id
	}

	res, err := a.documents.List(ctx, filter)
	if err != nil {
		return err
	}
	return out.documents(res)
}

func cmdPost(ctx context.Context, a *app, out *printer, args []string) error {
	id, err := parseID("document id", args[0])
	if err != nil {
		return err
	}
	res, err := a.posting.Post(ctx, id)
	if err != nil {
		return err
	}
	return out.result(res)
}

func cmdUnpost(ctx context.Context, a *app, out *printer, args []string) error {
	id, err := parseID("document id", args[0])
	if err != nil {
		return err
	}
	res, err := a.posting.Unpost(ctx, id)
	if err != nil {
		return err
	}
	return out.result(res)
}

func cmdDelete(ctx context.Context, a *app, out *printer, args []string) error {
	id, err := parseID("document id", args[0])
	if err != nil {
		return err
	}
	if err := a.documents.Delete(ctx, id); err != nil {
		return err
	}
	return out.message(map[string]string{"deleted": id.String()}, "deleted %s", id)
}

func cmdStock(ctx context.Context, a *app, out *printer, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	qty, err := a.engine.AvailableStock(ctx, key)
	if err != nil {
		return err
	}
	return out.message(map[string]decimal.Decimal{"available": qty}, "%s", qty)
}

func cmdCost(ctx context.Context, a *app, out *printer, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	qty, err := parseDecimal("quantity", args[3])
	if err != nil {
		return err
	}
	cost, err := a.engine.CostForQuantity(ctx, key, qty)
	if err != nil {
		return err
	}
	return out.message(map[string]decimal.Decimal{"quantity": qty, "cost": cost}, "%s", cost)
}

func cmdValue(ctx context.Context, a *app, out *printer, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	value, err := a.engine.StockValue(ctx, key)
	if err != nil {
		return err
	}
	avg, err := a.engine.AverageCost(ctx, key)
	if err != nil {
		return err
	}
	return out.message(map[string]decimal.Decimal{"value": value, "average_cost": avg},
		"value %s\naverage cost %s", value, avg.Round(ledger.CostPlaces))
}

func cmdLots(ctx context.Context, a *app, out *printer, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	lots, err := a.engine.OpenLots(ctx, key)
	if err != nil {
		return err
	}
	return out.lots(lots)
}

func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid %s %q", what, s)
	}
	return id, nil
}

func parseDecimal(what, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid %s %q", what, s)
	}
	return d, nil
}

func parseKey(args []string) (ledger.StockKey, error) {
	var ids [3]uuid.UUID
	for i, what := range []string{"product id", "warehouse id", "firm id"} {
		id, err := parseID(what, args[i])
		if err != nil {
			return ledger.StockKey{}, err
		}
		ids[i] = id
	}
	return ledger.NewStockKey(ids[0], ids[1], ids[2]), nil
}

// documentFile is the JSON shape accepted by `ledger create`
type documentFile struct {
	Type              string     `json:"type"`
	CompanyID         uuid.UUID  `json:"company_id"`
	FirmID            uuid.UUID  `json:"firm_id"`
	WarehouseID       uuid.UUID  `json:"warehouse_id"`
	TargetWarehouseID *uuid.UUID `json:"target_warehouse_id,omitempty"`
	CounterpartyID    *uuid.UUID `json:"counterparty_id,omitempty"`
	SourceDocumentID  *uuid.UUID `json:"source_document_id,omitempty"`
	VATMode           string     `json:"vat_mode,omitempty"`
	DocumentDate      *time.Time `json:"document_date,omitempty"`
	Comment           string     `json:"comment,omitempty"`
	Lines             []lineFile `json:"lines"`
}

type lineFile struct {
	ProductID  uuid.UUID        `json:"product_id"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Unit       string           `json:"unit,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	VATPercent *decimal.Decimal `json:"vat_percent,omitempty"`
	Role       string           `json:"role,omitempty"`
}

func decodeDocument(r io.Reader) (posting.CreateDocumentInput, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f documentFile
	if err := dec.Decode(&f); err != nil {
		return posting.CreateDocumentInput{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid document file: %v", err)
	}

	in := posting.CreateDocumentInput{
		Type:              document.Type(f.Type),
		CompanyID:         f.CompanyID,
		FirmID:            f.FirmID,
		WarehouseID:       f.WarehouseID,
		TargetWarehouseID: f.TargetWarehouseID,
		CounterpartyID:    f.CounterpartyID,
		SourceDocumentID:  f.SourceDocumentID,
		VATMode:           tax.Mode(f.VATMode),
		Comment:           f.Comment,
		Lines:             make([]posting.CreateLineInput, len(f.Lines)),
	}
	if f.DocumentDate != nil {
		in.DocumentDate = *f.DocumentDate
	}
	for i, l := range f.Lines {
		in.Lines[i] = posting.CreateLineInput{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			Unit:       l.Unit,
			UnitPrice:  l.UnitPrice,
			VATPercent: l.VATPercent,
			Role:       document.Role(l.Role),
		}
	}
	return in, nil
}
