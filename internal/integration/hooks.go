// Package integration turns operational documents (restaurant bills, approved
// stock deductions) into ledger postings through the account mappings.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oomaallah/hotelops/internal/accounting"
	"github.com/oomaallah/hotelops/internal/inventory"
	"github.com/oomaallah/hotelops/internal/restaurant"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Mapping keys for restaurant bills (module POS).
const (
	KeyCash       = "pos.cash"
	KeyReceivable = "pos.receivable"
	KeyRevenue    = "pos.revenue"
	KeyVAT        = "pos.vat"
	KeyLevy       = "pos.levy"
	KeyService    = "pos.service"
	KeyDiscount   = "pos.discount"
)

// Mapping keys for stock deductions (module STOCK).
const (
	KeyInventory = "stock.inventory"
	KeyDeduction = "stock.deduction"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostJournal(ctx context.Context, input accounting.PostingInput) (accounting.JournalEntry, error)
	ResolveMappings(ctx context.Context, module string, keys ...string) (map[string]uuid.UUID, error)
}

// BillSource reads restaurant bills and their payments.
type BillSource interface {
	GetBill(ctx context.Context, id uuid.UUID) (restaurant.Bill, error)
	ListPayments(ctx context.Context, billID uuid.UUID) ([]restaurant.Payment, error)
}

// StockSource reads stock requests and items.
type StockSource interface {
	GetRequest(ctx context.Context, id uuid.UUID) (inventory.StockRequest, error)
	GetItem(ctx context.Context, id uuid.UUID) (inventory.StockItem, error)
}

var (
	ErrBillVoid        = shared.NewError(shared.ErrPrecondition, "void bills are not posted")
	ErrNotDeduction    = shared.NewError(shared.ErrPrecondition, "only approved deduction requests are posted")
	ErrZeroValuation   = shared.NewError(shared.ErrValidation, "stock deduction has no value to post")
	ErrNothingToPost   = shared.NewError(shared.ErrValidation, "bill has a zero total")
	errSourcesRequired = errors.New("integration: bill and stock sources required")
)

// Poster posts source documents to the general ledger.
type Poster struct {
	ledger  Ledger
	bills   BillSource
	stock   StockSource
	logger  *slog.Logger
	printer *message.Printer
}

// NewPoster constructs a Poster.
func NewPoster(ledger Ledger, bills BillSource, stock StockSource, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{ledger: ledger, bills: bills, stock: stock, logger: logger, printer: message.NewPrinter(language.English)}
}

// PostBill books a bill: cash and receivable (and discount) on the debit side,
// revenue, service charge, VAT and tourism levy on the credit side.
func (p *Poster) PostBill(ctx context.Context, billID, actor uuid.UUID) (accounting.JournalEntry, error) {
	if p.bills == nil {
		return accounting.JournalEntry{}, errSourcesRequired
	}
	bill, err := p.bills.GetBill(ctx, billID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if bill.PostedJournalEntryID != nil {
		return accounting.JournalEntry{}, accounting.ErrAlreadyPosted
	}
	if bill.Status == restaurant.BillVoid {
		return accounting.JournalEntry{}, ErrBillVoid
	}
	total := money(bill.TotalAmount)
	if !total.IsPositive() {
		return accounting.JournalEntry{}, ErrNothingToPost
	}
	payments, err := p.bills.ListPayments(ctx, billID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	cash := decimal.Zero
	for _, pay := range payments {
		if pay.Method != restaurant.PaymentRoomCharge {
			cash = cash.Add(money(pay.Amount))
		}
	}
	cash = decimal.Min(cash, total)

	ref := "BILL-" + short(bill.ID)
	debits := side{debit: true}
	debits.add(KeyCash, cash, "Tendered")
	debits.add(KeyReceivable, total.Sub(cash), "Room charge / outstanding")
	debits.add(KeyDiscount, money(bill.DiscountAmount), "Discount")
	credits := side{}
	credits.add(KeyRevenue, money(bill.Subtotal), "Food and beverage sales")
	credits.add(KeyService, money(bill.ServiceCharge), "Service charge")
	credits.add(KeyVAT, money(bill.TaxAmount), "VAT payable")
	credits.add(KeyLevy, money(bill.TourismLevy), "Tourism levy payable")

	accounts, err := p.ledger.ResolveMappings(ctx, "POS", append(debits.keys(), credits.keys()...)...)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	date := bill.CreatedAt
	if bill.PaidAt != nil {
		date = *bill.PaidAt
	}
	return p.ledger.PostJournal(ctx, accounting.PostingInput{
		Date:         date,
		Description:  p.printer.Sprintf("POS bill %s total %.2f", ref, total.InexactFloat64()),
		Reference:    &ref,
		SourceModule: accounting.SourcePOSBill,
		SourceID:     bill.ID,
		CreatedBy:    actor,
		Lines:        append(debits.postingLines(accounts), credits.postingLines(accounts)...),
	})
}

// PostStockRequest books an approved deduction at QuantityApplied x UnitCost.
func (p *Poster) PostStockRequest(ctx context.Context, requestID, actor uuid.UUID) (accounting.JournalEntry, error) {
	if p.stock == nil {
		return accounting.JournalEntry{}, errSourcesRequired
	}
	req, err := p.stock.GetRequest(ctx, requestID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if req.PostedJournalEntryID != nil {
		return accounting.JournalEntry{}, accounting.ErrAlreadyPosted
	}
	if req.Type != inventory.RequestDeduction || req.Status != inventory.RequestApproved {
		return accounting.JournalEntry{}, ErrNotDeduction
	}
	item, err := p.stock.GetItem(ctx, req.StockItemID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	value := decimal.NewFromFloat(req.QuantityApplied).Mul(decimal.NewFromFloat(item.UnitCost)).Round(2)
	if !value.IsPositive() {
		return accounting.JournalEntry{}, ErrZeroValuation
	}
	debits := side{debit: true}
	debits.add(KeyDeduction, value, item.Name)
	credits := side{}
	credits.add(KeyInventory, value, item.Name)
	accounts, err := p.ledger.ResolveMappings(ctx, "STOCK", KeyDeduction, KeyInventory)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	ref := "SR-" + short(req.ID)
	date := req.UpdatedAt
	if req.ApprovedAt != nil {
		date = *req.ApprovedAt
	}
	return p.ledger.PostJournal(ctx, accounting.PostingInput{
		Date:         date,
		Description:  p.printer.Sprintf("Stock deduction %s: %v %s of %s", ref, req.QuantityApplied, item.Unit, item.Name),
		Reference:    &ref,
		SourceModule: accounting.SourceStockRequest,
		SourceID:     req.ID,
		CreatedBy:    actor,
		Lines:        append(debits.postingLines(accounts), credits.postingLines(accounts)...),
	})
}

// HandleDeductionApproved posts a freshly approved deduction. A request that
// is already posted is left alone.
func (p *Poster) HandleDeductionApproved(ctx context.Context, req inventory.StockRequest, actor uuid.UUID) error {
	if p == nil || p.ledger == nil {
		return nil
	}
	entry, err := p.PostStockRequest(ctx, req.ID, actor)
	if errors.Is(err, shared.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("integration: post stock request %s: %w", req.ID, err)
	}
	p.logger.Info("stock deduction posted", slog.String("request_id", req.ID.String()), slog.String("entry", entry.EntryNumber))
	return nil
}

func short(id uuid.UUID) string {
	return id.String()[:8]
}
