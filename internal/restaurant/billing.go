package restaurant

import (
	"context"

	"github.com/google/uuid"
)

// CreateBill prices an open order into a bill. The order row lock and the
// active-bill unique index keep it to one non-void bill per order.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	if err := s.enabled(); err != nil {
		return Bill{}, err
	}
	if input.ActorID == uuid.Nil {
		return Bill{}, ErrActorRequired
	}
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotOpen
		}
		existing, err := tx.ActiveBillForOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrBillExists
		}
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		lines := billableLines(items)
		if len(lines) == 0 {
			return ErrNothingToBill
		}
		order = capDiscount(order, lines)
		res, err := s.compute(order, lines)
		if err != nil {
			return err
		}
		now := s.now()
		bill = Bill{
			ID:             uuid.New(),
			OrderID:        order.ID,
			Subtotal:       res.Subtotal,
			TaxAmount:      res.TaxAmount,
			TourismLevy:    res.TourismLevy,
			ServiceCharge:  res.ServiceCharge,
			DiscountAmount: res.Discount,
			TotalAmount:    res.Total,
			VATRate:        order.VATRate,
			LevyRate:       order.LevyRate,
			Status:         BillUnpaid,
			CreatedBy:      input.ActorID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertBill(ctx, bill); err != nil {
			return err
		}
		applyTotals(&order, res)
		order.UpdatedAt = now
		return tx.UpdateOrderTotals(ctx, order)
	})
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, input.ActorID, "restaurant.bill.create", "pos_bill", bill.ID, map[string]any{
		"order_id": bill.OrderID.String(),
		"total":    bill.TotalAmount,
	})
	return bill, nil
}

// VoidBill cancels an unpaid, unposted bill without payments so the order can
// be billed again.
func (s *Service) VoidBill(ctx context.Context, billID, actor uuid.UUID) (Bill, error) {
	if err := s.enabled(); err != nil {
		return Bill{}, err
	}
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBillForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		switch {
		case bill.Status == BillVoid:
			return ErrBillVoid
		case bill.Status == BillPaid:
			return ErrBillSettled
		case bill.PostedJournalEntryID != nil:
			return ErrBillPosted
		}
		paid, err := tx.SumPayments(ctx, bill.ID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return ErrBillHasPayments
		}
		now := s.now()
		if err := tx.UpdateBillStatus(ctx, bill.ID, BillVoid, nil, now); err != nil {
			return err
		}
		bill.Status = BillVoid
		bill.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, actor, "restaurant.bill.void", "pos_bill", bill.ID, nil)
	return bill, nil
}

// GetBill returns a bill.
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	return s.repo.GetBill(ctx, id)
}

// ListBills lists bills for reporting.
func (s *Service) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	return s.repo.ListBills(ctx, filter)
}
