package restaurant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/charges"
	"github.com/oomaallah/hotelops/internal/shared"
)

const paymentIdempotencyModule = "restaurant.payment"

// RecordPayment captures a tender. The bill becomes paid, and its order
// closes, once the cumulative payments reach the bill total.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	if err := s.enabled(); err != nil {
		return Payment{}, err
	}
	amount := charges.Round2(input.Amount)
	if amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	if !input.Method.Valid() {
		return Payment{}, ErrInvalidMethod
	}
	if input.ReceivedBy == uuid.Nil {
		return Payment{}, ErrActorRequired
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, paymentIdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return Payment{}, ErrDuplicatePayment
			}
			return Payment{}, err
		}
	}
	now := s.now()
	payment := Payment{
		ID:         uuid.New(),
		BillID:     input.BillID,
		Amount:     amount,
		Method:     input.Method,
		ReceivedBy: input.ReceivedBy,
		Reference:  input.Reference,
		CreatedAt:  now,
	}
	var settled bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		settled = false
		bill, err := tx.GetBillForUpdate(ctx, input.BillID)
		if err != nil {
			return err
		}
		switch bill.Status {
		case BillVoid:
			return ErrBillVoid
		case BillPaid:
			return ErrBillPaid
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, bill.ID)
		if err != nil {
			return err
		}
		if decimal.NewFromFloat(paid).LessThan(decimal.NewFromFloat(bill.TotalAmount)) {
			return nil
		}
		if err := tx.UpdateBillStatus(ctx, bill.ID, BillPaid, &now, now); err != nil {
			return err
		}
		settled = true
		order, err := tx.GetOrderForUpdate(ctx, bill.OrderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return nil
		}
		return s.finishOrder(ctx, tx, &order, OrderClosed)
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, input.IdempotencyKey, paymentIdempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return Payment{}, err
	}
	s.record(ctx, input.ReceivedBy, "restaurant.payment.record", "pos_payment", payment.ID, map[string]any{
		"bill_id": payment.BillID.String(),
		"amount":  payment.Amount,
		"method":  string(payment.Method),
		"settled": settled,
	})
	return payment, nil
}

// ListPayments returns the payments of a bill in capture order.
func (s *Service) ListPayments(ctx context.Context, billID uuid.UUID) ([]Payment, error) {
	return s.repo.ListPayments(ctx, billID)
}

// ListPaymentsBetween returns payments captured in [from, to).
func (s *Service) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]Payment, error) {
	if !to.After(from) {
		return nil, shared.NewError(shared.ErrValidation, "invalid date range")
	}
	return s.repo.ListPaymentsBetween(ctx, from, to)
}
