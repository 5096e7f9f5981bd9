package restaurant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oomaallah/hotelops/internal/charges"
)

// OpenOrder starts a dine-in or takeaway order. A table holds at most one open
// order; takeaway orders never conflict.
func (s *Service) OpenOrder(ctx context.Context, input OpenOrderInput) (Order, error) {
	if err := s.enabled(); err != nil {
		return Order{}, err
	}
	if input.CreatedBy == uuid.Nil {
		return Order{}, ErrActorRequired
	}
	now := s.now()
	order := Order{
		ID:        uuid.New(),
		TableID:   input.TableID,
		Status:    OrderOpen,
		Notes:     input.Notes,
		VATRate:   s.cfg.Rates.VAT,
		LevyRate:  s.cfg.Rates.Levy,
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if order.TableID != nil {
			table, err := tx.GetTableForUpdate(ctx, *order.TableID)
			if err != nil {
				return err
			}
			existing, err := tx.FindOpenOrderForTable(ctx, table.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return ErrTableOccupied
			}
			if err := tx.SetTableStatus(ctx, table.ID, TableOccupied); err != nil {
				return err
			}
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	meta := map[string]any{"takeaway": order.Takeaway()}
	if order.TableID != nil {
		meta["table_id"] = order.TableID.String()
	}
	s.record(ctx, input.CreatedBy, "restaurant.order.open", "pos_order", order.ID, meta)
	return order, nil
}

// CloseOrder closes an open order once its bill is paid. An order without a
// bill may only close when it holds no billable items.
func (s *Service) CloseOrder(ctx context.Context, orderID, actor uuid.UUID) (Order, error) {
	if err := s.enabled(); err != nil {
		return Order{}, err
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotOpen
		}
		bill, err := tx.ActiveBillForOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if bill == nil {
			items, err := tx.ListOrderItems(ctx, order.ID)
			if err != nil {
				return err
			}
			if len(billableLines(items)) > 0 {
				return ErrUnbilledItems
			}
		} else if bill.Status != BillPaid {
			return ErrBillNotPaid
		}
		return s.finishOrder(ctx, tx, &order, OrderClosed)
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, actor, "restaurant.order.close", "pos_order", order.ID, nil)
	return order, nil
}

// VoidOrder abandons an open order that has no active bill. All its items are
// voided and stations are told about lines already sent.
func (s *Service) VoidOrder(ctx context.Context, orderID, actor uuid.UUID, reason string) (Order, error) {
	if err := s.enabled(); err != nil {
		return Order{}, err
	}
	var (
		order  Order
		voided []OrderItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotOpen
		}
		bill, err := tx.ActiveBillForOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if bill != nil {
			return ErrOrderBilled
		}
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, it := range items {
			if it.Status == ItemVoid {
				continue
			}
			if err := tx.UpdateItemStatus(ctx, it.ID, ItemVoid, now); err != nil {
				return err
			}
			if it.Status == ItemSent {
				voided = append(voided, it)
			}
		}
		order.DiscountAmount = 0
		order.ServiceCharge = 0
		applyTotals(&order, charges.Result{})
		if err := tx.UpdateOrderTotals(ctx, order); err != nil {
			return err
		}
		return s.finishOrder(ctx, tx, &order, OrderVoid)
	})
	if err != nil {
		return Order{}, err
	}
	for _, it := range voided {
		s.publish(ctx, itemVoidedEvent(it, s.now()))
	}
	s.record(ctx, actor, "restaurant.order.void", "pos_order", order.ID, map[string]any{"reason": reason})
	return order, nil
}

// finishOrder moves an order to a terminal status and frees its table.
func (s *Service) finishOrder(ctx context.Context, tx TxRepository, order *Order, status OrderStatus) error {
	now := s.now()
	if err := tx.UpdateOrderStatus(ctx, order.ID, status, &now, now); err != nil {
		return err
	}
	order.Status = status
	order.ClosedAt = &now
	order.UpdatedAt = now
	if order.TableID != nil {
		return tx.SetTableStatus(ctx, *order.TableID, TableAvailable)
	}
	return nil
}

// GetOrder returns a single order.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// OrderDetail loads an order together with its items, tickets and active bill.
func (s *Service) OrderDetail(ctx context.Context, id uuid.UUID) (OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	detail := OrderDetail{Order: order}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.repo.ListOrderItems(gctx, id)
		detail.Items = items
		return err
	})
	g.Go(func() error {
		tickets, err := s.repo.ListOrderTickets(gctx, id)
		detail.Tickets = tickets
		return err
	})
	g.Go(func() error {
		bill, err := s.repo.ActiveBillForOrder(gctx, id)
		detail.Bill = bill
		return err
	})
	if err := g.Wait(); err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

// ListOrders lists orders, newest first.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// ListTables lists dining tables with their occupancy.
func (s *Service) ListTables(ctx context.Context) ([]Table, error) {
	return s.repo.ListTables(ctx)
}

// ReconcileOrderTotals recomputes every open order from its items and reports
// the ones whose cached totals drifted. With fix set the cache is rewritten.
func (s *Service) ReconcileOrderTotals(ctx context.Context, fix bool) ([]TotalsDrift, error) {
	orders, err := s.repo.ListOrders(ctx, OrderFilter{Status: OrderOpen})
	if err != nil {
		return nil, err
	}
	var drifts []TotalsDrift
	for _, order := range orders {
		items, err := s.repo.ListOrderItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		lines := billableLines(items)
		res, err := s.compute(capDiscount(order, lines), lines)
		if err != nil {
			return nil, err
		}
		if res.Total == order.TotalAmount && res.Subtotal == order.Subtotal {
			continue
		}
		drift := TotalsDrift{OrderID: order.ID, Cached: order.TotalAmount, Computed: res.Total}
		if fix {
			if _, err := s.Recompute(ctx, order.ID); err != nil && !errors.Is(err, ErrOrderNotOpen) {
				return nil, err
			}
			drift.Fixed = true
		}
		drifts = append(drifts, drift)
	}
	return drifts, nil
}
