package restaurant

import (
	"context"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/charges"
)

// MaxItemQuantity caps the quantity of a single order line.
const MaxItemQuantity = 999

// AddItem adds a menu item to an open order, copying name, category, station,
// price and tax rate from the catalog.
func (s *Service) AddItem(ctx context.Context, input AddItemInput) (OrderItem, error) {
	if err := s.enabled(); err != nil {
		return OrderItem{}, err
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 || input.Quantity > MaxItemQuantity {
		return OrderItem{}, ErrInvalidQuantity
	}
	menu, err := s.menu.MenuItem(ctx, input.MenuItemID)
	if err != nil {
		return OrderItem{}, err
	}
	if !menu.IsActive {
		return OrderItem{}, ErrMenuItemInactive
	}
	station, err := ParseStation(menu.Station)
	if err != nil {
		return OrderItem{}, err
	}
	now := s.now()
	menuID := menu.ID
	item := OrderItem{
		ID:         uuid.New(),
		OrderID:    input.OrderID,
		MenuItemID: &menuID,
		Name:       menu.Name,
		Category:   menu.Category,
		Station:    station,
		Price:      menu.Price,
		TaxRate:    menu.TaxRate,
		Quantity:   input.Quantity,
		Status:     ItemNew,
		Notes:      input.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotFound
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		_, err = s.recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return OrderItem{}, err
	}
	s.record(ctx, input.ActorID, "restaurant.item.add", "pos_order_item", item.ID, map[string]any{
		"order_id": item.OrderID.String(),
		"name":     item.Name,
		"quantity": item.Quantity,
	})
	return item, nil
}

// ChangeQuantity adjusts an unsent item by delta. When the quantity drops to
// zero or below the item is removed and nil is returned. Sent items cannot be
// changed; they must be voided.
func (s *Service) ChangeQuantity(ctx context.Context, itemID uuid.UUID, delta int, actor uuid.UUID) (*OrderItem, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, ErrZeroDelta
	}
	var result *OrderItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, order, err := s.loadEditableItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.Status == ItemSent {
			return ErrItemAlreadySent
		}
		if delta > 0 && item.Quantity > MaxItemQuantity-delta {
			return ErrInvalidQuantity
		}
		now := s.now()
		qty := item.Quantity + delta
		if qty <= 0 {
			if err := tx.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateItemQuantity(ctx, item.ID, qty, now); err != nil {
				return err
			}
			item.Quantity = qty
			item.UpdatedAt = now
			result = &item
		}
		_, err = s.recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "restaurant.item.quantity", "pos_order_item", itemID, map[string]any{"delta": delta, "removed": result == nil})
	return result, nil
}

// VoidItem voids a new or sent item. Stations are informed when the item had
// already been dispatched.
func (s *Service) VoidItem(ctx context.Context, itemID, actor uuid.UUID, reason string) (OrderItem, error) {
	if err := s.enabled(); err != nil {
		return OrderItem{}, err
	}
	var (
		item    OrderItem
		wasSent bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var (
			order Order
			err   error
		)
		item, order, err = s.loadEditableItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		wasSent = item.Status == ItemSent
		now := s.now()
		if err := tx.UpdateItemStatus(ctx, item.ID, ItemVoid, now); err != nil {
			return err
		}
		item.Status = ItemVoid
		item.UpdatedAt = now
		_, err = s.recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return OrderItem{}, err
	}
	if wasSent {
		s.publish(ctx, itemVoidedEvent(item, s.now()))
	}
	s.record(ctx, actor, "restaurant.item.void", "pos_order_item", item.ID, map[string]any{"reason": reason, "was_sent": wasSent})
	return item, nil
}

// loadEditableItem locks a non-void item on an open order.
func (s *Service) loadEditableItem(ctx context.Context, tx TxRepository, itemID uuid.UUID) (OrderItem, Order, error) {
	item, err := tx.GetItemForUpdate(ctx, itemID)
	if err != nil {
		return OrderItem{}, Order{}, err
	}
	order, err := tx.GetOrder(ctx, item.OrderID)
	if err != nil {
		return OrderItem{}, Order{}, err
	}
	if order.Status != OrderOpen {
		return OrderItem{}, Order{}, ErrOrderNotOpen
	}
	if item.Status == ItemVoid {
		return OrderItem{}, Order{}, ErrItemVoid
	}
	return item, order, nil
}

// SetCharges stores the order-level discount and service charge.
func (s *Service) SetCharges(ctx context.Context, input ChargesInput) (Order, error) {
	if err := s.enabled(); err != nil {
		return Order{}, err
	}
	if input.Discount < 0 || input.ServiceCharge < 0 {
		return Order{}, ErrInvalidCharges
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotOpen
		}
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		order.DiscountAmount = input.Discount
		order.ServiceCharge = input.ServiceCharge
		res, err := s.compute(order, billableLines(items))
		if err != nil {
			return err
		}
		applyTotals(&order, res)
		order.UpdatedAt = s.now()
		return tx.UpdateOrderTotals(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, input.ActorID, "restaurant.order.charges", "pos_order", order.ID, map[string]any{
		"discount":       input.Discount,
		"service_charge": input.ServiceCharge,
	})
	return order, nil
}

// Recompute refreshes the cached totals of an open order from its items.
// Concurrent recomputes are last-writer-wins; each reads the full item set.
func (s *Service) Recompute(ctx context.Context, orderID uuid.UUID) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != OrderOpen {
			return ErrOrderNotOpen
		}
		order, err = s.recompute(ctx, tx, current)
		return err
	})
	return order, err
}

func (s *Service) recompute(ctx context.Context, tx TxRepository, order Order) (Order, error) {
	items, err := tx.ListOrderItems(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	lines := billableLines(items)
	order = capDiscount(order, lines)
	res, err := s.compute(order, lines)
	if err != nil {
		return Order{}, err
	}
	applyTotals(&order, res)
	order.UpdatedAt = s.now()
	if err := tx.UpdateOrderTotals(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// capDiscount lowers a stored discount to the subtotal after items are removed.
func capDiscount(order Order, lines []charges.Line) Order {
	if order.DiscountAmount == 0 {
		return order
	}
	res, err := charges.Compute(charges.Input{Lines: lines})
	if err != nil {
		return order
	}
	if order.DiscountAmount > res.Subtotal {
		order.DiscountAmount = res.Subtotal
	}
	return order
}
