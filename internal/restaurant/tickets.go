package restaurant

import (
	"context"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/shared"
)

// Dispatch groups the order's new items by station, writes one ticket per
// station and marks the items sent. Calling it again with nothing new returns
// no tickets.
func (s *Service) Dispatch(ctx context.Context, orderID, actor uuid.UUID) ([]Ticket, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	var tickets []Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tickets = nil
		order, err := tx.GetOrderForUpdate(ctx, orderID)
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
		var groups [stationCount][]OrderItem
		for _, it := range items {
			if it.Status != ItemNew || !it.Station.Valid() {
				continue
			}
			groups[it.Station] = append(groups[it.Station], it)
		}
		now := s.now()
		var sent []uuid.UUID
		for station, group := range groups {
			if len(group) == 0 {
				continue
			}
			st := Station(station)
			ticket := Ticket{
				ID:        uuid.New(),
				OrderID:   order.ID,
				Station:   st,
				Type:      st.TicketType(),
				Status:    TicketPending,
				Items:     make([]TicketItem, 0, len(group)),
				CreatedBy: actor,
				CreatedAt: now,
				UpdatedAt: now,
			}
			for _, it := range group {
				ticket.Items = append(ticket.Items, TicketItem{OrderItemID: it.ID, Name: it.Name, Quantity: it.Quantity, Notes: it.Notes})
				sent = append(sent, it.ID)
			}
			if err := tx.InsertTicket(ctx, ticket); err != nil {
				return err
			}
			tickets = append(tickets, ticket)
		}
		if len(sent) == 0 {
			return nil
		}
		n, err := tx.MarkItemsSent(ctx, sent, now)
		if err != nil {
			return err
		}
		if n != int64(len(sent)) {
			return ErrDispatchRace
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		s.publish(ctx, ticketEvent(EventTicketCreated, t, t.CreatedAt))
		s.record(ctx, actor, "restaurant.ticket.create", "pos_ticket", t.ID, map[string]any{
			"order_id": t.OrderID.String(),
			"station":  t.Station.String(),
			"items":    len(t.Items),
		})
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	return tickets, nil
}

// MarkPrinted moves a pending ticket to printed.
func (s *Service) MarkPrinted(ctx context.Context, ticketID, actor uuid.UUID) (Ticket, error) {
	return s.transitionTicket(ctx, ticketID, actor, TicketPrinted, EventTicketPrinted)
}

// CompleteTicket moves a pending or printed ticket to completed.
func (s *Service) CompleteTicket(ctx context.Context, ticketID, actor uuid.UUID) (Ticket, error) {
	return s.transitionTicket(ctx, ticketID, actor, TicketCompleted, EventTicketCompleted)
}

func (s *Service) transitionTicket(ctx context.Context, ticketID, actor uuid.UUID, next TicketStatus, event string) (Ticket, error) {
	if err := s.enabled(); err != nil {
		return Ticket{}, err
	}
	var ticket Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ticket, err = tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.Status.CanTransition(next) {
			return ErrTicketTransition
		}
		now := s.now()
		if err := tx.UpdateTicketStatus(ctx, ticket.ID, next, now); err != nil {
			return err
		}
		ticket.Status = next
		ticket.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.publish(ctx, ticketEvent(event, ticket, ticket.UpdatedAt))
	s.record(ctx, actor, "restaurant.ticket."+string(next), "pos_ticket", ticket.ID, nil)
	return ticket, nil
}

// ListStationTickets returns the board for a station, oldest first. With no
// statuses given it returns tickets still to be worked.
func (s *Service) ListStationTickets(ctx context.Context, station Station, statuses []TicketStatus) ([]Ticket, error) {
	if !station.Valid() {
		return nil, shared.NewError(shared.ErrValidation, "unknown station")
	}
	if len(statuses) == 0 {
		statuses = []TicketStatus{TicketPending, TicketPrinted}
	}
	return s.repo.ListStationTickets(ctx, station, statuses)
}
