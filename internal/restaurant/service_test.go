package restaurant

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oomaallah/hotelops/internal/charges"
	"github.com/oomaallah/hotelops/internal/shared"
)

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	menu     stubMenu
	notifier *recordingNotifier
	actor    uuid.UUID
	table    Table
	chambo   uuid.UUID
	juice    uuid.UUID
	retired  uuid.UUID
}

func newFixture(t *testing.T, mode charges.Mode) *fixture {
	t.Helper()
	vat, zero := 0.165, 0.0
	f := &fixture{
		repo:     newMemoryRepo(),
		notifier: &recordingNotifier{},
		actor:    uuid.New(),
		chambo:   uuid.New(),
		juice:    uuid.New(),
		retired:  uuid.New(),
	}
	f.menu = stubMenu{
		f.chambo:  {ID: f.chambo, Name: "Chambo", Category: "Mains", Price: 1000, Station: "kitchen", TaxRate: &vat, IsActive: true},
		f.juice:   {ID: f.juice, Name: "Juice", Category: "Drinks", Price: 500, Station: "bar", TaxRate: &zero, IsActive: true},
		f.retired: {ID: f.retired, Name: "Old Special", Price: 800, Station: "kitchen", IsActive: false},
	}
	f.table = f.repo.addTable("T1")
	f.svc = NewService(f.repo, f.menu, nil, &memoryIdempotency{}, f.notifier, Config{
		Modules: shared.Modules{Restaurant: true},
		Rates:   charges.DefaultRates,
		TaxMode: mode,
	}, nil)
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.WithNow(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})
	return f
}

func (f *fixture) openTableOrder(t *testing.T) Order {
	t.Helper()
	id := f.table.ID
	order, err := f.svc.OpenOrder(context.Background(), OpenOrderInput{TableID: &id, CreatedBy: f.actor})
	require.NoError(t, err)
	return order
}

func (f *fixture) add(t *testing.T, orderID, menuID uuid.UUID, qty int) OrderItem {
	t.Helper()
	item, err := f.svc.AddItem(context.Background(), AddItemInput{OrderID: orderID, MenuItemID: menuID, Quantity: qty, ActorID: f.actor})
	require.NoError(t, err)
	return item
}

// scenarioOrder builds the order 2 x Chambo @1000 (16.5%) + 1 x Juice @500 (0%).
func (f *fixture) scenarioOrder(t *testing.T) Order {
	order := f.openTableOrder(t)
	f.add(t, order.ID, f.chambo, 2)
	f.add(t, order.ID, f.juice, 1)
	return order
}

func TestOpenOrderSingleOpenOrderPerTable(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()

	order := f.openTableOrder(t)
	require.Equal(t, OrderOpen, order.Status)
	require.Equal(t, 0.165, order.VATRate)
	tables, err := f.svc.ListTables(ctx)
	require.NoError(t, err)
	require.Equal(t, TableOccupied, tables[0].Status)

	id := f.table.ID
	_, err = f.svc.OpenOrder(ctx, OpenOrderInput{TableID: &id, CreatedBy: f.actor})
	require.ErrorIs(t, err, shared.ErrConflict)

	for i := 0; i < 2; i++ {
		takeaway, err := f.svc.OpenOrder(ctx, OpenOrderInput{Notes: "Walk-in", CreatedBy: f.actor})
		require.NoError(t, err)
		require.True(t, takeaway.Takeaway())
	}

	open, err := f.svc.ListOrders(ctx, OrderFilter{Status: OrderOpen})
	require.NoError(t, err)
	require.Len(t, open, 3)
}

func TestOpenOrderUnknownTable(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	missing := uuid.New()
	_, err := f.svc.OpenOrder(context.Background(), OpenOrderInput{TableID: &missing, CreatedBy: f.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.OpenOrder(context.Background(), OpenOrderInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddItemSnapshotsMenuAndRecomputes(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)

	item := f.add(t, order.ID, f.chambo, 2)
	require.Equal(t, "Chambo", item.Name)
	require.Equal(t, StationKitchen, item.Station)
	require.Equal(t, 1000.0, item.Price)
	require.Equal(t, ItemNew, item.Status)

	// price changes on the menu do not touch existing lines
	menu := f.menu[f.chambo]
	menu.Price = 1200
	f.menu[f.chambo] = menu

	got, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 2000.0, got.Subtotal)
	require.Equal(t, 330.0, got.TaxAmount)
	require.Equal(t, 20.0, got.TourismLevy)
	require.Equal(t, 2350.0, got.TotalAmount)

	items, err := f.repo.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1000.0, items[0].Price)
}

func TestAddItemRejections(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, AddItemInput{OrderID: uuid.New(), MenuItemID: f.chambo, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	order := f.openTableOrder(t)
	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: order.ID, MenuItemID: f.retired, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: order.ID, MenuItemID: uuid.New(), ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: order.ID, MenuItemID: f.chambo, Quantity: -2, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.CloseOrder(ctx, order.ID, f.actor)
	require.NoError(t, err, "empty order closes without a bill")
	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: order.ID, MenuItemID: f.chambo, ActorID: f.actor})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	order := f.openTableOrder(t)
	item := f.add(t, order.ID, f.juice, 0)
	require.Equal(t, 1, item.Quantity)
}

func TestChangeQuantityOnUnsentItems(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	item := f.add(t, order.ID, f.chambo, 1)

	updated, err := f.svc.ChangeQuantity(ctx, item.ID, 2, f.actor)
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, 3, updated.Quantity)
	got, _ := f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, 3000.0, got.Subtotal)

	_, err = f.svc.ChangeQuantity(ctx, item.ID, 0, f.actor)
	require.ErrorIs(t, err, shared.ErrValidation)

	removed, err := f.svc.ChangeQuantity(ctx, item.ID, -3, f.actor)
	require.NoError(t, err)
	require.Nil(t, removed)
	items, _ := f.repo.ListOrderItems(ctx, order.ID)
	require.Empty(t, items)
	got, _ = f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, 0.0, got.TotalAmount)

	_, err = f.svc.ChangeQuantity(ctx, item.ID, 1, f.actor)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestChangeQuantityRejectsOverflow(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	item := f.add(t, order.ID, f.chambo, 2)

	for _, delta := range []int{math.MaxInt, MaxItemQuantity - 1} {
		_, err := f.svc.ChangeQuantity(ctx, item.ID, delta, f.actor)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	items, _ := f.repo.ListOrderItems(ctx, order.ID)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Quantity)

	updated, err := f.svc.ChangeQuantity(ctx, item.ID, MaxItemQuantity-2, f.actor)
	require.NoError(t, err)
	require.Equal(t, MaxItemQuantity, updated.Quantity)

	_, err = f.svc.AddItem(ctx, AddItemInput{OrderID: order.ID, MenuItemID: f.chambo, Quantity: MaxItemQuantity + 1, ActorID: f.actor})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestChangeQuantityRejectsSentItems(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	item := f.add(t, order.ID, f.chambo, 1)
	_, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)

	_, err = f.svc.ChangeQuantity(ctx, item.ID, -1, f.actor)
	require.ErrorIs(t, err, ErrItemAlreadySent)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	_, err = f.svc.ChangeQuantity(ctx, item.ID, 1, f.actor)
	require.ErrorIs(t, err, ErrItemAlreadySent)

	items, _ := f.repo.ListOrderItems(ctx, order.ID)
	require.Len(t, items, 1)
	require.Equal(t, ItemSent, items[0].Status)
}

func TestVoidItemInformsStation(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	_, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	items, _ := f.repo.ListOrderItems(ctx, order.ID)

	voided, err := f.svc.VoidItem(ctx, items[0].ID, f.actor, "guest changed mind")
	require.NoError(t, err)
	require.Equal(t, ItemVoid, voided.Status)
	require.Contains(t, f.notifier.types(), EventItemVoided)

	got, _ := f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, 500.0, got.Subtotal)

	_, err = f.svc.VoidItem(ctx, items[0].ID, f.actor, "again")
	require.ErrorIs(t, err, ErrItemVoid)
}

func TestDispatchGroupsByStationAndIsIdempotent(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)

	tickets, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Equal(t, StationKitchen, tickets[0].Station)
	require.Equal(t, "KOT", tickets[0].Type)
	require.Equal(t, TicketPending, tickets[0].Status)
	require.Len(t, tickets[0].Items, 1)
	require.Equal(t, "Chambo", tickets[0].Items[0].Name)
	require.Equal(t, 2, tickets[0].Items[0].Quantity)
	require.Equal(t, StationBar, tickets[1].Station)
	require.Equal(t, "BOT", tickets[1].Type)

	items, _ := f.repo.ListOrderItems(ctx, order.ID)
	for _, it := range items {
		require.Equal(t, ItemSent, it.Status)
	}

	again, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	require.Empty(t, again)

	f.add(t, order.ID, f.chambo, 1)
	more, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	require.Len(t, more, 1)
	require.Equal(t, StationKitchen, more[0].Station)
	require.Equal(t, 1, more[0].Items[0].Quantity)

	all, err := f.repo.ListOrderTickets(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	board, err := f.svc.ListStationTickets(ctx, StationKitchen, nil)
	require.NoError(t, err)
	require.Len(t, board, 2)
}

func TestTicketTransitions(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	f.add(t, order.ID, f.juice, 2)
	tickets, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	id := tickets[0].ID

	printed, err := f.svc.MarkPrinted(ctx, id, f.actor)
	require.NoError(t, err)
	require.Equal(t, TicketPrinted, printed.Status)

	_, err = f.svc.MarkPrinted(ctx, id, f.actor)
	require.ErrorIs(t, err, ErrTicketTransition)

	done, err := f.svc.CompleteTicket(ctx, id, f.actor)
	require.NoError(t, err)
	require.Equal(t, TicketCompleted, done.Status)

	_, err = f.svc.CompleteTicket(ctx, id, f.actor)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	board, err := f.svc.ListStationTickets(ctx, StationBar, nil)
	require.NoError(t, err)
	require.Empty(t, board)
	board, err = f.svc.ListStationTickets(ctx, StationBar, []TicketStatus{TicketCompleted})
	require.NoError(t, err)
	require.Len(t, board, 1)

	_, err = f.svc.CompleteTicket(ctx, uuid.New(), f.actor)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, []string{EventTicketCreated, EventTicketPrinted, EventTicketCompleted}, f.notifier.types())
}

func TestCreateBillFlatRate(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)

	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, BillUnpaid, bill.Status)
	require.Equal(t, 2500.0, bill.Subtotal)
	require.Equal(t, 412.50, bill.TaxAmount)
	require.Equal(t, 25.00, bill.TourismLevy)
	require.Equal(t, 2937.50, bill.TotalAmount)
	require.Equal(t, 0.165, bill.VATRate)
	require.Equal(t, 0.01, bill.LevyRate)

	_, err = f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.ErrorIs(t, err, ErrBillExists)
	require.ErrorIs(t, err, shared.ErrConflict)

	// the bill is a snapshot; later lines do not change it
	f.add(t, order.ID, f.juice, 1)
	stored, err := f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, 2937.50, stored.TotalAmount)
}

func TestCreateBillPerLineRate(t *testing.T) {
	f := newFixture(t, charges.ModePerLine)
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(context.Background(), CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, 330.0, bill.TaxAmount)
	require.Equal(t, 25.0, bill.TourismLevy)
	require.Equal(t, 2855.0, bill.TotalAmount)
}

func TestCreateBillRejections(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()

	_, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: uuid.New(), ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	order := f.openTableOrder(t)
	_, err = f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.ErrorIs(t, err, ErrNothingToBill)

	item := f.add(t, order.ID, f.chambo, 1)
	_, err = f.svc.VoidItem(ctx, item.ID, f.actor, "")
	require.NoError(t, err)
	_, err = f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentCreateBillYieldsOneBill(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
		}(i)
	}
	wg.Wait()
	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, shared.ErrConflict)
	}
	require.Equal(t, 1, ok)
	bills, err := f.svc.ListBills(ctx, BillFilter{})
	require.NoError(t, err)
	require.Len(t, bills, 1)
}

func TestRecordPaymentCumulative(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 1000, Method: PaymentCash, ReceivedBy: f.actor})
	require.NoError(t, err)
	partial, _ := f.svc.GetBill(ctx, bill.ID)
	require.Equal(t, BillUnpaid, partial.Status)
	require.Nil(t, partial.PaidAt)
	stillOpen, _ := f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, OrderOpen, stillOpen.Status)

	ref := "CARD-1234"
	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 1937.50, Method: PaymentCard, ReceivedBy: f.actor, Reference: &ref})
	require.NoError(t, err)
	paid, _ := f.svc.GetBill(ctx, bill.ID)
	require.Equal(t, BillPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	closed, _ := f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, OrderClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	tables, _ := f.svc.ListTables(ctx)
	require.Equal(t, TableAvailable, tables[0].Status)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 1, Method: PaymentCash, ReceivedBy: f.actor})
	require.ErrorIs(t, err, ErrBillPaid)
	require.ErrorIs(t, err, shared.ErrValidation)

	payments, err := f.svc.ListPayments(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, "CARD-1234", *payments[1].Reference)

	// table is free again for the next party
	f.openTableOrder(t)
}

func TestRecordPaymentOverpaymentSettles(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	f.add(t, order.ID, f.juice, 1)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, 587.5, bill.TotalAmount)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 600, Method: PaymentCash, ReceivedBy: f.actor})
	require.NoError(t, err)
	paid, _ := f.svc.GetBill(ctx, bill.ID)
	require.Equal(t, BillPaid, paid.Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)

	for _, amount := range []float64{0, -10, 0.004} {
		_, err := f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: amount, Method: PaymentCash, ReceivedBy: f.actor})
		require.ErrorIs(t, err, shared.ErrValidation)
	}
	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 10, Method: "cheque", ReceivedBy: f.actor})
	require.ErrorIs(t, err, ErrInvalidMethod)
	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: uuid.New(), Amount: 10, Method: PaymentCash, ReceivedBy: f.actor})
	require.ErrorIs(t, err, shared.ErrNotFound)

	payments, _ := f.svc.ListPayments(ctx, bill.ID)
	require.Empty(t, payments)
}

func TestRecordPaymentIdempotencyKey(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)

	// a failed attempt releases its key
	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: uuid.New(), Amount: 100, Method: PaymentCash, ReceivedBy: f.actor, IdempotencyKey: "k-1"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	in := RecordPaymentInput{BillID: bill.ID, Amount: 100, Method: PaymentCash, ReceivedBy: f.actor, IdempotencyKey: "k-1"}
	_, err = f.svc.RecordPayment(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, in)
	require.ErrorIs(t, err, ErrDuplicatePayment)
	require.ErrorIs(t, err, shared.ErrConflict)

	payments, _ := f.svc.ListPayments(ctx, bill.ID)
	require.Len(t, payments, 1)
}

func TestCloseOrderRequiresPaidBill(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)

	_, err := f.svc.CloseOrder(ctx, order.ID, f.actor)
	require.ErrorIs(t, err, ErrUnbilledItems)

	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	_, err = f.svc.CloseOrder(ctx, order.ID, f.actor)
	require.ErrorIs(t, err, ErrBillNotPaid)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: bill.TotalAmount, Method: PaymentRoomCharge, ReceivedBy: f.actor})
	require.NoError(t, err)
	_, err = f.svc.CloseOrder(ctx, order.ID, f.actor)
	require.ErrorIs(t, err, ErrOrderNotOpen, "payment already closed the order")
}

func TestVoidBillAllowsRebilling(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)

	voided, err := f.svc.VoidBill(ctx, bill.ID, f.actor)
	require.NoError(t, err)
	require.Equal(t, BillVoid, voided.Status)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 10, Method: PaymentCash, ReceivedBy: f.actor})
	require.ErrorIs(t, err, ErrBillVoid)

	f.add(t, order.ID, f.juice, 1)
	rebill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, 3000.0, rebill.Subtotal)

	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: rebill.ID, Amount: 10, Method: PaymentCash, ReceivedBy: f.actor})
	require.NoError(t, err)
	_, err = f.svc.VoidBill(ctx, rebill.ID, f.actor)
	require.ErrorIs(t, err, ErrBillHasPayments)
}

func TestVoidOrder(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	_, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)

	voided, err := f.svc.VoidOrder(ctx, order.ID, f.actor, "walked out")
	require.NoError(t, err)
	require.Equal(t, OrderVoid, voided.Status)
	require.Equal(t, 0.0, voided.TotalAmount)

	items, _ := f.repo.ListOrderItems(ctx, order.ID)
	for _, it := range items {
		require.Equal(t, ItemVoid, it.Status)
	}
	require.Contains(t, f.notifier.types(), EventItemVoided)
	tables, _ := f.svc.ListTables(ctx)
	require.Equal(t, TableAvailable, tables[0].Status)

	billed := f.scenarioOrder(t)
	_, err = f.svc.CreateBill(ctx, CreateBillInput{OrderID: billed.ID, ActorID: f.actor})
	require.NoError(t, err)
	_, err = f.svc.VoidOrder(ctx, billed.ID, f.actor, "")
	require.ErrorIs(t, err, ErrOrderBilled)
}

func TestSetChargesAndDiscountCap(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.openTableOrder(t)
	item := f.add(t, order.ID, f.chambo, 1)

	got, err := f.svc.SetCharges(ctx, ChargesInput{OrderID: order.ID, Discount: 100, ServiceCharge: 50, ActorID: f.actor})
	require.NoError(t, err)
	require.Equal(t, 1125.0, got.TotalAmount)

	_, err = f.svc.SetCharges(ctx, ChargesInput{OrderID: order.ID, Discount: 5000, ActorID: f.actor})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.SetCharges(ctx, ChargesInput{OrderID: order.ID, Discount: -1, ActorID: f.actor})
	require.ErrorIs(t, err, ErrInvalidCharges)

	_, err = f.svc.ChangeQuantity(ctx, item.ID, -1, f.actor)
	require.NoError(t, err)
	got, _ = f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, 0.0, got.DiscountAmount)
	require.Equal(t, 50.0, got.TotalAmount)
}

func TestModuleDisabled(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	f.svc.cfg.Modules.Restaurant = false
	_, err := f.svc.OpenOrder(context.Background(), OpenOrderInput{CreatedBy: f.actor})
	require.ErrorIs(t, err, ErrModuleDisabled)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestOrderDetail(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	_, err := f.svc.Dispatch(ctx, order.ID, f.actor)
	require.NoError(t, err)
	_, err = f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)

	detail, err := f.svc.OrderDetail(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	require.Len(t, detail.Tickets, 2)
	require.NotNil(t, detail.Bill)
	require.Equal(t, 2937.5, detail.Bill.TotalAmount)
}

func TestReconcileOrderTotals(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)

	drifts, err := f.svc.ReconcileOrderTotals(ctx, false)
	require.NoError(t, err)
	require.Empty(t, drifts)

	f.repo.mu.Lock()
	o := f.repo.state.orders[order.ID]
	o.TotalAmount = 1
	f.repo.state.orders[order.ID] = o
	f.repo.mu.Unlock()

	drifts, err = f.svc.ReconcileOrderTotals(ctx, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, 2937.5, drifts[0].Computed)
	require.True(t, drifts[0].Fixed)

	fixed, _ := f.svc.GetOrder(ctx, order.ID)
	require.Equal(t, 2937.5, fixed.TotalAmount)
}

func TestListPaymentsBetween(t *testing.T) {
	f := newFixture(t, charges.ModeFlat)
	ctx := context.Background()
	order := f.scenarioOrder(t)
	bill, err := f.svc.CreateBill(ctx, CreateBillInput{OrderID: order.ID, ActorID: f.actor})
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: 100, Method: PaymentMobile, ReceivedBy: f.actor})
	require.NoError(t, err)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	payments, err := f.svc.ListPaymentsBetween(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, payments, 1)

	_, err = f.svc.ListPaymentsBetween(ctx, day, day)
	require.ErrorIs(t, err, shared.ErrValidation)
}

var _ MenuLookup = stubMenu{}
