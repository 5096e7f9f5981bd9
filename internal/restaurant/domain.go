// Package restaurant runs the point-of-sale flow: orders, order items, station
// tickets, bills and payments.
package restaurant

import (
	"time"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/shared"
)

// Station is the preparation point an item is routed to.
type Station uint8

const (
	StationKitchen Station = iota
	StationBar
	stationCount
)

var (
	stationNames = [stationCount]string{"kitchen", "bar"}
	ticketTypes  = [stationCount]string{"KOT", "BOT"}
)

// Stations lists every station in routing order.
func Stations() []Station {
	out := make([]Station, 0, stationCount)
	for s := Station(0); s < stationCount; s++ {
		out = append(out, s)
	}
	return out
}

// ParseStation converts the stored text form.
func ParseStation(v string) (Station, error) {
	for i, name := range stationNames {
		if name == v {
			return Station(i), nil
		}
	}
	return 0, shared.NewError(shared.ErrValidation, "unknown station "+v)
}

// Valid reports whether the station is a known variant.
func (s Station) Valid() bool { return s < stationCount }

func (s Station) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return stationNames[s]
}

// TicketType is KOT for the kitchen and BOT for the bar.
func (s Station) TicketType() string {
	if !s.Valid() {
		return ""
	}
	return ticketTypes[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Station) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, shared.NewError(shared.ErrValidation, "unknown station")
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Station) UnmarshalText(b []byte) error {
	st, err := ParseStation(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// TableStatus tracks whether a dining table is in use.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
)

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "open"
	OrderClosed OrderStatus = "closed"
	OrderVoid   OrderStatus = "void"
)

// ItemStatus enumerates order item states.
type ItemStatus string

const (
	ItemNew  ItemStatus = "new"
	ItemSent ItemStatus = "sent"
	ItemVoid ItemStatus = "void"
)

// TicketStatus enumerates ticket states.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketPrinted   TicketStatus = "printed"
	TicketCompleted TicketStatus = "completed"
)

// CanTransition reports whether a ticket may move from s to next.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketPending:
		return next == TicketPrinted || next == TicketCompleted
	case TicketPrinted:
		return next == TicketCompleted
	default:
		return false
	}
}

// BillStatus enumerates bill states.
type BillStatus string

const (
	BillUnpaid BillStatus = "unpaid"
	BillPaid   BillStatus = "paid"
	BillVoid   BillStatus = "void"
)

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentCard       PaymentMethod = "card"
	PaymentMobile     PaymentMethod = "mobile"
	PaymentTransfer   PaymentMethod = "transfer"
	PaymentRoomCharge PaymentMethod = "room_charge"
)

// Valid reports whether the method is accepted.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentTransfer, PaymentRoomCharge:
		return true
	}
	return false
}

// Table is a dining table.
type Table struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Area     string      `json:"area"`
	Capacity int         `json:"capacity"`
	Status   TableStatus `json:"status"`
}

// Order is a dine-in or takeaway session. TableID is nil for takeaway.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	TableID        *uuid.UUID  `json:"table_id,omitempty"`
	Status         OrderStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	VATRate        float64     `json:"vat_rate"`
	LevyRate       float64     `json:"levy_rate"`
	Subtotal       float64     `json:"subtotal"`
	TaxAmount      float64     `json:"tax_amount"`
	TourismLevy    float64     `json:"tourism_levy"`
	ServiceCharge  float64     `json:"service_charge"`
	DiscountAmount float64     `json:"discount_amount"`
	TotalAmount    float64     `json:"total_amount"`
	CreatedBy      uuid.UUID   `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
}

// Takeaway reports whether the order has no table.
func (o Order) Takeaway() bool { return o.TableID == nil }

// OrderItem is a priced line. Name, category, station, price and tax rate are
// copied from the menu when the line is added.
type OrderItem struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	MenuItemID *uuid.UUID `json:"menu_item_id,omitempty"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Station    Station    `json:"station"`
	Price      float64    `json:"price"`
	TaxRate    *float64   `json:"tax_rate,omitempty"`
	Quantity   int        `json:"quantity"`
	Status     ItemStatus `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TicketItem is the frozen copy of an item printed on a ticket.
type TicketItem struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Name        string    `json:"name"`
	Quantity    int       `json:"quantity"`
	Notes       string    `json:"notes,omitempty"`
}

// Ticket is a preparation slip for one station.
type Ticket struct {
	ID        uuid.UUID    `json:"id"`
	OrderID   uuid.UUID    `json:"order_id"`
	Station   Station      `json:"station"`
	Type      string       `json:"ticket_type"`
	Status    TicketStatus `json:"status"`
	Items     []TicketItem `json:"items"`
	CreatedBy uuid.UUID    `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Bill is the priced snapshot of an order at billing time.
type Bill struct {
	ID                   uuid.UUID  `json:"id"`
	OrderID              uuid.UUID  `json:"order_id"`
	Subtotal             float64    `json:"subtotal"`
	TaxAmount            float64    `json:"tax_amount"`
	TourismLevy          float64    `json:"tourism_levy"`
	ServiceCharge        float64    `json:"service_charge"`
	DiscountAmount       float64    `json:"discount_amount"`
	TotalAmount          float64    `json:"total_amount"`
	VATRate              float64    `json:"vat_rate"`
	LevyRate             float64    `json:"levy_rate"`
	Status               BillStatus `json:"status"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	PostedJournalEntryID *uuid.UUID `json:"posted_journal_entry_id,omitempty"`
	CreatedBy            uuid.UUID  `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Payment records a tender against a bill.
type Payment struct {
	ID         uuid.UUID     `json:"id"`
	BillID     uuid.UUID     `json:"bill_id"`
	Amount     float64       `json:"amount"`
	Method     PaymentMethod `json:"method"`
	ReceivedBy uuid.UUID     `json:"received_by"`
	Reference  *string       `json:"reference,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// OrderDetail bundles an order with its lines, tickets and active bill.
type OrderDetail struct {
	Order   Order       `json:"order"`
	Items   []OrderItem `json:"items"`
	Tickets []Ticket    `json:"tickets"`
	Bill    *Bill       `json:"bill,omitempty"`
}

// OpenOrderInput opens a dine-in (TableID set) or takeaway order.
type OpenOrderInput struct {
	TableID   *uuid.UUID
	Notes     string
	CreatedBy uuid.UUID
}

// AddItemInput adds a menu item to an open order.
type AddItemInput struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int
	Notes      string
	ActorID    uuid.UUID
}

// ChargesInput sets order-level discount and service charge.
type ChargesInput struct {
	OrderID       uuid.UUID
	Discount      float64
	ServiceCharge float64
	ActorID       uuid.UUID
}

// CreateBillInput bills an open order.
type CreateBillInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// RecordPaymentInput captures a tender. IdempotencyKey guards client retries.
type RecordPaymentInput struct {
	BillID         uuid.UUID
	Amount         float64
	Method         PaymentMethod
	ReceivedBy     uuid.UUID
	Reference      *string
	IdempotencyKey string
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status OrderStatus
	Limit  int
}

// BillFilter narrows bill listings for reporting.
type BillFilter struct {
	From   *time.Time
	To     *time.Time
	Status BillStatus
}

// TotalsDrift reports an order whose cached totals differ from its items.
type TotalsDrift struct {
	OrderID  uuid.UUID `json:"order_id"`
	Cached   float64   `json:"cached_total"`
	Computed float64   `json:"computed_total"`
	Fixed    bool      `json:"fixed"`
}
