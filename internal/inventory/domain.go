// Package inventory tracks stock items, their movements and the approval flow
// of stock requests. Deductions saturate at zero.
package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/shared"
)

// MovementType enumerates stock movements.
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// RequestType enumerates stock request kinds.
type RequestType string

const (
	RequestReplenishment RequestType = "replenishment"
	RequestDeduction     RequestType = "deduction"
)

// Valid reports whether t is known.
func (t RequestType) Valid() bool {
	return t == RequestReplenishment || t == RequestDeduction
}

// RequestStatus enumerates the request lifecycle.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

// Urgency enumerates request priorities.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Valid reports whether u is known.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// ReferenceRequests is the reference table recorded on request movements.
const ReferenceRequests = "stock_requests"

// StockItem is a stocked good. CurrentQuantity never goes below zero.
type StockItem struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	Category        string    `json:"category"`
	CurrentQuantity float64   `json:"current_quantity"`
	MinimumQuantity float64   `json:"minimum_quantity"`
	UnitCost        float64   `json:"unit_cost"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Low reports whether the item is at or below its minimum.
func (i StockItem) Low() bool { return i.CurrentQuantity <= i.MinimumQuantity }

// StockMovement is an append-only quantity change.
type StockMovement struct {
	ID             uuid.UUID    `json:"id"`
	StockItemID    uuid.UUID    `json:"stock_item_id"`
	Type           MovementType `json:"movement_type"`
	Quantity       float64      `json:"quantity"`
	ReferenceTable *string      `json:"reference_table,omitempty"`
	ReferenceID    *uuid.UUID   `json:"reference_id,omitempty"`
	Notes          string       `json:"notes"`
	CreatedBy      uuid.UUID    `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
}

// StockRequest asks for a replenishment or a deduction. QuantityApplied is the
// amount actually removed when a deduction was approved.
type StockRequest struct {
	ID                   uuid.UUID     `json:"id"`
	StockItemID          uuid.UUID     `json:"stock_item_id"`
	Type                 RequestType   `json:"request_type"`
	QuantityRequested    float64       `json:"quantity_requested"`
	QuantityApplied      float64       `json:"quantity_applied"`
	Reason               string        `json:"reason"`
	Urgency              Urgency       `json:"urgency"`
	Status               RequestStatus `json:"status"`
	RequestedBy          uuid.UUID     `json:"requested_by"`
	ApprovedBy           *uuid.UUID    `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time    `json:"approved_at,omitempty"`
	ApprovalNotes        *string       `json:"approval_notes,omitempty"`
	PostedJournalEntryID *uuid.UUID    `json:"posted_journal_entry_id,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ItemInput creates a stock item. InitialQuantity is booked as an in movement.
type ItemInput struct {
	Name            string
	Unit            string
	Category        string
	InitialQuantity float64
	MinimumQuantity float64
	UnitCost        float64
	ActorID         uuid.UUID
}

// RequestInput submits a stock request.
type RequestInput struct {
	StockItemID uuid.UUID
	Type        RequestType
	Quantity    float64
	Reason      string
	Urgency     Urgency
	RequestedBy uuid.UUID
}

// ReceiveInput books goods in, optionally fulfilling an approved replenishment.
type ReceiveInput struct {
	ItemID    uuid.UUID
	Quantity  float64
	Notes     string
	RequestID *uuid.UUID
	ActorID   uuid.UUID
}

// Discrepancy reports an item whose cached quantity differs from its movements.
type Discrepancy struct {
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Cached   float64   `json:"cached_quantity"`
	Replayed float64   `json:"replayed_quantity"`
}

var (
	ErrItemNotFound       = shared.NewError(shared.ErrNotFound, "stock item not found")
	ErrRequestNotFound    = shared.NewError(shared.ErrNotFound, "stock request not found")
	ErrInvalidQuantity    = shared.NewError(shared.ErrValidation, "quantity must be greater than zero")
	ErrInvalidUnitCost    = shared.NewError(shared.ErrValidation, "unit cost must be >= 0")
	ErrInvalidRequest     = shared.NewError(shared.ErrValidation, "unknown request type or urgency")
	ErrActorRequired      = shared.NewError(shared.ErrValidation, "acting user required")
	ErrRequestDecided     = shared.NewError(shared.ErrConflict, "stock request already decided")
	ErrRequestNotApproved = shared.NewError(shared.ErrPrecondition, "stock request is not an approved replenishment for this item")
)
