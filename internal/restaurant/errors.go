package restaurant

import "github.com/oomaallah/hotelops/internal/shared"

var (
	ErrModuleDisabled = shared.NewError(shared.ErrPrecondition, "restaurant module disabled")

	ErrTableNotFound = shared.NewError(shared.ErrNotFound, "table not found")
	ErrTableOccupied = shared.NewError(shared.ErrConflict, "table already has an open order")

	ErrOrderNotFound = shared.NewError(shared.ErrNotFound, "order not found")
	ErrOrderNotOpen  = shared.NewError(shared.ErrPrecondition, "order is not open")
	ErrOrderBilled   = shared.NewError(shared.ErrPrecondition, "order has an active bill")
	ErrUnbilledItems = shared.NewError(shared.ErrPrecondition, "order has items but no bill")

	ErrItemNotFound     = shared.NewError(shared.ErrNotFound, "order item not found")
	ErrItemAlreadySent  = shared.NewError(shared.ErrPrecondition, "item already sent to station; void it instead")
	ErrItemVoid         = shared.NewError(shared.ErrPrecondition, "item is void")
	ErrInvalidQuantity  = shared.NewError(shared.ErrValidation, "quantity must be between 1 and 999")
	ErrZeroDelta        = shared.NewError(shared.ErrValidation, "quantity change must not be zero")
	ErrMenuItemInactive = shared.NewError(shared.ErrValidation, "menu item is not available")
	ErrInvalidCharges   = shared.NewError(shared.ErrValidation, "discount and service charge must be non-negative")
	ErrActorRequired    = shared.NewError(shared.ErrValidation, "acting user required")

	ErrTicketNotFound   = shared.NewError(shared.ErrNotFound, "ticket not found")
	ErrTicketTransition = shared.NewError(shared.ErrPrecondition, "ticket status transition not allowed")
	ErrDispatchRace     = shared.NewError(shared.ErrConflict, "items were dispatched concurrently")

	ErrBillExists      = shared.NewError(shared.ErrConflict, "order already has an active bill")
	ErrNothingToBill   = shared.NewError(shared.ErrValidation, "order has no billable items")
	ErrBillNotFound    = shared.NewError(shared.ErrNotFound, "bill not found")
	ErrBillPaid        = shared.NewError(shared.ErrValidation, "bill already paid")
	ErrBillNotPaid     = shared.NewError(shared.ErrPrecondition, "bill is not paid")
	ErrBillVoid        = shared.NewError(shared.ErrPrecondition, "bill is void")
	ErrBillSettled     = shared.NewError(shared.ErrPrecondition, "paid bills cannot be voided")
	ErrBillPosted      = shared.NewError(shared.ErrPrecondition, "bill already posted to the ledger")
	ErrBillHasPayments = shared.NewError(shared.ErrPrecondition, "bill has payments")

	ErrInvalidAmount    = shared.NewError(shared.ErrValidation, "payment amount must be greater than zero")
	ErrInvalidMethod    = shared.NewError(shared.ErrValidation, "unknown payment method")
	ErrDuplicatePayment = shared.NewError(shared.ErrConflict, "payment already recorded for this idempotency key")
)
