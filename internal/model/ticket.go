package model

import "time"

// TicketStatus enumerates the lifecycle of a ticket.  Tickets are
// never deleted; refunds and cancellations are recorded as status
// transitions so the purchase history survives.
type TicketStatus string

const (
	// TicketReserved marks a ticket provisionally created during a
	// checkout that has not been confirmed by the payment provider yet.
	TicketReserved TicketStatus = "reserved"
	// TicketValid is a paid ticket that admits its holder.
	TicketValid TicketStatus = "valid"
	// TicketUsed is a valid ticket that has been scanned at the door.
	TicketUsed TicketStatus = "used"
	// TicketRefunded is a ticket whose payment was returned to the buyer.
	TicketRefunded TicketStatus = "refunded"
	// TicketCancelled is a ticket voided without a refund.
	TicketCancelled TicketStatus = "cancelled"
)

// Active reports whether the status still counts against event
// capacity.
func (s TicketStatus) Active() bool {
	return s == TicketValid || s == TicketUsed
}

// Ticket records a single purchased admission for an event.  A ticket
// is created when the finalizer converts an offered waiting-list entry
// after the payment provider confirms the charge, so every ticket is
// linked back to exactly one entry.
//
// Fields:
//  ID          – primary key identifier.
//  EventID     – event this ticket admits to.
//  BuyerID     – purchasing user.
//  EntryID     – waiting-list entry consumed by the purchase; unique,
//                which is what makes finalization idempotent.
//  PaymentRef  – provider reference of the captured payment, used for
//                refunds.
//  AmountCents – amount paid in cents.
//  Status      – see TicketStatus.
//  PurchasedAt – when the purchase was finalized.
type Ticket struct {
	ID          string       // tickets.id
	EventID     string       // tickets.event_id
	BuyerID     string       // tickets.buyer_id
	EntryID     string       // tickets.waiting_list_entry_id
	PaymentRef  string       // tickets.payment_ref
	AmountCents int64        // tickets.amount_cents
	Status      TicketStatus // tickets.status
	PurchasedAt time.Time    // tickets.purchased_at
}
