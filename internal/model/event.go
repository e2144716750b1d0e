package model

import "time"

// Event is a sellable event with a fixed ticket capacity.  Metadata
// editing (name, description, location) happens in the seller-facing
// CRUD service; this engine only reads capacity and ownership and
// flips the cancellation flag once every paid ticket has been
// refunded.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name, read-only here.
//  OwnerID      – seller who owns the event and its payment account.
//  TotalTickets – fixed capacity; never exceeded by valid tickets
//                 plus active offers.
//  PriceCents   – ticket price in cents.
//  Cancelled    – set after a fully successful bulk refund.
//  CreatedAt    – creation timestamp.
type Event struct {
	ID           string    // events.id
	Name         string    // events.name
	OwnerID      string    // events.owner_id
	TotalTickets int       // events.total_tickets
	PriceCents   int64     // events.price_cents
	Cancelled    bool      // events.cancelled
	CreatedAt    time.Time // events.created_at
}
