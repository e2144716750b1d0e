package engine

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

// Store is the durable state the engine runs against.  The production
// implementation lives in internal/repository and is backed by MySQL;
// tests use an in-memory fake with the same locking discipline.
//
// WithEventTx is the concurrency contract of the whole engine: it runs
// fn inside a transaction that holds an exclusive lock on the event's
// row for the duration, so transactions for the same event are
// serialized while different events proceed independently.  The ctx
// passed to fn carries the transaction, and every other Store method
// called with that ctx participates in it.  Methods called with a
// plain ctx execute as standalone reads/writes.
type Store interface {
	WithEventTx(ctx context.Context, eventID string, fn func(ctx context.Context) error) error

	// Events.
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	MarkEventCancelled(ctx context.Context, eventID string) error

	// Capacity counters.  Active offers are offered entries whose
	// deadline is after now.
	CountActiveTickets(ctx context.Context, eventID string) (int, error)
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)

	// Waiting list.
	LiveEntryForBuyer(ctx context.Context, eventID, buyerID string) (*model.WaitingListEntry, error)
	EntryByID(ctx context.Context, entryID string) (*model.WaitingListEntry, error)
	InsertEntry(ctx context.Context, e *model.WaitingListEntry) error
	// NextWaitingEntry returns the waiting entry with the earliest
	// enqueue time, ties broken by entry ID, or nil when the queue is
	// empty.
	NextWaitingEntry(ctx context.Context, eventID string) (*model.WaitingListEntry, error)
	MarkOffered(ctx context.Context, entryID, token string, offeredAt, expiresAt time.Time) error
	// SetEntryStatus moves an entry to a terminal status and clears
	// its reservation token.
	SetEntryStatus(ctx context.Context, entryID string, status model.EntryStatus) error
	// DueOffers returns offered entries whose deadline is at or before
	// now.
	DueOffers(ctx context.Context, eventID string, now time.Time) ([]model.WaitingListEntry, error)
	// EventsWithDueOffers lists distinct event IDs holding at least
	// one due offer, for the background sweep.
	EventsWithDueOffers(ctx context.Context, now time.Time) ([]string, error)
	// WaitingPosition returns the 1-based queue position of a waiting
	// entry among its event's waiting entries.
	WaitingPosition(ctx context.Context, eventID, entryID string) (int, error)
	WaitingCount(ctx context.Context, eventID string) (int, error)

	// Tickets.
	TicketByEntryID(ctx context.Context, entryID string) (*model.Ticket, error)
	InsertTicket(ctx context.Context, t *model.Ticket) error
	ValidTickets(ctx context.Context, eventID string) ([]model.Ticket, error)
	SetTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error

	// Payment accounts (read-only to this engine).
	PaymentAccount(ctx context.Context, ownerID string) (model.PaymentAccount, error)
}
