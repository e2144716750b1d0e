// Package engine implements the ticket inventory and reservation
// core: capacity accounting, the waiting-list queue, timed purchase
// offers, webhook-driven purchase finalization and bulk refunds.  All
// capacity-affecting operations run inside per-event transactions
// provided by a Store, which is what makes "never oversell" hold under
// arbitrary concurrency.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by engine operations.  Handlers translate
// these into HTTP responses; see internal/handler.
var (
	// ErrNoCapacity signals that every slot is taken by a valid ticket
	// or an active offer.  Recoverable: the caller lands on the
	// waiting list instead.
	ErrNoCapacity = errors.New("no capacity")

	// ErrAlreadyQueued signals that the buyer already has a live
	// (waiting or offered) entry for the event.
	ErrAlreadyQueued = errors.New("already queued")

	// ErrOfferExpired signals a finalize attempt against an offer past
	// its deadline.  Terminal for that offer: the payment was already
	// captured upstream, so the caller must trigger an out-of-band
	// refund rather than retry.
	ErrOfferExpired = errors.New("offer expired")

	// ErrEventCancelled rejects ticket requests for a cancelled event.
	ErrEventCancelled = errors.New("event cancelled")

	// ErrEventNotFound is returned for an unknown event ID.
	ErrEventNotFound = errors.New("event not found")

	// ErrEntryNotFound is returned for an unknown waiting-list entry,
	// or one that does not belong to the claimed event and buyer.
	ErrEntryNotFound = errors.New("waiting list entry not found")

	// ErrNotEntryOwner rejects a release attempt on an entry that
	// belongs to a different buyer.
	ErrNotEntryOwner = errors.New("entry belongs to another buyer")

	// ErrNoPaymentAccount means the seller has not completed payment
	// provider onboarding, so refunds cannot be issued.
	ErrNoPaymentAccount = errors.New("payment account not found")
)

// RefundFailure records why a single ticket could not be refunded.
type RefundFailure struct {
	TicketID string `json:"ticket_id"`
	Cause    string `json:"cause"`
}

// PartialRefundError reports a bulk refund where at least one ticket
// failed.  The event is left uncancelled and the operation is safe to
// retry: tickets already refunded are skipped on the next pass.
type PartialRefundError struct {
	EventID  string
	Failures []RefundFailure
}

func (e *PartialRefundError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.TicketID)
	}
	return fmt.Sprintf("event %s: %d ticket(s) failed to refund: %s",
		e.EventID, len(e.Failures), strings.Join(ids, ", "))
}
