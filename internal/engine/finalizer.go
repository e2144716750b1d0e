package engine

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
	"github.com/iliyamo/event-ticket-reservation/internal/monitoring"
)

// Finalizer converts a held offer into a valid ticket once the payment
// provider confirms the charge.  The confirmation signal is delivered
// at least once, so Finalize is idempotent keyed by the waiting-list
// entry: the tickets table carries a unique index on the entry ID and
// a replay returns the already-created ticket.
type Finalizer struct {
	store    Store
	clock    clock.Clock
	offerTTL time.Duration
}

// NewFinalizer constructs the purchase finalizer.  offerTTL is used
// when an expired-offer failure frees capacity and the next waiting
// buyer gets promoted within the same transaction.
func NewFinalizer(store Store, clk clock.Clock, offerTTL time.Duration) *Finalizer {
	return &Finalizer{store: store, clock: clk, offerTTL: offerTTL}
}

// FinalizeInput is the verified payload of a payment confirmation.
// The webhook handler checks the provider signature before the engine
// ever sees it.
type FinalizeInput struct {
	EventID     string
	BuyerID     string
	EntryID     string
	PaymentRef  string
	AmountCents int64
}

// Finalize atomically creates a valid ticket from the entry's offer
// and marks the entry purchased.  Fails with ErrOfferExpired when the
// deadline passed before the confirmation arrived, and with
// ErrEventCancelled when the event was cancelled in the meantime: in
// both cases money was captured with no ticket to show for it, which
// is why the failure is logged at escalation level and must be
// compensated out of band.  Fails with ErrEntryNotFound when the entry
// does not belong to the claimed event and buyer.
func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput) (model.Ticket, error) {
	now := f.clock.Now()
	var ticket model.Ticket

	// A dead offer still frees capacity inside the transaction, and that
	// cleanup must commit.  The terminal verdict is carried out-of-band
	// so returning it does not roll the cleanup back.
	var rejected error

	err := f.store.WithEventTx(ctx, in.EventID, func(txCtx context.Context) error {
		// Replay of an already-finalized confirmation: return the
		// existing ticket, create nothing.
		if existing, err := f.store.TicketByEntryID(txCtx, in.EntryID); err != nil {
			return err
		} else if existing != nil {
			ticket = *existing
			return nil
		}

		ev, err := f.store.GetEvent(txCtx, in.EventID)
		if err != nil {
			return err
		}
		if ev.Cancelled {
			// The refund pass only sees tickets that exist when it runs;
			// minting one now would strand a paid buyer forever.
			rejected = ErrEventCancelled
			return nil
		}

		entry, err := f.store.EntryByID(txCtx, in.EntryID)
		if err != nil {
			return err
		}
		if entry == nil || entry.EventID != in.EventID || entry.BuyerID != in.BuyerID {
			return ErrEntryNotFound
		}

		if entry.Status != model.EntryOffered || !entry.ExpiresAt.After(now) {
			// The slot may already be free (or about to be); make sure
			// it reaches the queue before this transaction ends.
			if _, expErr := expireDueOffers(txCtx, f.store, in.EventID, now); expErr != nil {
				return expErr
			}
			if _, pErr := promoteWaiting(txCtx, f.store, ev, now, f.offerTTL); pErr != nil {
				return pErr
			}
			rejected = ErrOfferExpired
			return nil
		}

		t := &model.Ticket{
			ID:          newID(),
			EventID:     in.EventID,
			BuyerID:     in.BuyerID,
			EntryID:     in.EntryID,
			PaymentRef:  in.PaymentRef,
			AmountCents: in.AmountCents,
			Status:      model.TicketValid,
			PurchasedAt: now,
		}
		if err := f.store.InsertTicket(txCtx, t); err != nil {
			return err
		}
		if err := f.store.SetEntryStatus(txCtx, in.EntryID, model.EntryPurchased); err != nil {
			return err
		}
		ticket = *t
		return nil
	})
	if err != nil {
		return model.Ticket{}, err
	}
	if rejected != nil {
		// Escalation path: captured payment with no ticket.
		log.Printf("finalize: ALERT entry %s (event %s, payment %s): %v before confirmation; compensating refund required",
			in.EntryID, in.EventID, in.PaymentRef, rejected)
		return model.Ticket{}, rejected
	}

	monitoring.PurchaseFinalized(in.EventID)
	return ticket, nil
}
