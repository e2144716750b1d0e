package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
	"github.com/iliyamo/event-ticket-reservation/internal/monitoring"
)

// Reservation handles buyer-facing capacity operations: requesting a
// ticket (immediate offer or waiting-list enqueue), releasing an
// offer, and the availability/position read models.
type Reservation struct {
	store    Store
	clock    clock.Clock
	offerTTL time.Duration
}

// NewReservation constructs the reservation service.  offerTTL is how
// long a granted offer stays claimable.
func NewReservation(store Store, clk clock.Clock, offerTTL time.Duration) *Reservation {
	return &Reservation{store: store, clock: clk, offerTTL: offerTTL}
}

// RequestTicket asks for one ticket to the event on the buyer's
// behalf.  When capacity is free the returned entry is already in
// offered state carrying a reservation token and a deadline; when the
// event is sold out the entry is queued in waiting state.  Fails with
// ErrAlreadyQueued when the buyer holds a live entry, and with
// ErrEventCancelled for cancelled events.
func (r *Reservation) RequestTicket(ctx context.Context, eventID, buyerID string) (*model.WaitingListEntry, error) {
	now := r.clock.Now()
	var entry *model.WaitingListEntry

	// Rejecting the buyer must not roll back the offer reclaim done
	// below, so the verdict travels outside the transaction error.
	var rejected error

	err := r.store.WithEventTx(ctx, eventID, func(txCtx context.Context) error {
		ev, err := r.store.GetEvent(txCtx, eventID)
		if err != nil {
			return err
		}
		if ev.Cancelled {
			return ErrEventCancelled
		}

		// Reclaim dead offers before judging capacity so the sweep
		// interval never decides whether this buyer gets a slot.  Freed
		// capacity goes to the queue first; the newcomer only gets what
		// is left after every earlier buyer has been promoted.
		if expired, err := expireDueOffers(txCtx, r.store, eventID, now); err != nil {
			return err
		} else if expired > 0 {
			if _, err := promoteWaiting(txCtx, r.store, ev, now, r.offerTTL); err != nil {
				return err
			}
		}

		if live, err := r.store.LiveEntryForBuyer(txCtx, eventID, buyerID); err != nil {
			return err
		} else if live != nil {
			rejected = ErrAlreadyQueued
			return nil
		}

		e := &model.WaitingListEntry{
			ID:         newID(),
			EventID:    eventID,
			BuyerID:    buyerID,
			Status:     model.EntryWaiting,
			EnqueuedAt: now,
		}

		token, err := reserveSlot(txCtx, r.store, ev, now)
		switch err {
		case nil:
			e.Status = model.EntryOffered
			e.Token = token
			e.OfferedAt = now
			e.ExpiresAt = now.Add(r.offerTTL)
		case ErrNoCapacity:
			// Sold out: the entry joins the queue in waiting state.
		default:
			return err
		}

		if err := r.store.InsertEntry(txCtx, e); err != nil {
			return err
		}
		if e.Status == model.EntryOffered {
			monitoring.OfferGranted(eventID)
		} else {
			monitoring.BuyerQueued(eventID)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return entry, nil
}

// ReleaseOffer voluntarily gives up the buyer's own live entry.  An
// offered entry hands its slot back and the next waiting buyer is
// promoted in the same transaction; a waiting entry simply leaves the
// queue.  Fails with ErrNotEntryOwner when the entry belongs to a
// different buyer.  Calling it on an entry that already expired,
// purchased or released is a no-op, so buyers can mash the button
// safely.
func (r *Reservation) ReleaseOffer(ctx context.Context, entryID, buyerID string) error {
	probe, err := r.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if probe == nil {
		return ErrEntryNotFound
	}
	now := r.clock.Now()

	return r.store.WithEventTx(ctx, probe.EventID, func(txCtx context.Context) error {
		// Re-read under the event lock; the probe may be stale.
		entry, err := r.store.EntryByID(txCtx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if entry.BuyerID != buyerID {
			return ErrNotEntryOwner
		}
		if !entry.Status.Live() {
			return nil
		}
		wasOffered := entry.Status == model.EntryOffered

		if err := r.store.SetEntryStatus(txCtx, entryID, model.EntryReleased); err != nil {
			return err
		}
		monitoring.OfferReleased(entry.EventID)

		if !wasOffered {
			return nil
		}
		ev, err := r.store.GetEvent(txCtx, entry.EventID)
		if err != nil {
			return err
		}
		_, err = promoteWaiting(txCtx, r.store, ev, now, r.offerTTL)
		return err
	})
}

// Availability returns the capacity read model for the event page.
// The counts are a consistent-enough snapshot for display; writes
// always recompute under the event lock.
func (r *Reservation) Availability(ctx context.Context, eventID string) (Availability, error) {
	ev, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		return Availability{}, err
	}
	now := r.clock.Now()

	purchased, err := r.store.CountActiveTickets(ctx, eventID)
	if err != nil {
		return Availability{}, err
	}
	offers, err := r.store.CountActiveOffers(ctx, eventID, now)
	if err != nil {
		return Availability{}, err
	}
	waiting, err := r.store.WaitingCount(ctx, eventID)
	if err != nil {
		return Availability{}, err
	}

	remaining := ev.TotalTickets - purchased - offers
	if remaining < 0 {
		remaining = 0
	}
	return Availability{
		EventID:      eventID,
		TotalTickets: ev.TotalTickets,
		Purchased:    purchased,
		ActiveOffers: offers,
		Remaining:    remaining,
		SoldOut:      remaining == 0,
		WaitingCount: waiting,
	}, nil
}

// QueueStatus describes a buyer's entry for the queue-position view.
type QueueStatus struct {
	Entry    *model.WaitingListEntry `json:"entry"`
	Position int                     `json:"position,omitempty"`
}

// Position reports the buyer's live entry for the event together with
// its 1-based queue position while the entry is still waiting.
// Returns ErrEntryNotFound when the buyer has no live entry.
func (r *Reservation) Position(ctx context.Context, eventID, buyerID string) (QueueStatus, error) {
	entry, err := r.store.LiveEntryForBuyer(ctx, eventID, buyerID)
	if err != nil {
		return QueueStatus{}, err
	}
	if entry == nil {
		return QueueStatus{}, ErrEntryNotFound
	}
	st := QueueStatus{Entry: entry}
	if entry.Status == model.EntryWaiting {
		pos, err := r.store.WaitingPosition(ctx, eventID, entry.ID)
		if err != nil {
			return QueueStatus{}, fmt.Errorf("waiting position: %w", err)
		}
		st.Position = pos
	}
	return st, nil
}
