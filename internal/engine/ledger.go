package engine

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/model"
	"github.com/iliyamo/event-ticket-reservation/internal/monitoring"
)

// Availability is the read model for an event's capacity, served on
// the public event page.
type Availability struct {
	EventID      string `json:"event_id"`
	TotalTickets int    `json:"total_tickets"`
	Purchased    int    `json:"purchased"`
	ActiveOffers int    `json:"active_offers"`
	Remaining    int    `json:"remaining"`
	SoldOut      bool   `json:"sold_out"`
	WaitingCount int    `json:"waiting_count"`
}

// capacityLeft computes how many slots of ev are not held by a valid
// or used ticket or an unexpired offer.  Call it inside a WithEventTx
// whenever the result feeds a write; as a plain read the value is only
// advisory.
func capacityLeft(ctx context.Context, s Store, ev model.Event, now time.Time) (int, error) {
	tickets, err := s.CountActiveTickets(ctx, ev.ID)
	if err != nil {
		return 0, err
	}
	offers, err := s.CountActiveOffers(ctx, ev.ID, now)
	if err != nil {
		return 0, err
	}
	left := ev.TotalTickets - tickets - offers
	if left < 0 {
		left = 0
	}
	return left, nil
}

// reserveSlot claims one unit of ev's capacity and mints the
// reservation token that proves the claim.  Must run inside the
// event's transaction; exactly TotalTickets concurrent reservations
// can succeed before ErrNoCapacity.  The token is consumed by a
// successful finalize or handed back when the offer expires or is
// released.
func reserveSlot(ctx context.Context, s Store, ev model.Event, now time.Time) (string, error) {
	left, err := capacityLeft(ctx, s, ev, now)
	if err != nil {
		return "", err
	}
	if left == 0 {
		return "", ErrNoCapacity
	}
	return newToken()
}

// expireDueOffers transitions every offer of the event that is past
// its deadline to expired, releasing the attached tokens.  It must run
// inside the event's transaction.  The background sweep calls it on a
// timer, and requestTicket/finalize call it at the top of their own
// transactions so a lagging sweep never lets a dead offer block a
// live buyer.
func expireDueOffers(ctx context.Context, s Store, eventID string, now time.Time) (int, error) {
	due, err := s.DueOffers(ctx, eventID, now)
	if err != nil {
		return 0, err
	}
	for i := range due {
		if err := s.SetEntryStatus(ctx, due[i].ID, model.EntryExpired); err != nil {
			return 0, err
		}
		monitoring.OfferExpired(eventID)
	}
	return len(due), nil
}

// promoteWaiting grants offers to waiting entries, oldest first, for
// as long as the event has free capacity (chained promotion: freed
// slots never sit idle).  Must run inside the event's transaction,
// which is what serializes promotion against concurrent requests and
// expiry sweeps for the same event.  Returns how many entries were
// promoted.
func promoteWaiting(ctx context.Context, s Store, ev model.Event, now time.Time, ttl time.Duration) (int, error) {
	promoted := 0
	for {
		left, err := capacityLeft(ctx, s, ev, now)
		if err != nil {
			return promoted, err
		}
		if left == 0 {
			return promoted, nil
		}
		next, err := s.NextWaitingEntry(ctx, ev.ID)
		if err != nil {
			return promoted, err
		}
		if next == nil {
			return promoted, nil
		}
		token, err := newToken()
		if err != nil {
			return promoted, err
		}
		if err := s.MarkOffered(ctx, next.ID, token, now, now.Add(ttl)); err != nil {
			return promoted, err
		}
		log.Printf("offer: entry %s promoted for event %s, deadline %s",
			next.ID, ev.ID, now.Add(ttl).Format(time.RFC3339))
		monitoring.OfferGranted(ev.ID)
		promoted++
	}
}
