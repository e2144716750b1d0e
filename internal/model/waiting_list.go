package model

import "time"

// EntryStatus enumerates the waiting-list state machine:
//
//	waiting -> offered -> {purchased | expired | released}
//
// Only waiting and offered entries are "live"; a buyer may hold at
// most one live entry per event.
type EntryStatus string

const (
	// EntryWaiting queues the buyer until capacity frees up.
	EntryWaiting EntryStatus = "waiting"
	// EntryOffered grants a time-boxed right to complete the purchase.
	// An offered entry holds a reservation token and counts against
	// event capacity until it is purchased, expired or released.
	EntryOffered EntryStatus = "offered"
	// EntryPurchased means the offer was converted into a ticket.
	EntryPurchased EntryStatus = "purchased"
	// EntryExpired means the offer deadline passed unclaimed.
	EntryExpired EntryStatus = "expired"
	// EntryReleased means the buyer gave the offer up voluntarily.
	EntryReleased EntryStatus = "released"
)

// Live reports whether the entry still participates in the queue.
func (s EntryStatus) Live() bool {
	return s == EntryWaiting || s == EntryOffered
}

// WaitingListEntry is a buyer's place in line for an event.  Entries
// are appended in FIFO order; when capacity frees up the scheduler
// promotes the oldest waiting entry to an offer with a hard deadline.
//
// Fields:
//  ID         – primary key identifier; also the FIFO tie-breaker for
//               entries enqueued at the same instant.
//  EventID    – event the buyer wants a ticket for.
//  BuyerID    – queued user.
//  Status     – see EntryStatus.
//  Token      – opaque reservation token attached while the entry is
//               offered; proof that one unit of capacity is held.
//  EnqueuedAt – when the buyer joined the queue; FIFO sort key.
//  OfferedAt  – when the current offer was granted (zero unless the
//               entry has been offered).
//  ExpiresAt  – offer deadline (zero unless the entry is offered).
type WaitingListEntry struct {
	ID         string      // waiting_list_entries.id
	EventID    string      // waiting_list_entries.event_id
	BuyerID    string      // waiting_list_entries.buyer_id
	Status     EntryStatus // waiting_list_entries.status
	Token      string      // waiting_list_entries.reservation_token
	EnqueuedAt time.Time   // waiting_list_entries.enqueued_at
	OfferedAt  time.Time   // waiting_list_entries.offered_at
	ExpiresAt  time.Time   // waiting_list_entries.expires_at
}

// OfferActive reports whether the entry holds an unexpired offer at
// the given instant.
func (e *WaitingListEntry) OfferActive(now time.Time) bool {
	return e.Status == EntryOffered && e.ExpiresAt.After(now)
}
