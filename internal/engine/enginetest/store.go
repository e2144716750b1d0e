// Package enginetest provides an in-memory engine.Store for tests.  It
// mirrors the locking discipline of the MySQL implementation:
// WithEventTx serializes transactions per event while different events
// proceed independently.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

// FakeStore implements engine.Store over maps.  Construct it with
// NewFakeStore; the zero value is not usable.
type FakeStore struct {
	mu       sync.Mutex
	eventMu  map[string]*sync.Mutex
	events   map[string]*model.Event
	entries  map[string]*model.WaitingListEntry
	tickets  map[string]*model.Ticket
	accounts map[string]model.PaymentAccount
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		eventMu:  make(map[string]*sync.Mutex),
		events:   make(map[string]*model.Event),
		entries:  make(map[string]*model.WaitingListEntry),
		tickets:  make(map[string]*model.Ticket),
		accounts: make(map[string]model.PaymentAccount),
	}
}

// AddEvent seeds an event.
func (s *FakeStore) AddEvent(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = &ev
	s.eventMu[ev.ID] = &sync.Mutex{}
}

// AddAccount seeds a seller payment account.
func (s *FakeStore) AddAccount(a model.PaymentAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.OwnerID] = a
}

// MustEntry returns a snapshot of the entry and panics when it is
// missing.
func (s *FakeStore) MustEntry(id string) model.WaitingListEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		panic("entry not found: " + id)
	}
	return *e
}

// WithEventTx serializes fn per event and models transaction rollback:
// when fn returns an error, every mutation to the event's rows is
// undone, matching the SQL implementation's deferred rollback.
func (s *FakeStore) WithEventTx(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	lock, ok := s.eventMu[eventID]
	s.mu.Unlock()
	if !ok {
		return engine.ErrEventNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	snap := s.snapshot(eventID)
	if err := fn(ctx); err != nil {
		s.restore(eventID, snap)
		return err
	}
	return nil
}

// txSnapshot captures one event's rows for rollback.
type txSnapshot struct {
	event   model.Event
	entries map[string]model.WaitingListEntry
	tickets map[string]model.Ticket
}

func (s *FakeStore) snapshot(eventID string) txSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := txSnapshot{
		entries: make(map[string]model.WaitingListEntry),
		tickets: make(map[string]model.Ticket),
	}
	if ev, ok := s.events[eventID]; ok {
		snap.event = *ev
	}
	for id, e := range s.entries {
		if e.EventID == eventID {
			snap.entries[id] = *e
		}
	}
	for id, t := range s.tickets {
		if t.EventID == eventID {
			snap.tickets[id] = *t
		}
	}
	return snap
}

func (s *FakeStore) restore(eventID string, snap txSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[eventID]; ok {
		*ev = snap.event
	}
	for id, e := range s.entries {
		if e.EventID == eventID {
			delete(s.entries, id)
		}
	}
	for id, e := range snap.entries {
		cp := e
		s.entries[id] = &cp
	}
	for id, t := range s.tickets {
		if t.EventID == eventID {
			delete(s.tickets, id)
		}
	}
	for id, t := range snap.tickets {
		cp := t
		s.tickets[id] = &cp
	}
}

func (s *FakeStore) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.Event{}, engine.ErrEventNotFound
	}
	return *ev, nil
}

func (s *FakeStore) MarkEventCancelled(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return engine.ErrEventNotFound
	}
	ev.Cancelled = true
	return nil
}

func (s *FakeStore) CountActiveTickets(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.EventID == eventID && t.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.EventID == eventID && e.OfferActive(now) {
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) LiveEntryForBuyer(ctx context.Context, eventID, buyerID string) (*model.WaitingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.EventID == eventID && e.BuyerID == buyerID && e.Status.Live() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *FakeStore) EntryByID(ctx context.Context, entryID string) (*model.WaitingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *FakeStore) InsertEntry(ctx context.Context, e *model.WaitingListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries[e.ID] = &cp
	return nil
}

func (s *FakeStore) NextWaitingEntry(ctx context.Context, eventID string) (*model.WaitingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *model.WaitingListEntry
	for _, e := range s.entries {
		if e.EventID != eventID || e.Status != model.EntryWaiting {
			continue
		}
		if next == nil || earlier(e, next) {
			next = e
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

// earlier orders waiting entries FIFO: enqueue time, then ID.
func earlier(a, b *model.WaitingListEntry) bool {
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.ID < b.ID
}

func (s *FakeStore) MarkOffered(ctx context.Context, entryID, token string, offeredAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	e.Status = model.EntryOffered
	e.Token = token
	e.OfferedAt = offeredAt
	e.ExpiresAt = expiresAt
	return nil
}

func (s *FakeStore) SetEntryStatus(ctx context.Context, entryID string, status model.EntryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	e.Status = status
	e.Token = ""
	return nil
}

func (s *FakeStore) DueOffers(ctx context.Context, eventID string, now time.Time) ([]model.WaitingListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.WaitingListEntry
	for _, e := range s.entries {
		if e.EventID == eventID && e.Status == model.EntryOffered && !e.ExpiresAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiresAt.Equal(due[j].ExpiresAt) {
			return due[i].ExpiresAt.Before(due[j].ExpiresAt)
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

func (s *FakeStore) EventsWithDueOffers(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range s.entries {
		if e.Status == model.EntryOffered && !e.ExpiresAt.After(now) {
			seen[e.EventID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FakeStore) WaitingPosition(ctx context.Context, eventID, entryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.entries[entryID]
	if !ok {
		return 0, fmt.Errorf("entry %s not found", entryID)
	}
	pos := 0
	for _, e := range s.entries {
		if e.EventID != eventID || e.Status != model.EntryWaiting {
			continue
		}
		if earlier(e, target) || e.ID == target.ID {
			pos++
		}
	}
	return pos, nil
}

func (s *FakeStore) WaitingCount(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.EventID == eventID && e.Status == model.EntryWaiting {
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) TicketByEntryID(ctx context.Context, entryID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.EntryID == entryID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *FakeStore) InsertTicket(ctx context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.EntryID == t.EntryID {
			return fmt.Errorf("entry %s already finalized", t.EntryID)
		}
	}
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *FakeStore) ValidTickets(ctx context.Context, eventID string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if t.EventID == eventID && t.Status == model.TicketValid {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.Before(out[j].PurchasedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FakeStore) SetTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return fmt.Errorf("ticket %s not found", ticketID)
	}
	t.Status = status
	return nil
}

func (s *FakeStore) PaymentAccount(ctx context.Context, ownerID string) (model.PaymentAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ownerID]
	if !ok {
		return model.PaymentAccount{}, engine.ErrNoPaymentAccount
	}
	return a, nil
}
