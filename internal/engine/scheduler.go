package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
)

// Scheduler is the background process that expires overdue offers and
// promotes the next waiting buyers.  Lazy in-transaction expiry keeps
// the engine correct even when the sweep lags; the sweep exists so
// freed capacity reaches the queue without waiting for the next buyer
// request to trigger it.
type Scheduler struct {
	store    Store
	clock    clock.Clock
	offerTTL time.Duration
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler constructs the offer scheduler.  interval controls how
// often the sweep runs; offerTTL must match the reservation service.
func NewScheduler(store Store, clk clock.Clock, offerTTL, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		clock:    clk,
		offerTTL: offerTTL,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the sweep loop and blocks until Stop is called or ctx is
// cancelled.  Call it from a dedicated goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("offer-sweeper: started, interval %s", s.interval)
	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("offer-sweeper: sweep failed: %v", err)
			}
		case <-s.stopCh:
			log.Println("offer-sweeper: stopping")
			return
		case <-ctx.Done():
			log.Println("offer-sweeper: context cancelled, stopping")
			return
		}
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Sweep performs one pass: for every event holding an offer past its
// deadline, expire the offer, release its token and promote waiting
// entries into the freed capacity.  Each event is handled in its own
// transaction so a long queue on one event never blocks another.
func (s *Scheduler) Sweep(ctx context.Context) error {
	now := s.clock.Now()
	eventIDs, err := s.store.EventsWithDueOffers(ctx, now)
	if err != nil {
		return err
	}

	for _, eventID := range eventIDs {
		err := s.store.WithEventTx(ctx, eventID, func(txCtx context.Context) error {
			expired, err := expireDueOffers(txCtx, s.store, eventID, now)
			if err != nil {
				return err
			}
			if expired == 0 {
				// A concurrent transaction already reclaimed them.
				return nil
			}
			ev, err := s.store.GetEvent(txCtx, eventID)
			if err != nil {
				return err
			}
			promoted, err := promoteWaiting(txCtx, s.store, ev, now, s.offerTTL)
			if err != nil {
				return err
			}
			log.Printf("offer-sweeper: event %s: expired %d offer(s), promoted %d", eventID, expired, promoted)
			return nil
		})
		if err != nil {
			// Keep sweeping the remaining events; this one gets
			// retried on the next tick.
			log.Printf("offer-sweeper: event %s: %v", eventID, err)
		}
	}
	return nil
}
