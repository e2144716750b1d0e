package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/model"
	"github.com/iliyamo/event-ticket-reservation/internal/monitoring"
	"github.com/iliyamo/event-ticket-reservation/internal/payment"
)

// Refunder orchestrates bulk refunds on event cancellation.  Refund
// calls fan out concurrently against the payment provider so one bad
// payment reference cannot block the batch, and every per-ticket
// outcome is collected instead of failing fast.  No ledger lock is
// held while provider I/O is in flight; ticket rows are updated only
// after the provider answers.
type Refunder struct {
	store    Store
	provider payment.Provider
	timeout  time.Duration
}

// NewRefunder constructs the refund orchestrator.  timeout bounds each
// individual provider call.
func NewRefunder(store Store, provider payment.Provider, timeout time.Duration) *Refunder {
	return &Refunder{store: store, provider: provider, timeout: timeout}
}

// RefundSummary reports the outcome of a bulk refund pass.
type RefundSummary struct {
	EventID   string          `json:"event_id"`
	Attempted int             `json:"attempted"`
	Refunded  []string        `json:"refunded"`
	Failed    []RefundFailure `json:"failed,omitempty"`
	Cancelled bool            `json:"event_cancelled"`
}

// RefundEvent refunds every valid ticket of the event through the
// seller's payment account.  When all tickets refund, the event is
// marked cancelled.  When any ticket fails, the error is a
// *PartialRefundError carrying the per-ticket causes, the event stays
// uncancelled, and a retry pass only re-attempts the tickets still in
// valid state (refund calls against the provider are not idempotent
// by ticket ID, so already-refunded tickets must be skipped).
func (r *Refunder) RefundEvent(ctx context.Context, eventID string) (RefundSummary, error) {
	ev, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		return RefundSummary{}, err
	}
	account, err := r.store.PaymentAccount(ctx, ev.OwnerID)
	if err != nil {
		return RefundSummary{}, err
	}
	tickets, err := r.store.ValidTickets(ctx, eventID)
	if err != nil {
		return RefundSummary{}, err
	}

	summary := RefundSummary{EventID: eventID, Attempted: len(tickets)}

	type outcome struct {
		ticketID string
		err      error
	}
	outcomes := make([]outcome, len(tickets))

	var wg sync.WaitGroup
	for i, t := range tickets {
		wg.Add(1)
		go func(i int, t model.Ticket) {
			defer wg.Done()
			outcomes[i] = outcome{ticketID: t.ID, err: r.refundOne(ctx, t, account.AccountRef)}
		}(i, t)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			summary.Failed = append(summary.Failed, RefundFailure{TicketID: o.ticketID, Cause: o.err.Error()})
			monitoring.RefundAttempt(eventID, "failed")
			continue
		}
		summary.Refunded = append(summary.Refunded, o.ticketID)
		monitoring.RefundAttempt(eventID, "refunded")
	}

	if len(summary.Failed) > 0 {
		log.Printf("refund: event %s: %d/%d ticket(s) failed, event left uncancelled",
			eventID, len(summary.Failed), summary.Attempted)
		return summary, &PartialRefundError{EventID: eventID, Failures: summary.Failed}
	}

	// Re-check under the event lock before flipping the flag: a purchase
	// finalized after the batch was fetched would otherwise be stranded
	// on a cancelled event with no refund pass left to catch it.
	var leftover []model.Ticket
	err = r.store.WithEventTx(ctx, eventID, func(txCtx context.Context) error {
		var txErr error
		leftover, txErr = r.store.ValidTickets(txCtx, eventID)
		if txErr != nil {
			return txErr
		}
		if len(leftover) > 0 {
			return nil
		}
		return r.store.MarkEventCancelled(txCtx, eventID)
	})
	if err != nil {
		return summary, err
	}
	if len(leftover) > 0 {
		for _, t := range leftover {
			summary.Failed = append(summary.Failed, RefundFailure{TicketID: t.ID, Cause: "ticket finalized during refund pass"})
			monitoring.RefundAttempt(eventID, "failed")
		}
		log.Printf("refund: event %s: %d ticket(s) finalized mid-pass, event left uncancelled",
			eventID, len(leftover))
		return summary, &PartialRefundError{EventID: eventID, Failures: summary.Failed}
	}
	summary.Cancelled = true
	log.Printf("refund: event %s: %d ticket(s) refunded, event cancelled", eventID, summary.Attempted)
	return summary, nil
}

// refundOne issues a single refund with a bounded deadline and, on
// provider success, flips the ticket to refunded.  A ticket without a
// payment reference can never be refunded automatically and is
// reported as a failure for manual attention.
func (r *Refunder) refundOne(ctx context.Context, t model.Ticket, accountRef string) error {
	if t.PaymentRef == "" {
		return payment.ErrNoPaymentRef
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.provider.IssueRefund(callCtx, t.PaymentRef, accountRef); err != nil {
		log.Printf("refund: ticket %s (payment %s): %v", t.ID, t.PaymentRef, err)
		return err
	}
	return r.store.SetTicketStatus(ctx, t.ID, model.TicketRefunded)
}
