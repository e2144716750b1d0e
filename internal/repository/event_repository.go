package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

// GetEvent loads an event by ID.  Inside a WithEventTx context the
// read observes the locked row.  Returns engine.ErrEventNotFound for
// an unknown ID.
func (s *Store) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	const q = `SELECT id, name, owner_id, total_tickets, price_cents, cancelled, created_at
	           FROM events WHERE id = ?`
	var ev model.Event
	err := s.q(ctx).QueryRowContext(ctx, q, eventID).
		Scan(&ev.ID, &ev.Name, &ev.OwnerID, &ev.TotalTickets, &ev.PriceCents, &ev.Cancelled, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, engine.ErrEventNotFound
		}
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// MarkEventCancelled flips the cancellation flag.  The refund
// orchestrator calls it only after every ticket refunded.
func (s *Store) MarkEventCancelled(ctx context.Context, eventID string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE events SET cancelled = 1 WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("mark event cancelled: %w", err)
	}
	return nil
}

// PaymentAccount looks up the seller's provider account reference.
// Returns engine.ErrNoPaymentAccount when onboarding was never
// completed.
func (s *Store) PaymentAccount(ctx context.Context, ownerID string) (model.PaymentAccount, error) {
	const q = `SELECT owner_id, account_ref, onboarded_at FROM payment_accounts WHERE owner_id = ?`
	var acc model.PaymentAccount
	err := s.q(ctx).QueryRowContext(ctx, q, ownerID).
		Scan(&acc.OwnerID, &acc.AccountRef, &acc.OnboardedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PaymentAccount{}, engine.ErrNoPaymentAccount
		}
		return model.PaymentAccount{}, fmt.Errorf("payment account: %w", err)
	}
	return acc, nil
}
