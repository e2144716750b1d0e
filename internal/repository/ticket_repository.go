package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

const ticketColumns = `id, event_id, buyer_id, waiting_list_entry_id, payment_ref, amount_cents, status, purchased_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var (
		t          model.Ticket
		paymentRef sql.NullString
	)
	if err := row.Scan(&t.ID, &t.EventID, &t.BuyerID, &t.EntryID, &paymentRef, &t.AmountCents, &t.Status, &t.PurchasedAt); err != nil {
		return nil, err
	}
	t.PaymentRef = paymentRef.String
	return &t, nil
}

// TicketByEntryID returns the ticket created from a waiting-list
// entry, or nil when the entry was never finalized.  The unique index
// on waiting_list_entry_id is what makes replayed confirmations safe.
func (s *Store) TicketByEntryID(ctx context.Context, entryID string) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE waiting_list_entry_id = ?`
	t, err := scanTicket(s.q(ctx).QueryRowContext(ctx, q, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ticket by entry: %w", err)
	}
	return t, nil
}

// InsertTicket persists a freshly finalized ticket.
func (s *Store) InsertTicket(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets
	           (id, event_id, buyer_id, waiting_list_entry_id, payment_ref, amount_cents, status, purchased_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q(ctx).ExecContext(ctx, q,
		t.ID, t.EventID, t.BuyerID, t.EntryID, nullString(t.PaymentRef), t.AmountCents, t.Status, t.PurchasedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("entry %s already finalized: %w", t.EntryID, err)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// ValidTickets lists the event's tickets still in valid state.  The
// refund orchestrator uses this to build a batch, and a retry pass
// naturally skips tickets that moved to refunded.
func (s *Store) ValidTickets(ctx context.Context, eventID string) ([]model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets
	      WHERE event_id = ? AND status = 'valid'
	      ORDER BY purchased_at, id`
	rows, err := s.q(ctx).QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("valid tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// SetTicketStatus transitions a ticket to a new status.
func (s *Store) SetTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ?`, status, ticketID)
	if err != nil {
		return fmt.Errorf("set ticket status: %w", err)
	}
	return nil
}

// CountActiveTickets counts tickets holding capacity (valid or used).
func (s *Store) CountActiveTickets(ctx context.Context, eventID string) (int, error) {
	const q = `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND status IN ('valid', 'used')`
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, q, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active tickets: %w", err)
	}
	return n, nil
}
