package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

const entryColumns = `id, event_id, buyer_id, status, reservation_token, enqueued_at, offered_at, expires_at`

// scanEntry maps a waiting_list_entries row into the model.  Token and
// the offer timestamps are nullable: entries that never held an offer
// carry NULLs there.
func scanEntry(row interface{ Scan(...any) error }) (*model.WaitingListEntry, error) {
	var (
		e         model.WaitingListEntry
		token     sql.NullString
		offeredAt sql.NullTime
		expiresAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.EventID, &e.BuyerID, &e.Status, &token, &e.EnqueuedAt, &offeredAt, &expiresAt); err != nil {
		return nil, err
	}
	e.Token = token.String
	if offeredAt.Valid {
		e.OfferedAt = offeredAt.Time
	}
	if expiresAt.Valid {
		e.ExpiresAt = expiresAt.Time
	}
	return &e, nil
}

// LiveEntryForBuyer returns the buyer's waiting or offered entry for
// the event, or nil when the buyer is not in line.  The uniqueness
// invariant (at most one live entry per event and buyer) is enforced
// by checking this under the event lock before every insert.
func (s *Store) LiveEntryForBuyer(ctx context.Context, eventID, buyerID string) (*model.WaitingListEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM waiting_list_entries
	      WHERE event_id = ? AND buyer_id = ? AND status IN ('waiting', 'offered')
	      LIMIT 1`
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, q, eventID, buyerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("live entry for buyer: %w", err)
	}
	return entry, nil
}

// EntryByID loads one entry, or nil when it does not exist.
func (s *Store) EntryByID(ctx context.Context, entryID string) (*model.WaitingListEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM waiting_list_entries WHERE id = ?`
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, q, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("entry by id: %w", err)
	}
	return entry, nil
}

// InsertEntry appends a new waiting-list entry.
func (s *Store) InsertEntry(ctx context.Context, e *model.WaitingListEntry) error {
	const q = `INSERT INTO waiting_list_entries
	           (id, event_id, buyer_id, status, reservation_token, enqueued_at, offered_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q(ctx).ExecContext(ctx, q,
		e.ID, e.EventID, e.BuyerID, e.Status,
		nullString(e.Token), e.EnqueuedAt.UTC(), nullTime(e.OfferedAt), nullTime(e.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// NextWaitingEntry returns the oldest waiting entry for the event,
// ties broken by entry ID so promotion order is deterministic, or nil
// when nobody is waiting.
func (s *Store) NextWaitingEntry(ctx context.Context, eventID string) (*model.WaitingListEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM waiting_list_entries
	      WHERE event_id = ? AND status = 'waiting'
	      ORDER BY enqueued_at, id
	      LIMIT 1`
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, q, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next waiting entry: %w", err)
	}
	return entry, nil
}

// MarkOffered promotes an entry to offered with its reservation token
// and deadline.
func (s *Store) MarkOffered(ctx context.Context, entryID, token string, offeredAt, expiresAt time.Time) error {
	const q = `UPDATE waiting_list_entries
	           SET status = 'offered', reservation_token = ?, offered_at = ?, expires_at = ?
	           WHERE id = ?`
	_, err := s.q(ctx).ExecContext(ctx, q, token, offeredAt.UTC(), expiresAt.UTC(), entryID)
	if err != nil {
		return fmt.Errorf("mark offered: %w", err)
	}
	return nil
}

// SetEntryStatus moves an entry to a terminal status and releases its
// reservation token.  The offer timestamps are kept for the audit
// trail.
func (s *Store) SetEntryStatus(ctx context.Context, entryID string, status model.EntryStatus) error {
	const q = `UPDATE waiting_list_entries
	           SET status = ?, reservation_token = NULL
	           WHERE id = ?`
	_, err := s.q(ctx).ExecContext(ctx, q, status, entryID)
	if err != nil {
		return fmt.Errorf("set entry status: %w", err)
	}
	return nil
}

// DueOffers lists the event's offered entries whose deadline has
// passed.
func (s *Store) DueOffers(ctx context.Context, eventID string, now time.Time) ([]model.WaitingListEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM waiting_list_entries
	      WHERE event_id = ? AND status = 'offered' AND expires_at <= ?
	      ORDER BY expires_at, id`
	rows, err := s.q(ctx).QueryContext(ctx, q, eventID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("due offers: %w", err)
	}
	defer rows.Close()

	var due []model.WaitingListEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *e)
	}
	return due, rows.Err()
}

// EventsWithDueOffers lists distinct events that hold at least one
// overdue offer, for the background sweep.
func (s *Store) EventsWithDueOffers(ctx context.Context, now time.Time) ([]string, error) {
	const q = `SELECT DISTINCT event_id FROM waiting_list_entries
	           WHERE status = 'offered' AND expires_at <= ?`
	rows, err := s.q(ctx).QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("events with due offers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WaitingPosition returns the 1-based position of a waiting entry in
// its event's FIFO order.
func (s *Store) WaitingPosition(ctx context.Context, eventID, entryID string) (int, error) {
	const q = `SELECT COUNT(*)
	           FROM waiting_list_entries w
	           JOIN waiting_list_entries e ON e.id = ?
	           WHERE w.event_id = ? AND w.status = 'waiting'
	             AND (w.enqueued_at < e.enqueued_at
	                  OR (w.enqueued_at = e.enqueued_at AND w.id <= e.id))`
	var pos int
	if err := s.q(ctx).QueryRowContext(ctx, q, entryID, eventID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("waiting position: %w", err)
	}
	return pos, nil
}

// CountActiveOffers counts the event's offered entries whose deadline
// is still in the future; each holds one unit of capacity.
func (s *Store) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM waiting_list_entries
	           WHERE event_id = ? AND status = 'offered' AND expires_at > ?`
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, q, eventID, now.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active offers: %w", err)
	}
	return n, nil
}

// WaitingCount returns how many entries are waiting for the event.
func (s *Store) WaitingCount(ctx context.Context, eventID string) (int, error) {
	const q = `SELECT COUNT(*) FROM waiting_list_entries WHERE event_id = ? AND status = 'waiting'`
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, q, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("waiting count: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
