package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/engine/enginetest"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

func TestFinalizeConvertsOfferIntoTicket(t *testing.T) {
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 2))
	clk := clock.NewFixed(testStart)
	ttl := 5 * time.Minute
	res := engine.NewReservation(store, clk, ttl)
	fin := engine.NewFinalizer(store, clk, ttl)
	ctx := context.Background()

	entry, err := res.RequestTicket(ctx, "ev1", "buyer-1")
	require.NoError(t, err)

	ticket, err := fin.Finalize(ctx, engine.FinalizeInput{
		EventID:     "ev1",
		BuyerID:     "buyer-1",
		EntryID:     entry.ID,
		PaymentRef:  "pay_123",
		AmountCents: 2500,
	})
	require.NoError(t, err)

	assert.Equal(t, model.TicketValid, ticket.Status)
	assert.Equal(t, "pay_123", ticket.PaymentRef)
	assert.Equal(t, int64(2500), ticket.AmountCents)
	assert.Equal(t, model.EntryPurchased, store.MustEntry(entry.ID).Status)

	av, err := res.Availability(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, av.Purchased)
	assert.Equal(t, 0, av.ActiveOffers)
	assert.Equal(t, 1, av.Remaining)
}

func TestFinalizeReplayReturnsExistingTicket(t *testing.T) {
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 1))
	clk := clock.NewFixed(testStart)
	res := engine.NewReservation(store, clk, 5*time.Minute)
	fin := engine.NewFinalizer(store, clk, 5*time.Minute)
	ctx := context.Background()

	entry, err := res.RequestTicket(ctx, "ev1", "buyer-1")
	require.NoError(t, err)

	in := engine.FinalizeInput{
		EventID:     "ev1",
		BuyerID:     "buyer-1",
		EntryID:     entry.ID,
		PaymentRef:  "pay_123",
		AmountCents: 2500,
	}
	first, err := fin.Finalize(ctx, in)
	require.NoError(t, err)

	// The provider delivers at least once; the replay must not mint a
	// second ticket.
	replay, err := fin.Finalize(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	tickets, err := store.ValidTickets(ctx, "ev1")
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestFinalizeExpiredOfferFailsAndPromotesQueue(t *testing.T) {
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 1))
	clk := clock.NewFixed(testStart)
	ttl := 5 * time.Minute
	res := engine.NewReservation(store, clk, ttl)
	fin := engine.NewFinalizer(store, clk, ttl)
	ctx := context.Background()

	entry, err := res.RequestTicket(ctx, "ev1", "buyer-1")
	require.NoError(t, err)
	clk.Advance(time.Second)
	queued, err := res.RequestTicket(ctx, "ev1", "buyer-2")
	require.NoError(t, err)

	clk.Advance(ttl)
	_, err = fin.Finalize(ctx, engine.FinalizeInput{
		EventID:    "ev1",
		BuyerID:    "buyer-1",
		EntryID:    entry.ID,
		PaymentRef: "pay_123",
	})
	assert.ErrorIs(t, err, engine.ErrOfferExpired)

	// The freed slot must reach the queue in the same transaction.
	assert.Equal(t, model.EntryExpired, store.MustEntry(entry.ID).Status)
	assert.Equal(t, model.EntryOffered, store.MustEntry(queued.ID).Status)
}

func TestFinalizeExpiredThenPromotedBuyerCanFinalize(t *testing.T) {
	// Capacity-1 end to end: A's offer lapses, B is promoted and B's
	// confirmation produces the only ticket.
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 1))
	clk := clock.NewFixed(testStart)
	ttl := 5 * time.Minute
	res := engine.NewReservation(store, clk, ttl)
	fin := engine.NewFinalizer(store, clk, ttl)
	ctx := context.Background()

	a, err := res.RequestTicket(ctx, "ev1", "buyer-a")
	require.NoError(t, err)
	clk.Advance(time.Second)
	b, err := res.RequestTicket(ctx, "ev1", "buyer-b")
	require.NoError(t, err)

	clk.Advance(ttl)
	_, err = fin.Finalize(ctx, engine.FinalizeInput{EventID: "ev1", BuyerID: "buyer-a", EntryID: a.ID, PaymentRef: "pay_a"})
	require.ErrorIs(t, err, engine.ErrOfferExpired)

	ticket, err := fin.Finalize(ctx, engine.FinalizeInput{
		EventID:     "ev1",
		BuyerID:     "buyer-b",
		EntryID:     b.ID,
		PaymentRef:  "pay_b",
		AmountCents: 2500,
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer-b", ticket.BuyerID)

	av, err := res.Availability(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, av.Purchased)
	assert.True(t, av.SoldOut)
}

func TestFinalizeRejectsCancelledEvent(t *testing.T) {
	// A confirmation racing a cancellation must not mint a ticket: the
	// refund pass has already run and would never see it.
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 2))
	clk := clock.NewFixed(testStart)
	res := engine.NewReservation(store, clk, 5*time.Minute)
	fin := engine.NewFinalizer(store, clk, 5*time.Minute)
	ctx := context.Background()

	entry, err := res.RequestTicket(ctx, "ev1", "buyer-1")
	require.NoError(t, err)
	require.NoError(t, store.MarkEventCancelled(ctx, "ev1"))

	_, err = fin.Finalize(ctx, engine.FinalizeInput{
		EventID:    "ev1",
		BuyerID:    "buyer-1",
		EntryID:    entry.ID,
		PaymentRef: "pay_late",
	})
	assert.ErrorIs(t, err, engine.ErrEventCancelled)

	tickets, err := store.ValidTickets(ctx, "ev1")
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, model.EntryOffered, store.MustEntry(entry.ID).Status)
}

func TestFinalizeRejectsMismatchedClaim(t *testing.T) {
	store := enginetest.NewFakeStore()
	store.AddEvent(newTestEvent("ev1", 1))
	clk := clock.NewFixed(testStart)
	res := engine.NewReservation(store, clk, 5*time.Minute)
	fin := engine.NewFinalizer(store, clk, 5*time.Minute)
	ctx := context.Background()

	entry, err := res.RequestTicket(ctx, "ev1", "buyer-1")
	require.NoError(t, err)

	_, err = fin.Finalize(ctx, engine.FinalizeInput{EventID: "ev1", BuyerID: "someone-else", EntryID: entry.ID})
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)

	_, err = fin.Finalize(ctx, engine.FinalizeInput{EventID: "ev1", BuyerID: "buyer-1", EntryID: "missing"})
	assert.ErrorIs(t, err, engine.ErrEntryNotFound)
}
