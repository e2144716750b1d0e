package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/engine/enginetest"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

// scriptedProvider refunds everything except the references it is told
// to fail.
type scriptedProvider struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (p *scriptedProvider) IssueRefund(ctx context.Context, paymentRef, accountRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[paymentRef] {
		return errors.New("provider refused")
	}
	return nil
}

func newSellerFixture(provider *scriptedProvider) (*enginetest.FakeStore, *SellerHandler) {
	store := enginetest.NewFakeStore()
	store.AddEvent(model.Event{
		ID:           "ev1",
		Name:         "Test Event",
		OwnerID:      "seller-1",
		TotalTickets: 5,
		PriceCents:   2500,
		CreatedAt:    handlerTestStart,
	})
	store.AddAccount(model.PaymentAccount{OwnerID: "seller-1", AccountRef: "acct_1"})
	if provider == nil {
		provider = &scriptedProvider{}
	}
	refunder := engine.NewRefunder(store, provider, time.Second)
	return store, NewSellerHandler(refunder, store)
}

func seedValidTicket(t *testing.T, store *enginetest.FakeStore, id, paymentRef string) {
	t.Helper()
	require.NoError(t, store.InsertTicket(context.Background(), &model.Ticket{
		ID:          id,
		EventID:     "ev1",
		BuyerID:     "buyer-" + id,
		EntryID:     "entry-" + id,
		PaymentRef:  paymentRef,
		AmountCents: 2500,
		Status:      model.TicketValid,
		PurchasedAt: handlerTestStart,
	}))
}

func TestCancelEventRefundsAndCancels(t *testing.T) {
	store, h := newSellerFixture(nil)
	seedValidTicket(t, store, "t1", "pay_1")
	seedValidTicket(t, store, "t2", "pay_2")

	rec := call(t, http.MethodPost, "/v1/events/ev1/cancel", "ev1", "seller-1", h.CancelEvent)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary engine.RefundSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Attempted)
	assert.Len(t, summary.Refunded, 2)
	assert.True(t, summary.Cancelled)

	ev, err := store.GetEvent(context.Background(), "ev1")
	require.NoError(t, err)
	assert.True(t, ev.Cancelled)
}

func TestCancelEventPartialFailureAnswersBadGateway(t *testing.T) {
	provider := &scriptedProvider{fail: map[string]bool{"pay_2": true}}
	store, h := newSellerFixture(provider)
	seedValidTicket(t, store, "t1", "pay_1")
	seedValidTicket(t, store, "t2", "pay_2")

	rec := call(t, http.MethodPost, "/v1/events/ev1/cancel", "ev1", "seller-1", h.CancelEvent)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Summary engine.RefundSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Summary.Refunded, 1)
	require.Len(t, resp.Summary.Failed, 1)
	assert.Equal(t, "t2", resp.Summary.Failed[0].TicketID)

	ev, err := store.GetEvent(context.Background(), "ev1")
	require.NoError(t, err)
	assert.False(t, ev.Cancelled)
}

func TestCancelEventEnforcesOwnership(t *testing.T) {
	_, h := newSellerFixture(nil)
	rec := call(t, http.MethodPost, "/v1/events/ev1/cancel", "ev1", "someone-else", h.CancelEvent)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelEventAlreadyCancelled(t *testing.T) {
	store, h := newSellerFixture(nil)
	require.NoError(t, store.MarkEventCancelled(context.Background(), "ev1"))

	rec := call(t, http.MethodPost, "/v1/events/ev1/cancel", "ev1", "seller-1", h.CancelEvent)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelEventUnknownEvent(t *testing.T) {
	_, h := newSellerFixture(nil)
	rec := call(t, http.MethodPost, "/v1/events/nope/cancel", "nope", "seller-1", h.CancelEvent)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
