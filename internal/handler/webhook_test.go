package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/engine/enginetest"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
	"github.com/iliyamo/event-ticket-reservation/internal/payment"
)

const webhookSecret = "whsec_test"

var handlerTestStart = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

type webhookFixture struct {
	store *enginetest.FakeStore
	clk   *clock.Fixed
	res   *engine.Reservation
	h     *WebhookHandler
}

func newWebhookFixture(t *testing.T, totalTickets int) *webhookFixture {
	t.Helper()
	store := enginetest.NewFakeStore()
	store.AddEvent(model.Event{
		ID:           "ev1",
		Name:         "Test Event",
		OwnerID:      "seller-1",
		TotalTickets: totalTickets,
		PriceCents:   2500,
		CreatedAt:    handlerTestStart,
	})
	clk := clock.NewFixed(handlerTestStart)
	ttl := 5 * time.Minute
	return &webhookFixture{
		store: store,
		clk:   clk,
		res:   engine.NewReservation(store, clk, ttl),
		h:     NewWebhookHandler(engine.NewFinalizer(store, clk, ttl), store, webhookSecret),
	}
}

func (f *webhookFixture) post(t *testing.T, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sig != "" {
		req.Header.Set(signatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, f.h.PaymentConfirmed(e.NewContext(req, rec)))
	return rec
}

func confirmationBody(t *testing.T, entryID string) []byte {
	t.Helper()
	body, err := json.Marshal(confirmationPayload{
		EventID:     "ev1",
		BuyerID:     "buyer-1",
		EntryID:     entryID,
		PaymentRef:  "pay_123",
		AmountCents: 2500,
	})
	require.NoError(t, err)
	return body
}

func TestPaymentConfirmedRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, 1)
	body := confirmationBody(t, "entry-1")

	rec := f.post(t, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(t, body, payment.Sign(body, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 1
	rec = f.post(t, tampered, payment.Sign(body, webhookSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentConfirmedFinalizesPurchase(t *testing.T) {
	f := newWebhookFixture(t, 1)
	entry, err := f.res.RequestTicket(context.Background(), "ev1", "buyer-1")
	require.NoError(t, err)

	body := confirmationBody(t, entry.ID)
	rec := f.post(t, body, payment.Sign(body, webhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["ticket_id"])
	assert.Equal(t, "valid", resp["status"])

	// A replayed delivery answers 200 with the same ticket.
	replay := f.post(t, body, payment.Sign(body, webhookSecret))
	require.Equal(t, http.StatusOK, replay.Code)
	var replayResp map[string]any
	require.NoError(t, json.Unmarshal(replay.Body.Bytes(), &replayResp))
	assert.Equal(t, resp["ticket_id"], replayResp["ticket_id"])
}

func TestPaymentConfirmedExpiredOfferAnswersGone(t *testing.T) {
	f := newWebhookFixture(t, 1)
	entry, err := f.res.RequestTicket(context.Background(), "ev1", "buyer-1")
	require.NoError(t, err)

	f.clk.Advance(10 * time.Minute)
	body := confirmationBody(t, entry.ID)
	rec := f.post(t, body, payment.Sign(body, webhookSecret))

	assert.Equal(t, http.StatusGone, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "refund_required", resp["action"])
}

func TestPaymentConfirmedCancelledEventAnswersGone(t *testing.T) {
	// A confirmation arriving after the event was cancelled must not
	// mint a ticket; the payment needs a compensating refund.
	f := newWebhookFixture(t, 1)
	entry, err := f.res.RequestTicket(context.Background(), "ev1", "buyer-1")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkEventCancelled(context.Background(), "ev1"))

	body := confirmationBody(t, entry.ID)
	rec := f.post(t, body, payment.Sign(body, webhookSecret))

	assert.Equal(t, http.StatusGone, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "refund_required", resp["action"])

	tickets, err := f.store.ValidTickets(context.Background(), "ev1")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestPaymentConfirmedUnknownEntry(t *testing.T) {
	f := newWebhookFixture(t, 1)
	body := confirmationBody(t, "no-such-entry")
	rec := f.post(t, body, payment.Sign(body, webhookSecret))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentConfirmedRejectsMalformedPayload(t *testing.T) {
	f := newWebhookFixture(t, 1)
	body := []byte(`{"event_id":""}`)
	rec := f.post(t, body, payment.Sign(body, webhookSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
