package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-reservation/internal/clock"
	"github.com/iliyamo/event-ticket-reservation/internal/engine"
	"github.com/iliyamo/event-ticket-reservation/internal/engine/enginetest"
	"github.com/iliyamo/event-ticket-reservation/internal/model"
)

func newTicketFixture(totalTickets int) (*enginetest.FakeStore, *clock.Fixed, *TicketHandler) {
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
	return store, clk, NewTicketHandler(engine.NewReservation(store, clk, 5*time.Minute))
}

// call builds an echo context for a route with an :id param and an
// authenticated user, runs fn and returns the recorder.
func call(t *testing.T, method, target, paramID, userID string, fn echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(paramID)
	if userID != "" {
		c.Set("user_id", userID)
	}
	require.NoError(t, fn(c))
	return rec
}

func TestRequestTicketHandlerGrantsOffer(t *testing.T) {
	_, _, h := newTicketFixture(1)

	rec := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "offered", resp["status"])
	assert.Len(t, resp["reservation_token"], 64)
	assert.NotEmpty(t, resp["expires_at"])
}

func TestRequestTicketHandlerQueuesWhenSoldOut(t *testing.T) {
	_, _, h := newTicketFixture(1)

	first := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	require.Equal(t, http.StatusCreated, first.Code)

	second := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-2", h.RequestTicket)
	require.Equal(t, http.StatusAccepted, second.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "waiting", resp["status"])
	assert.Equal(t, float64(1), resp["position"])
	assert.NotContains(t, resp, "reservation_token")
}

func TestRequestTicketHandlerConflictOnSecondRequest(t *testing.T) {
	_, _, h := newTicketFixture(5)

	call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	rec := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestTicketHandlerRequiresAuth(t *testing.T) {
	_, _, h := newTicketFixture(1)
	rec := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "", h.RequestTicket)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReleaseOfferHandler(t *testing.T) {
	store, _, h := newTicketFixture(1)

	rec := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entryID := resp["entry_id"].(string)

	rel := call(t, http.MethodDelete, "/v1/offers/"+entryID, entryID, "buyer-1", h.ReleaseOffer)
	assert.Equal(t, http.StatusOK, rel.Code)
	assert.Equal(t, model.EntryReleased, store.MustEntry(entryID).Status)

	missing := call(t, http.MethodDelete, "/v1/offers/nope", "nope", "buyer-1", h.ReleaseOffer)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestReleaseOfferHandlerRejectsForeignEntry(t *testing.T) {
	store, _, h := newTicketFixture(1)

	rec := call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entryID := resp["entry_id"].(string)

	// Another authenticated user who knows the entry ID must not be able
	// to release it.
	foreign := call(t, http.MethodDelete, "/v1/offers/"+entryID, entryID, "buyer-2", h.ReleaseOffer)
	assert.Equal(t, http.StatusForbidden, foreign.Code)
	assert.Equal(t, model.EntryOffered, store.MustEntry(entryID).Status)
}

func TestAvailabilityHandler(t *testing.T) {
	_, _, h := newTicketFixture(3)

	call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)

	rec := call(t, http.MethodGet, "/v1/events/ev1/availability", "ev1", "", h.Availability)
	require.Equal(t, http.StatusOK, rec.Code)

	var av engine.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &av))
	assert.Equal(t, 3, av.TotalTickets)
	assert.Equal(t, 1, av.ActiveOffers)
	assert.Equal(t, 2, av.Remaining)

	notFound := call(t, http.MethodGet, "/v1/events/nope/availability", "nope", "", h.Availability)
	assert.Equal(t, http.StatusNotFound, notFound.Code)
}

func TestQueuePositionHandler(t *testing.T) {
	_, clk, h := newTicketFixture(1)

	call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-1", h.RequestTicket)
	clk.Advance(time.Second)
	call(t, http.MethodPost, "/v1/events/ev1/tickets/request", "ev1", "buyer-2", h.RequestTicket)

	rec := call(t, http.MethodGet, "/v1/events/ev1/queue/position", "ev1", "buyer-2", h.QueuePosition)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "waiting", resp["status"])
	assert.Equal(t, float64(1), resp["position"])

	none := call(t, http.MethodGet, "/v1/events/ev1/queue/position", "ev1", "stranger", h.QueuePosition)
	assert.Equal(t, http.StatusNotFound, none.Code)
}
