package handler

import (
    "errors"   // for errors.Is comparisons against engine sentinels
    "net/http" // HTTP status codes
    "time"     // formatting offer deadlines

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/event-ticket-reservation/internal/engine" // reservation engine
    "github.com/iliyamo/event-ticket-reservation/internal/model"  // domain types
)

// TicketHandler exposes the buyer-facing reservation operations: asking
// for a ticket, giving an offer back, and the availability and queue
// position read models.  All methods assume that JWT authentication has
// already been performed by middleware; methods return 401 Unauthorized
// when the user ID cannot be extracted from the context.
type TicketHandler struct {
    Reservation *engine.Reservation
}

// NewTicketHandler constructs a TicketHandler.  The reservation service
// must be non-nil.
func NewTicketHandler(res *engine.Reservation) *TicketHandler {
    if res == nil {
        panic("nil reservation service passed to NewTicketHandler")
    }
    return &TicketHandler{Reservation: res}
}

// entryResponse shapes a waiting-list entry for API responses.  The
// reservation token is only present while an offer is live; a waiting
// entry carries its 1-based queue position instead.
func entryResponse(e *model.WaitingListEntry, position int) echo.Map {
    m := echo.Map{
        "entry_id": e.ID,
        "event_id": e.EventID,
        "status":   string(e.Status),
    }
    switch e.Status {
    case model.EntryOffered:
        m["reservation_token"] = e.Token
        m["expires_at"] = e.ExpiresAt.UTC().Format(time.RFC3339)
    case model.EntryWaiting:
        if position > 0 {
            m["position"] = position
        }
    }
    return m
}

// RequestTicket handles POST /v1/events/:id/tickets/request.  When the
// event has capacity the response is 201 Created with an offered entry
// carrying the reservation token and purchase deadline; when the event
// is sold out the buyer is enqueued and the response is 202 Accepted
// with the queue position.  A buyer who already holds a live entry gets
// 409 Conflict, as does a cancelled event.
func (h *TicketHandler) RequestTicket(c echo.Context) error {
    buyerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    ctx := c.Request().Context()

    entry, err := h.Reservation.RequestTicket(ctx, eventID, buyerID)
    if err != nil {
        switch {
        case errors.Is(err, engine.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        case errors.Is(err, engine.ErrEventCancelled):
            return c.JSON(http.StatusConflict, echo.Map{"error": "event is cancelled"})
        case errors.Is(err, engine.ErrAlreadyQueued):
            return c.JSON(http.StatusConflict, echo.Map{"error": "buyer already has a live entry for this event"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to request ticket"})
    }

    if entry.Status == model.EntryOffered {
        return c.JSON(http.StatusCreated, entryResponse(entry, 0))
    }
    // Queued: look the position up for the response body; the entry is
    // valid even if the lookup fails.
    pos := 0
    if st, err := h.Reservation.Position(ctx, eventID, buyerID); err == nil {
        pos = st.Position
    }
    return c.JSON(http.StatusAccepted, entryResponse(entry, pos))
}

// ReleaseOffer handles DELETE /v1/offers/:id.  It voluntarily gives up
// the caller's own entry; an offered slot is handed to the next waiting
// buyer atomically.  An entry owned by a different buyer is refused
// with 403.  Releasing an entry that already finished is a no-op and
// still returns 200 so clients can retry safely.
func (h *TicketHandler) ReleaseOffer(c echo.Context) error {
    buyerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    entryID := c.Param("id")
    if entryID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
    }
    if err := h.Reservation.ReleaseOffer(c.Request().Context(), entryID, buyerID); err != nil {
        switch {
        case errors.Is(err, engine.ErrEntryNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
        case errors.Is(err, engine.ErrNotEntryOwner):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "entry belongs to another buyer"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release offer"})
    }
    return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// Availability handles GET /v1/events/:id/availability.  It returns the
// capacity snapshot used by event pages: total, purchased, live offers,
// remaining and the waiting-list length.  The route is public and sits
// behind the response cache.
func (h *TicketHandler) Availability(c echo.Context) error {
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    av, err := h.Reservation.Availability(c.Request().Context(), eventID)
    if err != nil {
        if errors.Is(err, engine.ErrEventNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
    }
    return c.JSON(http.StatusOK, av)
}

// QueuePosition handles GET /v1/events/:id/queue/position.  It reports
// the authenticated buyer's live entry and, while still waiting, the
// 1-based position in the queue.  404 when the buyer holds no live
// entry for the event.
func (h *TicketHandler) QueuePosition(c echo.Context) error {
    buyerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    st, err := h.Reservation.Position(c.Request().Context(), eventID, buyerID)
    if err != nil {
        if errors.Is(err, engine.ErrEntryNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "no live entry for this event"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load queue position"})
    }
    return c.JSON(http.StatusOK, entryResponse(st.Entry, st.Position))
}
