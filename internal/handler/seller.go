package handler

import (
    "context"  // detached context for async publishing
    "errors"   // for errors.As/Is comparisons
    "net/http" // HTTP status codes
    "time"     // timestamp formatting for published events

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/event-ticket-reservation/internal/engine"                 // reservation engine
    "github.com/iliyamo/event-ticket-reservation/internal/queue"                  // broker payloads
    queue_publisher "github.com/iliyamo/event-ticket-reservation/internal/service" // broker publishing
)

// SellerHandler exposes seller-facing operations on events.  Methods
// enforce ownership: only the event's owner may cancel it.
type SellerHandler struct {
    Refunder *engine.Refunder
    Store    engine.Store
}

// NewSellerHandler constructs a SellerHandler.  Both dependencies must
// be non-nil.
func NewSellerHandler(ref *engine.Refunder, store engine.Store) *SellerHandler {
    if ref == nil || store == nil {
        panic("nil dependency passed to NewSellerHandler")
    }
    return &SellerHandler{Refunder: ref, Store: store}
}

// CancelEvent handles POST /v1/events/:id/cancel.  Every valid ticket is
// refunded through the seller's payment account; the event is marked
// cancelled only when all refunds succeed.  A partial failure answers
// 502 Bad Gateway with the per-ticket causes so the seller can retry;
// the retry only re-attempts tickets still unrefunded.
func (h *SellerHandler) CancelEvent(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    ctx := c.Request().Context()

    ev, err := h.Store.GetEvent(ctx, eventID)
    if err != nil {
        if errors.Is(err, engine.ErrEventNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
    }
    if ev.OwnerID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    if ev.Cancelled {
        return c.JSON(http.StatusConflict, echo.Map{"error": "event already cancelled"})
    }

    summary, err := h.Refunder.RefundEvent(ctx, eventID)
    if err != nil {
        var partial *engine.PartialRefundError
        switch {
        case errors.As(err, &partial):
            return c.JSON(http.StatusBadGateway, echo.Map{
                "error":   "some refunds failed, event left uncancelled",
                "summary": summary,
            })
        case errors.Is(err, engine.ErrNoPaymentAccount):
            return c.JSON(http.StatusConflict, echo.Map{"error": "seller has no payment account"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund event"})
    }

    // Broker publishing is best effort and happens off the request path.
    go publishCancellation(ev.Name, ev.OwnerID, summary)

    return c.JSON(http.StatusOK, summary)
}

// publishCancellation emits an EventCancelledEvent for downstream
// consumers.  Failures are logged by the publisher and otherwise ignored.
func publishCancellation(eventName, ownerID string, s engine.RefundSummary) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    failed := make([]string, 0, len(s.Failed))
    for _, f := range s.Failed {
        failed = append(failed, f.TicketID)
    }
    _ = queue_publisher.PublishEventCancelled(ctx, queue.EventCancelledEvent{
        EventID:         s.EventID,
        EventName:       eventName,
        OwnerID:         ownerID,
        RefundedTickets: s.Refunded,
        FailedTickets:   failed,
        CancelledAt:     time.Now().UTC().Format(time.RFC3339),
    })
}
