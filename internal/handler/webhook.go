package handler

import (
    "context"       // detached context for async publishing
    "encoding/json" // decoding the verified payload
    "errors"        // for errors.Is comparisons
    "io"            // reading the raw request body for signature checks
    "net/http"      // HTTP status codes
    "time"          // timestamp formatting for published events

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/event-ticket-reservation/internal/engine"                 // reservation engine
    "github.com/iliyamo/event-ticket-reservation/internal/model"                  // domain types
    "github.com/iliyamo/event-ticket-reservation/internal/payment"                // signature verification
    "github.com/iliyamo/event-ticket-reservation/internal/queue"                  // broker payloads
    queue_publisher "github.com/iliyamo/event-ticket-reservation/internal/service" // broker publishing
)

// signatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const signatureHeader = "X-Payment-Signature"

// WebhookHandler receives payment confirmations from the provider and
// finalizes purchases.  The provider delivers confirmations at least
// once; replays are answered with the already-created ticket.
type WebhookHandler struct {
    Finalizer *engine.Finalizer
    Store     engine.Store
    Secret    string // shared secret for the signature check
}

// NewWebhookHandler constructs a WebhookHandler.  Finalizer and store
// must be non-nil and the secret non-empty.
func NewWebhookHandler(fin *engine.Finalizer, store engine.Store, secret string) *WebhookHandler {
    if fin == nil || store == nil {
        panic("nil dependency passed to NewWebhookHandler")
    }
    if secret == "" {
        panic("empty webhook secret passed to NewWebhookHandler")
    }
    return &WebhookHandler{Finalizer: fin, Store: store, Secret: secret}
}

// confirmationPayload is the provider's confirmation body.  The entry ID
// is the idempotency key; the event and buyer IDs must match the entry.
type confirmationPayload struct {
    EventID     string `json:"event_id"`
    BuyerID     string `json:"buyer_id"`
    EntryID     string `json:"waiting_list_entry_id"`
    PaymentRef  string `json:"payment_reference"`
    AmountCents int64  `json:"amount_cents"`
}

// PaymentConfirmed handles POST /v1/webhooks/payment.  The raw body is
// authenticated against the X-Payment-Signature header before any
// parsing.  Success and idempotent replays both answer 200 so the
// provider stops retrying.  An offer that expired, or an event that was
// cancelled, before the confirmation arrived answers 410 Gone with
// action "refund_required"; the provider must not retry that delivery.
func (h *WebhookHandler) PaymentConfirmed(c echo.Context) error {
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }
    sig := c.Request().Header.Get(signatureHeader)
    if !payment.VerifySignature(body, sig, h.Secret) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
    }

    var p confirmationPayload
    if err := json.Unmarshal(body, &p); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
    }
    if p.EventID == "" || p.BuyerID == "" || p.EntryID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing identifiers"})
    }

    ticket, err := h.Finalizer.Finalize(c.Request().Context(), engine.FinalizeInput{
        EventID:     p.EventID,
        BuyerID:     p.BuyerID,
        EntryID:     p.EntryID,
        PaymentRef:  p.PaymentRef,
        AmountCents: p.AmountCents,
    })
    if err != nil {
        switch {
        case errors.Is(err, engine.ErrOfferExpired):
            return c.JSON(http.StatusGone, echo.Map{
                "error":  "offer expired before confirmation",
                "action": "refund_required",
            })
        case errors.Is(err, engine.ErrEventCancelled):
            return c.JSON(http.StatusGone, echo.Map{
                "error":  "event cancelled before confirmation",
                "action": "refund_required",
            })
        case errors.Is(err, engine.ErrEntryNotFound), errors.Is(err, engine.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown reservation"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to finalize purchase"})
    }

    // Broker publishing is best effort and happens off the request path.
    go h.publishPurchase(ticket)

    return c.JSON(http.StatusOK, echo.Map{
        "ticket_id":    ticket.ID,
        "status":       string(ticket.Status),
        "purchased_at": ticket.PurchasedAt.UTC().Format(time.RFC3339),
    })
}

// publishPurchase emits a TicketPurchasedEvent for downstream consumers.
// Failures are logged by the publisher and otherwise ignored.
func (h *WebhookHandler) publishPurchase(t model.Ticket) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    name := ""
    if ev, err := h.Store.GetEvent(ctx, t.EventID); err == nil {
        name = ev.Name
    }
    _ = queue_publisher.PublishTicketPurchased(ctx, queue.TicketPurchasedEvent{
        TicketID:    t.ID,
        EventID:     t.EventID,
        EventName:   name,
        BuyerID:     t.BuyerID,
        EntryID:     t.EntryID,
        PaymentRef:  t.PaymentRef,
        AmountCents: t.AmountCents,
        PurchasedAt: t.PurchasedAt.UTC().Format(time.RFC3339),
    })
}
