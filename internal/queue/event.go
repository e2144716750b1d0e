// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketPurchasedEvent is published when a payment confirmation turns an
// offer into a ticket. It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type TicketPurchasedEvent struct {
    TicketID    string `json:"ticket_id"`
    EventID     string `json:"event_id"`
    EventName   string `json:"event_name"`
    BuyerID     string `json:"buyer_id"`
    EntryID     string `json:"waiting_list_entry_id"`
    PaymentRef  string `json:"payment_reference"`
    AmountCents int64  `json:"amount_cents"`
    PurchasedAt string `json:"purchased_at"`
}

// EventCancelledEvent is published after a seller cancels an event and the
// refund run completes. RefundedTickets and FailedTickets let consumers
// reconcile partial outcomes.
type EventCancelledEvent struct {
    EventID         string   `json:"event_id"`
    EventName       string   `json:"event_name"`
    OwnerID         string   `json:"owner_id"`
    RefundedTickets []string `json:"refunded_tickets"`
    FailedTickets   []string `json:"failed_tickets"`
    CancelledAt     string   `json:"cancelled_at"`
}
