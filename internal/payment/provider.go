// Package payment holds the client side of the external payment
// provider: the refund operation the engine invokes, and the webhook
// signature check that authenticates inbound payment confirmations.
// Payment capture itself happens in the out-of-scope checkout flow;
// this engine only reacts to its outcomes (confirmations) and issues
// refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoPaymentRef marks a ticket that carries no payment reference and
// therefore cannot be refunded automatically.
var ErrNoPaymentRef = errors.New("payment information not found")

// Provider is the slice of the payment provider this engine talks to.
// Refunds are issued against the seller's connected account using the
// payment reference captured at checkout.
type Provider interface {
	IssueRefund(ctx context.Context, paymentRef, accountRef string) error
}

// ProviderError is a refund rejection from the provider.  It is
// retryable from the orchestrator's point of view: the failed ticket
// stays valid and a later pass re-attempts it.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider refused refund (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider refused refund (%d): %s", e.Status, e.Message)
}
