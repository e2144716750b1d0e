package model

import "time"

// PaymentAccount links a seller to their account at the external
// payment provider.  The row is written by the (out-of-scope)
// onboarding flow; the refund orchestrator only reads it.  A seller
// without a row has not completed onboarding and cannot be refunded
// against.
type PaymentAccount struct {
	OwnerID     string    // payment_accounts.owner_id
	AccountRef  string    // payment_accounts.account_ref
	OnboardedAt time.Time // payment_accounts.onboarded_at
}
