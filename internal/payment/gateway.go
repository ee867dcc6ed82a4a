// Package payment is the thin bridge to the external payment gateway.
// The core only consumes two capabilities: creating an order for the
// snapshotted amount and verifying a completed payment's signature.
// Both are treated as slow, unreliable network calls.
package payment

import "context"

// Reference identifies a completed payment as reported by the client:
// the gateway order it settles, the gateway's payment id and the
// signature over both.
type Reference struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Gateway is the contract consumed by the booking commit engine.
//
// CreateOrder registers an order for the given amount and returns the
// gateway's order id.  VerifyPayment checks that the reference is a
// genuine, settled payment for its order; it returns
// model.ErrPaymentVerification on mismatch or gateway rejection.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents uint32, currency, receipt string) (string, error)
	VerifyPayment(ctx context.Context, ref Reference) error
}
