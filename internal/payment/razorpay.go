package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/heritix/booking/internal/model"
)

// RazorpayGateway implements Gateway against Razorpay.  Amounts are
// passed in the currency's smallest unit, which matches the cents the
// rest of the system uses.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

// NewRazorpayGateway builds a gateway from the key pair of a Razorpay
// account.  The secret is also used locally to verify payment
// signatures without a network round trip.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

func (g *RazorpayGateway) CreateOrder(_ context.Context, amountCents uint32, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order create: %w", err)
	}
	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("razorpay order create: missing order id in response")
	}
	return orderID, nil
}

func (g *RazorpayGateway) VerifyPayment(_ context.Context, ref Reference) error {
	params := map[string]interface{}{
		"razorpay_order_id":   ref.OrderID,
		"razorpay_payment_id": ref.PaymentID,
	}
	if !utils.VerifyPaymentSignature(params, ref.Signature, g.secret) {
		return model.ErrPaymentVerification
	}
	return nil
}
