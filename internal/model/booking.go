package model

import "time"

// Booking statuses and payment statuses.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"

	PaymentPaid = "PAID"
)

// Booking is the permanent record created by converting a verified
// temp booking.  It is immutable apart from cancellation: every seat it
// lists is BOOKED in the corresponding layout, and a seat belongs to at
// most one active booking.
type Booking struct {
	Reference        string    `json:"reference"`
	Owner            string    `json:"owner"`
	EventID          uint64    `json:"event_id"`
	Tickets          []Ticket  `json:"tickets"`
	TotalAmountCents uint32    `json:"total_amount_cents"`
	PaymentRef       string    `json:"payment_ref"`
	PaymentStatus    string    `json:"payment_status"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
