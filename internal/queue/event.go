// Package queue integrates with RabbitMQ: it defines the payloads
// exchanged over the broker, a best-effort publisher and the background
// consumer that turns booking.confirmed events into notification log
// entries.
package queue

import "github.com/heritix/booking/internal/model"

// BookingQueueName is the durable queue carrying confirmation events.
const BookingQueueName = "booking.confirmed"

// BookingConfirmedEvent is published when a temp booking is converted
// into a permanent booking.  It carries enough information for
// downstream consumers (ticket email, analytics) without querying the
// primary store.  Delivery is best-effort: a publish failure never
// rolls back the committed booking.
type BookingConfirmedEvent struct {
	BookingReference string         `json:"booking_reference"`
	TempBookingID    string         `json:"temp_booking_id"`
	Owner            string         `json:"owner"`
	EventID          uint64         `json:"event_id"`
	Tickets          []model.Ticket `json:"tickets"`
	TotalAmountCents uint32         `json:"total_amount_cents"`
	PaymentRef       string         `json:"payment_ref"`
	ConfirmedAt      string         `json:"confirmed_at"`
}
