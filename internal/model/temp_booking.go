package model

import "time"

// Temp booking statuses.  PENDING is the only live state; the other
// three are terminal and never transition again.
const (
	TempPending   = "PENDING"
	TempConverted = "CONVERTED"
	TempCancelled = "CANCELLED"
	TempExpired   = "EXPIRED"
)

// Ticket is one line of a temp booking or permanent booking.  For a
// seated product SeatID identifies the claimed seat and Quantity is 1;
// for a quantity-based product SeatID is empty and Quantity carries the
// number of tickets in the category.  PriceCents is the unit price
// snapshotted when the claim was taken and is immune to later category
// price updates.
type Ticket struct {
	SeatID     string `json:"seat_id,omitempty"`
	Category   string `json:"category"`
	Quantity   uint32 `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
}

// TempBooking is the staging record for a checkout in progress.  It
// references seats by identifier only; seat ownership always lives in
// the event layout.  The record is created PENDING together with the
// seat locks (or capacity reservation) and either converts into a
// permanent Booking, is cancelled by its owner, or expires.
type TempBooking struct {
	ID               string    `json:"id"`
	EventID          uint64    `json:"event_id"`
	Owner            string    `json:"owner"`
	Tickets          []Ticket  `json:"tickets"`
	TotalAmountCents uint32    `json:"total_amount_cents"`
	Status           string    `json:"status"`
	PaymentOrderID   string    `json:"payment_order_id,omitempty"`
	// ReconcileNote is set when a verified payment could not be
	// committed (seat lock lapsed between verification and promotion)
	// and the amount must be refunded or re-booked manually.
	ReconcileNote string    `json:"reconcile_note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SeatIDs returns the seat identifiers referenced by the tickets,
// skipping quantity-based lines.
func (t *TempBooking) SeatIDs() []string {
	ids := make([]string, 0, len(t.Tickets))
	for _, tk := range t.Tickets {
		if tk.SeatID != "" {
			ids = append(ids, tk.SeatID)
		}
	}
	return ids
}

// Quantities returns the per-category quantity breakdown for
// quantity-based tickets.  The map is empty for seated products.
func (t *TempBooking) Quantities() map[string]uint32 {
	q := make(map[string]uint32)
	for _, tk := range t.Tickets {
		if tk.SeatID == "" && tk.Quantity > 0 {
			q[tk.Category] += tk.Quantity
		}
	}
	return q
}

// Terminal reports whether the temp booking has reached a final status.
func (t *TempBooking) Terminal() bool {
	return t.Status != TempPending
}
