package model

import "time"

// Seat states.  A seat moves AVAILABLE -> HELD -> LOCKED -> BOOKED; the
// first two claims carry an expiry and collapse back to AVAILABLE when
// it passes.  BOOKED is terminal and immune to expiry.
const (
	SeatAvailable = "AVAILABLE"
	SeatHeld      = "HELD"
	SeatLocked    = "LOCKED"
	SeatBooked    = "BOOKED"
)

// Seat is a single physical seat inside a category of an event layout.
// The identifier is stable for the lifetime of the layout and is built
// from the row label and seat number (e.g. "A1", "B12").
//
// Holder and ExpiresAt describe the current claim: Holder is empty and
// ExpiresAt zero when the seat is AVAILABLE or BOOKED.  At most one
// holder exists at a time.
type Seat struct {
	ID        string    `json:"id"`
	Row       string    `json:"row"`
	Number    uint32    `json:"number"`
	Category  string    `json:"category"`
	State     string    `json:"state"`
	Holder    string    `json:"holder,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Category groups an ordered run of seats under a common name and unit
// price.  Prices are stored in cents; updating a category price only
// affects claims taken after the update because temp bookings snapshot
// prices at lock time.
type Category struct {
	Name       string  `json:"name"`
	PriceCents uint32  `json:"price_cents"`
	Seats      []*Seat `json:"seats"`
}

// CategorySpec describes a category when creating a layout: the rows
// are generated as Rows x SeatsPerRow seats labelled from the given
// starting row letter onwards.
type CategorySpec struct {
	Name        string `json:"name"`
	PriceCents  uint32 `json:"price_cents"`
	Rows        uint32 `json:"rows"`
	SeatsPerRow uint32 `json:"seats_per_row"`
}

// CapacityCategory is the quantity-based counterpart of Category for
// non-seated products such as walking tours.  Reserved counts quantity
// claimed by pending temp bookings; Sold counts converted quantity.
type CapacityCategory struct {
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
	Total      uint32 `json:"total"`
	Reserved   uint32 `json:"reserved"`
	Sold       uint32 `json:"sold"`
}

// Layout is the full seat grid of one event as returned to clients.
// Seat states are live: claims whose expiry has passed are already
// reported as AVAILABLE.
type Layout struct {
	EventID    uint64      `json:"event_id"`
	Published  bool        `json:"published"`
	Categories []*Category `json:"categories"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CategoryAvailability summarises one category for the availability
// read path: how many seats can still be claimed versus taken.  For
// capacity events Available is the undrawn remainder of Total.
type CategoryAvailability struct {
	Category   string `json:"category"`
	PriceCents uint32 `json:"price_cents"`
	Total      uint32 `json:"total"`
	Available  uint32 `json:"available"`
	Held       uint32 `json:"held,omitempty"`
	Locked     uint32 `json:"locked,omitempty"`
	Booked     uint32 `json:"booked,omitempty"`
}
