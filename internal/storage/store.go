// Package storage persists temp bookings and permanent bookings.  The
// Store interface has two implementations: an in-memory store used by
// tests and as a no-database fallback, and a MySQL store for
// production.  Seat state itself is never stored here; the inventory
// engine is the single authority for it.
package storage

import (
	"context"
	"time"

	"github.com/heritix/booking/internal/model"
)

// Store is the persistence contract for the temporary booking ledger
// and the permanent booking collection.
//
// Status transitions go through TransitionTempBooking/TransitionBooking
// which compare-and-set against an expected current status.  That is
// what lets convert, cancel and the sweeper race safely: only one of
// them wins the PENDING record, the others observe ErrConflict.
type Store interface {
	CreateTempBooking(ctx context.Context, tb *model.TempBooking) error
	// GetTempBooking returns the stored record or ErrNotFound.  Lazy
	// expiry is the service's job, not the store's.
	GetTempBooking(ctx context.Context, id string) (*model.TempBooking, error)
	// TransitionTempBooking moves a temp booking from one status to
	// another.  ErrNotFound when the record is missing, ErrConflict
	// when its current status is not `from`.
	TransitionTempBooking(ctx context.Context, id, from, to string) error
	SetTempBookingOrder(ctx context.Context, id, orderID string) error
	// SetTempBookingReconcileNote flags a verified payment that could
	// not be committed; operators query these for manual reconciliation.
	SetTempBookingReconcileNote(ctx context.Context, id, note string) error
	// ListExpiredPending returns every PENDING temp booking whose
	// expires_at is at or before now, for the sweeper.
	ListExpiredPending(ctx context.Context, now time.Time) ([]*model.TempBooking, error)

	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error)
	ListBookingsByOwner(ctx context.Context, owner string) ([]*model.Booking, error)
	ListBookings(ctx context.Context) ([]*model.Booking, error)
	TransitionBooking(ctx context.Context, ref, from, to string) error
}
