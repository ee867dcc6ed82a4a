package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritix/booking/internal/model"
)

func pendingTemp(id string, expiresAt time.Time) *model.TempBooking {
	return &model.TempBooking{
		ID:      id,
		EventID: 1,
		Owner:   "u1",
		Tickets: []model.Ticket{
			{SeatID: "A1", Category: "A", Quantity: 1, PriceCents: 100},
		},
		TotalAmountCents: 100,
		Status:           model.TempPending,
		CreatedAt:        expiresAt.Add(-10 * time.Minute),
		ExpiresAt:        expiresAt,
	}
}

func TestMemoryTempBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tb := pendingTemp("t1", now.Add(10*time.Minute))
	require.NoError(t, s.CreateTempBooking(ctx, tb))
	assert.ErrorIs(t, s.CreateTempBooking(ctx, tb), model.ErrConflict)

	got, err := s.GetTempBooking(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TempPending, got.Status)
	assert.Equal(t, uint32(100), got.TotalAmountCents)

	// mutating the returned copy must not leak into the store
	got.Tickets[0].PriceCents = 999
	again, err := s.GetTempBooking(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint32(100), again.Tickets[0].PriceCents)

	_, err = s.GetTempBooking(ctx, "absent")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryTransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateTempBooking(ctx, pendingTemp("t1", now)))

	require.NoError(t, s.TransitionTempBooking(ctx, "t1", model.TempPending, model.TempCancelled))
	// only one caller wins the PENDING record
	assert.ErrorIs(t, s.TransitionTempBooking(ctx, "t1", model.TempPending, model.TempConverted), model.ErrConflict)
	assert.ErrorIs(t, s.TransitionTempBooking(ctx, "missing", model.TempPending, model.TempExpired), model.ErrNotFound)
}

func TestMemoryListExpiredPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateTempBooking(ctx, pendingTemp("past", now.Add(-time.Minute))))
	require.NoError(t, s.CreateTempBooking(ctx, pendingTemp("future", now.Add(time.Minute))))
	cancelled := pendingTemp("cancelled", now.Add(-time.Hour))
	require.NoError(t, s.CreateTempBooking(ctx, cancelled))
	require.NoError(t, s.TransitionTempBooking(ctx, "cancelled", model.TempPending, model.TempCancelled))

	expired, err := s.ListExpiredPending(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "past", expired[0].ID)
}

func TestMemoryBookings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b := &model.Booking{
		Reference:        "BK-1",
		Owner:            "u1",
		EventID:          1,
		Tickets:          []model.Ticket{{SeatID: "A1", Category: "A", Quantity: 1, PriceCents: 100}},
		TotalAmountCents: 100,
		PaymentRef:       "pay_1",
		PaymentStatus:    model.PaymentPaid,
		Status:           model.BookingConfirmed,
		CreatedAt:        created,
	}
	require.NoError(t, s.CreateBooking(ctx, b))
	require.NoError(t, s.CreateBooking(ctx, &model.Booking{
		Reference: "BK-2", Owner: "u2", EventID: 1,
		Status: model.BookingConfirmed, CreatedAt: created.Add(time.Minute),
	}))

	got, err := s.GetBookingByReference(ctx, "BK-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	mine, err := s.ListBookingsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "BK-1", mine[0].Reference)

	all, err := s.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.TransitionBooking(ctx, "BK-1", model.BookingConfirmed, model.BookingCancelled))
	assert.ErrorIs(t, s.TransitionBooking(ctx, "BK-1", model.BookingConfirmed, model.BookingCancelled), model.ErrConflict)
}
