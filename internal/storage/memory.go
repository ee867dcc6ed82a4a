package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heritix/booking/internal/model"
)

// MemoryStore keeps the ledger in mutex-guarded maps.  All values are
// copied on the way in and out so callers can never mutate stored state
// behind the lock's back.
type MemoryStore struct {
	mu           sync.RWMutex
	tempBookings map[string]*model.TempBooking
	bookings     map[string]*model.Booking
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tempBookings: make(map[string]*model.TempBooking),
		bookings:     make(map[string]*model.Booking),
	}
}

func copyTemp(tb *model.TempBooking) *model.TempBooking {
	cp := *tb
	cp.Tickets = append([]model.Ticket(nil), tb.Tickets...)
	return &cp
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.Tickets = append([]model.Ticket(nil), b.Tickets...)
	return &cp
}

func (s *MemoryStore) CreateTempBooking(_ context.Context, tb *model.TempBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tempBookings[tb.ID]; exists {
		return model.ErrConflict
	}
	s.tempBookings[tb.ID] = copyTemp(tb)
	return nil
}

func (s *MemoryStore) GetTempBooking(_ context.Context, id string) (*model.TempBooking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.tempBookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyTemp(tb), nil
}

func (s *MemoryStore) TransitionTempBooking(_ context.Context, id, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.tempBookings[id]
	if !ok {
		return model.ErrNotFound
	}
	if tb.Status != from {
		return model.ErrConflict
	}
	tb.Status = to
	return nil
}

func (s *MemoryStore) SetTempBookingOrder(_ context.Context, id, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.tempBookings[id]
	if !ok {
		return model.ErrNotFound
	}
	tb.PaymentOrderID = orderID
	return nil
}

func (s *MemoryStore) SetTempBookingReconcileNote(_ context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.tempBookings[id]
	if !ok {
		return model.ErrNotFound
	}
	tb.ReconcileNote = note
	return nil
}

func (s *MemoryStore) ListExpiredPending(_ context.Context, now time.Time) ([]*model.TempBooking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.TempBooking
	for _, tb := range s.tempBookings {
		if tb.Status == model.TempPending && !tb.ExpiresAt.After(now) {
			out = append(out, copyTemp(tb))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (s *MemoryStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.Reference]; exists {
		return model.ErrConflict
	}
	s.bookings[b.Reference] = copyBooking(b)
	return nil
}

func (s *MemoryStore) GetBookingByReference(_ context.Context, ref string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[ref]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *MemoryStore) ListBookingsByOwner(_ context.Context, owner string) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Booking
	for _, b := range s.bookings {
		if b.Owner == owner {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListBookings(_ context.Context) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TransitionBooking(_ context.Context, ref, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[ref]
	if !ok {
		return model.ErrNotFound
	}
	if b.Status != from {
		return model.ErrConflict
	}
	b.Status = to
	return nil
}
