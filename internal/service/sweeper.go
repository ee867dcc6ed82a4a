package service

import (
	"context"
	"log"
	"time"

	"github.com/heritix/booking/internal/model"
)

// Sweeper is the background process reclaiming expired holds, locks and
// temp bookings.  It runs on a fixed interval independent of request
// traffic; the manual cleanup endpoint calls RunOnce with identical
// semantics.
type Sweeper struct {
	svc      *BookingService
	interval time.Duration
}

// NewSweeper builds a sweeper over the booking service.  Intervals of
// zero or less fall back to one minute.
func NewSweeper(svc *BookingService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run loops until the context is cancelled.  Errors from a sweep are
// logged and retried on the next tick; they never terminate the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, freed, err := s.RunOnce(ctx)
			if err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
				continue
			}
			if expired > 0 || freed > 0 {
				log.Printf("sweeper: expired %d temp bookings, freed %d seats", expired, freed)
			}
		}
	}
}

// RunOnce performs a single sweep: every lapsed PENDING temp booking is
// marked EXPIRED and its claims released, then orphaned expired seat
// claims are force-collapsed.  Safe to run concurrently with requests
// and idempotent across repeated runs.  Returns the number of temp
// bookings expired and seats freed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, int, error) {
	now := s.svc.now()
	stale, err := s.svc.store.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	expired := 0
	for _, tb := range stale {
		if err := s.svc.store.TransitionTempBooking(ctx, tb.ID, model.TempPending, model.TempExpired); err != nil {
			// converted or cancelled since we listed it; nothing to do
			continue
		}
		s.svc.releaseClaims(tb)
		expired++
	}
	freed := s.svc.inv.ReapExpired()
	return expired, freed, nil
}
