// Package service wires the inventory engine, the ledger store and the
// payment bridge into the booking workflows: temp-booking creation,
// cancellation, payment-gated conversion into permanent bookings, and
// the expiry sweeper.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heritix/booking/internal/inventory"
	"github.com/heritix/booking/internal/model"
	"github.com/heritix/booking/internal/payment"
	"github.com/heritix/booking/internal/queue"
	"github.com/heritix/booking/internal/storage"
)

// Notifier publishes a confirmation event.  Failures are logged and
// ignored; they never roll back a committed booking.
type Notifier func(ctx context.Context, ev queue.BookingConfirmedEvent) error

// BookingService owns the temp-booking lifecycle and the commit engine.
type BookingService struct {
	inv      *inventory.Inventory
	store    storage.Store
	gateway  payment.Gateway
	notify   Notifier
	now      func() time.Time
	currency string
}

// Option configures a BookingService.
type Option func(*BookingService)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier replaces the default RabbitMQ publisher.
func WithNotifier(n Notifier) Option {
	return func(s *BookingService) { s.notify = n }
}

// WithCurrency sets the gateway currency (default INR).
func WithCurrency(c string) Option {
	return func(s *BookingService) {
		if c != "" {
			s.currency = c
		}
	}
}

// NewBookingService wires the service together.
func NewBookingService(inv *inventory.Inventory, store storage.Store, gateway payment.Gateway, opts ...Option) *BookingService {
	s := &BookingService{
		inv:      inv,
		store:    store,
		gateway:  gateway,
		notify:   queue.PublishBookingConfirmed,
		now:      func() time.Time { return time.Now().UTC() },
		currency: "INR",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTempBookingInput describes a checkout start.  Exactly one of
// SeatIDs (seated product) or Quantities (quantity product) must be
// set.
type CreateTempBookingInput struct {
	EventID    uint64
	SeatIDs    []string
	Quantities map[string]uint32
	Owner      string
	TTL        time.Duration
}

// CreateTempBooking locks the requested seats (or reserves quantity),
// snapshots prices at this instant and persists a PENDING record whose
// expiry matches the seat locks exactly.  If persistence fails the
// claims are rolled back so no orphaned lock survives.
func (s *BookingService) CreateTempBooking(ctx context.Context, in CreateTempBookingInput) (*model.TempBooking, error) {
	if in.Owner == "" {
		return nil, model.ErrUnauthorized
	}
	seated := len(in.SeatIDs) > 0
	if seated == (len(in.Quantities) > 0) {
		return nil, fmt.Errorf("exactly one of seat ids or quantities must be given: %w", model.ErrConflict)
	}

	now := s.now()
	var (
		tickets   []model.Ticket
		expiresAt time.Time
		err       error
	)
	if seated {
		tickets, expiresAt, err = s.inv.LockSeats(in.EventID, in.SeatIDs, in.Owner, in.TTL)
	} else {
		tickets, err = s.inv.ReserveQuantity(in.EventID, in.Quantities)
		expiresAt = now.Add(in.TTL)
	}
	if err != nil {
		return nil, err
	}

	var total uint32
	for _, tk := range tickets {
		total += tk.PriceCents * tk.Quantity
	}
	tb := &model.TempBooking{
		ID:               uuid.NewString(),
		EventID:          in.EventID,
		Owner:            in.Owner,
		Tickets:          tickets,
		TotalAmountCents: total,
		Status:           model.TempPending,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
	}
	if err := s.store.CreateTempBooking(ctx, tb); err != nil {
		s.releaseClaims(tb)
		return nil, err
	}
	return tb, nil
}

// GetTempBooking returns the record, applying lazy expiry: a PENDING
// record past its expires_at is transitioned to EXPIRED and its claims
// released before it is returned, without waiting for the sweeper.
func (s *BookingService) GetTempBooking(ctx context.Context, id string) (*model.TempBooking, error) {
	tb, err := s.store.GetTempBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if tb.Status == model.TempPending && !tb.ExpiresAt.After(s.now()) {
		s.expire(ctx, tb)
		tb.Status = model.TempExpired
	}
	return tb, nil
}

// CancelTempBooking releases the claims and marks the record CANCELLED.
// Only the owner or an administrative caller may cancel.  Cancelling an
// already-terminal record is a no-op, not an error.
func (s *BookingService) CancelTempBooking(ctx context.Context, id, caller string, admin bool) error {
	tb, err := s.store.GetTempBooking(ctx, id)
	if err != nil {
		return err
	}
	if !admin && tb.Owner != caller {
		return model.ErrUnauthorized
	}
	if tb.Terminal() {
		return nil
	}
	if err := s.store.TransitionTempBooking(ctx, id, model.TempPending, model.TempCancelled); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil // lost the race to convert/expire; end state is terminal either way
		}
		return err
	}
	s.releaseClaims(tb)
	return nil
}

// CreateOrder registers a payment-gateway order for the temp booking's
// snapshotted amount.  Repeated calls return the order already created.
func (s *BookingService) CreateOrder(ctx context.Context, id, caller string, admin bool) (string, error) {
	tb, err := s.store.GetTempBooking(ctx, id)
	if err != nil {
		return "", err
	}
	if !admin && tb.Owner != caller {
		return "", model.ErrUnauthorized
	}
	if tb.Terminal() {
		return "", model.ErrGone
	}
	if !tb.ExpiresAt.After(s.now()) {
		s.expire(ctx, tb)
		return "", model.ErrGone
	}
	if tb.PaymentOrderID != "" {
		return tb.PaymentOrderID, nil
	}
	orderID, err := s.gateway.CreateOrder(ctx, tb.TotalAmountCents, s.currency, tb.ID)
	if err != nil {
		return "", err
	}
	if err := s.store.SetTempBookingOrder(ctx, id, orderID); err != nil {
		return "", err
	}
	return orderID, nil
}

// ConvertTempToRealBooking verifies the payment and atomically promotes
// the claimed seats to BOOKED, creates the permanent booking and marks
// the temp booking CONVERTED.
//
// Conversion after expiry always fails with ErrGone even when the
// payment is genuine, because the seats may already belong to someone
// else.  If seat promotion fails after a successful verification the
// temp booking stays non-converted, the payment is flagged for manual
// reconciliation and ErrSeatNoLongerHeld is returned: the system never
// books fewer seats than it billed.
func (s *BookingService) ConvertTempToRealBooking(ctx context.Context, id, caller string, admin bool, ref payment.Reference) (*model.Booking, error) {
	tb, err := s.store.GetTempBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && tb.Owner != caller {
		return nil, model.ErrUnauthorized
	}
	if tb.Terminal() {
		return nil, model.ErrGone
	}
	if !tb.ExpiresAt.After(s.now()) {
		s.expire(ctx, tb)
		return nil, model.ErrGone
	}
	if tb.PaymentOrderID != "" && ref.OrderID != tb.PaymentOrderID {
		return nil, fmt.Errorf("payment order %s does not belong to this booking: %w", ref.OrderID, model.ErrPaymentVerification)
	}
	if err := s.gateway.VerifyPayment(ctx, ref); err != nil {
		if errors.Is(err, model.ErrPaymentVerification) {
			return nil, err
		}
		return nil, fmt.Errorf("gateway rejected payment: %w", model.ErrPaymentVerification)
	}

	// Win the PENDING record before touching seats so a concurrent
	// cancel or sweep cannot interleave between verification and
	// promotion.
	if err := s.store.TransitionTempBooking(ctx, id, model.TempPending, model.TempConverted); err != nil {
		if errors.Is(err, model.ErrConflict) {
			// A cancel or sweep took the record after the payment was
			// already verified.  The payment must not vanish with it:
			// flag it for manual reconciliation and surface the
			// failure instead of a plain gone.
			note := fmt.Sprintf("payment %s verified for %d cents but the record was cancelled or expired before conversion", ref.PaymentID, tb.TotalAmountCents)
			if noteErr := s.store.SetTempBookingReconcileNote(ctx, id, note); noteErr != nil {
				log.Printf("booking: recording reconcile note for %s failed: %v", id, noteErr)
			}
			log.Printf("booking: manual reconciliation required for temp booking %s: %s", id, note)
			return nil, model.ErrSeatNoLongerHeld
		}
		return nil, err
	}

	if err := s.promoteClaims(tb); err != nil {
		// Roll the status back and flag the verified payment for
		// manual reconciliation; it must never be silently dropped.
		if rbErr := s.store.TransitionTempBooking(ctx, id, model.TempConverted, model.TempPending); rbErr != nil {
			log.Printf("booking: rollback of temp booking %s failed: %v", id, rbErr)
		}
		note := fmt.Sprintf("payment %s verified for %d cents but seat promotion failed: %v", ref.PaymentID, tb.TotalAmountCents, err)
		if noteErr := s.store.SetTempBookingReconcileNote(ctx, id, note); noteErr != nil {
			log.Printf("booking: recording reconcile note for %s failed: %v", id, noteErr)
		}
		log.Printf("booking: manual reconciliation required for temp booking %s: %s", id, note)
		return nil, model.ErrSeatNoLongerHeld
	}

	booking := &model.Booking{
		Reference:        newBookingReference(),
		Owner:            tb.Owner,
		EventID:          tb.EventID,
		Tickets:          tb.Tickets,
		TotalAmountCents: tb.TotalAmountCents,
		PaymentRef:       ref.PaymentID,
		PaymentStatus:    model.PaymentPaid,
		Status:           model.BookingConfirmed,
		CreatedAt:        s.now(),
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		note := fmt.Sprintf("seats booked and payment %s verified but booking record failed: %v", ref.PaymentID, err)
		if noteErr := s.store.SetTempBookingReconcileNote(ctx, id, note); noteErr != nil {
			log.Printf("booking: recording reconcile note for %s failed: %v", id, noteErr)
		}
		return nil, err
	}

	if s.notify != nil {
		ev := queue.BookingConfirmedEvent{
			BookingReference: booking.Reference,
			TempBookingID:    tb.ID,
			Owner:            booking.Owner,
			EventID:          booking.EventID,
			Tickets:          booking.Tickets,
			TotalAmountCents: booking.TotalAmountCents,
			PaymentRef:       booking.PaymentRef,
			ConfirmedAt:      booking.CreatedAt.Format(time.RFC3339),
		}
		if err := s.notify(ctx, ev); err != nil {
			log.Printf("booking: confirmation notify for %s failed: %v", booking.Reference, err)
		}
	}
	return booking, nil
}

// GetBooking returns a booking visible to the caller.  Non-admin
// callers only see their own bookings; anything else reads as missing,
// never as a hint that the reference exists.
func (s *BookingService) GetBooking(ctx context.Context, ref, caller string, admin bool) (*model.Booking, error) {
	b, err := s.store.GetBookingByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !admin && b.Owner != caller {
		return nil, model.ErrNotFound
	}
	return b, nil
}

// ListMyBookings returns the caller's bookings.
func (s *BookingService) ListMyBookings(ctx context.Context, owner string) ([]*model.Booking, error) {
	return s.store.ListBookingsByOwner(ctx, owner)
}

// ListAllBookings returns every booking; the handler restricts it to
// administrative callers.
func (s *BookingService) ListAllBookings(ctx context.Context) ([]*model.Booking, error) {
	return s.store.ListBookings(ctx)
}

// CancelBooking cancels a confirmed booking and frees its seats (or
// returns its sold quantity to the pool).  Idempotent: cancelling an
// already-cancelled booking is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, ref, caller string, admin bool) error {
	b, err := s.store.GetBookingByReference(ctx, ref)
	if err != nil {
		return err
	}
	if !admin && b.Owner != caller {
		return model.ErrUnauthorized
	}
	if err := s.store.TransitionBooking(ctx, ref, model.BookingConfirmed, model.BookingCancelled); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil
		}
		return err
	}
	seatIDs := seatIDsOf(b.Tickets)
	if len(seatIDs) > 0 {
		if err := s.inv.ReleaseBooked(b.EventID, seatIDs); err != nil {
			log.Printf("booking: releasing seats of cancelled booking %s failed: %v", ref, err)
		}
	}
	if q := quantitiesOf(b.Tickets); len(q) > 0 {
		if err := s.inv.ReleaseSoldQuantity(b.EventID, q); err != nil {
			log.Printf("booking: releasing quantity of cancelled booking %s failed: %v", ref, err)
		}
	}
	return nil
}

// expire marks a lapsed PENDING record EXPIRED and releases its claims.
// Used by the lazy read path; the sweeper goes through the same
// transition so the two can never disagree.
func (s *BookingService) expire(ctx context.Context, tb *model.TempBooking) {
	if err := s.store.TransitionTempBooking(ctx, tb.ID, model.TempPending, model.TempExpired); err != nil {
		return // somebody else already terminalised it
	}
	s.releaseClaims(tb)
}

// releaseClaims gives back whatever the temp booking reserved.  Seat
// release errors are logged, not surfaced: a seat that expired and was
// re-claimed by someone else is no longer ours to release.
func (s *BookingService) releaseClaims(tb *model.TempBooking) {
	if ids := tb.SeatIDs(); len(ids) > 0 {
		if err := s.inv.ReleaseSeats(tb.EventID, ids, tb.Owner); err != nil {
			log.Printf("booking: releasing seats of temp booking %s: %v", tb.ID, err)
		}
	}
	if q := tb.Quantities(); len(q) > 0 {
		if err := s.inv.ReleaseQuantity(tb.EventID, q); err != nil {
			log.Printf("booking: releasing quantity of temp booking %s: %v", tb.ID, err)
		}
	}
}

// promoteClaims finalises the temp booking's inventory: seats go to
// BOOKED with ownership re-checked, reserved quantity becomes sold.
func (s *BookingService) promoteClaims(tb *model.TempBooking) error {
	if ids := tb.SeatIDs(); len(ids) > 0 {
		if err := s.inv.BookSeats(tb.EventID, ids, tb.Owner); err != nil {
			return err
		}
	}
	if q := tb.Quantities(); len(q) > 0 {
		if err := s.inv.CommitQuantity(tb.EventID, q); err != nil {
			return err
		}
	}
	return nil
}

func seatIDsOf(tickets []model.Ticket) []string {
	var ids []string
	for _, tk := range tickets {
		if tk.SeatID != "" {
			ids = append(ids, tk.SeatID)
		}
	}
	return ids
}

func quantitiesOf(tickets []model.Ticket) map[string]uint32 {
	q := make(map[string]uint32)
	for _, tk := range tickets {
		if tk.SeatID == "" && tk.Quantity > 0 {
			q[tk.Category] += tk.Quantity
		}
	}
	return q
}

// newBookingReference generates the human-presentable unique booking
// reference, e.g. "BK-9F2C41A30B".
func newBookingReference() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "BK-" + raw[:10]
}
