// Package inventory implements the authoritative seat-state engine: the
// seat layout store, the hold/lock manager and the capacity counters for
// quantity-based products.  All multi-seat transitions run as a single
// atomic unit under a per-event mutex, so two concurrent claims on
// overlapping seat sets observe a total order and at most one wins any
// contested seat.
//
// Expiry is enforced twice: lazily, because every read and write
// consults the same claimExpired predicate and treats a lapsed claim as
// AVAILABLE, and actively by the sweeper through ReapExpired.
// Correctness never depends on the sweep alone.
package inventory

import (
	"sort"
	"sync"
	"time"

	"github.com/heritix/booking/internal/model"
)

// Inventory owns the live seat state of every event.  The outer RWMutex
// guards only the event map; each event carries its own mutex so claims
// on different events never contend.
type Inventory struct {
	mu     sync.RWMutex
	events map[uint64]*eventInventory
	now    func() time.Time
}

// eventInventory is the per-event critical section.  Exactly one of
// categories (seated layout) or capacities (quantity product) is
// populated.
type eventInventory struct {
	mu         sync.Mutex
	eventID    uint64
	published  bool
	createdAt  time.Time
	categories []*model.Category
	seats      map[string]*model.Seat
	capacities []*model.CapacityCategory
	capIndex   map[string]*model.CapacityCategory
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithClock overrides the time source; tests use it to step through
// hold expiries deterministically.
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) {
		if now != nil {
			inv.now = now
		}
	}
}

// New returns an empty Inventory.
func New(opts ...Option) *Inventory {
	inv := &Inventory{
		events: make(map[uint64]*eventInventory),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// claimExpired is the single expiry predicate shared by every read,
// every write and the sweeper.  BOOKED is terminal and never expires.
func claimExpired(s *model.Seat, now time.Time) bool {
	if s.State != model.SeatHeld && s.State != model.SeatLocked {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// collapse resets a seat whose claim has lapsed back to AVAILABLE.  It
// must only be called while holding the owning event's mutex.
func collapse(s *model.Seat, now time.Time) {
	if claimExpired(s, now) {
		s.State = model.SeatAvailable
		s.Holder = ""
		s.ExpiresAt = time.Time{}
	}
}

func (inv *Inventory) event(eventID uint64) (*eventInventory, error) {
	inv.mu.RLock()
	ev, ok := inv.events[eventID]
	inv.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	return ev, nil
}

// CreateLayout builds the seat grid for an event from category specs.
// Rows are labelled alphabetically across categories in order, so seat
// identifiers like "A1" are unique within the layout.  It fails with
// ErrConflict when the event already has a layout or capacity table.
func (inv *Inventory) CreateLayout(eventID uint64, specs []model.CategorySpec) (*model.Layout, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, exists := inv.events[eventID]; exists {
		return nil, model.ErrConflict
	}
	ev := &eventInventory{
		eventID:   eventID,
		createdAt: inv.now(),
		seats:     make(map[string]*model.Seat),
	}
	rowIdx := 0
	for _, spec := range specs {
		cat := &model.Category{Name: spec.Name, PriceCents: spec.PriceCents}
		for r := uint32(0); r < spec.Rows; r++ {
			row := rowLabel(rowIdx)
			rowIdx++
			for n := uint32(1); n <= spec.SeatsPerRow; n++ {
				seat := &model.Seat{
					ID:       seatID(row, n),
					Row:      row,
					Number:   n,
					Category: spec.Name,
					State:    model.SeatAvailable,
				}
				cat.Seats = append(cat.Seats, seat)
				ev.seats[seat.ID] = seat
			}
		}
		ev.categories = append(ev.categories, cat)
	}
	inv.events[eventID] = ev
	return ev.layoutView(inv.now()), nil
}

// CreateCapacity registers a quantity-based product (e.g. a walking
// tour) with per-category ticket counters instead of a seat grid.
func (inv *Inventory) CreateCapacity(eventID uint64, cats []model.CapacityCategory) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, exists := inv.events[eventID]; exists {
		return model.ErrConflict
	}
	ev := &eventInventory{
		eventID:   eventID,
		createdAt: inv.now(),
		capIndex:  make(map[string]*model.CapacityCategory),
	}
	for _, c := range cats {
		cc := &model.CapacityCategory{Name: c.Name, PriceCents: c.PriceCents, Total: c.Total}
		ev.capacities = append(ev.capacities, cc)
		ev.capIndex[cc.Name] = cc
	}
	inv.events[eventID] = ev
	return nil
}

// GetLayout returns the full layout with live seat states.  Claims whose
// expiry has passed are reported as AVAILABLE without mutating stored
// state; the sweeper or the next write collapses them for real.
func (inv *Inventory) GetLayout(eventID uint64) (*model.Layout, error) {
	ev, err := inv.event(eventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.seats == nil {
		return nil, model.ErrNotFound
	}
	return ev.layoutView(inv.now()), nil
}

// layoutView copies the layout applying lazy expiry.  Caller holds ev.mu.
func (ev *eventInventory) layoutView(now time.Time) *model.Layout {
	out := &model.Layout{
		EventID:   ev.eventID,
		Published: ev.published,
		CreatedAt: ev.createdAt,
	}
	for _, cat := range ev.categories {
		cc := &model.Category{Name: cat.Name, PriceCents: cat.PriceCents}
		for _, s := range cat.Seats {
			cp := *s
			if claimExpired(s, now) {
				cp.State = model.SeatAvailable
				cp.Holder = ""
				cp.ExpiresAt = time.Time{}
			}
			cc.Seats = append(cc.Seats, &cp)
		}
		out.Categories = append(out.Categories, cc)
	}
	return out
}

// Publish marks the event sellable.  Availability returns empty until
// the layout is published.
func (inv *Inventory) Publish(eventID uint64) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.published = true
	return nil
}

// Delete removes an event's layout or capacity table.  It refuses with
// ErrConflict while any seat is held, locked or booked, or while any
// capacity is reserved or sold, so no booking is ever orphaned.
func (inv *Inventory) Delete(eventID uint64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	ev, ok := inv.events[eventID]
	if !ok {
		return model.ErrNotFound
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	now := inv.now()
	for _, s := range ev.seats {
		if s.State == model.SeatBooked {
			return model.ErrConflict
		}
		if (s.State == model.SeatHeld || s.State == model.SeatLocked) && !claimExpired(s, now) {
			return model.ErrConflict
		}
	}
	for _, c := range ev.capacities {
		if c.Reserved > 0 || c.Sold > 0 {
			return model.ErrConflict
		}
	}
	delete(inv.events, eventID)
	return nil
}

// UpdateCategoryPrice changes the unit price for future claims only.
// Pending temp bookings keep the price snapshotted when their seats
// were locked.
func (inv *Inventory) UpdateCategoryPrice(eventID uint64, category string, priceCents uint32) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, cat := range ev.categories {
		if cat.Name == category {
			cat.PriceCents = priceCents
			return nil
		}
	}
	if cc, ok := ev.capIndex[category]; ok {
		cc.PriceCents = priceCents
		return nil
	}
	return model.ErrNotFound
}

// Availability produces per-category counts of available versus taken
// seats (or remaining quantity for capacity events).  The read applies
// lazy expiry without mutating state, and returns an empty slice for
// unpublished events.
func (inv *Inventory) Availability(eventID uint64) ([]model.CategoryAvailability, error) {
	ev, err := inv.event(eventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := []model.CategoryAvailability{}
	if !ev.published {
		return out, nil
	}
	now := inv.now()
	for _, cat := range ev.categories {
		av := model.CategoryAvailability{Category: cat.Name, PriceCents: cat.PriceCents, Total: uint32(len(cat.Seats))}
		for _, s := range cat.Seats {
			state := s.State
			if claimExpired(s, now) {
				state = model.SeatAvailable
			}
			switch state {
			case model.SeatAvailable:
				av.Available++
			case model.SeatHeld:
				av.Held++
			case model.SeatLocked:
				av.Locked++
			case model.SeatBooked:
				av.Booked++
			}
		}
		out = append(out, av)
	}
	for _, c := range ev.capacities {
		out = append(out, model.CategoryAvailability{
			Category:   c.Name,
			PriceCents: c.PriceCents,
			Total:      c.Total,
			Available:  c.Total - c.Reserved - c.Sold,
		})
	}
	return out, nil
}

// HoldSeats atomically transitions the listed seats to HELD for the
// holder.  The operation is all-or-nothing: if any seat is claimed by
// someone else it fails with ErrSeatUnavailable and nothing changes.
// Re-requesting seats the holder already claims refreshes the expiry
// instead of failing.
func (inv *Inventory) HoldSeats(eventID uint64, seatIDs []string, holder string, ttl time.Duration) (time.Time, error) {
	return inv.claim(eventID, seatIDs, holder, ttl, model.SeatHeld)
}

// LockSeats is the stronger pre-payment claim.  A seat already HELD by
// the same holder is promoted to LOCKED; a claim by anyone else fails
// the whole request.  The priced tickets are built in the same critical
// section as the claim, so the snapshot is exactly the price in effect
// at lock time even when a price update races the call.
func (inv *Inventory) LockSeats(eventID uint64, seatIDs []string, holder string, ttl time.Duration) ([]model.Ticket, time.Time, error) {
	ev, err := inv.event(eventID)
	if err != nil {
		return nil, time.Time{}, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	seats, expiresAt, err := ev.claimLocked(inv.now(), seatIDs, holder, ttl, model.SeatLocked)
	if err != nil {
		return nil, time.Time{}, err
	}
	tickets := make([]model.Ticket, 0, len(seats))
	for _, s := range seats {
		tickets = append(tickets, model.Ticket{
			SeatID:     s.ID,
			Category:   s.Category,
			Quantity:   1,
			PriceCents: ev.priceOf(s.Category),
		})
	}
	return tickets, expiresAt, nil
}

func (ev *eventInventory) priceOf(category string) uint32 {
	for _, cat := range ev.categories {
		if cat.Name == category {
			return cat.PriceCents
		}
	}
	return 0
}

// claim implements the two-phase hold/lock transition for HoldSeats:
// validate every seat under the event mutex, then commit every
// transition, or commit nothing at all.
func (inv *Inventory) claim(eventID uint64, seatIDs []string, holder string, ttl time.Duration, target string) (time.Time, error) {
	ev, err := inv.event(eventID)
	if err != nil {
		return time.Time{}, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	_, expiresAt, err := ev.claimLocked(inv.now(), seatIDs, holder, ttl, target)
	return expiresAt, err
}

// claimLocked does the validate-then-commit work and returns the
// claimed seats.  ev.mu must be held by the caller.
func (ev *eventInventory) claimLocked(now time.Time, seatIDs []string, holder string, ttl time.Duration, target string) ([]*model.Seat, time.Time, error) {
	if !ev.published || ev.seats == nil {
		return nil, time.Time{}, model.ErrNotFound
	}
	seats := make([]*model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		s, ok := ev.seats[id]
		if !ok {
			return nil, time.Time{}, model.ErrNotFound
		}
		collapse(s, now)
		switch s.State {
		case model.SeatAvailable:
			// free to claim
		case model.SeatHeld, model.SeatLocked:
			if s.Holder != holder {
				return nil, time.Time{}, model.ErrSeatUnavailable
			}
			// holding seats may only be promoted, never demoted:
			// a hold request on an already locked seat refreshes
			// the lock instead of weakening it.
		default: // BOOKED is terminal
			return nil, time.Time{}, model.ErrSeatUnavailable
		}
		seats = append(seats, s)
	}
	expiresAt := now.Add(ttl)
	for _, s := range seats {
		if !(target == model.SeatHeld && s.State == model.SeatLocked) {
			s.State = target
		}
		s.Holder = holder
		s.ExpiresAt = expiresAt
	}
	return seats, expiresAt, nil
}

// ReleaseSeats returns the listed seats to AVAILABLE when they are
// claimed by the holder.  Already-available seats are a no-op, booked
// seats are untouched, and a live claim by a different actor fails the
// whole request with ErrUnauthorized.
func (inv *Inventory) ReleaseSeats(eventID uint64, seatIDs []string, holder string) error {
	return inv.release(eventID, seatIDs, holder, false)
}

// UnlockSeats is the symmetric release for LOCKED seats only; seats the
// holder merely holds are left untouched.
func (inv *Inventory) UnlockSeats(eventID uint64, seatIDs []string, holder string) error {
	return inv.release(eventID, seatIDs, holder, true)
}

func (inv *Inventory) release(eventID uint64, seatIDs []string, holder string, lockedOnly bool) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	now := inv.now()
	toRelease := make([]*model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		s, ok := ev.seats[id]
		if !ok {
			return model.ErrNotFound
		}
		collapse(s, now)
		switch s.State {
		case model.SeatAvailable, model.SeatBooked:
			// idempotent no-op
		case model.SeatHeld:
			if s.Holder != holder {
				return model.ErrUnauthorized
			}
			if !lockedOnly {
				toRelease = append(toRelease, s)
			}
		case model.SeatLocked:
			if s.Holder != holder {
				return model.ErrUnauthorized
			}
			toRelease = append(toRelease, s)
		}
	}
	for _, s := range toRelease {
		s.State = model.SeatAvailable
		s.Holder = ""
		s.ExpiresAt = time.Time{}
	}
	return nil
}

// BookSeats promotes the holder's live claims to BOOKED.  It is the
// commit engine's hook and re-checks ownership: any seat no longer
// claimed by the holder (released, re-claimed by someone else, or
// lapsed) fails the whole promotion with ErrSeatNoLongerHeld and no
// seat changes state.
func (inv *Inventory) BookSeats(eventID uint64, seatIDs []string, holder string) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	now := inv.now()
	seats := make([]*model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		s, ok := ev.seats[id]
		if !ok {
			return model.ErrNotFound
		}
		if claimExpired(s, now) {
			collapse(s, now)
			return model.ErrSeatNoLongerHeld
		}
		if (s.State != model.SeatHeld && s.State != model.SeatLocked) || s.Holder != holder {
			return model.ErrSeatNoLongerHeld
		}
		seats = append(seats, s)
	}
	for _, s := range seats {
		s.State = model.SeatBooked
		s.ExpiresAt = time.Time{}
	}
	return nil
}

// ReleaseBooked frees the seats of a cancelled booking.  Only BOOKED
// seats transition; anything else is a no-op so the call is idempotent.
func (inv *Inventory) ReleaseBooked(eventID uint64, seatIDs []string) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, id := range seatIDs {
		s, ok := ev.seats[id]
		if !ok {
			continue
		}
		if s.State == model.SeatBooked {
			s.State = model.SeatAvailable
			s.Holder = ""
			s.ExpiresAt = time.Time{}
		}
	}
	return nil
}

// ReserveQuantity decrements the remaining capacity of a quantity-based
// product for a pending temp booking.  All categories are checked
// before any counter moves, so an overdraw fails with
// ErrCapacityExceeded and changes nothing.  Capacity is reserved at
// temp-booking creation and given back on cancel or expiry.
func (inv *Inventory) ReserveQuantity(eventID uint64, quantities map[string]uint32) ([]model.Ticket, error) {
	ev, err := inv.event(eventID)
	if err != nil {
		return nil, err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if !ev.published || ev.capIndex == nil {
		return nil, model.ErrNotFound
	}
	names := make([]string, 0, len(quantities))
	for name := range quantities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cc, ok := ev.capIndex[name]
		if !ok {
			return nil, model.ErrNotFound
		}
		if cc.Total-cc.Reserved-cc.Sold < quantities[name] {
			return nil, model.ErrCapacityExceeded
		}
	}
	tickets := make([]model.Ticket, 0, len(names))
	for _, name := range names {
		cc := ev.capIndex[name]
		cc.Reserved += quantities[name]
		tickets = append(tickets, model.Ticket{
			Category:   name,
			Quantity:   quantities[name],
			PriceCents: cc.PriceCents,
		})
	}
	return tickets, nil
}

// CommitQuantity moves reserved quantity to sold when a temp booking
// converts.
func (inv *Inventory) CommitQuantity(eventID uint64, quantities map[string]uint32) error {
	return inv.adjustQuantity(eventID, quantities, true)
}

// ReleaseQuantity returns reserved quantity to the pool when a temp
// booking is cancelled or expires.
func (inv *Inventory) ReleaseQuantity(eventID uint64, quantities map[string]uint32) error {
	return inv.adjustQuantity(eventID, quantities, false)
}

// ReleaseSoldQuantity returns sold quantity to the pool when a
// confirmed quantity-based booking is cancelled.  Clamped, so repeated
// cancellation of the same booking cannot over-credit the pool.
func (inv *Inventory) ReleaseSoldQuantity(eventID uint64, quantities map[string]uint32) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for name, q := range quantities {
		cc, ok := ev.capIndex[name]
		if !ok {
			return model.ErrNotFound
		}
		if q > cc.Sold {
			q = cc.Sold
		}
		cc.Sold -= q
	}
	return nil
}

func (inv *Inventory) adjustQuantity(eventID uint64, quantities map[string]uint32, sell bool) error {
	ev, err := inv.event(eventID)
	if err != nil {
		return err
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for name, q := range quantities {
		cc, ok := ev.capIndex[name]
		if !ok {
			return model.ErrNotFound
		}
		if q > cc.Reserved {
			q = cc.Reserved // re-sweeps of an already released reservation are a no-op
		}
		cc.Reserved -= q
		if sell {
			cc.Sold += q
		}
	}
	return nil
}

// ReapExpired force-collapses every lapsed seat claim across all
// events.  The services keep claim expiries in lockstep with their temp
// booking's expires_at, so a lapsed claim never belongs to a still
// valid temp booking.  Safe to run concurrently with requests and
// idempotent across repeated runs.  Returns the number of seats freed.
func (inv *Inventory) ReapExpired() int {
	inv.mu.RLock()
	events := make([]*eventInventory, 0, len(inv.events))
	for _, ev := range inv.events {
		events = append(events, ev)
	}
	inv.mu.RUnlock()
	now := inv.now()
	freed := 0
	for _, ev := range events {
		ev.mu.Lock()
		for _, s := range ev.seats {
			if claimExpired(s, now) {
				collapse(s, now)
				freed++
			}
		}
		ev.mu.Unlock()
	}
	return freed
}
