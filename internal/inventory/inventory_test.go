package inventory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritix/booking/internal/model"
)

// fakeClock lets tests step time across hold expiries deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newSeatedEvent creates a published layout for event 1 with a single
// category "A" of one row with the given number of seats at 100 cents.
func newSeatedEvent(t *testing.T, clk *fakeClock, seatsPerRow uint32) *Inventory {
	t.Helper()
	inv := New(WithClock(clk.Now))
	_, err := inv.CreateLayout(1, []model.CategorySpec{
		{Name: "A", PriceCents: 100, Rows: 1, SeatsPerRow: seatsPerRow},
	})
	require.NoError(t, err)
	require.NoError(t, inv.Publish(1))
	return inv
}

func seatStates(t *testing.T, inv *Inventory, eventID uint64) map[string]string {
	t.Helper()
	layout, err := inv.GetLayout(eventID)
	require.NoError(t, err)
	states := make(map[string]string)
	for _, cat := range layout.Categories {
		for _, s := range cat.Seats {
			states[s.ID] = s.State
		}
	}
	return states
}

func TestCreateLayoutConflictAndDelete(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, err := inv.CreateLayout(1, nil)
	assert.ErrorIs(t, err, model.ErrConflict)

	// delete refused while a seat is held
	_, err = inv.HoldSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, inv.Delete(1), model.ErrConflict)

	// after release the layout can go
	require.NoError(t, inv.ReleaseSeats(1, []string{"A1"}, "u1"))
	require.NoError(t, inv.Delete(1))
	_, err = inv.GetLayout(1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAvailabilityEmptyBeforePublish(t *testing.T) {
	inv := New(WithClock(newFakeClock().Now))
	_, err := inv.CreateLayout(7, []model.CategorySpec{{Name: "A", PriceCents: 100, Rows: 2, SeatsPerRow: 5}})
	require.NoError(t, err)

	av, err := inv.Availability(7)
	require.NoError(t, err)
	assert.Empty(t, av)

	// unpublished events cannot be claimed either
	_, err = inv.HoldSeats(7, []string{"A1"}, "u1", time.Minute)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, inv.Publish(7))
	av, err = inv.Availability(7)
	require.NoError(t, err)
	require.Len(t, av, 1)
	assert.Equal(t, uint32(10), av[0].Available)
}

func TestHoldSeatsAllOrNothing(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 3)

	_, err := inv.HoldSeats(1, []string{"A2"}, "u1", 5*time.Minute)
	require.NoError(t, err)

	// u2 wants A1+A2; A2 is contested so nothing may change
	_, err = inv.HoldSeats(1, []string{"A1", "A2"}, "u2", 5*time.Minute)
	assert.ErrorIs(t, err, model.ErrSeatUnavailable)

	states := seatStates(t, inv, 1)
	assert.Equal(t, model.SeatAvailable, states["A1"])
	assert.Equal(t, model.SeatHeld, states["A2"])
}

func TestHoldRefreshIsReentrant(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	first, err := inv.HoldSeats(1, []string{"A1", "A2"}, "u1", 2*time.Minute)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	second, err := inv.HoldSeats(1, []string{"A1", "A2"}, "u1", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, second.After(first), "re-request must extend the hold")
}

func TestLockPromotionRules(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, err := inv.HoldSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)

	// a different actor cannot lock a held seat
	_, _, err = inv.LockSeats(1, []string{"A1"}, "u2", 5*time.Minute)
	assert.ErrorIs(t, err, model.ErrSeatUnavailable)

	// the owner promotes held -> locked, and locks plain available seats
	tickets, _, err := inv.LockSeats(1, []string{"A1", "A2"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, uint32(100), tickets[0].PriceCents)

	states := seatStates(t, inv, 1)
	assert.Equal(t, model.SeatLocked, states["A1"])
	assert.Equal(t, model.SeatLocked, states["A2"])

	// a hold request on an owned locked seat refreshes, never demotes
	_, err = inv.HoldSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.SeatLocked, seatStates(t, inv, 1)["A1"])
}

func TestExpiryLazyAndViaReap(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 1)

	ttl := time.Second
	_, err := inv.HoldSeats(1, []string{"A1"}, "u1", ttl)
	require.NoError(t, err)

	// just before expiry the claim is visible
	clk.Advance(ttl - time.Millisecond)
	av, err := inv.Availability(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), av[0].Available)
	assert.Equal(t, uint32(1), av[0].Held)

	// just after expiry the lazy read reports the seat available ...
	clk.Advance(2 * time.Millisecond)
	av, err = inv.Availability(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), av[0].Available)

	// ... and another user can claim it without waiting for the sweeper
	_, err = inv.HoldSeats(1, []string{"A1"}, "u2", ttl)
	require.NoError(t, err)

	// reap collapses what the lazy path has not touched, idempotently
	clk.Advance(2 * ttl)
	assert.Equal(t, 1, inv.ReapExpired())
	assert.Equal(t, 0, inv.ReapExpired())
	assert.Equal(t, model.SeatAvailable, seatStates(t, inv, 1)["A1"])
}

func TestReleaseOwnershipAndIdempotency(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, err := inv.HoldSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)

	// another actor cannot release u1's claim
	assert.ErrorIs(t, inv.ReleaseSeats(1, []string{"A1"}, "u2"), model.ErrUnauthorized)
	assert.Equal(t, model.SeatHeld, seatStates(t, inv, 1)["A1"])

	// owner release works and repeating it is a no-op
	require.NoError(t, inv.ReleaseSeats(1, []string{"A1"}, "u1"))
	require.NoError(t, inv.ReleaseSeats(1, []string{"A1"}, "u1"))
	assert.Equal(t, model.SeatAvailable, seatStates(t, inv, 1)["A1"])
}

func TestUnlockOnlyTouchesLockedSeats(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, err := inv.HoldSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	_, _, err = inv.LockSeats(1, []string{"A2"}, "u1", 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, inv.UnlockSeats(1, []string{"A1", "A2"}, "u1"))
	states := seatStates(t, inv, 1)
	assert.Equal(t, model.SeatHeld, states["A1"], "unlock must not touch a held seat")
	assert.Equal(t, model.SeatAvailable, states["A2"])
}

func TestBookSeatsIsTerminal(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, _, err := inv.LockSeats(1, []string{"A1", "A2"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, inv.BookSeats(1, []string{"A1", "A2"}, "u1"))

	// booked seats never expire and can never be claimed again
	clk.Advance(24 * time.Hour)
	assert.Equal(t, 0, inv.ReapExpired())
	_, err = inv.HoldSeats(1, []string{"A1"}, "u2", 5*time.Minute)
	assert.ErrorIs(t, err, model.ErrSeatUnavailable)

	// a release by the former holder is a no-op on booked seats
	require.NoError(t, inv.ReleaseSeats(1, []string{"A1"}, "u1"))
	assert.Equal(t, model.SeatBooked, seatStates(t, inv, 1)["A1"])
}

func TestBookSeatsFailsWhenClaimLapsed(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	_, _, err := inv.LockSeats(1, []string{"A1", "A2"}, "u1", time.Second)
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	err = inv.BookSeats(1, []string{"A1", "A2"}, "u1")
	assert.ErrorIs(t, err, model.ErrSeatNoLongerHeld)

	// nothing was promoted
	states := seatStates(t, inv, 1)
	assert.Equal(t, model.SeatAvailable, states["A1"])
	assert.Equal(t, model.SeatAvailable, states["A2"])
}

func TestPriceUpdateAffectsFutureLocksOnly(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 2)

	before, _, err := inv.LockSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), before[0].PriceCents)

	require.NoError(t, inv.UpdateCategoryPrice(1, "A", 250))

	after, _, err := inv.LockSeats(1, []string{"A2"}, "u2", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint32(250), after[0].PriceCents)
}

// TestLockPriceSnapshotInsideClaim pins the price snapshot to the
// claim's critical section.  The clock is only read inside that
// section, so a clock hook that fires a price update mid-lock proves
// the update cannot land between the claim and the ticket build: the
// updater blocks on the event mutex until the whole lock call is done.
func TestLockPriceSnapshotInsideClaim(t *testing.T) {
	var (
		inv     *Inventory
		armed   atomic.Bool
		updated sync.WaitGroup
	)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		if armed.CompareAndSwap(true, false) {
			updated.Add(1)
			go func() {
				defer updated.Done()
				assert.NoError(t, inv.UpdateCategoryPrice(1, "A", 999))
			}()
			// give the updater time to park on the event mutex
			time.Sleep(20 * time.Millisecond)
		}
		return base
	}
	inv = New(WithClock(clock))
	_, err := inv.CreateLayout(1, []model.CategorySpec{
		{Name: "A", PriceCents: 100, Rows: 1, SeatsPerRow: 2},
	})
	require.NoError(t, err)
	require.NoError(t, inv.Publish(1))

	armed.Store(true)
	tickets, _, err := inv.LockSeats(1, []string{"A1"}, "u1", 5*time.Minute)
	require.NoError(t, err)
	updated.Wait()

	// the racing update settled after the lock, not inside it
	require.Len(t, tickets, 1)
	assert.Equal(t, uint32(100), tickets[0].PriceCents)

	later, _, err := inv.LockSeats(1, []string{"A2"}, "u2", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint32(999), later[0].PriceCents)
}

func TestCapacityReserveCommitRelease(t *testing.T) {
	clk := newFakeClock()
	inv := New(WithClock(clk.Now))
	require.NoError(t, inv.CreateCapacity(9, []model.CapacityCategory{
		{Name: "ADULT", PriceCents: 500, Total: 10},
		{Name: "CHILD", PriceCents: 200, Total: 5},
	}))
	require.NoError(t, inv.Publish(9))

	tickets, err := inv.ReserveQuantity(9, map[string]uint32{"ADULT": 4, "CHILD": 2})
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	// overdraw fails without moving any counter
	_, err = inv.ReserveQuantity(9, map[string]uint32{"ADULT": 2, "CHILD": 4})
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
	av, err := inv.Availability(9)
	require.NoError(t, err)
	for _, a := range av {
		switch a.Category {
		case "ADULT":
			assert.Equal(t, uint32(6), a.Available)
		case "CHILD":
			assert.Equal(t, uint32(3), a.Available)
		}
	}

	require.NoError(t, inv.CommitQuantity(9, map[string]uint32{"ADULT": 4, "CHILD": 2}))
	// releasing after commit is a no-op, not a double-credit
	require.NoError(t, inv.ReleaseQuantity(9, map[string]uint32{"ADULT": 4, "CHILD": 2}))
	av, err = inv.Availability(9)
	require.NoError(t, err)
	for _, a := range av {
		if a.Category == "ADULT" {
			assert.Equal(t, uint32(6), a.Available)
		}
	}
}

// TestConcurrentHoldsSingleWinner drives many goroutines at overlapping
// seat sets and checks that every contested seat is granted exactly
// once and that losers leave no partial holds behind.
func TestConcurrentHoldsSingleWinner(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 10)

	const actors = 32
	var wg sync.WaitGroup
	winners := make(chan string, actors)
	for i := 0; i < actors; i++ {
		holder := fmt.Sprintf("u%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// everyone fights over the full row
			seats := []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "A10"}
			if _, err := inv.HoldSeats(1, seats, holder, 5*time.Minute); err == nil {
				winners <- holder
			}
		}()
	}
	wg.Wait()
	close(winners)

	var won []string
	for h := range winners {
		won = append(won, h)
	}
	require.Len(t, won, 1, "exactly one actor may win the contested set")

	states := seatStates(t, inv, 1)
	layout, err := inv.GetLayout(1)
	require.NoError(t, err)
	for _, cat := range layout.Categories {
		for _, s := range cat.Seats {
			assert.Equal(t, model.SeatHeld, states[s.ID])
			assert.Equal(t, won[0], s.Holder)
		}
	}
}

// TestConcurrentDisjointAndOverlapping mixes claims over partially
// overlapping pairs; the booked total can never exceed the seat count.
func TestConcurrentBookNeverExceedsCapacity(t *testing.T) {
	clk := newFakeClock()
	inv := newSeatedEvent(t, clk, 6)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		holder := fmt.Sprintf("u%d", i)
		a := fmt.Sprintf("A%d", i%6+1)
		b := fmt.Sprintf("A%d", (i+1)%6+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := inv.LockSeats(1, []string{a, b}, holder, 5*time.Minute); err != nil {
				return
			}
			_ = inv.BookSeats(1, []string{a, b}, holder)
		}()
	}
	wg.Wait()

	av, err := inv.Availability(1)
	require.NoError(t, err)
	require.Len(t, av, 1)
	assert.LessOrEqual(t, av[0].Booked, av[0].Total)
	assert.Equal(t, av[0].Total, av[0].Available+av[0].Held+av[0].Locked+av[0].Booked)
}

func TestRowLabels(t *testing.T) {
	assert.Equal(t, "A", rowLabel(0))
	assert.Equal(t, "Z", rowLabel(25))
	assert.Equal(t, "AA", rowLabel(26))
	assert.Equal(t, "A7", seatID("A", 7))
}
