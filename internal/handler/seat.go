package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/inventory"
	"github.com/heritix/booking/internal/middleware"
)

// SeatHandler covers the claim protocol: browse-time holds, checkout
// locks and their releases.  The holder identity comes from the request
// context (JWT subject or guest session token).
type SeatHandler struct {
	Inv     *inventory.Inventory
	HoldTTL time.Duration
	LockTTL time.Duration
}

// NewSeatHandler constructs a SeatHandler.  Inv must be non-nil.
func NewSeatHandler(inv *inventory.Inventory, holdTTL, lockTTL time.Duration) *SeatHandler {
	if inv == nil {
		panic("nil inventory passed to NewSeatHandler")
	}
	return &SeatHandler{Inv: inv, HoldTTL: holdTTL, LockTTL: lockTTL}
}

type seatRequest struct {
	SeatIDs []string `json:"seat_ids"`
}

func bindSeatIDs(c echo.Context) ([]string, bool) {
	var body seatRequest
	if err := c.Bind(&body); err != nil {
		return nil, false
	}
	ids := dedupeSeatIDs(body.SeatIDs)
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// Hold handles POST /v1/events/:id/hold.  All requested seats are held
// together or none are; a repeat hold by the same holder refreshes the
// expiry.  Returns 201 with the shared expiration timestamp.
func (h *SeatHandler) Hold(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ids, ok := bindSeatIDs(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	expiresAt, err := h.Inv.HoldSeats(id, ids, middleware.HolderID(c), h.HoldTTL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"seat_ids":   ids,
		"expires_at": expiresAt,
	})
}

// Lock handles POST /v1/events/:id/lock.  Locking promotes the caller's
// holds (or claims available seats directly) and snapshots prices; the
// returned tickets are what a temp booking created now would bill.
func (h *SeatHandler) Lock(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ids, ok := bindSeatIDs(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	tickets, expiresAt, err := h.Inv.LockSeats(id, ids, middleware.HolderID(c), h.LockTTL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"tickets":    tickets,
		"expires_at": expiresAt,
	})
}

// Release handles POST /v1/events/:id/release and frees the caller's
// holds or locks.  Releasing a seat that is already free is a no-op;
// releasing someone else's live claim is forbidden.
func (h *SeatHandler) Release(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ids, ok := bindSeatIDs(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	if err := h.Inv.ReleaseSeats(id, ids, middleware.HolderID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": ids})
}

// Unlock handles POST /v1/events/:id/unlock.  Like Release but frees
// locked seats only, leaving plain holds untouched.
func (h *SeatHandler) Unlock(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ids, ok := bindSeatIDs(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	if err := h.Inv.UnlockSeats(id, ids, middleware.HolderID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unlocked": ids})
}
