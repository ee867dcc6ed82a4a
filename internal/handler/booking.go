package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/middleware"
	"github.com/heritix/booking/internal/model"
	"github.com/heritix/booking/internal/payment"
	"github.com/heritix/booking/internal/service"
)

// BookingHandler drives the checkout flow: temp-booking creation, the
// payment order, verified conversion and the permanent booking surface.
type BookingHandler struct {
	Svc     *service.BookingService
	TempTTL time.Duration
}

// NewBookingHandler constructs a BookingHandler.  Svc must be non-nil.
func NewBookingHandler(svc *service.BookingService, tempTTL time.Duration) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc, TempTTL: tempTTL}
}

// CreateTempBooking handles POST /v1/temp-bookings.  The body names the
// event and exactly one of seat_ids (seated events) or quantities
// (capacity events).  Seats must be available or already claimed by the
// caller; they are locked for the lifetime of the record.  Returns 201
// with the PENDING temp booking.
func (h *BookingHandler) CreateTempBooking(c echo.Context) error {
	var body struct {
		EventID    uint64            `json:"event_id"`
		SeatIDs    []string          `json:"seat_ids"`
		Quantities map[string]uint32 `json:"quantities"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}
	ids := dedupeSeatIDs(body.SeatIDs)
	if len(ids) == 0 && len(body.Quantities) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids or quantities is required"})
	}
	if len(ids) > 0 && len(body.Quantities) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids and quantities are exclusive"})
	}
	tb, err := h.Svc.CreateTempBooking(c.Request().Context(), service.CreateTempBookingInput{
		EventID:    body.EventID,
		SeatIDs:    ids,
		Quantities: body.Quantities,
		Owner:      middleware.HolderID(c),
		TTL:        h.TempTTL,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, tb)
}

// GetTempBooking handles GET /v1/temp-bookings/:id.  Owners see their
// own records; admins see any.  Records past expiry come back EXPIRED.
func (h *BookingHandler) GetTempBooking(c echo.Context) error {
	tb, err := h.Svc.GetTempBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	if tb.Owner != middleware.HolderID(c) && !middleware.IsAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": model.ErrNotFound.Error()})
	}
	return c.JSON(http.StatusOK, tb)
}

// CancelTempBooking handles DELETE /v1/temp-bookings/:id, releasing the
// backing seats or quantity.  Cancelling an already-terminal record is
// a no-op so retries are safe.
func (h *BookingHandler) CancelTempBooking(c echo.Context) error {
	err := h.Svc.CancelTempBooking(c.Request().Context(), c.Param("id"), middleware.HolderID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true})
}

// CreateOrder handles POST /v1/temp-bookings/:id/order and creates (or
// returns the already-created) payment order for the record's total.
func (h *BookingHandler) CreateOrder(c echo.Context) error {
	orderID, err := h.Svc.CreateOrder(c.Request().Context(), c.Param("id"), middleware.HolderID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"order_id": orderID})
}

// Convert handles POST /v1/temp-bookings/:id/convert.  The body carries
// the gateway's payment reference; on verified payment the record and
// its seats are atomically promoted to a permanent booking.  An expired
// or already-settled record yields 410, a bad signature 402.
func (h *BookingHandler) Convert(c echo.Context) error {
	var ref payment.Reference
	if err := c.Bind(&ref); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if ref.OrderID == "" || ref.PaymentID == "" || ref.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id, payment_id and signature are required"})
	}
	b, err := h.Svc.ConvertTempToRealBooking(c.Request().Context(), c.Param("id"), middleware.HolderID(c), middleware.IsAdmin(c), ref)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /v1/bookings/:ref.  Non-owners get 404 rather
// than 403 so references cannot be probed.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.Svc.GetBooking(c.Request().Context(), c.Param("ref"), middleware.HolderID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListMyBookings handles GET /v1/my-bookings for the calling identity.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	bs, err := h.Svc.ListMyBookings(c.Request().Context(), middleware.HolderID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bs})
}

// ListBookings handles GET /v1/bookings (admin only).
func (h *BookingHandler) ListBookings(c echo.Context) error {
	bs, err := h.Svc.ListAllBookings(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bs})
}

// CancelBooking handles DELETE /v1/bookings/:ref.  Cancelling frees the
// booked seats (or returns sold quantity) and is idempotent.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	err := h.Svc.CancelBooking(c.Request().Context(), c.Param("ref"), middleware.HolderID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true})
}
