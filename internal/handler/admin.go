package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/service"
)

// AdminHandler exposes operational endpoints behind the ADMIN role.
type AdminHandler struct {
	Sweeper *service.Sweeper
}

// NewAdminHandler constructs an AdminHandler.  Sweeper must be non-nil.
func NewAdminHandler(sw *service.Sweeper) *AdminHandler {
	if sw == nil {
		panic("nil sweeper passed to NewAdminHandler")
	}
	return &AdminHandler{Sweeper: sw}
}

// Cleanup handles POST /v1/admin/cleanup and runs one sweep pass
// immediately instead of waiting for the background ticker.  The
// response reports how many temp bookings were expired and how many
// orphaned seat claims were reaped.
func (h *AdminHandler) Cleanup(c echo.Context) error {
	expired, freed, err := h.Sweeper.RunOnce(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"expired_temp_bookings": expired,
		"reaped_claims":         freed,
	})
}
