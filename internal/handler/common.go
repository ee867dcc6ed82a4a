package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/model"
)

// eventID parses the :id path parameter as a positive event identifier.
func eventID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid event id")
	}
	return id, nil
}

// dedupeSeatIDs removes blanks and duplicates while keeping request order.
func dedupeSeatIDs(ids []string) []string {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	return unique
}

// fail maps sentinel errors from the core onto HTTP responses.  Every
// handler funnels through here so the error taxonomy stays consistent
// across the whole surface.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrGone):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrPaymentVerification):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrSeatUnavailable),
		errors.Is(err, model.ErrSeatNoLongerHeld),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
