package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/inventory"
	"github.com/heritix/booking/internal/model"
)

// EventHandler exposes layout administration and the public read paths
// over the seat-state engine.  Role checks for the admin routes are
// performed by middleware; handlers only validate input and translate
// engine errors.
type EventHandler struct {
	Inv *inventory.Inventory
}

// NewEventHandler constructs an EventHandler.  Inv must be non-nil.
func NewEventHandler(inv *inventory.Inventory) *EventHandler {
	if inv == nil {
		panic("nil inventory passed to NewEventHandler")
	}
	return &EventHandler{Inv: inv}
}

// CreateLayout handles POST /v1/events/:id/layout.  The body carries a
// list of seated categories; rows are generated top to bottom across
// categories in the order given.  Returns 201 with the created layout,
// or 409 when the event already has one.
func (h *EventHandler) CreateLayout(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		Categories []struct {
			Name        string `json:"name"`
			PriceCents  uint32 `json:"price_cents"`
			Rows        uint32 `json:"rows"`
			SeatsPerRow uint32 `json:"seats_per_row"`
		} `json:"categories"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Categories) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "categories is required"})
	}
	specs := make([]model.CategorySpec, 0, len(body.Categories))
	for _, cat := range body.Categories {
		if cat.Name == "" || cat.Rows == 0 || cat.SeatsPerRow == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each category needs a name and positive dimensions"})
		}
		specs = append(specs, model.CategorySpec{
			Name:        cat.Name,
			PriceCents:  cat.PriceCents,
			Rows:        cat.Rows,
			SeatsPerRow: cat.SeatsPerRow,
		})
	}
	layout, err := h.Inv.CreateLayout(id, specs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, layout)
}

// CreateCapacity handles POST /v1/events/:id/capacity.  Capacity events
// sell per-category quantity without assigned seats (walking tours,
// open-ground entry).  Returns 409 when the event already exists.
func (h *EventHandler) CreateCapacity(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		Categories []struct {
			Name       string `json:"name"`
			PriceCents uint32 `json:"price_cents"`
			Total      uint32 `json:"total"`
		} `json:"categories"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Categories) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "categories is required"})
	}
	cats := make([]model.CapacityCategory, 0, len(body.Categories))
	for _, cat := range body.Categories {
		if cat.Name == "" || cat.Total == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each category needs a name and positive total"})
		}
		cats = append(cats, model.CapacityCategory{
			Name:       cat.Name,
			PriceCents: cat.PriceCents,
			Total:      cat.Total,
		})
	}
	if err := h.Inv.CreateCapacity(id, cats); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "categories": cats})
}

// GetLayout handles GET /v1/events/:id/layout and returns the layout
// with live seat states.  Claims past their expiry read as available.
func (h *EventHandler) GetLayout(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	layout, err := h.Inv.GetLayout(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, layout)
}

// Publish handles POST /v1/events/:id/layout/publish and opens the
// event for sale.  Publishing twice is a no-op.
func (h *EventHandler) Publish(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Inv.Publish(id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "published": true})
}

// Delete handles DELETE /v1/events/:id/layout.  An event with any live
// claim, booked seat or sold quantity cannot be deleted and yields 409.
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Inv.Delete(id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": true})
}

// UpdatePrice handles PATCH /v1/events/:id/categories/:name/price.
// Only future claims see the new price; live holds, locks and pending
// temp bookings keep the price they snapshotted.
func (h *EventHandler) UpdatePrice(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category name is required"})
	}
	var body struct {
		PriceCents uint32 `json:"price_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Inv.UpdateCategoryPrice(id, name, body.PriceCents); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"category": name, "price_cents": body.PriceCents})
}

// Availability handles GET /v1/events/:id/availability with per-category
// counts.  Unpublished events report nothing.  This is the route the
// response cache sits in front of.
func (h *EventHandler) Availability(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	avail, err := h.Inv.Availability(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "categories": avail})
}
