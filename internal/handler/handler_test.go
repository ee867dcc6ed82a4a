package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/heritix/booking/internal/config"
	"github.com/heritix/booking/internal/handler"
	"github.com/heritix/booking/internal/inventory"
	"github.com/heritix/booking/internal/payment"
	"github.com/heritix/booking/internal/router"
	"github.com/heritix/booking/internal/service"
	"github.com/heritix/booking/internal/storage"
)

const testSecret = "handler-test-secret"

// setup wires a full Echo instance on the in-memory store and fake
// gateway; no Redis, so rate limiting and caching are pass-through.
func setup(t *testing.T) (*echo.Echo, *payment.FakeGateway) {
	t.Helper()
	inv := inventory.New()
	gw := payment.NewFakeGateway()
	svc := service.NewBookingService(inv, storage.NewMemoryStore(), gw,
		service.WithNotifier(nil))
	sw := service.NewSweeper(svc, time.Minute)

	e := echo.New()
	router.Register(e, router.Deps{
		Events:    handler.NewEventHandler(inv),
		Seats:     handler.NewSeatHandler(inv, 3*time.Minute, 7*time.Minute),
		Bookings:  handler.NewBookingHandler(svc, 10*time.Minute),
		Admin:     handler.NewAdminHandler(sw),
		JWTSecret: testSecret,
		RateCfg:   config.RateLimitConfig{},
		CacheCfg:  config.CacheConfig{},
	})
	return e, gw
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops-1",
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type call struct {
	method, path, body string
	bearer, session    string
}

func do(t *testing.T, e *echo.Echo, c call) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if c.body != "" {
		rd = strings.NewReader(c.body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(c.method, c.path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.session != "" {
		req.Header.Set("X-Session-Token", c.session)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func createPublishedEvent(t *testing.T, e *echo.Echo, admin string) {
	t.Helper()
	rec := do(t, e, call{method: http.MethodPost, path: "/v1/events/1/layout", bearer: admin,
		body: `{"categories":[{"name":"Premium","price_cents":15000,"rows":1,"seats_per_row":4}]}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/events/1/layout/publish", bearer: admin})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	e, _ := setup(t)
	rec := do(t, e, call{method: http.MethodPost, path: "/v1/events/1/layout", session: "s1",
		body: `{"categories":[{"name":"A","price_cents":100,"rows":1,"seats_per_row":2}]}`})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvalidBearerIsRejected(t *testing.T) {
	e, _ := setup(t)
	rec := do(t, e, call{method: http.MethodGet, path: "/v1/events/1/layout", bearer: "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuestSessionIsMintedAndEchoed(t *testing.T) {
	e, _ := setup(t)
	admin := adminToken(t)
	createPublishedEvent(t, e, admin)

	rec := do(t, e, call{method: http.MethodGet, path: "/v1/events/1/availability"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Session-Token"))
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	e, _ := setup(t)
	admin := adminToken(t)
	createPublishedEvent(t, e, admin)

	// Hold then lock two seats as a guest.
	rec := do(t, e, call{method: http.MethodPost, path: "/v1/events/1/hold", session: "buyer-1",
		body: `{"seat_ids":["A1","A2"]}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, e, call{method: http.MethodPost, path: "/v1/events/1/lock", session: "buyer-1",
		body: `{"seat_ids":["A1","A2"]}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	// A competing guest cannot claim the same seats.
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/events/1/hold", session: "rival",
		body: `{"seat_ids":["A2"]}`})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Temp booking, order, convert.
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings", session: "buyer-1",
		body: `{"event_id":1,"seat_ids":["A1","A2"]}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	tb := decode(t, rec)
	tbID, _ := tb["id"].(string)
	require.NotEmpty(t, tbID)
	require.Equal(t, float64(30000), tb["total_amount_cents"])

	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings/" + tbID + "/order", session: "buyer-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID, _ := decode(t, rec)["order_id"].(string)
	require.NotEmpty(t, orderID)

	body := fmt.Sprintf(`{"order_id":%q,"payment_id":"pay_001","signature":"ok"}`, orderID)
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings/" + tbID + "/convert",
		session: "buyer-1", body: body})
	require.Equal(t, http.StatusCreated, rec.Code)
	booking := decode(t, rec)
	ref, _ := booking["reference"].(string)
	require.True(t, strings.HasPrefix(ref, "BK-"))

	// Owner sees the booking, a stranger gets 404, an admin sees it too.
	rec = do(t, e, call{method: http.MethodGet, path: "/v1/bookings/" + ref, session: "buyer-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, call{method: http.MethodGet, path: "/v1/bookings/" + ref, session: "rival"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, e, call{method: http.MethodGet, path: "/v1/bookings/" + ref, bearer: admin})
	require.Equal(t, http.StatusOK, rec.Code)

	// Converting again is gone, not a double booking.
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings/" + tbID + "/convert",
		session: "buyer-1", body: body})
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestConvertWithBadSignatureIsPaymentRequired(t *testing.T) {
	e, _ := setup(t)
	admin := adminToken(t)
	createPublishedEvent(t, e, admin)

	rec := do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings", session: "b",
		body: `{"event_id":1,"seat_ids":["A1"]}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	tbID, _ := decode(t, rec)["id"].(string)

	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings/" + tbID + "/order", session: "b"})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID, _ := decode(t, rec)["order_id"].(string)

	body := fmt.Sprintf(`{"order_id":%q,"payment_id":"pay_x","signature":"forged"}`, orderID)
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings/" + tbID + "/convert",
		session: "b", body: body})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// The record is still pending and cancellable.
	rec = do(t, e, call{method: http.MethodDelete, path: "/v1/temp-bookings/" + tbID, session: "b"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCapacityEventOverHTTP(t *testing.T) {
	e, _ := setup(t)
	admin := adminToken(t)

	rec := do(t, e, call{method: http.MethodPost, path: "/v1/events/2/capacity", bearer: admin,
		body: `{"categories":[{"name":"Tour","price_cents":5000,"total":3}]}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/events/2/layout/publish", bearer: admin})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings", session: "g",
		body: `{"event_id":2,"quantities":{"Tour":2}}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Overdrawing the remaining single slot is a conflict.
	rec = do(t, e, call{method: http.MethodPost, path: "/v1/temp-bookings", session: "g2",
		body: `{"event_id":2,"quantities":{"Tour":2}}`})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	e, _ := setup(t)
	cases := []call{
		{method: http.MethodPost, path: "/v1/events/abc/hold", session: "s", body: `{"seat_ids":["A1"]}`},
		{method: http.MethodPost, path: "/v1/events/1/hold", session: "s", body: `{"seat_ids":[]}`},
		{method: http.MethodPost, path: "/v1/temp-bookings", session: "s", body: `{"event_id":0}`},
		{method: http.MethodPost, path: "/v1/temp-bookings", session: "s",
			body: `{"event_id":1,"seat_ids":["A1"],"quantities":{"Tour":1}}`},
	}
	for _, c := range cases {
		rec := do(t, e, c)
		require.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", c.method, c.path)
	}
}

func TestAdminCleanupEndpoint(t *testing.T) {
	e, _ := setup(t)
	admin := adminToken(t)
	rec := do(t, e, call{method: http.MethodPost, path: "/v1/admin/cleanup", bearer: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Contains(t, body, "expired_temp_bookings")
	require.Contains(t, body, "reaped_claims")
}
