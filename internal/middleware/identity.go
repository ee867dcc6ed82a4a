// Package middleware provides the request-processing chain shared by
// all routes: identity extraction, role enforcement, rate limiting and
// response caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys written by Identity and read by handlers.
const (
	HolderKey = "holder_id"
	RoleKey   = "role"
)

// SessionHeader carries the opaque guest session token.  The server
// issues one on the first anonymous request and echoes it back; clients
// must resend it so their holds stay theirs.
const SessionHeader = "X-Session-Token"

// Identity resolves the holder identity for every request.  A valid
// Bearer token yields "user:<sub>" plus the token's role claim; an
// anonymous request yields "guest:<session>" from the session header,
// minting a fresh session token when none is presented.  The core
// trusts the identifier's uniqueness and performs no further
// authentication.  A present-but-invalid Bearer token is rejected with
// 401 rather than downgraded to a guest.
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				raw := strings.TrimPrefix(auth, "Bearer ")
				tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, echo.ErrUnauthorized
					}
					return []byte(secret), nil
				})
				if err != nil || !tok.Valid {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				claims, ok := tok.Claims.(jwt.MapClaims)
				if !ok {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
				}
				sub, _ := claims["sub"].(string)
				if sub == "" {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing subject"})
				}
				c.Set(HolderKey, "user:"+sub)
				if role, ok := claims["role"].(string); ok {
					c.Set(RoleKey, role)
				}
				return next(c)
			}

			session := c.Request().Header.Get(SessionHeader)
			if session == "" {
				session = uuid.NewString()
			}
			// echo the token back so the client can keep its holds
			c.Response().Header().Set(SessionHeader, session)
			c.Set(HolderKey, "guest:"+session)
			return next(c)
		}
	}
}

// HolderID returns the holder identity stored by Identity, or empty
// when the middleware did not run.
func HolderID(c echo.Context) string {
	if v, ok := c.Get(HolderKey).(string); ok {
		return v
	}
	return ""
}

// IsAdmin reports whether the request carries the ADMIN role claim.
func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(RoleKey).(string)
	return role == "ADMIN"
}
