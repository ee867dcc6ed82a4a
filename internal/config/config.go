// Package config loads application configuration from environment
// variables.  Required values are enforced with must(); optional ones
// fall back to defaults that work for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  The durations govern the
// three claim lifetimes of the reservation core and the sweeper cadence.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// Database settings are optional: when DBHost is empty the server
	// runs on the in-memory store, which is enough for development.
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret string // secret used to verify access tokens

	HoldTTL        time.Duration // browse-time seat hold lifetime
	LockTTL        time.Duration // pre-payment seat lock lifetime
	TempBookingTTL time.Duration // checkout window before a temp booking expires
	SweepInterval  time.Duration // cadence of the background expiry sweeper

	// Payment gateway credentials; when the key id is empty the server
	// falls back to the in-process fake gateway.
	RazorpayKeyID  string
	RazorpaySecret string
	Currency       string
}

// Load reads configuration values from environment variables and
// returns a Config.  Missing required variables cause the program to
// exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBName:         os.Getenv("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		HoldTTL:        envDur("HOLD_TTL", 3*time.Minute),
		LockTTL:        envDur("LOCK_TTL", 7*time.Minute),
		TempBookingTTL: envDur("TEMP_BOOKING_TTL", 10*time.Minute),
		SweepInterval:  envDur("SWEEP_INTERVAL", 30*time.Second),
		RazorpayKeyID:  os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		Currency:       getenv("PAYMENT_CURRENCY", "INR"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// Helper functions shared with cache.go and ratelimit.go.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
