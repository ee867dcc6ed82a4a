package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/heritix/booking/internal/config"
	"github.com/heritix/booking/internal/database"
	"github.com/heritix/booking/internal/handler"
	"github.com/heritix/booking/internal/inventory"
	"github.com/heritix/booking/internal/payment"
	"github.com/heritix/booking/internal/queue"
	"github.com/heritix/booking/internal/router"
	"github.com/heritix/booking/internal/service"
	"github.com/heritix/booking/internal/storage"
)

func main() {
	// Best effort: a missing .env just means variables come from the
	// real environment.
	_ = godotenv.Load()

	cfg := config.Load()

	// Storage: MySQL when configured, in-memory otherwise.
	var store storage.Store
	if cfg.DBHost != "" {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		defer db.Close()
		store = storage.NewMySQLStore(db)
		log.Printf("storage: mysql %s/%s", cfg.DBHost, cfg.DBName)
	} else {
		store = storage.NewMemoryStore()
		log.Printf("storage: in-memory")
	}

	// Payment gateway: Razorpay when credentials exist, fake otherwise.
	var gateway payment.Gateway
	if cfg.RazorpayKeyID != "" {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpaySecret)
		log.Printf("payment: razorpay")
	} else {
		gateway = payment.NewFakeGateway()
		log.Printf("payment: fake gateway (no credentials configured)")
	}

	inv := inventory.New()
	svc := service.NewBookingService(inv, store, gateway, service.WithCurrency(cfg.Currency))
	sweeper := service.NewSweeper(svc, cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	// Consumer of booking.confirmed events; reconnects on broker loss.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Events:    handler.NewEventHandler(inv),
		Seats:     handler.NewSeatHandler(inv, cfg.HoldTTL, cfg.LockTTL),
		Bookings:  handler.NewBookingHandler(svc, cfg.TempBookingTTL),
		Admin:     handler.NewAdminHandler(sweeper),
		JWTSecret: cfg.JWTSecret,
		Rdb:       rdb,
		RateCfg:   config.LoadRateLimitConfig(),
		CacheCfg:  config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
