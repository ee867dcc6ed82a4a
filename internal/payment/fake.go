package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/heritix/booking/internal/model"
)

// FakeGateway is an in-memory Gateway for tests and local development.
// It remembers the orders it issued and accepts any reference whose
// signature is "ok" for a known order, unless a failure mode is armed.
type FakeGateway struct {
	mu         sync.Mutex
	nextOrder  int
	orders     map[string]uint32 // order id -> amount
	FailCreate error             // returned by CreateOrder when set
	FailVerify error             // returned by VerifyPayment when set

	// OnVerify, when set, runs at the start of VerifyPayment.  Tests
	// use it to interleave side effects with an in-flight conversion.
	OnVerify func()
}

// NewFakeGateway returns an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{orders: make(map[string]uint32)}
}

func (g *FakeGateway) CreateOrder(_ context.Context, amountCents uint32, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCreate != nil {
		return "", g.FailCreate
	}
	g.nextOrder++
	id := fmt.Sprintf("order_%04d", g.nextOrder)
	g.orders[id] = amountCents
	return id, nil
}

func (g *FakeGateway) VerifyPayment(_ context.Context, ref Reference) error {
	if g.OnVerify != nil {
		g.OnVerify()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailVerify != nil {
		return g.FailVerify
	}
	if _, known := g.orders[ref.OrderID]; !known {
		return model.ErrPaymentVerification
	}
	if ref.Signature != "ok" {
		return model.ErrPaymentVerification
	}
	return nil
}
