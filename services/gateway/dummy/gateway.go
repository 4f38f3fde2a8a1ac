// Package dummygw provides an in-memory payment.Gateway for tests. Verdicts
// and failures are scripted per instance; no network I/O happens.
package dummygw

import (
	"context"
	"strconv"
	"sync"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/payment"
)

const Name = "dummy"

type Gateway struct {
	mu sync.Mutex

	// scripted behavior
	CreateOrderErr error
	VerifyOK       bool
	VerifyErr      error
	WebhookSigOK   bool
	ParsedEvent    payment.Event
	ParseErr       error

	// observed calls
	CreatedOrders []payment.OrderRequest
	VerifyCalls   int

	seq int
}

var _ payment.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{VerifyOK: true, WebhookSigOK: true}
}

// Factory adapts a shared instance to payment.GatewayFactory so every campus
// resolves to the same scripted gateway.
func (g *Gateway) Factory(campus.Campus) (payment.Gateway, error) { return g, nil }

func (g *Gateway) Name() string            { return Name }
func (g *Gateway) SignatureHeader() string { return "X-Dummy-Signature" }

func (g *Gateway) CreateOrder(_ context.Context, req payment.OrderRequest) (payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateOrderErr != nil {
		return payment.Order{}, g.CreateOrderErr
	}
	g.seq++
	g.CreatedOrders = append(g.CreatedOrders, req)
	id := "order_dummy_" + strconv.Itoa(g.seq)
	return payment.Order{
		OrderID: id,
		ClientPayload: map[string]interface{}{
			"order_id": id,
			"amount":   req.Amount.Minor(),
		},
	}, nil
}

func (g *Gateway) VerifyClientPayment(context.Context, string, string, string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VerifyCalls++
	if g.VerifyErr != nil {
		return false, g.VerifyErr
	}
	return g.VerifyOK, nil
}

func (g *Gateway) VerifyWebhookSignature([]byte, string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.WebhookSigOK
}

func (g *Gateway) ParseWebhookEvent([]byte) (payment.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ParseErr != nil {
		return payment.Event{}, g.ParseErr
	}
	return g.ParsedEvent, nil
}
