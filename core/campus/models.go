// Package campus holds per-campus settings the ledger needs: school snapshot
// details for invoices and the campus's payment gateway credentials.
package campus

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("campus not found")

// Campus gateway credentials are read per request so that rotating them takes
// effect without a process restart; adapters are never cached as singletons.
type Campus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`

	Gateway              string `json:"gateway"` // provider name, e.g. "razorpay"
	GatewayKeyID         string `json:"-"`
	GatewaySecret        string `json:"-"`
	GatewayWebhookSecret string `json:"-"`
}

type Repository interface {
	GetCampus(ctx context.Context, id string) (Campus, error)
}
