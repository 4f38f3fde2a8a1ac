package payment

import (
	"context"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
)

type (
	// Order is the result of initiating a gateway order: the provider's order
	// id and an opaque payload the paying client hands to the provider's
	// checkout flow.
	Order struct {
		OrderID       string                 `json:"order_id"`
		ClientPayload map[string]interface{} `json:"client_payload"`
	}

	// OrderRequest carries what providers need to open an order. Payer details
	// come from the directory snapshot at initiation time.
	OrderRequest struct {
		Fee        fee.Fee
		Amount     money.Money
		PayerName  string
		PayerEmail string
	}

	// Event is a gateway webhook notification normalized to ledger terms.
	// FeeID round-trips through the order's receipt/metadata so a webhook that
	// beats the client redirect can still be attached to its fee.
	Event struct {
		Type             string
		GatewayPaymentID string
		GatewayOrderID   string
		FeeID            string
		Amount           money.Money
		Status           Status
	}

	// Gateway is the uniform capability set each payment provider adapter
	// implements. Adapters are pure protocol translators: they never touch the
	// fee ledger, hold no mutable state, and are constructed per request from
	// campus credentials so rotation needs no restart.
	//
	// Signature checks must use constant-time comparison; a failed check is a
	// security event, not a retryable error.
	Gateway interface {
		Name() string
		CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
		// VerifyClientPayment reports whether the client-submitted payment proof
		// is authentic. A non-nil error is a transport problem (e.g. timeout),
		// never a verification verdict.
		VerifyClientPayment(ctx context.Context, orderID, paymentID, signature string) (bool, error)
		VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
		// SignatureHeader names the HTTP header carrying the webhook signature.
		SignatureHeader() string
		ParseWebhookEvent(rawBody []byte) (Event, error)
	}

	// GatewayFactory builds the adapter configured for a campus.
	GatewayFactory func(c campus.Campus) (Gateway, error)
)
