package payment

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
)

var (
	// errors
	ErrTxnNotFound = errors.New("payment transaction not found")
)

// Status is a payment transaction's position in its state machine. Transitions
// are monotonic: a transaction never moves backwards and is never deleted.
type Status string

const (
	StatusCreated           Status = "created"
	StatusPending           Status = "pending"
	StatusAuthorized        Status = "authorized"
	StatusCaptured          Status = "captured"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// created -> pending -> authorized -> captured, with failed reachable from the
// first three and refunds only from captured. A late "failed" after a capture
// is ignored, never a downgrade.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusPending, StatusAuthorized, StatusCaptured, StatusFailed},
	StatusPending:    {StatusAuthorized, StatusCaptured, StatusFailed},
	StatusAuthorized: {StatusCaptured, StatusFailed},
	StatusCaptured:   {StatusRefunded, StatusPartiallyRefunded},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsSettled reports whether the transaction's amount has been applied to the
// fee ledger (captured, possibly later refunded).
func (s Status) IsSettled() bool {
	return s == StatusCaptured || s == StatusRefunded || s == StatusPartiallyRefunded
}

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusAuthorized, StatusCaptured,
		StatusFailed, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

type (
	// Transaction is one gateway order attempt against a fee; append-only.
	// It is the only entity allowed to advance a fee's paid amount.
	Transaction struct {
		ID               string      `json:"id"`
		FeeID            string      `json:"fee_id"`
		CampusID         string      `json:"campus_id"`
		Gateway          string      `json:"gateway"`
		GatewayOrderID   string      `json:"gateway_order_id"`
		GatewayPaymentID string      `json:"gateway_payment_id,omitempty"` // empty until captured
		Amount           money.Money `json:"amount"`
		Currency         string      `json:"currency"`
		Status           Status      `json:"status"`
		WebhookVerified  bool        `json:"webhook_verified"`
		CreatedAt        time.Time   `json:"created_at"` // UTC
		UpdatedAt        time.Time   `json:"updated_at"` // UTC
	}

	// LedgerUpdate describes an atomic transaction-status swap plus the fee
	// ledger change it carries. The swap is conditional on PrevStatus: the
	// second writer of a client/webhook race sees the already-advanced status
	// and the whole update becomes a no-op.
	LedgerUpdate struct {
		TransactionID    string
		PrevStatus       Status
		NextStatus       Status
		GatewayPaymentID string
		WebhookVerified  bool

		FeeID          string
		PaidDelta      money.Money // positive on capture, negative on refund
		DiscountAmount money.Money
		LateFeeAmount  money.Money
		FeeStatus      fee.Status
		Now            time.Time
	}

	Repository interface {
		CreateTransaction(ctx context.Context, txn Transaction) (Transaction, error)
		GetTransaction(ctx context.Context, id string) (Transaction, error)
		GetTransactionByOrderID(ctx context.Context, gatewayOrderID string) (Transaction, error)
		// SwapStatus conditionally transitions a transaction (CAS on prev);
		// applied is false when the row's status no longer equals prev.
		SwapStatus(ctx context.Context, id string, prev, next Status, gatewayPaymentID string, now time.Time) (Transaction, bool, error)
		// ApplyLedger performs the status swap and the fee ledger change as a
		// single conditional update; the ledger is only touched when the swap
		// applies.
		ApplyLedger(ctx context.Context, u LedgerUpdate) (Transaction, fee.Fee, bool, error)
	}
)
