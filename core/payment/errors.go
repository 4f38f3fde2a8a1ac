package payment

import (
	"fmt"

	"github.com/trezcool/karo/core/money"
)

// AmountMismatchError rejects an initiation whose amount would over- or
// under-collect against the fee's outstanding due amount.
type AmountMismatchError struct {
	Requested money.Money
	Due       money.Money
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %s does not match outstanding due amount %s", e.Requested, e.Due)
}

// SignatureVerificationError is a security event: the payload did not come
// from the gateway. It is logged and rejected; no transaction state changes.
type SignatureVerificationError struct {
	Gateway string
	Op      string // "client_verification" | "webhook"
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("%s: %s signature verification failed", e.Gateway, e.Op)
}

// GatewayTimeoutError is retryable by the caller; the operation left no
// partial state behind and a pending transaction stays in its prior state for
// later webhook-driven resolution.
type GatewayTimeoutError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s timed out: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayTimeoutError) Unwrap() error { return e.Err }

// ReconciliationError flags a refund or capture that contradicts the recorded
// ledger (e.g. refunding more than was paid). It is surfaced to an operator,
// never silently corrected, and never shown to end users.
type ReconciliationError struct {
	TransactionID string
	FeeID         string
	Detail        string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation error on fee %s (transaction %s): %s", e.FeeID, e.TransactionID, e.Detail)
}
