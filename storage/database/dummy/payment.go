package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreateTransaction(_ context.Context, txn payment.Transaction) (payment.Transaction, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	cp := txn
	repo.db.payment.table[txn.ID] = &cp
	return txn, nil
}

func (repo *paymentRepository) GetTransaction(_ context.Context, id string) (payment.Transaction, error) {
	repo.db.payment.RLock()
	defer repo.db.payment.RUnlock()

	if txn, ok := repo.db.payment.table[id]; ok {
		return *txn, nil
	}
	return payment.Transaction{}, payment.ErrTxnNotFound
}

func (repo *paymentRepository) GetTransactionByOrderID(_ context.Context, gatewayOrderID string) (payment.Transaction, error) {
	repo.db.payment.RLock()
	defer repo.db.payment.RUnlock()

	for _, txn := range repo.db.payment.table {
		if txn.GatewayOrderID == gatewayOrderID {
			return *txn, nil
		}
	}
	return payment.Transaction{}, payment.ErrTxnNotFound
}

func (repo *paymentRepository) SwapStatus(_ context.Context, id string, prev, next payment.Status, gatewayPaymentID string, now time.Time) (payment.Transaction, bool, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	txn, ok := repo.db.payment.table[id]
	if !ok {
		return payment.Transaction{}, false, payment.ErrTxnNotFound
	}
	if txn.Status != prev {
		return *txn, false, nil
	}
	txn.Status = next
	if gatewayPaymentID != "" {
		txn.GatewayPaymentID = gatewayPaymentID
	}
	txn.UpdatedAt = now
	return *txn, true, nil
}

// ApplyLedger holds both table locks for the duration of the update; the fee
// delta lands iff the status swap does, exactly like the SQL transaction.
func (repo *paymentRepository) ApplyLedger(_ context.Context, u payment.LedgerUpdate) (payment.Transaction, fee.Fee, bool, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()
	repo.db.fee.Lock()
	defer repo.db.fee.Unlock()

	txn, ok := repo.db.payment.table[u.TransactionID]
	if !ok {
		return payment.Transaction{}, fee.Fee{}, false, payment.ErrTxnNotFound
	}
	f, ok := repo.db.fee.fees[u.FeeID]
	if !ok || f.IsDeleted() {
		return payment.Transaction{}, fee.Fee{}, false, fee.ErrNotFound
	}

	if txn.Status != u.PrevStatus {
		return *txn, copyFee(*f), false, nil
	}

	txn.Status = u.NextStatus
	if u.GatewayPaymentID != "" {
		txn.GatewayPaymentID = u.GatewayPaymentID
	}
	txn.WebhookVerified = txn.WebhookVerified || u.WebhookVerified
	txn.UpdatedAt = u.Now

	f.PaidAmount = f.PaidAmount.Add(u.PaidDelta)
	f.DiscountAmount = u.DiscountAmount
	f.LateFeeAmount = u.LateFeeAmount
	f.PaymentStatus = u.FeeStatus
	f.UpdatedAt = u.Now

	return *txn, copyFee(*f), true, nil
}
