package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
)

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) payment.Repository {
	return &paymentRepository{db: db}
}

type transactionRow struct {
	ID               string    `db:"id"`
	FeeID            string    `db:"fee_id"`
	CampusID         string    `db:"campus_id"`
	Gateway          string    `db:"gateway"`
	GatewayOrderID   string    `db:"gateway_order_id"`
	GatewayPaymentID string    `db:"gateway_payment_id"`
	Amount           int64     `db:"amount"`
	Currency         string    `db:"currency"`
	Status           string    `db:"status"`
	WebhookVerified  bool      `db:"webhook_verified"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func newTransactionRow(txn payment.Transaction) transactionRow {
	return transactionRow{
		ID:               txn.ID,
		FeeID:            txn.FeeID,
		CampusID:         txn.CampusID,
		Gateway:          txn.Gateway,
		GatewayOrderID:   txn.GatewayOrderID,
		GatewayPaymentID: txn.GatewayPaymentID,
		Amount:           txn.Amount.Minor(),
		Currency:         txn.Currency,
		Status:           string(txn.Status),
		WebhookVerified:  txn.WebhookVerified,
		CreatedAt:        txn.CreatedAt,
		UpdatedAt:        txn.UpdatedAt,
	}
}

func (r transactionRow) toTransaction() payment.Transaction {
	return payment.Transaction{
		ID:               r.ID,
		FeeID:            r.FeeID,
		CampusID:         r.CampusID,
		Gateway:          r.Gateway,
		GatewayOrderID:   r.GatewayOrderID,
		GatewayPaymentID: r.GatewayPaymentID,
		Amount:           money.FromMinor(r.Amount),
		Currency:         r.Currency,
		Status:           payment.Status(r.Status),
		WebhookVerified:  r.WebhookVerified,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (repo *paymentRepository) CreateTransaction(ctx context.Context, txn payment.Transaction) (payment.Transaction, error) {
	const q = `
		INSERT INTO payment_transaction (
			id, fee_id, campus_id, gateway, gateway_order_id, gateway_payment_id,
			amount, currency, status, webhook_verified, created_at, updated_at
		) VALUES (
			:id, :fee_id, :campus_id, :gateway, :gateway_order_id, :gateway_payment_id,
			:amount, :currency, :status, :webhook_verified, :created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTransactionRow(txn)); err != nil {
		return payment.Transaction{}, errors.Wrap(err, "inserting payment transaction")
	}
	return txn, nil
}

func (repo *paymentRepository) GetTransaction(ctx context.Context, id string) (payment.Transaction, error) {
	var row transactionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment_transaction WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return payment.Transaction{}, payment.ErrTxnNotFound
	}
	if err != nil {
		return payment.Transaction{}, errors.Wrap(err, "getting payment transaction")
	}
	return row.toTransaction(), nil
}

func (repo *paymentRepository) GetTransactionByOrderID(ctx context.Context, gatewayOrderID string) (payment.Transaction, error) {
	var row transactionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment_transaction WHERE gateway_order_id = $1`, gatewayOrderID)
	if err == sql.ErrNoRows {
		return payment.Transaction{}, payment.ErrTxnNotFound
	}
	if err != nil {
		return payment.Transaction{}, errors.Wrap(err, "getting payment transaction by order")
	}
	return row.toTransaction(), nil
}

// swapStatus is the CAS primitive: the UPDATE only lands when the row still
// holds prev. The loser of a concurrent race affects zero rows.
const swapStatusQuery = `
	UPDATE payment_transaction SET
		status = $3,
		gateway_payment_id = CASE WHEN $4 <> '' THEN $4 ELSE gateway_payment_id END,
		webhook_verified = webhook_verified OR $5,
		updated_at = $6
	WHERE id = $1 AND status = $2`

func (repo *paymentRepository) SwapStatus(ctx context.Context, id string, prev, next payment.Status, gatewayPaymentID string, now time.Time) (payment.Transaction, bool, error) {
	res, err := repo.db.ExecContext(ctx, swapStatusQuery, id, string(prev), string(next), gatewayPaymentID, false, now)
	if err != nil {
		return payment.Transaction{}, false, errors.Wrap(err, "swapping transaction status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return payment.Transaction{}, false, errors.Wrap(err, "swapping transaction status")
	}

	txn, err := repo.GetTransaction(ctx, id)
	if err != nil {
		return payment.Transaction{}, false, err
	}
	return txn, n > 0, nil
}

// ApplyLedger swaps the transaction status and applies the fee ledger delta in
// one database transaction. The fee is only touched when the swap lands, so
// double application is impossible whatever the caller interleaving.
func (repo *paymentRepository) ApplyLedger(ctx context.Context, u payment.LedgerUpdate) (payment.Transaction, fee.Fee, bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "beginning ledger transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, swapStatusQuery,
		u.TransactionID, string(u.PrevStatus), string(u.NextStatus), u.GatewayPaymentID, u.WebhookVerified, u.Now)
	if err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "swapping transaction status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "swapping transaction status")
	}

	if n == 0 {
		// race lost; report current state untouched
		txn, err := repo.GetTransaction(ctx, u.TransactionID)
		if err != nil {
			return payment.Transaction{}, fee.Fee{}, false, err
		}
		f, err := (&feeRepository{db: repo.db}).GetFee(ctx, u.FeeID)
		if err != nil {
			return payment.Transaction{}, fee.Fee{}, false, err
		}
		return txn, f, false, nil
	}

	const feeQ = `
		UPDATE fee SET
			paid_amount = paid_amount + $2,
			discount_amount = $3,
			late_fee_amount = $4,
			payment_status = $5,
			updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL`
	if _, err = tx.ExecContext(ctx, feeQ,
		u.FeeID, u.PaidDelta.Minor(), u.DiscountAmount.Minor(), u.LateFeeAmount.Minor(), string(u.FeeStatus), u.Now); err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "applying fee ledger delta")
	}

	var txnRow transactionRow
	if err = tx.GetContext(ctx, &txnRow, `SELECT * FROM payment_transaction WHERE id = $1`, u.TransactionID); err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "reloading payment transaction")
	}
	var fRow feeRow
	if err = tx.GetContext(ctx, &fRow, `SELECT * FROM fee WHERE id = $1`, u.FeeID); err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "reloading fee")
	}

	if err = tx.Commit(); err != nil {
		return payment.Transaction{}, fee.Fee{}, false, errors.Wrap(err, "committing ledger transaction")
	}

	f, err := fRow.toFee()
	if err != nil {
		return payment.Transaction{}, fee.Fee{}, false, err
	}
	return txnRow.toTransaction(), f, true, nil
}
