package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
)

type invoiceRepository struct {
	db *sqlx.DB
}

var _ payment.InvoiceRepository = (*invoiceRepository)(nil) // interface compliance check

func NewInvoiceRepository(db *sqlx.DB) payment.InvoiceRepository {
	return &invoiceRepository{db: db}
}

type invoiceRow struct {
	ID             string         `db:"id"`
	Number         string         `db:"number"`
	Kind           string         `db:"kind"`
	TransactionID  string         `db:"transaction_id"`
	FeeID          string         `db:"fee_id"`
	CampusID       string         `db:"campus_id"`
	Supersedes     string         `db:"supersedes"`
	StudentID      string         `db:"student_id"`
	StudentName    string         `db:"student_name"`
	StudentEmail   string         `db:"student_email"`
	SchoolName     string         `db:"school_name"`
	Items          types.JSONText `db:"items"`
	TotalAmount    int64          `db:"total_amount"`
	DiscountAmount int64          `db:"discount_amount"`
	LateFeeAmount  int64          `db:"late_fee_amount"`
	AmountPaid     int64          `db:"amount_paid"`
	Currency       string         `db:"currency"`
	IssuedAt       time.Time      `db:"issued_at"`
}

func newInvoiceRow(inv payment.Invoice) invoiceRow {
	return invoiceRow{
		ID:             inv.ID,
		Number:         inv.Number,
		Kind:           string(inv.Kind),
		TransactionID:  inv.TransactionID,
		FeeID:          inv.FeeID,
		CampusID:       inv.CampusID,
		Supersedes:     inv.Supersedes,
		StudentID:      inv.StudentID,
		StudentName:    inv.StudentName,
		StudentEmail:   inv.StudentEmail,
		SchoolName:     inv.SchoolName,
		Items:          mustJSON(inv.Items),
		TotalAmount:    inv.TotalAmount.Minor(),
		DiscountAmount: inv.DiscountAmount.Minor(),
		LateFeeAmount:  inv.LateFeeAmount.Minor(),
		AmountPaid:     inv.AmountPaid.Minor(),
		Currency:       inv.Currency,
		IssuedAt:       inv.IssuedAt,
	}
}

func (r invoiceRow) toInvoice() (payment.Invoice, error) {
	inv := payment.Invoice{
		ID:             r.ID,
		Number:         r.Number,
		Kind:           payment.InvoiceKind(r.Kind),
		TransactionID:  r.TransactionID,
		FeeID:          r.FeeID,
		CampusID:       r.CampusID,
		Supersedes:     r.Supersedes,
		StudentID:      r.StudentID,
		StudentName:    r.StudentName,
		StudentEmail:   r.StudentEmail,
		SchoolName:     r.SchoolName,
		TotalAmount:    money.FromMinor(r.TotalAmount),
		DiscountAmount: money.FromMinor(r.DiscountAmount),
		LateFeeAmount:  money.FromMinor(r.LateFeeAmount),
		AmountPaid:     money.FromMinor(r.AmountPaid),
		Currency:       r.Currency,
		IssuedAt:       r.IssuedAt,
	}
	if err := unmarshalCols(col{r.Items, &inv.Items}); err != nil {
		return payment.Invoice{}, errors.Wrap(err, "decoding invoice row")
	}
	return inv, nil
}

func (repo *invoiceRepository) GetInvoiceByTransaction(ctx context.Context, txnID string, kind payment.InvoiceKind) (payment.Invoice, error) {
	var row invoiceRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM invoice WHERE transaction_id = $1 AND kind = $2`, txnID, string(kind))
	if err == sql.ErrNoRows {
		return payment.Invoice{}, payment.ErrInvoiceNotFound
	}
	if err != nil {
		return payment.Invoice{}, errors.Wrap(err, "getting invoice")
	}
	return row.toInvoice()
}

// NextInvoiceSeq bumps the campus+year counter atomically; the upsert makes
// concurrent callers serialize on the sequence row, so numbers never repeat.
func (repo *invoiceRepository) NextInvoiceSeq(ctx context.Context, campusID string, year int) (int, error) {
	const q = `
		INSERT INTO invoice_sequence (campus_id, year, seq) VALUES ($1, $2, 1)
		ON CONFLICT (campus_id, year) DO UPDATE SET seq = invoice_sequence.seq + 1
		RETURNING seq`
	var seq int
	if err := repo.db.GetContext(ctx, &seq, q, campusID, year); err != nil {
		return 0, errors.Wrap(err, "bumping invoice sequence")
	}
	return seq, nil
}

func (repo *invoiceRepository) CreateInvoice(ctx context.Context, inv payment.Invoice) (payment.Invoice, error) {
	const q = `
		INSERT INTO invoice (
			id, number, kind, transaction_id, fee_id, campus_id, supersedes,
			student_id, student_name, student_email, school_name, items,
			total_amount, discount_amount, late_fee_amount, amount_paid, currency, issued_at
		) VALUES (
			:id, :number, :kind, :transaction_id, :fee_id, :campus_id, :supersedes,
			:student_id, :student_name, :student_email, :school_name, :items,
			:total_amount, :discount_amount, :late_fee_amount, :amount_paid, :currency, :issued_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, q, newInvoiceRow(inv)); err != nil {
		return payment.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}
