package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/student"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceKind string

const (
	InvoicePayment InvoiceKind = "payment"
	InvoiceRefund  InvoiceKind = "refund"
)

type (
	// Invoice is an immutable snapshot of a settled transaction: amounts,
	// student and school details as of settlement. Never regenerated; a refund
	// supersedes it with a new invoice.
	Invoice struct {
		ID            string      `json:"id"`
		Number        string      `json:"number"` // INV-{year}-{seq}, campus-scoped
		Kind          InvoiceKind `json:"kind"`
		TransactionID string      `json:"transaction_id"`
		FeeID         string      `json:"fee_id"`
		CampusID      string      `json:"campus_id"`
		Supersedes    string      `json:"supersedes,omitempty"` // invoice number replaced by a refund

		StudentID    string `json:"student_id"`
		StudentName  string `json:"student_name"`
		StudentEmail string `json:"student_email"`
		SchoolName   string `json:"school_name"`

		Items          []fee.Item  `json:"items"`
		TotalAmount    money.Money `json:"total_amount"`
		DiscountAmount money.Money `json:"discount_amount"`
		LateFeeAmount  money.Money `json:"late_fee_amount"`
		AmountPaid     money.Money `json:"amount_paid"`
		Currency       string      `json:"currency"`

		IssuedAt time.Time `json:"issued_at"` // UTC
	}

	InvoiceRepository interface {
		GetInvoiceByTransaction(ctx context.Context, txnID string, kind InvoiceKind) (Invoice, error)
		// NextInvoiceSeq returns the next value of the campus+year sequence;
		// values are unique and monotonically increasing per campus per year.
		NextInvoiceSeq(ctx context.Context, campusID string, year int) (int, error)
		CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	}

	InvoiceGenerator struct {
		repo       InvoiceRepository
		dir        student.Directory
		campusRepo campus.Repository
		nowFunc    func() time.Time // mockable
	}
)

func NewInvoiceGenerator(repo InvoiceRepository, dir student.Directory, campusRepo campus.Repository) *InvoiceGenerator {
	return &InvoiceGenerator{
		repo:       repo,
		dir:        dir,
		campusRepo: campusRepo,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate issues the payment invoice for a captured transaction. Idempotent
// by transaction id: regenerating returns the existing invoice untouched.
func (g *InvoiceGenerator) Generate(ctx context.Context, txn Transaction, f fee.Fee) (Invoice, error) {
	return g.issue(ctx, txn, f, InvoicePayment, "")
}

// GenerateRefund supersedes the payment invoice after a refund.
func (g *InvoiceGenerator) GenerateRefund(ctx context.Context, txn Transaction, f fee.Fee) (Invoice, error) {
	var supersedes string
	if prior, err := g.repo.GetInvoiceByTransaction(ctx, txn.ID, InvoicePayment); err == nil {
		supersedes = prior.Number
	}
	return g.issue(ctx, txn, f, InvoiceRefund, supersedes)
}

func (g *InvoiceGenerator) issue(ctx context.Context, txn Transaction, f fee.Fee, kind InvoiceKind, supersedes string) (Invoice, error) {
	if inv, err := g.repo.GetInvoiceByTransaction(ctx, txn.ID, kind); err == nil {
		return inv, nil
	} else if err != ErrInvoiceNotFound {
		return Invoice{}, err
	}

	now := g.nowFunc()
	year := now.Year()

	seq, err := g.repo.NextInvoiceSeq(ctx, f.CampusID, year)
	if err != nil {
		return Invoice{}, pkgerrors.Wrap(err, "allocating invoice number")
	}

	inv := Invoice{
		ID:            uuid.New().String(),
		Number:        fmt.Sprintf("INV-%d-%06d", year, seq),
		Kind:          kind,
		TransactionID: txn.ID,
		FeeID:         f.ID,
		CampusID:      f.CampusID,
		Supersedes:    supersedes,

		StudentID: f.StudentID,

		TotalAmount:    f.TotalAmount,
		DiscountAmount: f.DiscountAmount,
		LateFeeAmount:  f.LateFeeAmount,
		AmountPaid:     txn.Amount,
		Currency:       txn.Currency,
		IssuedAt:       now,
	}
	inv.Items = append(inv.Items, f.Items...)

	if stu, err := g.dir.GetStudent(ctx, f.StudentID); err == nil {
		inv.StudentName = stu.Name
		inv.StudentEmail = stu.Email
	}
	if camp, err := g.campusRepo.GetCampus(ctx, f.CampusID); err == nil {
		inv.SchoolName = camp.Name
	}

	return g.repo.CreateInvoice(ctx, inv)
}
