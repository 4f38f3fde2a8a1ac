package payment_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
)

func newInvoiceGenerator(t *testing.T) (*payment.InvoiceGenerator, payment.InvoiceRepository) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	dummydb.SeedCampus(db, testCampus)

	dir := student.NewDirectoryMock(student.Student{ID: "std1", Name: "Awe", Email: "awe@test.cd"})
	repo := dummydb.NewInvoiceRepository(db)
	return payment.NewInvoiceGenerator(repo, dir, dummydb.NewCampusRepository(db)), repo
}

func capturedTxn(feeID string) payment.Transaction {
	now := time.Now().UTC()
	return payment.Transaction{
		ID:             uuid.New().String(),
		FeeID:          feeID,
		CampusID:       testCampus.ID,
		Gateway:        "dummy",
		GatewayOrderID: "order_" + uuid.New().String(),
		Amount:         money.FromMinor(500000),
		Currency:       "KES",
		Status:         payment.StatusCaptured,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func settledFee() fee.Fee {
	return fee.Fee{
		ID:            uuid.New().String(),
		StudentID:     "std1",
		CampusID:      testCampus.ID,
		Description:   "Term 1 Fees",
		TotalAmount:   money.FromMinor(500000),
		PaidAmount:    money.FromMinor(500000),
		Currency:      "KES",
		PaymentStatus: fee.StatusPaid,
	}
}

func TestInvoiceGenerator_Generate(t *testing.T) {
	gen, _ := newInvoiceGenerator(t)
	ctx := context.Background()

	f := settledFee()
	txn := capturedTxn(f.ID)

	inv, err := gen.Generate(ctx, txn, f)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%d-%06d", time.Now().UTC().Year(), 1), inv.Number)
	assert.Equal(t, payment.InvoicePayment, inv.Kind)
	assert.Equal(t, money.FromMinor(500000), inv.AmountPaid)
	assert.Equal(t, "Awe", inv.StudentName)
	assert.Equal(t, testCampus.Name, inv.SchoolName)

	// regeneration returns the existing invoice untouched
	again, err := gen.Generate(ctx, txn, f)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, inv.Number, again.Number)
}

func TestInvoiceGenerator_numbersAreUniqueAndMonotonic(t *testing.T) {
	gen, _ := newInvoiceGenerator(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		f := settledFee()
		inv, err := gen.Generate(ctx, capturedTxn(f.ID), f)
		require.NoError(t, err)
		assert.False(t, seen[inv.Number], "invoice number %s issued twice", inv.Number)
		seen[inv.Number] = true
		assert.Equal(t, fmt.Sprintf("INV-%d-%06d", time.Now().UTC().Year(), i+1), inv.Number)
	}
}

func TestInvoiceGenerator_GenerateRefund(t *testing.T) {
	gen, repo := newInvoiceGenerator(t)
	ctx := context.Background()

	f := settledFee()
	txn := capturedTxn(f.ID)

	payInv, err := gen.Generate(ctx, txn, f)
	require.NoError(t, err)

	f.PaidAmount = money.FromMinor(0)
	refInv, err := gen.GenerateRefund(ctx, txn, f)
	require.NoError(t, err)
	assert.Equal(t, payment.InvoiceRefund, refInv.Kind)
	assert.Equal(t, payInv.Number, refInv.Supersedes)
	assert.NotEqual(t, payInv.Number, refInv.Number)

	// the payment invoice is immutable, never regenerated
	stored, err := repo.GetInvoiceByTransaction(ctx, txn.ID, payment.InvoicePayment)
	require.NoError(t, err)
	assert.Equal(t, payInv.Number, stored.Number)

	// refund regeneration is idempotent too
	again, err := gen.GenerateRefund(ctx, txn, f)
	require.NoError(t, err)
	assert.Equal(t, refInv.ID, again.ID)
}
