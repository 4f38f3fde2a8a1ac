package dummydb

import (
	"context"
	"fmt"

	"github.com/trezcool/karo/core/payment"
)

type invoiceRepository struct {
	db *invoiceTable
}

var _ payment.InvoiceRepository = (*invoiceRepository)(nil) // interface compliance check

func NewInvoiceRepository(db *DB) payment.InvoiceRepository {
	return &invoiceRepository{db: db.invoice}
}

func (repo *invoiceRepository) GetInvoiceByTransaction(_ context.Context, txnID string, kind payment.InvoiceKind) (payment.Invoice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inv := range repo.db.table {
		if inv.TransactionID == txnID && inv.Kind == kind {
			return *inv, nil
		}
	}
	return payment.Invoice{}, payment.ErrInvoiceNotFound
}

func (repo *invoiceRepository) NextInvoiceSeq(_ context.Context, campusID string, year int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := fmt.Sprintf("%s/%d", campusID, year)
	repo.db.seqs[key]++
	return repo.db.seqs[key], nil
}

func (repo *invoiceRepository) CreateInvoice(_ context.Context, inv payment.Invoice) (payment.Invoice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cp := inv
	cp.Items = append(cp.Items[:0:0], inv.Items...)
	repo.db.table[inv.ID] = &cp
	return inv, nil
}
