// Package dummydb is the in-memory database used by tests. It honors the same
// conditional-update semantics as the SQL implementation, races included.
package dummydb

import (
	"sync"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type (
	DB struct {
		fee     *feeTable
		payment *paymentTable
		invoice *invoiceTable
		campus  *campusTable
	}

	feeTable struct {
		sync.RWMutex
		templates map[string]*fee.Template
		fees      map[string]*fee.Fee
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*payment.Transaction
	}

	invoiceTable struct {
		sync.RWMutex
		table map[string]*payment.Invoice
		seqs  map[string]int // campusID/year
	}

	campusTable struct {
		sync.RWMutex
		table map[string]*campus.Campus
	}
)

func Open() (*DB, error) {
	db := &DB{
		fee: &feeTable{
			templates: make(map[string]*fee.Template),
			fees:      make(map[string]*fee.Fee),
		},
		payment: &paymentTable{table: make(map[string]*payment.Transaction)},
		invoice: &invoiceTable{
			table: make(map[string]*payment.Invoice),
			seqs:  make(map[string]int),
		},
		campus: &campusTable{table: make(map[string]*campus.Campus)},
	}
	return db, nil
}
