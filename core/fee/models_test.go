package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/karo/core/money"
)

var due = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func termFee() Fee {
	return Fee{
		ID:          "fee1",
		StudentID:   "std1",
		Description: "Term 1 Fees",
		TotalAmount: money.FromMinor(500000),
		Currency:    "KES",
		DueDate:     due,
		LateFee: LateFeeConfig{
			Enabled:    true,
			GraceDays:  5,
			PercentBps: 200, // 2%
		},
		Discount: DiscountConfig{
			Enabled:       true,
			Amount:        money.FromMinor(20000),
			EarlyDeadline: due.AddDate(0, 0, -14),
		},
		PaymentStatus: StatusUnpaid,
	}
}

func TestFee_DueAmountAt(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *Fee)
		now        time.Time
		want       money.Money
		wantStatus Status
	}{
		{
			name:       "unpaid before due date",
			now:        due.AddDate(0, 0, -30),
			want:       money.FromMinor(500000),
			wantStatus: StatusUnpaid,
		},
		{
			name:       "within grace period, no late fee yet",
			now:        due.AddDate(0, 0, 3),
			want:       money.FromMinor(500000),
			wantStatus: StatusUnpaid,
		},
		{
			name:       "past grace period, 2% late fee",
			now:        due.AddDate(0, 0, 10),
			want:       money.FromMinor(510000),
			wantStatus: StatusOverdue,
		},
		{
			name:       "partial payment",
			mutate:     func(f *Fee) { f.PaidAmount = money.FromMinor(200000) },
			now:        due.AddDate(0, 0, -30),
			want:       money.FromMinor(300000),
			wantStatus: StatusPartial,
		},
		{
			name: "settled with frozen discount",
			mutate: func(f *Fee) {
				f.PaidAmount = money.FromMinor(480000)
				f.DiscountAmount = money.FromMinor(20000)
			},
			now:        due.AddDate(0, 0, 10), // late fee never revives a settled fee
			want:       money.FromMinor(0),
			wantStatus: StatusPaid,
		},
		{
			name:       "frozen late fee sticks",
			mutate:     func(f *Fee) { f.LateFeeAmount = money.FromMinor(10000) },
			now:        due.AddDate(0, 0, -30),
			want:       money.FromMinor(510000),
			wantStatus: StatusUnpaid,
		},
		{
			name: "overpayment clamps to zero",
			mutate: func(f *Fee) {
				f.PaidAmount = money.FromMinor(600000)
			},
			now:        due.AddDate(0, 0, -30),
			want:       money.FromMinor(0),
			wantStatus: StatusPaid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := termFee()
			if tt.mutate != nil {
				tt.mutate(&f)
			}
			assert.Equal(t, tt.want, f.DueAmountAt(tt.now))
			assert.Equal(t, tt.wantStatus, f.StatusAt(tt.now))
		})
	}
}

func TestFee_LateFeeAt(t *testing.T) {
	f := termFee()

	assert.True(t, f.LateFeeAt(due.AddDate(0, 0, -1)).IsZero())
	assert.True(t, f.LateFeeAt(due.AddDate(0, 0, 5)).IsZero(), "last day of grace is not overdue")
	assert.Equal(t, money.FromMinor(10000), f.LateFeeAt(due.AddDate(0, 0, 6)))

	// a fixed amount beats a smaller percentage
	f.LateFee.Amount = money.FromMinor(15000)
	f.LateFee.PercentBps = 0
	assert.Equal(t, money.FromMinor(15000), f.LateFeeAt(due.AddDate(0, 0, 6)))

	// an applied discount excludes any late fee
	f.DiscountAmount = money.FromMinor(20000)
	assert.True(t, f.LateFeeAt(due.AddDate(0, 0, 6)).IsZero())
}

func TestFee_EligibleDiscountAt(t *testing.T) {
	f := termFee()
	deadline := f.Discount.EarlyDeadline

	assert.Equal(t, money.FromMinor(20000), f.EligibleDiscountAt(deadline.AddDate(0, 0, -1)))
	assert.True(t, f.EligibleDiscountAt(deadline).IsZero(), "deadline itself is too late")
	assert.True(t, f.EligibleDiscountAt(due.AddDate(0, 0, 10)).IsZero(), "late fee excludes discount")

	// percentage-based discount
	f.Discount.Amount = 0
	f.Discount.PercentBps = 500 // 5%
	assert.Equal(t, money.FromMinor(25000), f.EligibleDiscountAt(deadline.AddDate(0, 0, -1)))

	// disabled
	f.Discount.Enabled = false
	assert.True(t, f.EligibleDiscountAt(deadline.AddDate(0, 0, -1)).IsZero())
}

func TestNewTemplate_Validate(t *testing.T) {
	valid := func() NewTemplate {
		return NewTemplate{
			CampusID:     "cmp1",
			ClassID:      "class-5a",
			AcademicYear: "2026",
			Name:         "Term 1 Fees",
			Items: []NewItem{
				{Category: "tuition", Amount: money.FromMinor(400000), Mandatory: true},
				{Category: "transport", Amount: money.FromMinor(100000)},
			},
			TotalAmount: money.FromMinor(500000),
			Currency:    "KES",
			DueDate:     due,
		}
	}

	tests := []struct {
		name    string
		mutate  func(nt *NewTemplate)
		wantErr error
	}{
		{name: "valid", mutate: func(nt *NewTemplate) {}},
		{
			name:    "item sum mismatch",
			mutate:  func(nt *NewTemplate) { nt.TotalAmount = money.FromMinor(450000) },
			wantErr: errItemSumMismatch,
		},
		{
			name:    "installments enabled but missing",
			mutate:  func(nt *NewTemplate) { nt.InstallmentEnabled = true },
			wantErr: errNoInstallments,
		},
		{
			name: "installment sum mismatch",
			mutate: func(nt *NewTemplate) {
				nt.InstallmentEnabled = true
				nt.Installments = []NewInstallment{
					{Seq: 1, Amount: money.FromMinor(200000), DueDate: due},
					{Seq: 2, Amount: money.FromMinor(200000), DueDate: due.AddDate(0, 1, 0)},
				}
			},
			wantErr: errInstallmentsMismatch,
		},
		{
			name: "late fee amount and percent both set",
			mutate: func(nt *NewTemplate) {
				nt.LateFee = NewLateFee{Enabled: true, Amount: money.FromMinor(5000), PercentBps: 200}
			},
			wantErr: errLateFeeBothSet,
		},
		{
			name:    "late fee enabled but unconfigured",
			mutate:  func(nt *NewTemplate) { nt.LateFee = NewLateFee{Enabled: true} },
			wantErr: errLateFeeNoneSet,
		},
		{
			name: "discount amount and percent both set",
			mutate: func(nt *NewTemplate) {
				nt.Discount = NewDiscount{Enabled: true, Amount: money.FromMinor(5000), PercentBps: 200}
			},
			wantErr: errDiscountBothSet,
		},
		{
			name:    "discount enabled but unconfigured",
			mutate:  func(nt *NewTemplate) { nt.Discount = NewDiscount{Enabled: true} },
			wantErr: errDiscountNoneSet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := valid()
			tt.mutate(&nt)
			err := nt.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr.Error())
		})
	}
}
