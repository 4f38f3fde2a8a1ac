package fee

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/karo/core/money"
)

var (
	// errors
	ErrNotFound         = errors.New("fee not found")
	ErrTemplateNotFound = errors.New("fee template not found")
)

// Status is a pure function of a fee's due amount, due date and current time;
// it is persisted only as a query convenience, never as independent truth.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

type (
	// Item is a single line of a template or fee: tuition, transport, lab...
	Item struct {
		Category  string      `json:"category"`
		Amount    money.Money `json:"amount"`
		Mandatory bool        `json:"mandatory"`
		DueDate   time.Time   `json:"due_date"`
	}

	Installment struct {
		Seq     int         `json:"seq"`
		Amount  money.Money `json:"amount"`
		DueDate time.Time   `json:"due_date"`
	}

	// LateFeeConfig: when enabled, exactly one of Amount/PercentBps must be
	// non-zero; both set at once is rejected at template creation.
	LateFeeConfig struct {
		Enabled    bool        `json:"enabled"`
		GraceDays  int         `json:"grace_days"`
		Amount     money.Money `json:"amount"`
		PercentBps int64       `json:"percent_bps"` // basis points: 200 = 2%
	}

	// DiscountConfig: early-payment discount, applied only when the settling
	// payment lands strictly before EarlyDeadline. Mutually exclusive with a
	// late fee on the same fee.
	DiscountConfig struct {
		Enabled       bool        `json:"enabled"`
		Amount        money.Money `json:"amount"`
		PercentBps    int64       `json:"percent_bps"`
		EarlyDeadline time.Time   `json:"early_deadline"`
	}

	// Template is the class/cohort-level fee definition. Administrative edits
	// never retroactively alter fees already generated from it: fees copy the
	// item list and policy config by value.
	Template struct {
		ID                 string         `json:"id"`
		CampusID           string         `json:"campus_id"`
		ClassID            string         `json:"class_id"`
		AcademicYear       string         `json:"academic_year"`
		Name               string         `json:"name"`
		Items              []Item         `json:"items"`
		TotalAmount        money.Money    `json:"total_amount"`
		Currency           string         `json:"currency"`
		DueDate            time.Time      `json:"due_date"`
		InstallmentEnabled bool           `json:"is_installment_enabled"`
		Installments       []Installment  `json:"installments,omitempty"`
		LateFee            LateFeeConfig  `json:"late_fee"`
		Discount           DiscountConfig `json:"discount"`
		ExcludedStudentIDs []string       `json:"excluded_student_ids,omitempty"`
		CreatedAt          time.Time      `json:"created_at"` // UTC
		UpdatedAt          time.Time      `json:"updated_at"` // UTC
		DeletedAt          *time.Time     `json:"-"`
	}

	// Fee is one student's payable obligation. Soft-deleted, never hard-deleted:
	// the financial audit trail outlives administrative mistakes.
	Fee struct {
		ID           string `json:"id"`
		TemplateID   string `json:"template_id,omitempty"` // empty for ad-hoc fees
		StudentID    string `json:"student_id"`
		CampusID     string `json:"campus_id"`
		ClassID      string `json:"class_id,omitempty"`
		AcademicYear string `json:"academic_year"`
		Description  string `json:"description"`

		Items       []Item      `json:"items"`
		TotalAmount money.Money `json:"total_amount"`
		// PaidAmount only increases (refunds excepted) and only via a settled
		// payment transaction.
		PaidAmount     money.Money `json:"paid_amount"`
		DiscountAmount money.Money `json:"discount_amount"`
		LateFeeAmount  money.Money `json:"late_fee_amount"`
		Currency       string      `json:"currency"`

		DueDate            time.Time      `json:"due_date"`
		LateFee            LateFeeConfig  `json:"late_fee"`
		Discount           DiscountConfig `json:"discount"`
		InstallmentEnabled bool           `json:"is_installment_enabled"`
		Installments       []Installment  `json:"installments,omitempty"`

		PaymentStatus Status `json:"payment_status"`

		ReminderCount  int        `json:"reminder_count"`
		LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`

		CreatedAt time.Time  `json:"created_at"` // UTC
		UpdatedAt time.Time  `json:"updated_at"` // UTC
		DeletedAt *time.Time `json:"-"`
	}

	QueryFilter struct {
		StudentID      string
		TemplateID     string
		CampusID       string
		Unsettled      bool // due amount outstanding
		DueBefore      time.Time
		IncludeDeleted bool
	}

	Repository interface {
		CreateTemplate(ctx context.Context, tpl Template) (Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		UpdateTemplate(ctx context.Context, tpl Template) (Template, error)

		CreateFee(ctx context.Context, f Fee) (Fee, error)
		GetFee(ctx context.Context, id string) (Fee, error)
		// StudentHasTemplateFee reports whether a non-deleted fee already exists
		// for this student+template+year; drives idempotent regeneration.
		StudentHasTemplateFee(ctx context.Context, studentID, templateID, academicYear string) (bool, error)
		// FilterFees applies AND operation on available QueryFilter fields.
		FilterFees(ctx context.Context, filter QueryFilter) ([]Fee, error)
		SoftDeleteFee(ctx context.Context, id string, now time.Time) error
		// MarkReminded bumps the reminder counter iff no reminder went out within
		// minInterval; returns false when another sweep got there first.
		MarkReminded(ctx context.Context, feeID string, now time.Time, minInterval time.Duration) (bool, error)
	}
)

func (t *Template) IsDeleted() bool { return t.DeletedAt != nil }
func (f *Fee) IsDeleted() bool      { return f.DeletedAt != nil }

func (c LateFeeConfig) compute(total money.Money) money.Money {
	return money.Max(c.Amount, total.Percent(c.PercentBps))
}

func (c DiscountConfig) compute(total money.Money) money.Money {
	if !c.Amount.IsZero() {
		return c.Amount
	}
	return total.Percent(c.PercentBps)
}

// LateFeeAt returns the late fee in effect at `now`. Once a late fee has been
// frozen into LateFeeAmount (at settlement) it stays; an applied discount
// excludes any late fee.
func (f *Fee) LateFeeAt(now time.Time) money.Money {
	if f.LateFeeAmount.IsPos() {
		return f.LateFeeAmount
	}
	if !f.LateFee.Enabled || f.DiscountAmount.IsPos() {
		return 0
	}
	if money.OverdueAt(now, f.DueDate, f.LateFee.GraceDays) {
		return f.LateFee.compute(f.TotalAmount)
	}
	return 0
}

// EligibleDiscountAt returns the early-payment discount a settlement at `now`
// would earn. Zero once a late fee applies or after the deadline.
func (f *Fee) EligibleDiscountAt(now time.Time) money.Money {
	if f.DiscountAmount.IsPos() {
		return f.DiscountAmount
	}
	if !f.Discount.Enabled || f.LateFeeAt(now).IsPos() {
		return 0
	}
	if !money.BeforeDeadline(now, f.Discount.EarlyDeadline) {
		return 0
	}
	return f.Discount.compute(f.TotalAmount)
}

// DueAmountAt derives the outstanding amount; it is never stored as
// independently-mutable truth.
//
//	due = max(0, total + late fee - discount - paid)
func (f *Fee) DueAmountAt(now time.Time) money.Money {
	due := f.TotalAmount.Add(f.LateFeeAt(now)).Sub(f.DiscountAmount).Sub(f.PaidAmount)
	return money.Max(0, due)
}

// StatusAt derives the payment status at `now`.
func (f *Fee) StatusAt(now time.Time) Status {
	due := f.DueAmountAt(now)
	switch {
	case due.IsZero():
		return StatusPaid
	case money.OverdueAt(now, f.DueDate, f.LateFee.GraceDays):
		return StatusOverdue
	case f.PaidAmount.IsPos():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}
