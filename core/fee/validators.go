package fee

import (
	"errors"
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
)

var (
	errItemSumMismatch      = errors.New("total_amount does not equal the sum of item amounts")
	errNoInstallments       = errors.New("installments are enabled but none were supplied")
	errInstallmentsMismatch = errors.New("installment amounts do not sum to total_amount")
	errLateFeeBothSet       = errors.New("late fee fixed amount and percentage cannot both be set")
	errLateFeeNoneSet       = errors.New("late fee is enabled but neither amount nor percentage is set")
	errDiscountBothSet      = errors.New("discount fixed amount and percentage cannot both be set")
	errDiscountNoneSet      = errors.New("discount is enabled but neither amount nor percentage is set")
)

type (
	NewItem struct {
		Category  string      `json:"category" validate:"required"`
		Amount    money.Money `json:"amount" validate:"required"`
		Mandatory bool        `json:"mandatory"`
		DueDate   time.Time   `json:"due_date"`
	}

	NewInstallment struct {
		Seq     int         `json:"seq" validate:"required,min=1"`
		Amount  money.Money `json:"amount" validate:"required"`
		DueDate time.Time   `json:"due_date" validate:"required"`
	}

	NewLateFee struct {
		Enabled    bool        `json:"enabled"`
		GraceDays  int         `json:"grace_days" validate:"min=0"`
		Amount     money.Money `json:"amount"`
		PercentBps int64       `json:"percent_bps" validate:"min=0"`
	}

	NewDiscount struct {
		Enabled       bool        `json:"enabled"`
		Amount        money.Money `json:"amount"`
		PercentBps    int64       `json:"percent_bps" validate:"min=0"`
		EarlyDeadline time.Time   `json:"early_deadline"`
	}

	NewTemplate struct {
		CampusID           string           `json:"campus_id" validate:"required"`
		ClassID            string           `json:"class_id" validate:"required"`
		AcademicYear       string           `json:"academic_year" validate:"required"`
		Name               string           `json:"name" validate:"required"`
		Items              []NewItem        `json:"items" validate:"required,min=1,dive"`
		TotalAmount        money.Money      `json:"total_amount" validate:"required"`
		Currency           string           `json:"currency"`
		DueDate            time.Time        `json:"due_date" validate:"required"`
		InstallmentEnabled bool             `json:"is_installment_enabled"`
		Installments       []NewInstallment `json:"installments" validate:"dive"`
		LateFee            NewLateFee       `json:"late_fee"`
		Discount           NewDiscount      `json:"discount"`
		ExcludedStudentIDs []string         `json:"excluded_student_ids"`
	}

	GenerateFees struct {
		TemplateID string   `json:"template_id" validate:"required"`
		StudentIDs []string `json:"student_ids"` // empty: resolve the class roster
	}
)

// Validate rejects inconsistent templates before anything is persisted.
func (nt *NewTemplate) Validate() error {
	if err := core.Validate.Struct(nt); err != nil {
		return err
	}

	var itemSum money.Money
	for _, it := range nt.Items {
		itemSum = itemSum.Add(it.Amount)
	}
	if itemSum != nt.TotalAmount {
		return core.NewValidationError(errItemSumMismatch,
			core.FieldError{Field: "total_amount", Error: errItemSumMismatch.Error()})
	}

	if nt.InstallmentEnabled {
		if len(nt.Installments) == 0 {
			return core.NewValidationError(errNoInstallments,
				core.FieldError{Field: "installments", Error: errNoInstallments.Error()})
		}
		var instSum money.Money
		for _, inst := range nt.Installments {
			instSum = instSum.Add(inst.Amount)
		}
		if instSum != nt.TotalAmount {
			return core.NewValidationError(errInstallmentsMismatch,
				core.FieldError{Field: "installments", Error: errInstallmentsMismatch.Error()})
		}
	}

	if nt.LateFee.Enabled {
		// the source policy allowed both with unclear precedence; treat it as a
		// configuration error instead
		if nt.LateFee.Amount.IsPos() && nt.LateFee.PercentBps > 0 {
			return core.NewValidationError(errLateFeeBothSet,
				core.FieldError{Field: "late_fee", Error: errLateFeeBothSet.Error()})
		}
		if !nt.LateFee.Amount.IsPos() && nt.LateFee.PercentBps == 0 {
			return core.NewValidationError(errLateFeeNoneSet,
				core.FieldError{Field: "late_fee", Error: errLateFeeNoneSet.Error()})
		}
	}

	if nt.Discount.Enabled {
		if nt.Discount.Amount.IsPos() && nt.Discount.PercentBps > 0 {
			return core.NewValidationError(errDiscountBothSet,
				core.FieldError{Field: "discount", Error: errDiscountBothSet.Error()})
		}
		if !nt.Discount.Amount.IsPos() && nt.Discount.PercentBps == 0 {
			return core.NewValidationError(errDiscountNoneSet,
				core.FieldError{Field: "discount", Error: errDiscountNoneSet.Error()})
		}
	}

	return nil
}

func (gf *GenerateFees) Validate() error {
	return core.Validate.Struct(gf)
}
