package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
)

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

type templateRow struct {
	ID                 string         `db:"id"`
	CampusID           string         `db:"campus_id"`
	ClassID            string         `db:"class_id"`
	AcademicYear       string         `db:"academic_year"`
	Name               string         `db:"name"`
	Items              types.JSONText `db:"items"`
	TotalAmount        int64          `db:"total_amount"`
	Currency           string         `db:"currency"`
	DueDate            time.Time      `db:"due_date"`
	InstallmentEnabled bool           `db:"installment_enabled"`
	Installments       types.JSONText `db:"installments"`
	LateFee            types.JSONText `db:"late_fee"`
	Discount           types.JSONText `db:"discount"`
	ExcludedStudentIDs types.JSONText `db:"excluded_student_ids"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	DeletedAt          *time.Time     `db:"deleted_at"`
}

type feeRow struct {
	ID                 string         `db:"id"`
	TemplateID         string         `db:"template_id"`
	StudentID          string         `db:"student_id"`
	CampusID           string         `db:"campus_id"`
	ClassID            string         `db:"class_id"`
	AcademicYear       string         `db:"academic_year"`
	Description        string         `db:"description"`
	Items              types.JSONText `db:"items"`
	TotalAmount        int64          `db:"total_amount"`
	PaidAmount         int64          `db:"paid_amount"`
	DiscountAmount     int64          `db:"discount_amount"`
	LateFeeAmount      int64          `db:"late_fee_amount"`
	Currency           string         `db:"currency"`
	DueDate            time.Time      `db:"due_date"`
	LateFee            types.JSONText `db:"late_fee"`
	Discount           types.JSONText `db:"discount"`
	InstallmentEnabled bool           `db:"installment_enabled"`
	Installments       types.JSONText `db:"installments"`
	PaymentStatus      string         `db:"payment_status"`
	ReminderCount      int            `db:"reminder_count"`
	LastReminderAt     *time.Time     `db:"last_reminder_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	DeletedAt          *time.Time     `db:"deleted_at"`
}

func mustJSON(v interface{}) types.JSONText {
	b, _ := json.Marshal(v)
	return b
}

// col pairs a JSONB column with its decoding target.
type col struct {
	src types.JSONText
	dst interface{}
}

func unmarshalCols(cols ...col) error {
	for _, c := range cols {
		if len(c.src) == 0 {
			continue
		}
		if err := c.src.Unmarshal(c.dst); err != nil {
			return err
		}
	}
	return nil
}

func newTemplateRow(tpl fee.Template) templateRow {
	return templateRow{
		ID:                 tpl.ID,
		CampusID:           tpl.CampusID,
		ClassID:            tpl.ClassID,
		AcademicYear:       tpl.AcademicYear,
		Name:               tpl.Name,
		Items:              mustJSON(tpl.Items),
		TotalAmount:        tpl.TotalAmount.Minor(),
		Currency:           tpl.Currency,
		DueDate:            tpl.DueDate,
		InstallmentEnabled: tpl.InstallmentEnabled,
		Installments:       mustJSON(tpl.Installments),
		LateFee:            mustJSON(tpl.LateFee),
		Discount:           mustJSON(tpl.Discount),
		ExcludedStudentIDs: mustJSON(tpl.ExcludedStudentIDs),
		CreatedAt:          tpl.CreatedAt,
		UpdatedAt:          tpl.UpdatedAt,
		DeletedAt:          tpl.DeletedAt,
	}
}

func (r templateRow) toTemplate() (fee.Template, error) {
	tpl := fee.Template{
		ID:                 r.ID,
		CampusID:           r.CampusID,
		ClassID:            r.ClassID,
		AcademicYear:       r.AcademicYear,
		Name:               r.Name,
		TotalAmount:        money.FromMinor(r.TotalAmount),
		Currency:           r.Currency,
		DueDate:            r.DueDate,
		InstallmentEnabled: r.InstallmentEnabled,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		DeletedAt:          r.DeletedAt,
	}
	if err := unmarshalCols(
		col{r.Items, &tpl.Items},
		col{r.Installments, &tpl.Installments},
		col{r.LateFee, &tpl.LateFee},
		col{r.Discount, &tpl.Discount},
		col{r.ExcludedStudentIDs, &tpl.ExcludedStudentIDs},
	); err != nil {
		return fee.Template{}, errors.Wrap(err, "decoding template row")
	}
	return tpl, nil
}

func newFeeRow(f fee.Fee) feeRow {
	return feeRow{
		ID:                 f.ID,
		TemplateID:         f.TemplateID,
		StudentID:          f.StudentID,
		CampusID:           f.CampusID,
		ClassID:            f.ClassID,
		AcademicYear:       f.AcademicYear,
		Description:        f.Description,
		Items:              mustJSON(f.Items),
		TotalAmount:        f.TotalAmount.Minor(),
		PaidAmount:         f.PaidAmount.Minor(),
		DiscountAmount:     f.DiscountAmount.Minor(),
		LateFeeAmount:      f.LateFeeAmount.Minor(),
		Currency:           f.Currency,
		DueDate:            f.DueDate,
		LateFee:            mustJSON(f.LateFee),
		Discount:           mustJSON(f.Discount),
		InstallmentEnabled: f.InstallmentEnabled,
		Installments:       mustJSON(f.Installments),
		PaymentStatus:      string(f.PaymentStatus),
		ReminderCount:      f.ReminderCount,
		LastReminderAt:     f.LastReminderAt,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
		DeletedAt:          f.DeletedAt,
	}
}

func (r feeRow) toFee() (fee.Fee, error) {
	f := fee.Fee{
		ID:                 r.ID,
		TemplateID:         r.TemplateID,
		StudentID:          r.StudentID,
		CampusID:           r.CampusID,
		ClassID:            r.ClassID,
		AcademicYear:       r.AcademicYear,
		Description:        r.Description,
		TotalAmount:        money.FromMinor(r.TotalAmount),
		PaidAmount:         money.FromMinor(r.PaidAmount),
		DiscountAmount:     money.FromMinor(r.DiscountAmount),
		LateFeeAmount:      money.FromMinor(r.LateFeeAmount),
		Currency:           r.Currency,
		DueDate:            r.DueDate,
		InstallmentEnabled: r.InstallmentEnabled,
		PaymentStatus:      fee.Status(r.PaymentStatus),
		ReminderCount:      r.ReminderCount,
		LastReminderAt:     r.LastReminderAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		DeletedAt:          r.DeletedAt,
	}
	if err := unmarshalCols(
		col{r.Items, &f.Items},
		col{r.Installments, &f.Installments},
		col{r.LateFee, &f.LateFee},
		col{r.Discount, &f.Discount},
	); err != nil {
		return fee.Fee{}, errors.Wrap(err, "decoding fee row")
	}
	return f, nil
}

func (repo *feeRepository) CreateTemplate(ctx context.Context, tpl fee.Template) (fee.Template, error) {
	const q = `
		INSERT INTO fee_template (
			id, campus_id, class_id, academic_year, name, items, total_amount, currency, due_date,
			installment_enabled, installments, late_fee, discount, excluded_student_ids, created_at, updated_at
		) VALUES (
			:id, :campus_id, :class_id, :academic_year, :name, :items, :total_amount, :currency, :due_date,
			:installment_enabled, :installments, :late_fee, :discount, :excluded_student_ids, :created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTemplateRow(tpl)); err != nil {
		return fee.Template{}, errors.Wrap(err, "inserting fee template")
	}
	return tpl, nil
}

func (repo *feeRepository) GetTemplate(ctx context.Context, id string) (fee.Template, error) {
	var row templateRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_template WHERE id = $1 AND deleted_at IS NULL`, id)
	if err == sql.ErrNoRows {
		return fee.Template{}, fee.ErrTemplateNotFound
	}
	if err != nil {
		return fee.Template{}, errors.Wrap(err, "getting fee template")
	}
	return row.toTemplate()
}

func (repo *feeRepository) UpdateTemplate(ctx context.Context, tpl fee.Template) (fee.Template, error) {
	const q = `
		UPDATE fee_template SET
			name = :name, items = :items, total_amount = :total_amount, currency = :currency,
			due_date = :due_date, installment_enabled = :installment_enabled, installments = :installments,
			late_fee = :late_fee, discount = :discount, excluded_student_ids = :excluded_student_ids,
			updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL`
	res, err := repo.db.NamedExecContext(ctx, q, newTemplateRow(tpl))
	if err != nil {
		return fee.Template{}, errors.Wrap(err, "updating fee template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Template{}, fee.ErrTemplateNotFound
	}
	return tpl, nil
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	const q = `
		INSERT INTO fee (
			id, template_id, student_id, campus_id, class_id, academic_year, description, items,
			total_amount, paid_amount, discount_amount, late_fee_amount, currency, due_date,
			late_fee, discount, installment_enabled, installments, payment_status,
			reminder_count, last_reminder_at, created_at, updated_at
		) VALUES (
			:id, :template_id, :student_id, :campus_id, :class_id, :academic_year, :description, :items,
			:total_amount, :paid_amount, :discount_amount, :late_fee_amount, :currency, :due_date,
			:late_fee, :discount, :installment_enabled, :installments, :payment_status,
			:reminder_count, :last_reminder_at, :created_at, :updated_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, q, newFeeRow(f)); err != nil {
		return fee.Fee{}, errors.Wrap(err, "inserting fee")
	}
	return f, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string) (fee.Fee, error) {
	var row feeRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee WHERE id = $1 AND deleted_at IS NULL`, id)
	if err == sql.ErrNoRows {
		return fee.Fee{}, fee.ErrNotFound
	}
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "getting fee")
	}
	return row.toFee()
}

func (repo *feeRepository) StudentHasTemplateFee(ctx context.Context, studentID, templateID, academicYear string) (bool, error) {
	var exists bool
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM fee
			WHERE student_id = $1 AND template_id = $2 AND academic_year = $3 AND deleted_at IS NULL
		)`
	if err := repo.db.GetContext(ctx, &exists, q, studentID, templateID, academicYear); err != nil {
		return false, errors.Wrap(err, "checking fee existence")
	}
	return exists, nil
}

func (repo *feeRepository) FilterFees(ctx context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	conds := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = "+arg(filter.StudentID))
	}
	if filter.TemplateID != "" {
		conds = append(conds, "template_id = "+arg(filter.TemplateID))
	}
	if filter.CampusID != "" {
		conds = append(conds, "campus_id = "+arg(filter.CampusID))
	}
	if filter.Unsettled {
		// stored amounts understate the due amount for overdue fees whose late
		// fee has not been frozen yet, but never overstate it
		conds = append(conds, "total_amount + late_fee_amount - discount_amount - paid_amount > 0")
	}
	if !filter.DueBefore.IsZero() {
		conds = append(conds, "due_date < "+arg(filter.DueBefore))
	}

	q := `SELECT * FROM fee`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY due_date, id"

	var rows []feeRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering fees")
	}

	fees := make([]fee.Fee, 0, len(rows))
	for _, row := range rows {
		f, err := row.toFee()
		if err != nil {
			return nil, err
		}
		fees = append(fees, f)
	}
	return fees, nil
}

func (repo *feeRepository) SoftDeleteFee(ctx context.Context, id string, now time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE fee SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return errors.Wrap(err, "soft-deleting fee")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ErrNotFound
	}
	return nil
}

func (repo *feeRepository) MarkReminded(ctx context.Context, feeID string, now time.Time, minInterval time.Duration) (bool, error) {
	// conditional bump; a concurrent sweep that got there first leaves no row
	const q = `
		UPDATE fee SET reminder_count = reminder_count + 1, last_reminder_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
			AND (last_reminder_at IS NULL OR last_reminder_at <= $3)`
	res, err := repo.db.ExecContext(ctx, q, feeID, now, now.Add(-minInterval))
	if err != nil {
		return false, errors.Wrap(err, "marking fee reminded")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "marking fee reminded")
	}
	return n > 0, nil
}
