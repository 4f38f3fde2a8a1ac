package fee

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/student"
)

type (
	// GenerationResult reports idempotent fee generation: students already
	// holding a live fee for the template+year are skipped, not errors.
	GenerationResult struct {
		GeneratedCount int `json:"generated_count"`
		SkippedCount   int `json:"skipped_count"`
	}

	// Summary is the student-facing view of a fee at a point in time.
	Summary struct {
		ID             string      `json:"id"`
		Description    string      `json:"description"`
		TotalAmount    money.Money `json:"total_amount"`
		PaidAmount     money.Money `json:"paid_amount"`
		DueAmount      money.Money `json:"due_amount"`
		LateFeeAmount  money.Money `json:"late_fee_amount"`
		DiscountAmount money.Money `json:"discount_amount"`
		Currency       string      `json:"currency"`
		DueDate        time.Time   `json:"due_date"`
		Status         Status      `json:"payment_status"`
	}

	Service struct {
		repo    Repository
		dir     student.Directory
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, dir student.Directory) *Service {
	return &Service{repo: repo, dir: dir, nowFunc: func() time.Time { return time.Now().UTC() }}
}

func (svc *Service) now() time.Time { return svc.nowFunc() }

func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	if err := nt.Validate(); err != nil {
		return Template{}, err
	}

	now := svc.now()
	tpl := Template{
		ID:                 uuid.New().String(),
		CampusID:           nt.CampusID,
		ClassID:            nt.ClassID,
		AcademicYear:       nt.AcademicYear,
		Name:               nt.Name,
		TotalAmount:        nt.TotalAmount,
		Currency:           nt.Currency,
		DueDate:            nt.DueDate,
		InstallmentEnabled: nt.InstallmentEnabled,
		ExcludedStudentIDs: nt.ExcludedStudentIDs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, it := range nt.Items {
		tpl.Items = append(tpl.Items, Item{
			Category:  it.Category,
			Amount:    it.Amount,
			Mandatory: it.Mandatory,
			DueDate:   it.DueDate,
		})
	}
	for _, inst := range nt.Installments {
		tpl.Installments = append(tpl.Installments, Installment{
			Seq:     inst.Seq,
			Amount:  inst.Amount,
			DueDate: inst.DueDate,
		})
	}
	tpl.LateFee = LateFeeConfig{
		Enabled:    nt.LateFee.Enabled,
		GraceDays:  nt.LateFee.GraceDays,
		Amount:     nt.LateFee.Amount,
		PercentBps: nt.LateFee.PercentBps,
	}
	tpl.Discount = DiscountConfig{
		Enabled:       nt.Discount.Enabled,
		Amount:        nt.Discount.Amount,
		PercentBps:    nt.Discount.PercentBps,
		EarlyDeadline: nt.Discount.EarlyDeadline,
	}

	return svc.repo.CreateTemplate(ctx, tpl)
}

func (svc *Service) GetTemplate(ctx context.Context, id string) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *Service) GetFee(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

// GenerateFees materializes one fee per eligible student. The population is
// the explicit id list when given, otherwise the template's class roster; the
// template's exclusion list always applies. Regeneration is idempotent.
func (svc *Service) GenerateFees(ctx context.Context, gf GenerateFees) (GenerationResult, error) {
	var res GenerationResult

	if err := gf.Validate(); err != nil {
		return res, err
	}

	tpl, err := svc.repo.GetTemplate(ctx, gf.TemplateID)
	if err != nil {
		return res, err
	}
	if tpl.IsDeleted() {
		return res, ErrTemplateNotFound
	}

	population, err := svc.resolvePopulation(ctx, tpl, gf.StudentIDs)
	if err != nil {
		return res, err
	}

	for _, sid := range population {
		exists, err := svc.repo.StudentHasTemplateFee(ctx, sid, tpl.ID, tpl.AcademicYear)
		if err != nil {
			return res, errors.Wrapf(err, "checking existing fee for student %s", sid)
		}
		if exists {
			res.SkippedCount++
			continue
		}
		if _, err = svc.repo.CreateFee(ctx, svc.materialize(tpl, sid)); err != nil {
			return res, errors.Wrapf(err, "creating fee for student %s", sid)
		}
		res.GeneratedCount++
	}
	return res, nil
}

func (svc *Service) resolvePopulation(ctx context.Context, tpl Template, explicit []string) ([]string, error) {
	excluded := make(map[string]bool, len(tpl.ExcludedStudentIDs))
	for _, id := range tpl.ExcludedStudentIDs {
		excluded[id] = true
	}

	var candidates []string
	if len(explicit) > 0 {
		candidates = explicit
	} else {
		roster, err := svc.dir.ClassRoster(ctx, tpl.ClassID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving roster for class %s", tpl.ClassID)
		}
		for _, s := range roster {
			candidates = append(candidates, s.ID)
		}
	}

	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if excluded[id] || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// materialize copies the template's items and policy config by value so later
// template edits never alter this fee.
func (svc *Service) materialize(tpl Template, studentID string) Fee {
	now := svc.now()
	f := Fee{
		ID:                 uuid.New().String(),
		TemplateID:         tpl.ID,
		StudentID:          studentID,
		CampusID:           tpl.CampusID,
		ClassID:            tpl.ClassID,
		AcademicYear:       tpl.AcademicYear,
		Description:        tpl.Name,
		TotalAmount:        tpl.TotalAmount,
		Currency:           tpl.Currency,
		DueDate:            tpl.DueDate,
		LateFee:            tpl.LateFee,
		Discount:           tpl.Discount,
		InstallmentEnabled: tpl.InstallmentEnabled,
		PaymentStatus:      StatusUnpaid,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	f.Items = append(f.Items, tpl.Items...)
	f.Installments = append(f.Installments, tpl.Installments...)
	return f
}

// StudentFees returns the student's pending/paid/overdue summaries.
func (svc *Service) StudentFees(ctx context.Context, studentID string) ([]Summary, error) {
	fees, err := svc.repo.FilterFees(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	now := svc.now()
	summaries := make([]Summary, 0, len(fees))
	for i := range fees {
		f := &fees[i]
		summaries = append(summaries, Summary{
			ID:             f.ID,
			Description:    f.Description,
			TotalAmount:    f.TotalAmount,
			PaidAmount:     f.PaidAmount,
			DueAmount:      f.DueAmountAt(now),
			LateFeeAmount:  f.LateFeeAt(now),
			DiscountAmount: f.DiscountAmount,
			Currency:       f.Currency,
			DueDate:        f.DueDate,
			Status:         f.StatusAt(now),
		})
	}
	return summaries, nil
}
