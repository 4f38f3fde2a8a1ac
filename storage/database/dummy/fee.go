package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
)

type feeRepository struct {
	db *feeTable
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db.fee}
}

func copyTemplate(tpl fee.Template) fee.Template {
	cp := tpl
	cp.Items = append([]fee.Item(nil), tpl.Items...)
	cp.Installments = append([]fee.Installment(nil), tpl.Installments...)
	cp.ExcludedStudentIDs = append([]string(nil), tpl.ExcludedStudentIDs...)
	return cp
}

func copyFee(f fee.Fee) fee.Fee {
	cp := f
	cp.Items = append([]fee.Item(nil), f.Items...)
	cp.Installments = append([]fee.Installment(nil), f.Installments...)
	return cp
}

func (repo *feeRepository) CreateTemplate(_ context.Context, tpl fee.Template) (fee.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cp := copyTemplate(tpl)
	repo.db.templates[tpl.ID] = &cp
	return tpl, nil
}

func (repo *feeRepository) GetTemplate(_ context.Context, id string) (fee.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tpl, ok := repo.db.templates[id]; ok && !tpl.IsDeleted() {
		return copyTemplate(*tpl), nil
	}
	return fee.Template{}, fee.ErrTemplateNotFound
}

func (repo *feeRepository) UpdateTemplate(_ context.Context, tpl fee.Template) (fee.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.templates[tpl.ID]
	if !ok || orig.IsDeleted() {
		return fee.Template{}, fee.ErrTemplateNotFound
	}
	cp := copyTemplate(tpl)
	cp.CreatedAt = orig.CreatedAt
	repo.db.templates[tpl.ID] = &cp
	return copyTemplate(cp), nil
}

func (repo *feeRepository) CreateFee(_ context.Context, f fee.Fee) (fee.Fee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same uniqueness rule the SQL schema enforces
	if f.TemplateID != "" {
		for _, existing := range repo.db.fees {
			if existing.StudentID == f.StudentID && existing.TemplateID == f.TemplateID &&
				existing.AcademicYear == f.AcademicYear && !existing.IsDeleted() {
				return fee.Fee{}, errors.New("duplicate fee for student/template/year")
			}
		}
	}
	cp := copyFee(f)
	repo.db.fees[f.ID] = &cp
	return f, nil
}

func (repo *feeRepository) GetFee(_ context.Context, id string) (fee.Fee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.getFee(id)
}

func (t *feeTable) getFee(id string) (fee.Fee, error) {
	if f, ok := t.fees[id]; ok && !f.IsDeleted() {
		return copyFee(*f), nil
	}
	return fee.Fee{}, fee.ErrNotFound
}

func (repo *feeRepository) StudentHasTemplateFee(_ context.Context, studentID, templateID, academicYear string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, f := range repo.db.fees {
		if f.StudentID == studentID && f.TemplateID == templateID && f.AcademicYear == academicYear && !f.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

func (repo *feeRepository) FilterFees(_ context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fees := make([]fee.Fee, 0, len(repo.db.fees))
	for _, f := range repo.db.fees {
		if f.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.StudentID != "" && f.StudentID != filter.StudentID {
			continue
		}
		if filter.TemplateID != "" && f.TemplateID != filter.TemplateID {
			continue
		}
		if filter.CampusID != "" && f.CampusID != filter.CampusID {
			continue
		}
		if filter.Unsettled {
			due := f.TotalAmount.Add(f.LateFeeAmount).Sub(f.DiscountAmount).Sub(f.PaidAmount)
			if !due.IsPos() {
				continue
			}
		}
		if !filter.DueBefore.IsZero() && !f.DueDate.Before(filter.DueBefore) {
			continue
		}
		fees = append(fees, copyFee(*f))
	}

	sort.Slice(fees, func(i, j int) bool {
		if fees[i].DueDate.Equal(fees[j].DueDate) {
			return fees[i].ID < fees[j].ID
		}
		return fees[i].DueDate.Before(fees[j].DueDate)
	})
	return fees, nil
}

func (repo *feeRepository) SoftDeleteFee(_ context.Context, id string, now time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	f, ok := repo.db.fees[id]
	if !ok || f.IsDeleted() {
		return fee.ErrNotFound
	}
	f.DeletedAt = &now
	f.UpdatedAt = now
	return nil
}

func (repo *feeRepository) MarkReminded(_ context.Context, feeID string, now time.Time, minInterval time.Duration) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	f, ok := repo.db.fees[feeID]
	if !ok || f.IsDeleted() {
		return false, fee.ErrNotFound
	}
	if f.LastReminderAt != nil && f.LastReminderAt.After(now.Add(-minInterval)) {
		return false, nil
	}
	reminded := now
	f.LastReminderAt = &reminded
	f.ReminderCount++
	f.UpdatedAt = now
	return true, nil
}
